package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type FilterType string

const (
	FilterCSS           FilterType = "css"
	FilterXPath         FilterType = "xpath"
	FilterHTML2Text     FilterType = "html2text"
	FilterHTML2Markdown FilterType = "html2markdown"
)

func (t FilterType) known() bool {
	switch t {
	case FilterCSS, FilterXPath, FilterHTML2Text, FilterHTML2Markdown:
		return true
	}
	return false
}

// Filter is one step of a job's filter chain. Type selects the variant;
// Selector is only meaningful for css and xpath.
type Filter struct {
	Type     FilterType `json:"type" yaml:"type"`
	Selector string     `json:"selector,omitempty" yaml:"selector,omitempty"`
}

func CSS(selector string) Filter   { return Filter{Type: FilterCSS, Selector: selector} }
func XPath(selector string) Filter { return Filter{Type: FilterXPath, Selector: selector} }
func HTML2Text() Filter            { return Filter{Type: FilterHTML2Text} }
func HTML2Markdown() Filter        { return Filter{Type: FilterHTML2Markdown} }

func (f Filter) Validate() error {
	switch f.Type {
	case FilterCSS, FilterXPath:
		if strings.TrimSpace(f.Selector) == "" {
			return fmt.Errorf("%s filter: selector is required", f.Type)
		}
	case FilterHTML2Text, FilterHTML2Markdown:
		if f.Selector != "" {
			return fmt.Errorf("%s filter takes no selector", f.Type)
		}
	case "":
		return errors.New("filter type is required")
	default:
		return fmt.Errorf("unknown filter type %q", f.Type)
	}
	return nil
}

func (f *Filter) UnmarshalJSON(b []byte) error {
	type plain Filter
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	if !p.Type.known() {
		return fmt.Errorf("unknown filter type %q", p.Type)
	}
	*f = Filter(p)
	return nil
}

func (f *Filter) UnmarshalYAML(value *yaml.Node) error {
	type plain Filter
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	if !p.Type.known() {
		return fmt.Errorf("line %d: unknown filter type %q", value.Line, p.Type)
	}
	*f = Filter(p)
	return nil
}
