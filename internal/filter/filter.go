// Package filter reduces a raw page body to the representation that is
// stored and compared between checks.
package filter

import (
	"errors"
	"fmt"

	"webmonitor-engine/internal/domain"
)

var (
	ErrSelectorParse = errors.New("invalid selector")
	ErrParseFailure  = errors.New("markup parse failure")
	ErrUnknownFilter = errors.New("unknown filter type")
)

// Error reports which step of a filter chain failed.
type Error struct {
	Index int
	Type  domain.FilterType
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("filter[%d] %s: %v", e.Index, e.Type, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type stepFunc func(in string) (string, error)

// Apply runs filters in order, each one consuming the output of the
// previous. An empty chain returns raw unchanged.
func Apply(raw string, filters []domain.Filter) (string, error) {
	out := raw
	for i, f := range filters {
		step, err := stepFor(f)
		if err == nil {
			out, err = step(out)
		}
		if err != nil {
			return "", &Error{Index: i, Type: f.Type, Err: err}
		}
	}
	return out, nil
}

func stepFor(f domain.Filter) (stepFunc, error) {
	switch f.Type {
	case domain.FilterCSS:
		sel := f.Selector
		return func(in string) (string, error) { return CSS(in, sel) }, nil
	case domain.FilterXPath:
		return func(in string) (string, error) { return XPath(in, f.Selector), nil }, nil
	case domain.FilterHTML2Text:
		return HTML2Text, nil
	case domain.FilterHTML2Markdown:
		return HTML2Markdown, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownFilter, f.Type)
	}
}

// Unsupported reports whether f is accepted but not evaluated.
func Unsupported(f domain.Filter) bool {
	return f.Type == domain.FilterXPath
}
