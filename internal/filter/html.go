package filter

import (
	"fmt"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// parseFragment parses markup the way a browser parses innerHTML of <body>,
// so no html/head/body wrappers are synthesized around the input.
func parseFragment(raw string) (*goquery.Document, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(raw), ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	root := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return goquery.NewDocumentFromNode(root), nil
}

// CSS returns the outer HTML of every node matching selector, concatenated
// in document order. No match yields "".
func CSS(in, selector string) (string, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrSelectorParse, selector, err)
	}
	doc, err := parseFragment(in)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var renderErr error
	doc.FindMatcher(m).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		h, err := goquery.OuterHtml(s)
		if err != nil {
			renderErr = fmt.Errorf("%w: %v", ErrParseFailure, err)
			return false
		}
		b.WriteString(h)
		return true
	})
	if renderErr != nil {
		return "", renderErr
	}
	return b.String(), nil
}

// HTML2Text drops all markup and returns the text nodes in document order.
func HTML2Text(in string) (string, error) {
	doc, err := parseFragment(in)
	if err != nil {
		return "", err
	}
	return doc.Text(), nil
}

// XPath is a pass-through: no XPath engine is wired in yet.
func XPath(in, _ string) string {
	return in
}

var markdown = sync.OnceValue(func() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)
})

func HTML2Markdown(in string) (string, error) {
	out, err := markdown().ConvertString(in)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	return out, nil
}
