package telegraph

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Element is a Telegraph DOM node. Children hold strings and Elements.
type Element struct {
	Tag      string            `json:"tag"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []any             `json:"children,omitempty"`
}

// Telegraph accepts a fixed tag set; headings are limited to h3 and h4.
var tagMap = map[string]string{
	"a": "a", "aside": "aside", "b": "b", "blockquote": "blockquote", "br": "br",
	"code": "code", "em": "em", "figcaption": "figcaption", "figure": "figure",
	"hr": "hr", "i": "i", "img": "img", "li": "li", "ol": "ol", "p": "p",
	"pre": "pre", "s": "s", "strong": "strong", "u": "u", "ul": "ul",
	"h1": "h3", "h2": "h3", "h3": "h3", "h4": "h4", "h5": "h4", "h6": "h4",
	"del": "s",
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

func sanitizer() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	elems := make([]string, 0, len(tagMap))
	for tag := range tagMap {
		elems = append(elems, tag)
	}
	p.AllowElements(elems...)
	p.AllowStandardURLs()
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("src", "alt").OnElements("img")
	return p
}

var policy = sanitizer()

// ToHTML renders Markdown to sanitised HTML limited to the Telegraph tag set.
func ToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("telegraph: render markdown: %w", err)
	}
	return policy.Sanitize(buf.String()), nil
}

// ToNodes converts Markdown to Telegraph content nodes.
func ToNodes(md string) ([]any, error) {
	h, err := ToHTML(md)
	if err != nil {
		return nil, err
	}
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(h), body)
	if err != nil {
		return nil, fmt.Errorf("telegraph: parse html: %w", err)
	}
	var out []any
	for _, n := range nodes {
		out = append(out, convert(n)...)
	}
	return out, nil
}

func convert(n *html.Node) []any {
	switch n.Type {
	case html.TextNode:
		if strings.TrimSpace(n.Data) == "" && strings.Contains(n.Data, "\n") {
			return nil
		}
		return []any{n.Data}
	case html.ElementNode:
		var children []any
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			children = append(children, convert(c)...)
		}
		tag, ok := tagMap[n.Data]
		if !ok {
			return children
		}
		el := Element{Tag: tag, Children: children}
		for _, a := range n.Attr {
			if a.Key == "href" || a.Key == "src" {
				if el.Attrs == nil {
					el.Attrs = map[string]string{}
				}
				el.Attrs[a.Key] = a.Val
			}
		}
		return []any{el}
	default:
		return nil
	}
}
