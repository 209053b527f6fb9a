package markup

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// RenderHTML serialises elements as HTML.
func RenderHTML(w io.Writer, elements []Element) error {
	for _, e := range elements {
		if err := html.Render(w, toHTMLNode(e)); err != nil {
			return err
		}
	}
	return nil
}

func toHTMLNode(e Element) *html.Node {
	if e.IsText() {
		return &html.Node{Type: html.TextNode, Data: e.Text}
	}
	n := &html.Node{Type: html.ElementNode, Data: e.Name}
	for _, a := range e.Attrs {
		n.Attr = append(n.Attr, html.Attribute{Key: a.Key, Val: a.Val})
	}
	for _, c := range e.Children {
		n.AppendChild(toHTMLNode(c))
	}
	return n
}

// RenderNote compiles source to HTML. If source has malformed link syntax
// the parse error is returned together with the raw text, escaped but
// otherwise unmodified.
func RenderNote(source string, counter *SidenoteCounter) (string, error) {
	elements, err := CompileString(source, counter)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			return html.EscapeString(source), err
		}
		return "", err
	}
	var buf bytes.Buffer
	if err := RenderHTML(&buf, elements); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ToMarkdown converts elements to CommonMark for terminal rendering.
func ToMarkdown(elements []Element) string {
	var sb strings.Builder
	for _, e := range elements {
		writeMarkdown(&sb, e)
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func writeMarkdown(sb *strings.Builder, e Element) {
	if e.IsText() {
		sb.WriteString(e.Text)
		return
	}
	inline := func() string {
		var inner strings.Builder
		for _, c := range e.Children {
			writeMarkdown(&inner, c)
		}
		return inner.String()
	}

	switch e.Name {
	case "p":
		sb.WriteString(inline())
		sb.WriteString("\n\n")
	case "ol", "ul":
		for i, item := range e.Children {
			marker := "- "
			if e.Name == "ol" {
				marker = strconv.Itoa(i+1) + ". "
			}
			sb.WriteString(marker)
			writeMarkdown(sb, item)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	case "a":
		href, _ := e.Attr("href")
		sb.WriteString("[" + inline() + "](" + href + ")")
	case "q":
		sb.WriteString("“" + inline() + "”")
	case "u", "mark":
		sb.WriteString("_" + inline() + "_")
	case "strong":
		sb.WriteString("**" + inline() + "**")
	case "span":
		sb.WriteString(" (" + strings.TrimSpace(inline()) + ")")
	case "label", "input":
	case "pre":
		for _, code := range e.Children {
			class, _ := code.Attr("class")
			sb.WriteString("```" + strings.TrimPrefix(class, "language-") + "\n")
			for _, t := range code.Children {
				sb.WriteString(t.Text)
			}
			sb.WriteString("\n```\n\n")
		}
	default:
		sb.WriteString(inline())
	}
}
