package markup

import (
	"strconv"
	"sync/atomic"
)

// Attr is an element attribute.
type Attr struct {
	Key string `json:"key"`
	Val string `json:"val"`
}

// Element is a presentation node consumed by renderers. An Element with an
// empty Name is raw text.
type Element struct {
	Name     string    `json:"name,omitempty"`
	Key      string    `json:"key,omitempty"`
	Attrs    []Attr    `json:"attrs,omitempty"`
	Children []Element `json:"children,omitempty"`
	Text     string    `json:"text,omitempty"`
}

// IsText reports whether e is a raw text node.
func (e Element) IsText() bool { return e.Name == "" }

// Attr returns the value of the named attribute.
func (e Element) Attr(key string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SidenoteCounter allocates identifiers for sidenote label/checkbox/content
// triples. Each sidenote reserves three consecutive values.
type SidenoteCounter struct {
	n atomic.Int64
}

// Next reserves three identifiers and returns the first.
func (c *SidenoteCounter) Next() int64 {
	return c.n.Add(3) - 3
}

// DefaultCounter is shared by callers that want numbering to continue across
// compiles for the lifetime of the process.
var DefaultCounter = &SidenoteCounter{}

// Compiler maps parse trees to presentation elements.
type Compiler struct {
	sidenotes *SidenoteCounter
}

// NewCompiler creates a Compiler drawing sidenote ids from counter. A nil
// counter gets a fresh one, so numbering starts at zero.
func NewCompiler(counter *SidenoteCounter) *Compiler {
	if counter == nil {
		counter = &SidenoteCounter{}
	}
	return &Compiler{sidenotes: counter}
}

// Compile renders nodes to presentation elements.
func (c *Compiler) Compile(nodes []Node) []Element {
	var out []Element
	for _, n := range nodes {
		out = append(out, c.compile(n)...)
	}
	return out
}

var groupElements = map[NodeKind]string{
	NodeParagraph:     "p",
	NodeOrderedList:   "ol",
	NodeUnorderedList: "ul",
	NodeListItem:      "li",
	NodeQuotation:     "q",
	NodeUnderlined:    "u",
	NodeStrong:        "strong",
	NodeHighlight:     "mark",
}

func (c *Compiler) compile(n Node) []Element {
	switch v := n.(type) {
	case *Text:
		return []Element{{Text: v.Value}}
	case *Link:
		return []Element{{
			Name:     "a",
			Attrs:    []Attr{{Key: "href", Val: v.URL}},
			Children: []Element{{Text: v.DisplayText}},
		}}
	case *CodeBlock:
		return []Element{{
			Name: "pre",
			Children: []Element{{
				Name:     "code",
				Attrs:    []Attr{{Key: "class", Val: "language-" + v.Language}},
				Children: []Element{{Text: v.Code}},
			}},
		}}
	case Container:
		if v.Kind() == NodeSidenote {
			return c.sidenote(v)
		}
		return []Element{{Name: groupElements[v.Kind()], Children: c.Compile(v.Children())}}
	}
	return nil
}

// sidenote emits the label, checkbox and content that make up a toggleable
// margin note.
func (c *Compiler) sidenote(n Container) []Element {
	base := c.sidenotes.Next()
	id := "sn-" + strconv.FormatInt(base, 10)
	return []Element{
		{
			Name:  "label",
			Key:   strconv.FormatInt(base, 10),
			Attrs: []Attr{{Key: "for", Val: id}, {Key: "class", Val: "margin-toggle sidenote-number"}},
		},
		{
			Name:  "input",
			Key:   strconv.FormatInt(base+1, 10),
			Attrs: []Attr{{Key: "type", Val: "checkbox"}, {Key: "id", Val: id}, {Key: "class", Val: "margin-toggle"}},
		},
		{
			Name:     "span",
			Key:      strconv.FormatInt(base+2, 10),
			Attrs:    []Attr{{Key: "class", Val: "sidenote"}},
			Children: c.Compile(n.Children()),
		},
	}
}

// CompileString tokenizes, parses and compiles input. A *ParseError means the
// caller should present input as raw text.
func CompileString(input string, counter *SidenoteCounter) ([]Element, error) {
	nodes, err := ParseString(input)
	if err != nil {
		return nil, err
	}
	return NewCompiler(counter).Compile(nodes), nil
}
