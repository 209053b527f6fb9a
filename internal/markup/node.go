package markup

import "strings"

// NodeKind identifies the type of a parse tree node.
type NodeKind int

const (
	NodeParagraph NodeKind = iota
	NodeOrderedList
	NodeUnorderedList
	NodeListItem
	NodeText
	NodeLink
	NodeQuotation
	NodeSidenote
	NodeUnderlined
	NodeStrong
	NodeHighlight
	NodeCodeBlock
)

var nodeKindNames = [...]string{
	NodeParagraph:     "paragraph",
	NodeOrderedList:   "ordered-list",
	NodeUnorderedList: "unordered-list",
	NodeListItem:      "list-item",
	NodeText:          "text",
	NodeLink:          "link",
	NodeQuotation:     "quotation",
	NodeSidenote:      "sidenote",
	NodeUnderlined:    "underlined",
	NodeStrong:        "strong",
	NodeHighlight:     "highlight",
	NodeCodeBlock:     "code-block",
}

// String returns a string representation of the NodeKind.
func (k NodeKind) String() string {
	if int(k) >= 0 && int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return "unknown"
}

// Node is an element of the parse tree.
type Node interface {
	Kind() NodeKind
}

// Container is a node that owns an ordered sequence of children.
type Container interface {
	Node
	Children() []Node
}

// Group is a container node: paragraphs, lists, list items and inline spans.
type Group struct {
	kind     NodeKind
	children []Node
}

// NewGroup creates a container node of the given kind.
func NewGroup(kind NodeKind, children ...Node) *Group {
	return &Group{kind: kind, children: children}
}

func (g *Group) Kind() NodeKind { return g.kind }
func (g *Group) Children() []Node { return g.children }

// Text is a run of literal text.
type Text struct {
	Value string
}

func (*Text) Kind() NodeKind { return NodeText }

// Link is a reference to a URL with separate display text.
type Link struct {
	URL         string
	DisplayText string
}

func (*Link) Kind() NodeKind { return NodeLink }

// CodeBlock holds verbatim code between triple-backtick fences.
type CodeBlock struct {
	Language string
	Code     string
}

func (*CodeBlock) Kind() NodeKind { return NodeCodeBlock }

// PlainText flattens a node to the literal text it contains.
func PlainText(n Node) string {
	var sb strings.Builder
	writePlain(&sb, n)
	return sb.String()
}

func writePlain(sb *strings.Builder, n Node) {
	switch v := n.(type) {
	case *Text:
		sb.WriteString(v.Value)
	case *Link:
		sb.WriteString(v.DisplayText)
	case *CodeBlock:
		sb.WriteString(v.Code)
	case Container:
		for _, c := range v.Children() {
			writePlain(sb, c)
		}
	}
}
