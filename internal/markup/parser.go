package markup

import (
	"fmt"
	"strings"
)

// ParseReason classifies a parse failure.
type ParseReason int

const (
	// ExpectingClosingBracket: a link URL was not followed by "]".
	ExpectingClosingBracket ParseReason = iota
	// ExpectingBracket: "[[url]" was followed by something other than "]" or "[".
	ExpectingBracket
)

// String returns a string representation of the ParseReason.
func (r ParseReason) String() string {
	switch r {
	case ExpectingClosingBracket:
		return "expecting a closing bracket"
	case ExpectingBracket:
		return "expecting a bracket"
	default:
		return "unknown parse error"
	}
}

// ParseError reports malformed link syntax. Pos is a byte offset into the source.
type ParseError struct {
	Reason ParseReason
	Pos    int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("markup: %s at offset %d", e.Reason, e.Pos)
}

// pairedKinds maps delimiter tokens to the container they open.
var pairedKinds = map[TokenKind]NodeKind{
	TokenDoubleQuote: NodeQuotation,
	TokenUnderscore:  NodeUnderlined,
	TokenAsterisk:    NodeStrong,
	TokenCaret:       NodeHighlight,
	TokenPipe:        NodeSidenote,
}

type parser struct {
	cursor
}

// Parse builds the block-level node sequence from tokens. tokens is not modified.
func Parse(tokens []Token) ([]Node, error) {
	p := &parser{cursor: cursor{tokens: tokens}}
	var out []Node
	for {
		p.skipBlank()
		if p.done() {
			return out, nil
		}
		n, err := p.block()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
}

// ParseString tokenizes and parses input.
func ParseString(input string) ([]Node, error) {
	tokens, err := Tokenize(input)
	if err != nil {
		return nil, err
	}
	return Parse(tokens)
}

func (p *parser) block() (Node, error) {
	switch p.blockKind() {
	case blockCode:
		span, _ := p.fence()
		return p.codeBlock(span), nil
	case blockOrderedList:
		return p.list(NodeOrderedList, orderedItemSignature)
	case blockUnorderedList:
		return p.list(NodeUnorderedList, unorderedItemSignature)
	default:
		children, err := p.line()
		if err != nil {
			return nil, err
		}
		return NewGroup(NodeParagraph, children...), nil
	}
}

// list reads items for as long as the upcoming tokens carry the item signature.
func (p *parser) list(kind NodeKind, signature []TokenKind) (Node, error) {
	var items []Node
	for p.matches(signature) {
		p.pos += len(signature)
		children, err := p.line()
		if err != nil {
			return nil, err
		}
		items = append(items, NewGroup(NodeListItem, children...))
	}
	return NewGroup(kind, items...), nil
}

// line reads inline items up to and including the next newline run.
func (p *parser) line() ([]Node, error) {
	var out []Node
	for !p.done() {
		if p.peek().Kind == TokenNewline {
			p.pos++
			break
		}
		n, err := p.item()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (p *parser) item() (Node, error) {
	t := p.peek()
	switch t.Kind {
	case TokenBracketStart:
		if k, ok := p.kindAt(1); ok && k == TokenBracketStart {
			return p.link()
		}
		p.pos++
		return &Text{Value: t.Text}, nil
	case TokenBracketEnd, TokenWhitespace, TokenNewline:
		p.pos++
		return &Text{Value: t.Text}, nil
	case TokenPipe:
		if k, ok := p.kindAt(1); ok && k == TokenPipe {
			p.pos += 2
			return &Text{Value: "||"}, nil
		}
		return p.paired(t.Kind)
	case TokenDoubleQuote, TokenUnderscore, TokenAsterisk, TokenCaret:
		return p.paired(t.Kind)
	default:
		return p.plain(""), nil
	}
}

// paired reads a delimited container, or demotes the opening delimiter to
// text when no closing delimiter of the same kind remains.
func (p *parser) paired(delim TokenKind) (Node, error) {
	opener := p.peek()
	if !p.hasCloser(delim) {
		p.pos++
		return p.plain(opener.Text), nil
	}

	p.pos++
	var children []Node
	for !p.done() {
		if p.isCloser(p.pos, delim) {
			p.pos++
			break
		}
		n, err := p.item()
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}
	return NewGroup(pairedKinds[delim], children...), nil
}

// hasCloser reports whether a closing delimiter follows the opener at the cursor.
func (p *parser) hasCloser(delim TokenKind) bool {
	for i := p.pos + 1; i < len(p.tokens); i++ {
		if p.isCloser(i, delim) {
			return true
		}
	}
	return false
}

// isCloser reports whether tokens[i] can close delim. Doubled pipes are literal.
func (p *parser) isCloser(i int, delim TokenKind) bool {
	if p.tokens[i].Kind != delim {
		return false
	}
	if delim != TokenPipe {
		return true
	}
	if i+1 < len(p.tokens) && p.tokens[i+1].Kind == TokenPipe {
		return false
	}
	if i-1 > p.pos && p.tokens[i-1].Kind == TokenPipe {
		return false
	}
	return true
}

// plain reads a maximal ordinary-text run, prefixed by a demoted delimiter if any.
func (p *parser) plain(prefix string) *Text {
	var sb strings.Builder
	sb.WriteString(prefix)
	for !p.done() {
		switch p.peek().Kind {
		case TokenText, TokenDigits, TokenPeriod, TokenHyphen, TokenWhitespace:
			sb.WriteString(p.peek().Text)
			p.pos++
		default:
			return &Text{Value: sb.String()}
		}
	}
	return &Text{Value: sb.String()}
}

// link parses [[url]] and [[url][display]].
func (p *parser) link() (Node, error) {
	p.pos += 2

	var url string
	if !p.done() && p.peek().Kind != TokenBracketEnd {
		n, err := p.item()
		if err != nil {
			return nil, err
		}
		url = PlainText(n)
	}
	if p.done() || p.peek().Kind != TokenBracketEnd {
		return nil, &ParseError{Reason: ExpectingClosingBracket, Pos: p.offset()}
	}
	p.pos++

	if p.done() {
		return nil, &ParseError{Reason: ExpectingBracket, Pos: p.offset()}
	}
	switch p.peek().Kind {
	case TokenBracketEnd:
		p.pos++
		return &Link{URL: url, DisplayText: url}, nil
	case TokenBracketStart:
		p.pos++
		var display string
		if !p.done() && p.peek().Kind != TokenBracketEnd {
			n, err := p.item()
			if err != nil {
				return nil, err
			}
			display = PlainText(n)
		}
		for i := 0; i < 2 && !p.done() && p.peek().Kind == TokenBracketEnd; i++ {
			p.pos++
		}
		return &Link{URL: url, DisplayText: display}, nil
	default:
		return nil, &ParseError{Reason: ExpectingBracket, Pos: p.offset()}
	}
}
