package markup

import "strings"

const codeFence = "```"

// DefaultCodeLanguage is used when a code fence carries no language tag.
const DefaultCodeLanguage = "text"

type blockKind int

const (
	blockParagraph blockKind = iota
	blockOrderedList
	blockUnorderedList
	blockCode
)

var (
	orderedItemSignature   = []TokenKind{TokenDigits, TokenPeriod, TokenWhitespace}
	unorderedItemSignature = []TokenKind{TokenHyphen, TokenWhitespace}
)

// cursor is a read position over an immutable token slice.
type cursor struct {
	tokens []Token
	pos    int
}

func (c *cursor) done() bool { return c.pos >= len(c.tokens) }

func (c *cursor) peek() Token { return c.tokens[c.pos] }

// kindAt reports the kind of the token offset places ahead of the cursor.
func (c *cursor) kindAt(offset int) (TokenKind, bool) {
	i := c.pos + offset
	if i < 0 || i >= len(c.tokens) {
		return 0, false
	}
	return c.tokens[i].Kind, true
}

func (c *cursor) matches(kinds []TokenKind) bool {
	for i, want := range kinds {
		got, ok := c.kindAt(i)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// skipBlank discards whitespace and newline tokens.
func (c *cursor) skipBlank() {
	for !c.done() {
		k := c.peek().Kind
		if k != TokenWhitespace && k != TokenNewline {
			return
		}
		c.pos++
	}
}

// offset returns the byte offset of the cursor in the source text.
func (c *cursor) offset() int {
	if c.done() {
		if len(c.tokens) == 0 {
			return 0
		}
		last := c.tokens[len(c.tokens)-1]
		return last.Pos + len(last.Text)
	}
	return c.peek().Pos
}

func (c *cursor) blockKind() blockKind {
	switch {
	case c.isFence():
		return blockCode
	case c.matches(orderedItemSignature):
		return blockOrderedList
	case c.matches(unorderedItemSignature):
		return blockUnorderedList
	default:
		return blockParagraph
	}
}

func (c *cursor) isFence() bool {
	_, ok := c.fence()
	return ok
}

// fenceSpan locates a fenced code block starting at the cursor.
type fenceSpan struct {
	open  int // index of the newline token ending the opening line
	close int // index of the closing fence token
	end   int // index one past the last token of the closing line
}

// fence reports whether a complete code fence starts at the cursor. The
// opening token must begin with ``` and a later line must start with ```.
func (c *cursor) fence() (fenceSpan, bool) {
	if c.done() {
		return fenceSpan{}, false
	}
	head := c.peek()
	if head.Kind != TokenText || !strings.HasPrefix(head.Text, codeFence) {
		return fenceSpan{}, false
	}

	open := -1
	for i := c.pos; i < len(c.tokens); i++ {
		if c.tokens[i].Kind == TokenNewline {
			open = i
			break
		}
	}
	if open < 0 {
		return fenceSpan{}, false
	}

	for i := open + 1; i < len(c.tokens); i++ {
		t := c.tokens[i]
		if t.Kind != TokenText || !strings.HasPrefix(t.Text, codeFence) || c.tokens[i-1].Kind != TokenNewline {
			continue
		}
		end := i + 1
		for end < len(c.tokens) && c.tokens[end].Kind != TokenNewline {
			end++
		}
		return fenceSpan{open: open, close: i, end: end}, true
	}
	return fenceSpan{}, false
}

// codeBlock consumes a fenced block and returns its language and verbatim body.
func (c *cursor) codeBlock(span fenceSpan) *CodeBlock {
	var tag strings.Builder
	for _, t := range c.tokens[c.pos:span.open] {
		tag.WriteString(t.Text)
	}
	lang := strings.TrimSpace(strings.TrimPrefix(tag.String(), codeFence))
	if lang == "" {
		lang = DefaultCodeLanguage
	}

	var body strings.Builder
	for _, t := range c.tokens[span.open:span.close] {
		body.WriteString(t.Text)
	}
	code := strings.TrimPrefix(body.String(), "\n")
	code = strings.TrimSuffix(code, "\n")

	c.pos = span.end
	return &CodeBlock{Language: lang, Code: code}
}
