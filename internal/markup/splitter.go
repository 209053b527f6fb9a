package markup

import "errors"

// SplitContent re-segments content into one string per top-level block: a
// paragraph, a contiguous list run or a fenced code block. Block boundaries
// are the ones Parse uses, so a paired span that runs across a newline stays
// in one segment. Each segment is sliced verbatim from content; only the
// blank text between blocks is dropped. A block with malformed link syntax
// is cut at the end of its line.
func SplitContent(content string) ([]string, error) {
	tokens, err := Tokenize(content)
	if err != nil {
		return nil, err
	}

	p := &parser{cursor: cursor{tokens: tokens}}
	var out []string
	for {
		p.skipBlank()
		if p.done() {
			return out, nil
		}
		start := p.pos
		if _, err := p.block(); err != nil {
			var perr *ParseError
			if !errors.As(err, &perr) {
				return nil, err
			}
			p.pos = start
			p.skipLine()
		}
		out = append(out, content[tokens[start].Pos:p.contentEnd(start)])
	}
}

// skipLine advances past the next newline.
func (c *cursor) skipLine() {
	for !c.done() {
		k := c.peek().Kind
		c.pos++
		if k == TokenNewline {
			return
		}
	}
}

// contentEnd returns the source offset just past the last non-newline token
// consumed since start.
func (c *cursor) contentEnd(start int) int {
	for i := c.pos - 1; i >= start; i-- {
		if t := c.tokens[i]; t.Kind != TokenNewline {
			return t.Pos + len(t.Text)
		}
	}
	return c.tokens[start].Pos
}
