// Package markup implements the note markup language: a tokenizer, a
// recursive-descent parser, a block splitter and a compiler that turns the
// parse tree into presentation elements.
package markup

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrUnknownCharacter is returned when the tokenizer cannot classify a
// character. The classifier is exhaustive so this indicates a bug.
var ErrUnknownCharacter = errors.New("markup: unknown character class")

// TokenKind identifies the lexical class of a token.
type TokenKind int

const (
	TokenText TokenKind = iota
	TokenBracketStart
	TokenBracketEnd
	TokenDoubleQuote
	TokenPipe
	TokenDigits
	TokenPeriod
	TokenCaret
	TokenHyphen
	TokenUnderscore
	TokenAsterisk
	TokenNewline
	TokenWhitespace
)

var tokenKindNames = [...]string{
	TokenText:         "text",
	TokenBracketStart: "bracket-start",
	TokenBracketEnd:   "bracket-end",
	TokenDoubleQuote:  "double-quote",
	TokenPipe:         "pipe",
	TokenDigits:       "digits",
	TokenPeriod:       "period",
	TokenCaret:        "caret",
	TokenHyphen:       "hyphen",
	TokenUnderscore:   "underscore",
	TokenAsterisk:     "asterisk",
	TokenNewline:      "newline",
	TokenWhitespace:   "whitespace",
}

// String returns a string representation of the TokenKind.
func (k TokenKind) String() string {
	if int(k) >= 0 && int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return "unknown"
}

// Token is one lexical unit. Pos is the byte offset of Text in the source.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int
}

// Tokenize scans input into a flat token sequence. Runs of text, digits,
// periods, hyphens, whitespace and newlines become one token each; delimiter
// characters are always single-character tokens.
func Tokenize(input string) ([]Token, error) {
	var tokens []Token
	pos := 0
	for pos < len(input) {
		r, _ := utf8.DecodeRuneInString(input[pos:])
		kind, ok := classify(r)
		if !ok {
			return nil, fmt.Errorf("%w: %q at offset %d", ErrUnknownCharacter, r, pos)
		}

		var end int
		switch kind {
		case TokenText:
			end = scan(input, pos, isTextRune)
		case TokenDigits, TokenPeriod, TokenHyphen, TokenWhitespace, TokenNewline:
			end = scan(input, pos, func(c rune) bool {
				k, _ := classify(c)
				return k == kind
			})
		default:
			_, size := utf8.DecodeRuneInString(input[pos:])
			end = pos + size
		}

		tokens = append(tokens, Token{Kind: kind, Text: input[pos:end], Pos: pos})
		pos = end
	}
	return tokens, nil
}

// scan returns the end offset of the run starting at pos whose runes satisfy keep.
func scan(input string, pos int, keep func(rune) bool) int {
	for pos < len(input) {
		r, size := utf8.DecodeRuneInString(input[pos:])
		if !keep(r) {
			break
		}
		pos += size
	}
	return pos
}

func classify(r rune) (TokenKind, bool) {
	switch {
	case r == '\n':
		return TokenNewline, true
	case r == ' ' || r == '\t' || r == '\r':
		return TokenWhitespace, true
	case r >= '0' && r <= '9':
		return TokenDigits, true
	case r == '.':
		return TokenPeriod, true
	case r == '-':
		return TokenHyphen, true
	case r == '[':
		return TokenBracketStart, true
	case r == ']':
		return TokenBracketEnd, true
	case r == '"':
		return TokenDoubleQuote, true
	case r == '|':
		return TokenPipe, true
	case r == '^':
		return TokenCaret, true
	case r == '_':
		return TokenUnderscore, true
	case r == '*':
		return TokenAsterisk, true
	default:
		return TokenText, true
	}
}

// isTextRune reports whether r continues a text run. Text runs swallow
// digits, periods, hyphens and spaces but stop at structural delimiters.
func isTextRune(r rune) bool {
	switch r {
	case '\n', '[', ']', '_', '*', '^', '"', '|':
		return false
	}
	return true
}
