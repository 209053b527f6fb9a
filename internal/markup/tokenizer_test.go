package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(tokens []Token) []TokenKind {
	out := make([]TokenKind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}
	return out
}

func TestTokenize_SingleWord(t *testing.T) {
	tokens, err := Tokenize("shabba")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, Token{Kind: TokenText, Text: "shabba", Pos: 0}, tokens[0])
}

func TestTokenize_StrongSentence(t *testing.T) {
	tokens, err := Tokenize("bob said *shabba* then he fell over")
	require.NoError(t, err)
	require.Len(t, tokens, 6)
	assert.Equal(t, []TokenKind{
		TokenText, TokenAsterisk, TokenText, TokenAsterisk, TokenWhitespace, TokenText,
	}, kinds(tokens))
	assert.Equal(t, "bob said ", tokens[0].Text)
	assert.Equal(t, " ", tokens[4].Text)
	assert.Equal(t, "then he fell over", tokens[5].Text)
}

func TestTokenize_DelimitersAreSingleCharacters(t *testing.T) {
	tokens, err := Tokenize(`[[]]""||^^__**`)
	require.NoError(t, err)
	assert.Len(t, tokens, 14)
	for _, tok := range tokens {
		assert.Len(t, tok.Text, 1)
	}
}

func TestTokenize_Runs(t *testing.T) {
	tokens, err := Tokenize("21. x\n\n--  y")
	require.NoError(t, err)
	assert.Equal(t, []TokenKind{
		TokenDigits, TokenPeriod, TokenWhitespace, TokenText, TokenNewline,
		TokenHyphen, TokenWhitespace, TokenText,
	}, kinds(tokens))
	assert.Equal(t, "21", tokens[0].Text)
	assert.Equal(t, "\n\n", tokens[4].Text)
	assert.Equal(t, "--", tokens[5].Text)
	assert.Equal(t, "  ", tokens[6].Text)
}

func TestTokenize_TextRunSwallowsDigitsAndSpaces(t *testing.T) {
	tokens, err := Tokenize("see page 12. or-not")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, TokenText, tokens[0].Kind)
}

func TestTokenize_PositionsCoverInput(t *testing.T) {
	input := "héllo *wörld*\n- a"
	tokens, err := Tokenize(input)
	require.NoError(t, err)
	var rebuilt string
	for _, tok := range tokens {
		assert.Equal(t, tok.Text, input[tok.Pos:tok.Pos+len(tok.Text)])
		rebuilt += tok.Text
	}
	assert.Equal(t, input, rebuilt)
}

func TestTokenize_Empty(t *testing.T) {
	tokens, err := Tokenize("")
	require.NoError(t, err)
	assert.Empty(t, tokens)
}
