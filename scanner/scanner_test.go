package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// collectTokens drains the scanner into a slice of literals.
func collectTokens(s *Scanner) []string {
	var literals []string
	for s.Current().Type != TokenEOF {
		literals = append(literals, s.Current().Literal)
		s.Next()
	}
	return literals
}

// TestScanBasicContract ensures a small contract produces the expected
// token sequence.
func TestScanBasicContract(t *testing.T) {
	s := New("contract A { function f() {} }", "test")
	assert.Equal(t, []string{"contract", "A", "{", "function", "f", "(", ")", "{", "}", "}"}, collectTokens(s))
}

// TestScanLiteralsAndOperators covers numbers, strings and multi-character
// punctuators.
func TestScanLiteralsAndOperators(t *testing.T) {
	s := New(`x == 0x1f; y = "hi"; z <= 10`, "test")
	var types []TokenType
	var literals []string
	for s.Current().Type != TokenEOF {
		types = append(types, s.Current().Type)
		literals = append(literals, s.Current().Literal)
		s.Next()
	}
	assert.Equal(t, []string{"x", "==", "0x1f", ";", "y", "=", "hi", ";", "z", "<=", "10"}, literals)
	assert.Equal(t, TokenNumber, types[2])
	assert.Equal(t, TokenString, types[6])
	assert.Equal(t, TokenPunctuator, types[9])
}

// TestTokenOffsets ensures tokens carry correct byte ranges.
func TestTokenOffsets(t *testing.T) {
	s := New("ab  cd", "test")
	assert.Equal(t, 0, s.Current().Start)
	assert.Equal(t, 2, s.Current().End)
	s.Next()
	assert.Equal(t, 4, s.Current().Start)
	assert.Equal(t, 6, s.Current().End)
}

// TestDocCommentsAttachToNextToken ensures `///` comments accumulate on the
// token that follows them while `//` and block comments are skipped.
func TestDocCommentsAttachToNextToken(t *testing.T) {
	source := "// plain\n/// @notice does things\n/// second line\n/* block */ contract A {}"
	s := New(source, "test")
	assert.Equal(t, "contract", s.Current().Literal)
	assert.Equal(t, "@notice does things\nsecond line", s.CurrentCommentLiteral())
	s.Next()
	assert.Equal(t, "", s.CurrentCommentLiteral())
}

// TestTranslatePositionToLineColumn ensures offsets translate to zero-based
// line and column pairs.
func TestTranslatePositionToLineColumn(t *testing.T) {
	s := New("one\ntwo\nthree", "test")

	line, column := s.TranslatePositionToLineColumn(0)
	assert.Equal(t, 0, line)
	assert.Equal(t, 0, column)

	line, column = s.TranslatePositionToLineColumn(4)
	assert.Equal(t, 1, line)
	assert.Equal(t, 0, column)

	line, column = s.TranslatePositionToLineColumn(6)
	assert.Equal(t, 1, line)
	assert.Equal(t, 2, column)

	// Offsets past the end clamp to the final position.
	line, column = s.TranslatePositionToLineColumn(1000)
	assert.Equal(t, 2, line)
	assert.Equal(t, 5, column)
}

// TestReset ensures a reset scanner replays the stream from the start.
func TestReset(t *testing.T) {
	s := New("a b c", "test")
	s.Next()
	s.Next()
	s.Reset()
	assert.Equal(t, "a", s.Current().Literal)
	assert.Equal(t, "b", s.Peek().Literal)
}
