package extract

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind classifies a scanned token
type TokenKind int

const (
	TokenWord TokenKind = iota
	TokenNumber
	TokenPunct
)

// Token is a word, number or punctuation rune with its byte span in the source text
type Token struct {
	Kind       TokenKind
	Text       string
	Start      int
	End        int
	Value      float64 // TokenNumber only, thousands separators stripped
	Fractional bool    // TokenNumber only, true when written with a decimal part
}

// Tokenize scans text once into tokens. Whitespace separates tokens and is dropped.
func Tokenize(text string) []Token {
	var tokens []Token

	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])

		switch {
		case unicode.IsSpace(r):
			i += size

		case startsNumber(text, i, tokens):
			tok := scanNumber(text, i)
			tokens = append(tokens, tok)
			i = tok.End

		case unicode.IsLetter(r):
			tok := scanWord(text, i)
			tokens = append(tokens, tok)
			i = tok.End

		default:
			tokens = append(tokens, Token{Kind: TokenPunct, Text: text[i : i+size], Start: i, End: i + size})
			i += size
		}
	}

	return tokens
}

// startsNumber reports whether a number token begins at i. A sign only counts
// when it is not glued to a preceding word or number ("ac-ft", "2019-2020").
func startsNumber(text string, i int, prev []Token) bool {
	c := text[i]
	if isDigit(c) {
		return true
	}
	if c == '.' {
		return i+1 < len(text) && isDigit(text[i+1])
	}
	if c != '-' && c != '+' {
		return false
	}

	j := i + 1
	if j < len(text) && text[j] == '.' {
		j++
	}
	if j >= len(text) || !isDigit(text[j]) {
		return false
	}

	if len(prev) > 0 {
		last := prev[len(prev)-1]
		if last.End == i && last.Kind != TokenPunct {
			return false
		}
	}
	return true
}

func scanNumber(text string, start int) Token {
	i := start
	if text[i] == '-' || text[i] == '+' {
		i++
	}
	for i < len(text) && isDigit(text[i]) {
		i++
	}

	// Thousands groups: a comma followed by exactly three digits
	for i < len(text) && text[i] == ',' && thousandsGroup(text, i+1) {
		i += 4
	}

	fractional := false
	if i+1 < len(text) && text[i] == '.' && isDigit(text[i+1]) {
		fractional = true
		i++
		for i < len(text) && isDigit(text[i]) {
			i++
		}
	}

	raw := text[start:i]
	value, _ := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)

	return Token{
		Kind:       TokenNumber,
		Text:       raw,
		Start:      start,
		End:        i,
		Value:      value,
		Fractional: fractional,
	}
}

func thousandsGroup(text string, i int) bool {
	if i+3 > len(text) {
		return false
	}
	for j := i; j < i+3; j++ {
		if !isDigit(text[j]) {
			return false
		}
	}
	return i+3 == len(text) || !isDigit(text[i+3])
}

// scanWord consumes letters, joining hyphenated parts such as "ac-ft"
func scanWord(text string, start int) Token {
	i := start
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsLetter(r) {
			i += size
			continue
		}
		if r == '-' && i+1 < len(text) {
			next, _ := utf8.DecodeRuneInString(text[i+1:])
			if unicode.IsLetter(next) {
				i += size
				continue
			}
		}
		break
	}
	return Token{Kind: TokenWord, Text: text[start:i], Start: start, End: i}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// Numbers returns the number tokens in order
func Numbers(tokens []Token) []Token {
	var out []Token
	for _, t := range tokens {
		if t.Kind == TokenNumber {
			out = append(out, t)
		}
	}
	return out
}

// ParseNumber returns the first number found in s
func ParseNumber(s string) (float64, bool) {
	nums := Numbers(Tokenize(s))
	if len(nums) == 0 {
		return 0, false
	}
	return nums[0].Value, true
}
