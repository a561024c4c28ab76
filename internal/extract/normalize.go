// Package extract pulls numeric readings out of semi-structured upstream documents.
//
// Text documents go through a fixed pipeline: Normalize strips markup into a single
// line, Tokenize scans it once into words, numbers and punctuation, and ordered
// matchers then locate the label, the unit, the value before the unit and the
// 24 hour change after it. JSON documents are read with gjson instead.
// Every function here is pure; strategies hold only immutable configuration.
package extract

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

var dashReplacer = strings.NewReplacer(
	"‐", "-", // hyphen
	"‑", "-", // non-breaking hyphen
	"‒", "-", // figure dash
	"–", "-", // en dash
	"—", "-", // em dash
	"―", "-", // horizontal bar
	"−", "-", // minus sign
)

// Normalize converts raw HTML or plain text into a single whitespace-collapsed line
// with markup removed, entities decoded and special dashes mapped to ASCII.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(raw))
	skipDepth := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a malformed tail, either way we are done
			return collapse(b.String())
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			if isInvisible(name) {
				skipDepth++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if isInvisible(name) && skipDepth > 0 {
				skipDepth--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}

func isInvisible(tag []byte) bool {
	switch string(tag) {
	case "script", "style", "noscript", "template":
		return true
	}
	return false
}

func collapse(s string) string {
	s = norm.NFKC.String(s)
	s = dashReplacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
