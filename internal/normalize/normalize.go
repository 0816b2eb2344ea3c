// Package normalize cleans raw source text into canonical pantry field
// values. Everything here is pure and safe for concurrent use.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

var (
	// Conditional comment blocks (legacy Office/IE export artifacts) carry
	// no user content, so the whole block goes, not just the markers.
	conditionalRe = regexp.MustCompile(`(?s)<!--\[if[^\]]*\]>.*?<!\[endif\]-->`)
	commentRe     = regexp.MustCompile(`(?s)<!--.*?-->`)
	// \x{00A0}: the markup parser decodes &nbsp; to a non-breaking space,
	// which Go's \s does not cover.
	whitespaceRe = regexp.MustCompile(`[\s\x{00A0}]+`)
)

var entities = []struct{ from, to string }{
	{"&nbsp;", " "},
	{"&lt;", "<"},
	{"&gt;", ">"},
	{"&quot;", `"`},
	{"&#39;", "'"},
	{"&amp;", "&"}, // last, so &amp;lt; does not double-decode
}

// Text strips markup artifacts from a raw source value: conditional comment
// blocks, HTML comments, then any remaining tags (keeping their text),
// decodes the common named entities, collapses whitespace runs to a single
// space, and trims. Already-clean text passes through unchanged, and the
// function is idempotent.
func Text(raw string) string {
	if raw == "" {
		return raw
	}
	s := norm.NFC.String(raw)
	s = conditionalRe.ReplaceAllString(s, " ")
	s = commentRe.ReplaceAllString(s, " ")
	s, stripped := stripTags(s)
	if !stripped {
		// The markup parser already decodes entities in the text it
		// extracts; decoding again would turn &amp;lt; into <.
		for _, e := range entities {
			s = strings.ReplaceAll(s, e.from, e.to)
		}
	}
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// stripTags removes markup tags while preserving their text content, with
// entities decoded by the parser. The second return reports whether parsing
// happened. Input that is not parseable markup is returned as-is; this never
// fails a row.
func stripTags(s string) (string, bool) {
	if !strings.ContainsRune(s, '<') {
		return s, false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s, false
	}
	return doc.Text(), true
}

// OptionalText collapses nil and empty values to "" (absent) and stringifies
// everything else.
func OptionalText(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Coordinate parses a decimal-degree string. The second return is false for
// empty or malformed input.
func Coordinate(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// DigitsOnly reports whether s is non-empty and consists entirely of digits.
func DigitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
