package redactor

import (
	"regexp"
	"sort"
	"strings"
)

// Redaction records one scrubbed span, with offsets into the original text.
type Redaction struct {
	Type  string `json:"type"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Result is the redacted text plus what was removed from it.
type Result struct {
	Text       string      `json:"text"`
	Redactions []Redaction `json:"redactions"`
}

// Detection order matters: a URL can contain an email-shaped string and an
// address contains digits a phone pattern would otherwise claim. Earlier
// types win overlaps.
var patterns = []struct {
	name        string
	placeholder string
	re          *regexp.Regexp
}{
	{"url", "[URL]", regexp.MustCompile(`(?i)\bhttps?://[^\s<>"']+|\bwww\.[^\s<>"']+`)},
	{"email", "[EMAIL]", regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)},
	{"address", "[ADDRESS]", regexp.MustCompile(`(?i)\b\d{1,5}\s+(?:[A-Za-z]+\s+){0,3}(?:street|st\.|avenue|ave\.?|road|rd\.?|lane|ln\.?|boulevard|blvd\.?|drive|dr\.)\b`)},
	{"phone", "[PHONE]", regexp.MustCompile(`(?:\+\d{1,3}[\s.-]?)?(?:\(\d{2,4}\)[\s.-]?|\d{2,4}[\s.-])\d{3,4}[\s.-]?\d{3,4}\b`)},
}

// Redact scrubs email, phone, URL and address patterns from text, replacing
// each with a fixed placeholder. Offsets in the returned redactions point
// into the original text. Pure and idempotent: none of the placeholders
// match any pattern, so redacting already-redacted text yields zero new
// redactions.
func Redact(text string) Result {
	if text == "" {
		return Result{Text: text, Redactions: []Redaction{}}
	}

	type span struct {
		Redaction
		placeholder string
	}
	var spans []span

	for _, p := range patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			overlaps := false
			for _, s := range spans {
				if loc[0] < s.End && loc[1] > s.Start {
					overlaps = true
					break
				}
			}
			if overlaps {
				continue
			}
			spans = append(spans, span{
				Redaction:   Redaction{Type: p.name, Start: loc[0], End: loc[1]},
				placeholder: p.placeholder,
			})
		}
	}

	if len(spans) == 0 {
		return Result{Text: text, Redactions: []Redaction{}}
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

	var b strings.Builder
	redactions := make([]Redaction, 0, len(spans))
	prev := 0
	for _, s := range spans {
		b.WriteString(text[prev:s.Start])
		b.WriteString(s.placeholder)
		prev = s.End
		redactions = append(redactions, s.Redaction)
	}
	b.WriteString(text[prev:])

	return Result{Text: b.String(), Redactions: redactions}
}
