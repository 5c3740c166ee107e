package speechtext

import (
	"regexp"
	"strings"
)

var (
	pauseRules = []struct {
		mark, spaced string
	}{
		{".", ". "},
		{",", ", "},
		{";", "; "},
		{":", ": "},
	}

	numericPower = regexp.MustCompile(`\b(\d+)\^(\d+)\b`)
	wordPower    = regexp.MustCompile(`\b(\w+)\^(\d+)\b`)

	// inlineMath matches \( \), \[ \], $$ $$ and $ $ spans. The power rewrite
	// leaves them alone. A $ $ span needs a non-space right inside each dollar,
	// so prices like "$5 and $6" stay plain text.
	inlineMath = regexp.MustCompile(`(?s)\\\(.*?\\\)|\\\[.*?\\\]|\$\$.*?\$\$|\$[^\s$](?:[^$]*[^\s$])?\$`)

	collapse = regexp.MustCompile(whitespace + `+`)
	trim     = regexp.MustCompile(`^` + whitespace + `+|` + whitespace + `+$`)
)

// EnhanceTextForSpeech adds a pause after sentence and clause punctuation and
// spells out inline powers such as 2^3 or x^2.
func EnhanceTextForSpeech(text string) string {
	if text == "" {
		return ""
	}

	enhanced := text
	for _, p := range pauseRules {
		enhanced = strings.ReplaceAll(enhanced, p.mark, p.spaced)
	}

	enhanced = outsideMath(enhanced, spellPowers)

	enhanced = collapse.ReplaceAllString(enhanced, " ")
	return trim.ReplaceAllString(enhanced, "")
}

func spellPowers(s string) string {
	s = numericPower.ReplaceAllString(s, "${1} to the power of ${2}")
	return wordPower.ReplaceAllString(s, "${1} to the power of ${2}")
}

// outsideMath applies fn to every span of s that is not inline math.
func outsideMath(s string, fn func(string) string) string {
	spans := inlineMath.FindAllStringIndex(s, -1)
	if len(spans) == 0 {
		return fn(s)
	}

	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, span := range spans {
		b.WriteString(fn(s[last:span[0]]))
		b.WriteString(s[span[0]:span[1]])
		last = span[1]
	}
	b.WriteString(fn(s[last:]))
	return b.String()
}
