// Package speechtext rewrites extracted document content into text meant to be
// read aloud by a text-to-speech engine.
//
// LaTeX is never parsed. ConvertLatexToSpeech runs a fixed, ordered table of
// regular-expression rewrites (see DefaultRules) where each rule sees the
// output of the previous one. Everything in this package is a pure function of
// its input and safe for concurrent use.
package speechtext

import "strings"

// ConvertLatexToSpeech turns a LaTeX fragment into spoken English. Input that
// no rule recognises is passed through unchanged.
//
// Braced groups are captured up to the first closing brace, so nested groups
// such as x^{y^{z}} are only partially rewritten.
func ConvertLatexToSpeech(latex string) string {
	if latex == "" {
		return ""
	}
	return defaultRules.Apply(latex)
}

// GenerateSpeechText joins the enhanced plain text and the spoken form of the
// LaTeX with a single space.
func GenerateSpeechText(text, latex string) string {
	enhanced := EnhanceTextForSpeech(text)
	spoken := ConvertLatexToSpeech(latex)
	return strings.TrimSpace(enhanced + " " + spoken)
}
