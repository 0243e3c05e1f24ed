// Package text rewrites host sentences before they reach the Mimic3 engine.
//
// Voice-assistant hosts hand over text with a few recurring quirks: glued
// "a.m."/"p.m." markers, spaced-out acronyms, single letters meant to be
// spelled. The Preprocessor fixes those and decides whether the result must
// be sent to the engine as SSML.
package text

import (
	"fmt"
	"regexp"
	"strings"
)

// Regex patterns for text preparation.
const (
	acronymRegexPattern      = `\b(?:[A-Z](?: |$)){2,}`
	quotedLetterRegexPattern = `'([A-Z])'`
	whitespaceRegexPattern   = `[\t\r\n]+`
)

// SSML fragments.
const (
	ssmlPrefix          = "<"
	spellOutReplacement = `<say-as interpret-as="spell-out">$1</say-as>`
	spellOutFormat      = `<say-as interpret-as="spell-out">%s</say-as>`
	letterCommandSuffix = ";"
)

// Prepared is the engine-ready form of a host sentence.
type Prepared struct {
	Text string
	SSML bool
}

// Preprocessor holds the compiled patterns; it is safe for concurrent use.
type Preprocessor struct {
	acronymPattern      *regexp.Regexp
	quotedLetterPattern *regexp.Regexp
	whitespacePattern   *regexp.Regexp
	meridiemReplacer    *strings.Replacer
}

// NewPreprocessor compiles the patterns once.
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{
		acronymPattern:      regexp.MustCompile(acronymRegexPattern),
		quotedLetterPattern: regexp.MustCompile(quotedLetterRegexPattern),
		whitespacePattern:   regexp.MustCompile(whitespaceRegexPattern),
		meridiemReplacer: strings.NewReplacer(
			" a.m.", " a.m. ",
			" p.m.", " p.m. ",
		),
	}
}

var defaultPreprocessor = NewPreprocessor()

// Prepare runs sentence through a shared Preprocessor.
func Prepare(sentence string) Prepared {
	return defaultPreprocessor.Prepare(sentence)
}

// Prepare applies the host workarounds to sentence. Text that already starts
// with an angle bracket is treated as SSML and only gets the letter fixes.
func (p *Preprocessor) Prepare(sentence string) Prepared {
	if sentence == "" {
		return Prepared{}
	}

	prepared := p.whitespacePattern.ReplaceAllString(sentence, " ")

	prepared = p.meridiemReplacer.Replace(prepared)

	prepared = p.dotAcronyms(prepared)

	ssml := strings.HasPrefix(strings.TrimSpace(prepared), ssmlPrefix)

	// A lone "A;" is a request to say the letter.
	if len(prepared) == 2 && strings.HasSuffix(prepared, letterCommandSuffix) {
		return Prepared{
			Text: fmt.Sprintf(spellOutFormat, prepared[:1]),
			SSML: true,
		}
	}

	if p.quotedLetterPattern.MatchString(prepared) {
		prepared = p.quotedLetterPattern.ReplaceAllString(prepared, spellOutReplacement)
		ssml = true
	}

	return Prepared{Text: prepared, SSML: ssml}
}

// dotAcronyms turns "A I " into "A.I. ".
func (p *Preprocessor) dotAcronyms(sentence string) string {
	return p.acronymPattern.ReplaceAllStringFunc(sentence, func(match string) string {
		return strings.ReplaceAll(strings.TrimSpace(match), " ", ".") + ". "
	})
}
