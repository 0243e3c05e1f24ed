// Package voices holds the built-in Mimic3 voice tables: the default voice
// per language and the speakers known for the most common voices.
package voices

import (
	"maps"
	"slices"
	"strings"
)

// FallbackLanguage is used when neither a voice nor a language is configured.
const FallbackLanguage = "en-us"

var defaultVoices = map[string]string{
	"en":    "en_US/cmu-arctic_low",
	"en-uk": "en_UK/apope_low",
	"en-gb": "en_UK/apope_low",
	"de":    "de_DE/thorsten_low",
	"bn":    "bn/multi_low",
	"af":    "af_ZA/google-nwu_low",
	"es":    "es_ES/m-ailabs_low",
	"fa":    "fa/haaniye_low",
	"fi":    "fi_FI/harri-tapani-ylilammi_low",
	"fr":    "fr_FR/m-ailabs_low",
	"it":    "it_IT/mls_low",
	"ko":    "ko_KO/kss_low",
	"nl":    "nl/bart-de-leeuw_low",
	"pl":    "pl_PL/m-ailabs_low",
	"ru":    "ru_RU/multi_low",
	"uk":    "uk_UK/m-ailabs_low",
}

// DefaultVoice returns the default voice key for a language tag such as
// "en-us" or "de". A full tag that is not in the table falls back to its
// primary subtag ("en-us" -> "en").
func DefaultVoice(lang string) (string, bool) {
	lang = normalizeLang(lang)
	if lang == "" {
		return "", false
	}

	if voice, ok := defaultVoices[lang]; ok {
		return voice, true
	}

	primary, _, _ := strings.Cut(lang, "-")

	voice, ok := defaultVoices[primary]

	return voice, ok
}

// Languages lists the language tags that have a default voice, sorted.
func Languages() []string {
	return slices.Sorted(maps.Keys(defaultVoices))
}

func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))

	return strings.ReplaceAll(lang, "_", "-")
}
