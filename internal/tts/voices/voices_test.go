package voices_test

import (
	"testing"

	"github.com/book-expert/mimic3-tts/internal/tts/voices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultVoice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		lang  string
		want  string
		found bool
	}{
		{lang: "en-us", want: "en_US/cmu-arctic_low", found: true},
		{lang: "en_US", want: "en_US/cmu-arctic_low", found: true},
		{lang: " EN-GB ", want: "en_UK/apope_low", found: true},
		{lang: "de-AT", want: "de_DE/thorsten_low", found: true},
		{lang: "xx", found: false},
		{lang: "", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			t.Parallel()

			got, found := voices.DefaultVoice(tt.lang)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFallbackLanguageHasDefault(t *testing.T) {
	t.Parallel()

	_, found := voices.DefaultVoice(voices.FallbackLanguage)
	require.True(t, found)
}

func TestLanguages_Sorted(t *testing.T) {
	t.Parallel()

	langs := voices.Languages()
	require.NotEmpty(t, langs)
	assert.IsNonDecreasing(t, langs)
	assert.Contains(t, langs, "en")
}

func TestSpeakersByGender(t *testing.T) {
	t.Parallel()

	female := voices.SpeakersByGender("en_US/cmu-arctic_low", "female")
	require.NotEmpty(t, female)
	assert.Equal(t, "slt", female[0].Name)

	for _, s := range female {
		assert.Equal(t, "female", s.Gender)
	}

	assert.Empty(t, voices.SpeakersByGender("en_US/cmu-arctic_low", "other"))
	assert.Empty(t, voices.SpeakersByGender("xx/none", "male"))
}
