package tts_test

import (
	"errors"
	"testing"

	"github.com/book-expert/mimic3-tts/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequest_OverridePrecedence(t *testing.T) {
	t.Parallel()

	raw := map[string]any{tts.OptVoice: testVoice, tts.OptLengthScale: 1.0}

	overridden := mustBuild(t, raw, "Hello there.", tts.Overrides{Prosody: tts.Prosody{LengthScale: ptr(0.8)}})

	lengthScale, ok := overridden.LengthScale()
	require.True(t, ok)
	assert.InDelta(t, 0.8, lengthScale, 1e-9)

	fromConfig := mustBuild(t, raw, "Hello there.", tts.Overrides{})

	lengthScale, ok = fromConfig.LengthScale()
	require.True(t, ok)
	assert.InDelta(t, 1.0, lengthScale, 1e-9)
}

func TestBuildRequest_UnsetFieldsAreOmitted(t *testing.T) {
	t.Parallel()

	req := mustBuild(t, map[string]any{tts.OptVoice: testVoice}, "Hello there.",
		tts.Overrides{Prosody: tts.Prosody{LengthScale: ptr(0.8)}})

	_, ok := req.NoiseScale()
	assert.False(t, ok)

	_, ok = req.NoiseW()
	assert.False(t, ok)

	query := req.QueryValues()
	assert.Equal(t, "0.8", query.Get("lengthScale"))
	assert.False(t, query.Has("noiseScale"))
	assert.False(t, query.Has("noiseW"))
	assert.False(t, query.Has("ssml"))

	assert.Equal(t, []string{"--voice", testVoice, "--length-scale", "0.8", "--stdout"}, req.CommandArgs())

	bare := mustBuild(t, nil, "Hello there.", tts.Overrides{})
	assert.Equal(t, []string{"--voice", testVoice, "--stdout"}, bare.CommandArgs())
	assert.Equal(t, "voice=en_US%2Fcmu-arctic_low", bare.QueryValues().Encode())
}

func TestBuildRequest_AllFieldsSerialized(t *testing.T) {
	t.Parallel()

	req := mustBuild(t, map[string]any{
		tts.OptVoice:                   testVoice,
		tts.OptSpeaker:                 "slt",
		tts.OptNoiseScale:              0.333,
		tts.OptNoiseW:                  0,
		tts.OptUseDeterministicCompute: true,
	}, "<speak>Hi</speak>", tts.Overrides{Prosody: tts.Prosody{LengthScale: ptr(1.25)}})

	assert.True(t, req.SSML())
	assert.True(t, req.Deterministic())
	assert.Equal(t, "en_US/cmu-arctic_low#slt", req.VoiceKey())

	query := req.QueryValues()
	assert.Equal(t, "en_US/cmu-arctic_low#slt", query.Get("voice"))
	assert.Equal(t, "1.25", query.Get("lengthScale"))
	assert.Equal(t, "0.333", query.Get("noiseScale"))
	assert.Equal(t, "0", query.Get("noiseW"))
	assert.Equal(t, "true", query.Get("ssml"))

	assert.Equal(t, []string{
		"--voice", "en_US/cmu-arctic_low#slt",
		"--length-scale", "1.25",
		"--noise-scale", "0.333",
		"--noise-w", "0",
		"--ssml",
		"--deterministic",
		"--stdout",
	}, req.CommandArgs())
}

func TestBuildRequest_EmptyText(t *testing.T) {
	t.Parallel()

	cfg := mustResolve(t, nil)

	for _, text := range []string{"", " ", "\t\n", "  "} {
		req, err := tts.BuildRequest(cfg, text, tts.Overrides{})
		require.ErrorIs(t, err, tts.ErrValidation, "%q", text)
		assert.Nil(t, req)

		var valErr *tts.ValidationError
		require.True(t, errors.As(err, &valErr))
		assert.Equal(t, "text", valErr.Field)
	}
}

func TestBuildRequest_ProsodyBounds(t *testing.T) {
	t.Parallel()

	cfg := mustResolve(t, nil)

	tests := []struct {
		name    string
		prosody tts.Prosody
		field   string
	}{
		{name: "negative noise scale", prosody: tts.Prosody{NoiseScale: ptr(-0.1)}, field: tts.OptNoiseScale},
		{name: "negative noise w", prosody: tts.Prosody{NoiseW: ptr(-1)}, field: tts.OptNoiseW},
		{name: "zero length scale", prosody: tts.Prosody{LengthScale: ptr(0)}, field: tts.OptLengthScale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := tts.BuildRequest(cfg, "Hello.", tts.Overrides{Prosody: tt.prosody})

			var valErr *tts.ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Equal(t, tt.field, valErr.Field)
		})
	}
}

func TestBuildRequest_VoicePrecedence(t *testing.T) {
	t.Parallel()

	raw := map[string]any{tts.OptVoice: testVoice, tts.OptSpeaker: "slt"}

	tests := []struct {
		name        string
		overrides   tts.Overrides
		wantVoice   string
		wantSpeaker string
	}{
		{name: "configured", wantVoice: testVoice, wantSpeaker: "slt"},
		{
			name:      "other voice drops configured speaker",
			overrides: tts.Overrides{Voice: "en_US/ljspeech_low"},
			wantVoice: "en_US/ljspeech_low",
		},
		{
			name:        "same voice keeps configured speaker",
			overrides:   tts.Overrides{Voice: testVoice},
			wantVoice:   testVoice,
			wantSpeaker: "slt",
		},
		{
			name:        "speaker in voice key",
			overrides:   tts.Overrides{Voice: "en_US/cmu-arctic_low#awb"},
			wantVoice:   testVoice,
			wantSpeaker: "awb",
		},
		{
			name:        "speaker override",
			overrides:   tts.Overrides{Speaker: "rms"},
			wantVoice:   testVoice,
			wantSpeaker: "rms",
		},
		{
			name:      "language override",
			overrides: tts.Overrides{Language: "de"},
			wantVoice: "de_DE/thorsten_low",
		},
		{
			name:      "voice override beats language",
			overrides: tts.Overrides{Voice: "en_UK/apope_low", Language: "de"},
			wantVoice: "en_UK/apope_low",
		},
		{
			name:        "gender on a new voice",
			overrides:   tts.Overrides{Voice: "en_US/m-ailabs_low", Gender: "female"},
			wantVoice:   "en_US/m-ailabs_low",
			wantSpeaker: "judy_bieber",
		},
		{
			name:        "gender ignored when speaker is kept",
			overrides:   tts.Overrides{Gender: "male"},
			wantVoice:   testVoice,
			wantSpeaker: "slt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := mustBuild(t, raw, "Hello.", tt.overrides)
			assert.Equal(t, tt.wantVoice, req.Voice().String())
			assert.Equal(t, tt.wantSpeaker, req.Speaker())
		})
	}
}

func TestBuildRequest_BadVoiceOverride(t *testing.T) {
	t.Parallel()

	cfg := mustResolve(t, nil)

	_, err := tts.BuildRequest(cfg, "Hello.", tts.Overrides{Voice: "ljspeech"})
	require.ErrorIs(t, err, tts.ErrValidation)

	_, err = tts.BuildRequest(cfg, "Hello.", tts.Overrides{Language: "tlh"})
	require.ErrorIs(t, err, tts.ErrValidation)
}

func TestBuildRequest_Immutable(t *testing.T) {
	t.Parallel()

	cfg := mustResolve(t, map[string]any{tts.OptNoiseScale: 0.5})
	lengthScale := ptr(0.9)

	req, err := tts.BuildRequest(cfg, "Hello.", tts.Overrides{Prosody: tts.Prosody{LengthScale: lengthScale}})
	require.NoError(t, err)

	*lengthScale = 3
	*cfg.Prosody.NoiseScale = 0.1

	got, _ := req.LengthScale()
	assert.InDelta(t, 0.9, got, 1e-9)

	got, _ = req.NoiseScale()
	assert.InDelta(t, 0.5, got, 1e-9)
}

func TestParseOverrides(t *testing.T) {
	t.Parallel()

	ov, err := tts.ParseOverrides(map[string]any{
		tts.OptVoice:       "en_UK/apope_low",
		tts.OptLengthScale: "0.8",
		tts.OptNoiseW:      1,
		"volume":           "loud",
	})
	require.NoError(t, err)

	assert.Equal(t, "en_UK/apope_low", ov.Voice)
	require.NotNil(t, ov.Prosody.LengthScale)
	assert.InDelta(t, 0.8, *ov.Prosody.LengthScale, 1e-9)
	assert.Nil(t, ov.Prosody.NoiseScale)

	_, err = tts.ParseOverrides(map[string]any{tts.OptSpeaker: 7})
	require.ErrorIs(t, err, tts.ErrValidation)

	_, err = tts.ParseOverrides(map[string]any{tts.OptNoiseScale: []int{1}})
	require.ErrorIs(t, err, tts.ErrValidation)

	ov, err = tts.ParseOverrides(nil)
	require.NoError(t, err)
	assert.Equal(t, tts.Overrides{}, ov)
}
