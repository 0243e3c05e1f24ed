package tts_test

import (
	"context"
	"errors"
	"testing"

	"github.com/book-expert/mimic3-tts/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRemote = tts.RemoteTarget("http://mimic3.test:59125", "")

func TestClient_RetriesTransientOnce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   error
	}{
		{name: "success", wantCalls: 1},
		{name: "one transient then success", errs: []error{transientError(testRemote)}, wantCalls: 2},
		{
			name:      "two transients",
			errs:      []error{transientError(testRemote), transientError(testRemote)},
			wantCalls: 2,
			wantErr:   tts.ErrEngineRequest,
		},
		{
			name:      "unknown voice is not retried",
			errs:      []error{&tts.VoiceNotFoundError{Voice: testVoice}},
			wantCalls: 1,
			wantErr:   tts.ErrVoiceNotFound,
		},
		{
			name:      "non transient failure is not retried",
			errs:      []error{&tts.EngineRequestError{Target: testRemote, StatusCode: 500, Err: errors.New("boom")}},
			wantCalls: 1,
			wantErr:   tts.ErrEngineRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			engine := &fakeEngine{target: testRemote, errs: tt.errs}
			client := tts.NewClient(newFakeFactory(engine).build)

			result, err := client.Synthesize(context.Background(), mustBuild(t, nil, "hello", tts.Overrides{}), testRemote)
			assert.Equal(t, tt.wantCalls, engine.synthCalls())

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, result)

				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, result.Audio)
		})
	}
}

func TestClient_EnginePerTarget(t *testing.T) {
	t.Parallel()

	remote := &fakeEngine{target: testRemote}
	local := &fakeEngine{target: tts.LocalTarget(testBinaryPath)}
	factory := newFakeFactory(remote, local)
	client := tts.NewClient(factory.build)
	req := mustBuild(t, nil, "hello", tts.Overrides{})

	for range 3 {
		_, err := client.Synthesize(context.Background(), req, testRemote)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, factory.buildCount())

	_, err := client.Synthesize(context.Background(), req, tts.LocalTarget(testBinaryPath))
	require.NoError(t, err)
	assert.Equal(t, 2, factory.buildCount())

	require.NoError(t, client.Close())
	assert.True(t, remote.isClosed())
	assert.True(t, local.isClosed())

	_, err = client.Synthesize(context.Background(), req, testRemote)
	require.ErrorIs(t, err, tts.ErrEngineUnavailable)
	require.ErrorIs(t, err, tts.ErrAdapterClosed)
}

func TestDefaultEngineFactory(t *testing.T) {
	t.Parallel()

	factory := tts.DefaultEngineFactory(0, nil)

	remote, err := factory(testRemote)
	require.NoError(t, err)
	assert.IsType(t, &tts.RemoteEngine{}, remote)

	local, err := factory(tts.LocalTarget(testBinaryPath))
	require.NoError(t, err)
	assert.IsType(t, &tts.LocalEngine{}, local)

	_, err = factory(tts.EngineTarget{})
	require.ErrorIs(t, err, tts.ErrEngineUnavailable)
}
