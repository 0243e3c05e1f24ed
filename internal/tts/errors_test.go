package tts_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/book-expert/mimic3-tts/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedErrorsMatchTheirSentinel(t *testing.T) {
	t.Parallel()

	cause := errors.New("cause")

	tests := []struct {
		err      error
		sentinel error
	}{
		{err: &tts.ConfigError{Option: tts.OptVoice, Reason: "bad"}, sentinel: tts.ErrConfig},
		{err: &tts.ValidationError{Field: "text", Reason: "empty"}, sentinel: tts.ErrValidation},
		{err: &tts.VoiceNotFoundError{Voice: testVoice, Speaker: "x"}, sentinel: tts.ErrVoiceNotFound},
		{err: &tts.EngineUnavailableError{Reason: "none", Err: cause}, sentinel: tts.ErrEngineUnavailable},
		{err: &tts.EngineRequestError{Target: testRemote, StatusCode: 502, Err: cause}, sentinel: tts.ErrEngineRequest},
	}

	all := []error{tts.ErrConfig, tts.ErrValidation, tts.ErrVoiceNotFound, tts.ErrEngineUnavailable, tts.ErrEngineRequest}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%T", tt.err), func(t *testing.T) {
			t.Parallel()

			wrapped := fmt.Errorf("context: %w", tt.err)
			require.ErrorIs(t, wrapped, tt.sentinel)

			for _, other := range all {
				if other != tt.sentinel {
					assert.NotErrorIs(t, tt.err, other)
				}
			}

			assert.Contains(t, tt.err.Error(), tt.sentinel.Error())
		})
	}
}

func TestEngineRequestError_Message(t *testing.T) {
	t.Parallel()

	err := &tts.EngineRequestError{Target: tts.RemoteTarget("http://mimic3:59125", testAuthToken), StatusCode: 503, Err: errors.New("busy")}

	assert.Contains(t, err.Error(), "status 503")
	assert.NotContains(t, err.Error(), testAuthToken)
}

func TestHostError(t *testing.T) {
	t.Parallel()

	caller := &tts.HostError{Class: tts.ClassCaller, Op: "mimic3: synthesize", Err: &tts.ValidationError{Field: "text"}}
	service := &tts.HostError{Class: tts.ClassService, Op: "mimic3: synthesize", Err: &tts.EngineUnavailableError{}}

	assert.True(t, tts.IsCallerError(caller))
	assert.False(t, tts.IsServiceError(caller))
	assert.False(t, caller.Retryable())
	assert.Contains(t, caller.Error(), "caller error")

	assert.True(t, tts.IsServiceError(fmt.Errorf("worker: %w", service)))
	assert.True(t, service.Retryable())
	require.ErrorIs(t, service, tts.ErrEngineUnavailable)

	assert.False(t, tts.IsCallerError(errors.New("plain")))
	assert.False(t, tts.IsServiceError(nil))
}
