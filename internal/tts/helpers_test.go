package tts_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/mimic3-tts/internal/tts"
	"github.com/book-expert/mimic3-tts/internal/tts/audio"
	"github.com/stretchr/testify/require"
)

const (
	testVoice       = "en_US/cmu-arctic_low"
	testBinaryPath  = "/opt/mimic3/bin/mimic3"
	testAuthToken   = "secret-token"
	headerAuthValue = "Bearer " + testAuthToken
)

var testPCM = []byte{0x00, 0x00, 0x10, 0x00, 0xf0, 0xff, 0x7f, 0x00}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "tts-test.log")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = testLogger.Close()
	})

	return testLogger
}

func testWAV() []byte {
	return audio.EncodeWAV(testPCM, audio.DefaultFormat())
}

func mustResolve(t *testing.T, raw map[string]any) *tts.NormalizedConfig {
	t.Helper()

	cfg, err := tts.Resolve(raw)
	require.NoError(t, err)

	return cfg
}

func mustBuild(t *testing.T, raw map[string]any, text string, ov tts.Overrides) *tts.SynthesisRequest {
	t.Helper()

	req, err := tts.BuildRequest(mustResolve(t, raw), text, ov)
	require.NoError(t, err)

	return req
}

func transientError(target tts.EngineTarget) error {
	return &tts.EngineRequestError{
		Target:       target,
		Transient:    true,
		Connectivity: true,
		Err:          errors.New("connection reset by peer"),
	}
}

func ptr(v float64) *float64 { return &v }

// fakeEngine is a scripted tts.Engine. Queued errors are returned by
// Synthesize one at a time before it starts succeeding; failAlways keeps
// failing after the queue is drained.
type fakeEngine struct {
	target tts.EngineTarget

	mu         sync.Mutex
	errs       []error
	failAlways error
	catalog    []tts.VoiceInfo
	calls      int
	voiceCalls int
	closed     bool
}

func (f *fakeEngine) Synthesize(_ context.Context, _ *tts.SynthesisRequest) (*tts.SynthesisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++

	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]

		return nil, err
	}

	if f.failAlways != nil {
		return nil, f.failAlways
	}

	return &tts.SynthesisResult{Audio: testWAV(), Format: audio.DefaultFormat(), Target: f.target}, nil
}

func (f *fakeEngine) Voices(_ context.Context) ([]tts.VoiceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.voiceCalls++

	return f.catalog, nil
}

func (f *fakeEngine) HealthCheck(_ context.Context) error {
	return nil
}

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true

	return nil
}

func (f *fakeEngine) synthCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

func (f *fakeEngine) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closed
}

// fakeFactory hands out one fakeEngine per target kind and counts builds.
type fakeFactory struct {
	mu      sync.Mutex
	engines map[tts.TargetKind]*fakeEngine
	builds  int
}

func newFakeFactory(engines ...*fakeEngine) *fakeFactory {
	factory := &fakeFactory{engines: make(map[tts.TargetKind]*fakeEngine)}
	for _, engine := range engines {
		factory.engines[engine.target.Kind] = engine
	}

	return factory
}

func (f *fakeFactory) build(target tts.EngineTarget) (tts.Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.builds++

	engine, ok := f.engines[target.Kind]
	if !ok {
		return nil, &tts.EngineUnavailableError{Reason: "no fake engine for " + target.String()}
	}

	engine.target = target

	return engine, nil
}

func (f *fakeFactory) buildCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.builds
}
