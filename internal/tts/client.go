// Package tts adapts the Mimic3 neural TTS engine to a host runtime.
//
// The Adapter resolves a flat plugin option map once, builds an immutable
// SynthesisRequest per call, locates an engine (a remote mimic3-server or
// the local mimic3 executable) and returns the synthesized WAV. Every error
// it returns is a *HostError classed for the caller or for the service.
package tts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Engine is one reachable Mimic3 instance.
type Engine interface {
	Synthesize(ctx context.Context, req *SynthesisRequest) (*SynthesisResult, error)
	Voices(ctx context.Context) ([]VoiceInfo, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// EngineFactory builds the Engine for a target.
type EngineFactory func(target EngineTarget) (Engine, error)

// DefaultEngineFactory returns an EngineFactory producing RemoteEngine and
// LocalEngine values with the given per-request timeout. voicesDirs only
// apply to local engines.
func DefaultEngineFactory(timeout time.Duration, run CommandRunner, voicesDirs ...string) EngineFactory {
	return func(target EngineTarget) (Engine, error) {
		switch target.Kind {
		case TargetRemote:
			return NewRemoteEngine(target, timeout), nil
		case TargetLocal:
			return NewLocalEngine(target, timeout, run, voicesDirs...), nil
		default:
			return nil, &EngineUnavailableError{Reason: fmt.Sprintf("no engine for target %s", target)}
		}
	}
}

// Client executes requests against engine targets. It keeps one Engine per
// target, so all calls to a local binary share that engine's mutex.
type Client struct {
	factory EngineFactory

	mu      sync.Mutex
	engines map[EngineTarget]Engine
	closed  bool
}

// NewClient creates a Client that builds engines with factory.
func NewClient(factory EngineFactory) *Client {
	return &Client{
		factory: factory,
		engines: make(map[EngineTarget]Engine),
	}
}

// Synthesize runs req against target, retrying once when the first attempt
// fails transiently. Results are all-or-nothing.
func (c *Client) Synthesize(ctx context.Context, req *SynthesisRequest, target EngineTarget) (*SynthesisResult, error) {
	result, err := c.attempt(ctx, req, target)
	if err == nil || !isTransient(err) || ctx.Err() != nil {
		return result, err
	}

	return c.attempt(ctx, req, target)
}

// attempt runs req once.
func (c *Client) attempt(ctx context.Context, req *SynthesisRequest, target EngineTarget) (*SynthesisResult, error) {
	engine, err := c.engine(target)
	if err != nil {
		return nil, err
	}

	return engine.Synthesize(ctx, req)
}

// Voices fetches the catalog of target, retrying once on a transient failure.
func (c *Client) Voices(ctx context.Context, target EngineTarget) ([]VoiceInfo, error) {
	engine, err := c.engine(target)
	if err != nil {
		return nil, err
	}

	infos, err := engine.Voices(ctx)
	if err == nil || !isTransient(err) || ctx.Err() != nil {
		return infos, err
	}

	return engine.Voices(ctx)
}

// HealthCheck probes target once.
func (c *Client) HealthCheck(ctx context.Context, target EngineTarget) error {
	engine, err := c.engine(target)
	if err != nil {
		return err
	}

	return engine.HealthCheck(ctx)
}

// Close closes every engine. Later calls fail with EngineUnavailableError.
func (c *Client) Close() error {
	c.mu.Lock()
	engines := c.engines
	c.engines = make(map[EngineTarget]Engine)
	c.closed = true
	c.mu.Unlock()

	var errs []error

	for target, engine := range engines {
		err := engine.Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to close engine %s: %w", target, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Client) engine(target EngineTarget) (Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, &EngineUnavailableError{Reason: "client closed", Err: ErrAdapterClosed}
	}

	if engine, ok := c.engines[target]; ok {
		return engine, nil
	}

	engine, err := c.factory(target)
	if err != nil {
		return nil, err
	}

	c.engines[target] = engine

	return engine, nil
}

func isTransient(err error) bool {
	var reqErr *EngineRequestError

	return errors.As(err, &reqErr) && reqErr.Transient
}

func isConnectivity(err error) bool {
	var reqErr *EngineRequestError

	return errors.As(err, &reqErr) && (reqErr.Connectivity || reqErr.Transient)
}
