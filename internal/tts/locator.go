package tts

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	flightLocate   = "locate"
	flightRelocate = "relocate:"
)

// ProbeFunc checks that a target answers. It is used before a Remote target
// is re-adopted after a failure.
type ProbeFunc func(ctx context.Context, target EngineTarget) error

// Locator picks and caches the engine target for one adapter. The cached
// target is read-mostly. Resolutions run one at a time, concurrent callers
// with the same intent share one, and a caller whose context ends stops
// waiting without cancelling it for the others.
type Locator struct {
	remoteURL  string
	authToken  string
	binaryPath string
	timeout    time.Duration

	lookPath func(string) (string, error)
	probe    ProbeFunc

	group       singleflight.Group
	resolveMu   sync.Mutex
	relocations atomic.Int64

	mu      sync.RWMutex
	current EngineTarget
	closed  bool
}

// NewLocator creates a Locator for cfg. A nil lookPath uses exec.LookPath; a
// nil probe accepts every target.
func NewLocator(cfg *NormalizedConfig, lookPath func(string) (string, error), probe ProbeFunc) *Locator {
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	if probe == nil {
		probe = func(context.Context, EngineTarget) error { return nil }
	}

	return &Locator{
		remoteURL:  cfg.RemoteURL,
		authToken:  cfg.AuthToken,
		binaryPath: cfg.BinaryPath,
		timeout:    cfg.Timeout,
		lookPath:   lookPath,
		probe:      probe,
	}
}

// Locate returns the cached target, resolving one first if none is cached.
// A configured remote is adopted without probing; its first request is the
// probe.
func (l *Locator) Locate(ctx context.Context) (EngineTarget, error) {
	target, closed := l.snapshot()
	if closed {
		return EngineTarget{}, errLocatorClosed()
	}

	if !target.IsZero() {
		return target, nil
	}

	return l.flight(ctx, flightLocate, func() (EngineTarget, error) {
		if cached, _ := l.snapshot(); !cached.IsZero() {
			return cached, nil
		}

		return l.resolve(ctx, false)
	})
}

// Relocate re-resolves after a connectivity failure on failed. When another
// caller already replaced failed, the replacement is returned as is. A failed
// re-resolution clears the cache so a later call can locate afresh.
func (l *Locator) Relocate(ctx context.Context, failed EngineTarget) (EngineTarget, error) {
	if _, closed := l.snapshot(); closed {
		return EngineTarget{}, errLocatorClosed()
	}

	return l.flight(ctx, flightRelocate+failed.String(), func() (EngineTarget, error) {
		if cached, _ := l.snapshot(); !cached.IsZero() && cached != failed {
			return cached, nil
		}

		l.relocations.Add(1)

		return l.resolve(ctx, true)
	})
}

// Current returns the cached target, which is zero when none is resolved.
func (l *Locator) Current() EngineTarget {
	target, _ := l.snapshot()

	return target
}

// Relocations counts the re-resolutions actually performed.
func (l *Locator) Relocations() int64 {
	return l.relocations.Load()
}

// Close drops the cached target. Later calls fail with
// EngineUnavailableError.
func (l *Locator) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	l.current = EngineTarget{}
}

func (l *Locator) snapshot() (EngineTarget, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.current, l.closed
}

// flight runs fn under key, one resolution at a time, and stores its outcome
// as the cached target. The caller stops waiting when ctx ends.
func (l *Locator) flight(ctx context.Context, key string, fn func() (EngineTarget, error)) (EngineTarget, error) {
	results := l.group.DoChan(key, func() (any, error) {
		l.resolveMu.Lock()
		defer l.resolveMu.Unlock()

		target, err := fn()

		l.mu.Lock()
		defer l.mu.Unlock()

		if l.closed {
			return EngineTarget{}, errLocatorClosed()
		}

		l.current = target
		if err != nil {
			l.current = EngineTarget{}
		}

		return target, err
	})

	select {
	case <-ctx.Done():
		return EngineTarget{}, fmt.Errorf("gave up waiting for engine location: %w", ctx.Err())
	case res := <-results:
		if res.Err != nil {
			return EngineTarget{}, res.Err
		}

		target, _ := res.Val.(EngineTarget)

		return target, nil
	}
}

// resolve applies the selection policy: remote when configured (probed when
// probeRemote is set), then the local binary, else EngineUnavailableError.
func (l *Locator) resolve(ctx context.Context, probeRemote bool) (EngineTarget, error) {
	var causes []error

	if l.remoteURL != "" {
		remote := RemoteTarget(l.remoteURL, l.authToken)
		if !probeRemote {
			return remote, nil
		}

		err := l.probeDetached(ctx, remote)
		if err == nil {
			return remote, nil
		}

		causes = append(causes, fmt.Errorf("remote %s: %w", l.remoteURL, err))
	}

	path, err := l.lookPath(l.binaryPath)
	if err == nil {
		return LocalTarget(path), nil
	}

	causes = append(causes, fmt.Errorf("local %s: %w", l.binaryPath, err))

	return EngineTarget{}, &EngineUnavailableError{
		Reason: "neither a remote endpoint nor a local mimic3 binary is usable",
		Err:    errors.Join(causes...),
	}
}

// probeDetached probes target on a context that outlives the caller that
// started the resolution, bounded by the request timeout.
func (l *Locator) probeDetached(ctx context.Context, target EngineTarget) error {
	probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()

	return l.probe(probeCtx, target)
}

func errLocatorClosed() error {
	return &EngineUnavailableError{Reason: "locator closed", Err: ErrAdapterClosed}
}
