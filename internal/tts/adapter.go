package tts

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/book-expert/logger"
)

// Host-facing operation names used in HostError.Op.
const (
	opNew        = "mimic3: init"
	opSynthesize = "mimic3: synthesize"
	opVoices     = "mimic3: list voices"
	opHealth     = "mimic3: health check"
)

// Option customizes an Adapter.
type Option func(*adapterOptions)

type adapterOptions struct {
	factory  EngineFactory
	runner   CommandRunner
	lookPath func(string) (string, error)
	probe    ProbeFunc
}

// WithEngineFactory replaces the engines built for each target.
func WithEngineFactory(factory EngineFactory) Option {
	return func(o *adapterOptions) { o.factory = factory }
}

// WithCommandRunner replaces how the local mimic3 binary is run.
func WithCommandRunner(runner CommandRunner) Option {
	return func(o *adapterOptions) { o.runner = runner }
}

// WithLookPath replaces the PATH lookup of the local binary.
func WithLookPath(lookPath func(string) (string, error)) Option {
	return func(o *adapterOptions) { o.lookPath = lookPath }
}

// WithProbe replaces the health probe run before re-adopting a remote.
func WithProbe(probe ProbeFunc) Option {
	return func(o *adapterOptions) { o.probe = probe }
}

// Adapter is the single entry point a host uses. It is safe for concurrent
// use; no lock is held around synthesis itself.
type Adapter struct {
	cfg     *NormalizedConfig
	locator *Locator
	client  *Client
	log     *logger.Logger

	catalogMu     sync.Mutex
	catalog       map[VoiceSpec]VoiceInfo
	catalogTarget EngineTarget

	closeOnce sync.Once
	closeMu   sync.RWMutex
	closed    bool
}

// New resolves the plugin options and prepares an Adapter. Apart from
// preloading, no engine is contacted until the first call. log must not be
// nil.
func New(raw map[string]any, log *logger.Logger, opts ...Option) (*Adapter, error) {
	cfg, err := Resolve(raw)
	if err != nil {
		return nil, classify(opNew, err)
	}

	var options adapterOptions
	for _, opt := range opts {
		opt(&options)
	}

	if options.factory == nil {
		options.factory = DefaultEngineFactory(cfg.Timeout, options.runner, cfg.VoicesDirectories...)
	}

	client := NewClient(options.factory)

	probe := options.probe
	if probe == nil {
		probe = client.HealthCheck
	}

	adapter := &Adapter{
		cfg:     cfg,
		locator: NewLocator(cfg, options.lookPath, probe),
		client:  client,
		log:     log,
	}

	err = adapter.preload()
	if err != nil {
		closeErr := adapter.Close()
		if closeErr != nil {
			log.Warn("Failed to release engines after init failure: %v", closeErr)
		}

		return nil, classify(opNew, err)
	}

	log.Info("Mimic3 adapter ready: voice=%s speaker=%q remote=%q binary=%s",
		cfg.Voice, cfg.Speaker, cfg.RemoteURL, cfg.BinaryPath)

	return adapter, nil
}

// Config returns the resolved configuration.
func (a *Adapter) Config() NormalizedConfig {
	return *a.cfg
}

// Target returns the engine target in use, or the zero target before the
// first call and after a failed location.
func (a *Adapter) Target() EngineTarget {
	return a.locator.Current()
}

// Relocations counts how often the engine target was re-resolved after a
// connectivity failure.
func (a *Adapter) Relocations() int64 {
	return a.locator.Relocations()
}

// SynthesizeText synthesizes text with per-call options layered over the
// configured defaults. Recognized option keys are voice, speaker, language,
// gender, length_scale, noise_scale and noise_w.
func (a *Adapter) SynthesizeText(ctx context.Context, text string, options map[string]any) (*SynthesisResult, error) {
	overrides, err := ParseOverrides(options)
	if err != nil {
		return nil, classify(opSynthesize, err)
	}

	req, err := BuildRequest(a.cfg, text, overrides)
	if err != nil {
		return nil, classify(opSynthesize, err)
	}

	return a.Synthesize(ctx, req)
}

// Synthesize dispatches an already built request.
func (a *Adapter) Synthesize(ctx context.Context, req *SynthesisRequest) (*SynthesisResult, error) {
	if err := a.acquire(); err != nil {
		return nil, classify(opSynthesize, err)
	}
	defer a.closeMu.RUnlock()

	var result *SynthesisResult

	err := a.withTarget(ctx, opSynthesize, func(target EngineTarget, retry bool) error {
		err := a.checkVoice(ctx, target, req.Voice(), req.Speaker())
		if err != nil {
			return err
		}

		if retry {
			result, err = a.client.Synthesize(ctx, req, target)
		} else {
			result, err = a.client.attempt(ctx, req, target)
		}

		return err
	})
	if err != nil {
		return nil, classify(opSynthesize, err)
	}

	return result, nil
}

// ListVoices returns the engine catalog as a lazy sequence. Nothing is
// queried until iteration starts, and every iteration queries afresh. A
// failure is yielded once as the error of a zero VoiceInfo.
func (a *Adapter) ListVoices(ctx context.Context) iter.Seq2[VoiceInfo, error] {
	return func(yield func(VoiceInfo, error) bool) {
		infos, err := a.fetchVoices(ctx)
		if err != nil {
			yield(VoiceInfo{}, err)

			return
		}

		for _, info := range infos {
			if !yield(info, nil) {
				return
			}
		}
	}
}

// Voices collects ListVoices into a slice.
func (a *Adapter) Voices(ctx context.Context) ([]VoiceInfo, error) {
	var infos []VoiceInfo

	for info, err := range a.ListVoices(ctx) {
		if err != nil {
			return nil, err
		}

		infos = append(infos, info)
	}

	return infos, nil
}

// HealthCheck reports whether the engine target answers.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if err := a.acquire(); err != nil {
		return classify(opHealth, err)
	}
	defer a.closeMu.RUnlock()

	err := a.withTarget(ctx, opHealth, func(target EngineTarget, _ bool) error {
		return a.client.HealthCheck(ctx, target)
	})

	return classify(opHealth, err)
}

// Close releases the engines. In-flight calls finish first; later calls
// fail with a service error.
func (a *Adapter) Close() error {
	var err error

	a.closeOnce.Do(func() {
		a.closeMu.Lock()
		a.closed = true
		a.closeMu.Unlock()

		a.locator.Close()
		err = a.client.Close()

		a.log.Info("Mimic3 adapter closed")
	})

	return err
}

// acquire holds the close lock for reading; release with closeMu.RUnlock.
func (a *Adapter) acquire() error {
	a.closeMu.RLock()

	if a.closed {
		a.closeMu.RUnlock()

		return &EngineUnavailableError{Reason: "adapter closed", Err: ErrAdapterClosed}
	}

	return nil
}

// withTarget runs fn on the located target. After a connectivity failure the
// target is re-resolved once and fn runs a single further attempt on the new
// target without its own retry.
func (a *Adapter) withTarget(ctx context.Context, op string, fn func(target EngineTarget, retry bool) error) error {
	target, err := a.locator.Locate(ctx)
	if err != nil {
		return err
	}

	err = fn(target, true)
	if err == nil || !isConnectivity(err) || ctx.Err() != nil {
		return err
	}

	a.log.Warn("%s: engine %s failed, relocating: %v", op, target, err)

	next, relocErr := a.locator.Relocate(ctx, target)
	if relocErr != nil {
		return errors.Join(err, relocErr)
	}

	if next != target {
		a.log.Info("%s: switched engine %s -> %s", op, target, next)
	}

	return fn(next, false)
}

// fetchVoices queries the catalog and refreshes the allow-list cache.
func (a *Adapter) fetchVoices(ctx context.Context) ([]VoiceInfo, error) {
	if err := a.acquire(); err != nil {
		return nil, classify(opVoices, err)
	}
	defer a.closeMu.RUnlock()

	var infos []VoiceInfo

	err := a.withTarget(ctx, opVoices, func(target EngineTarget, _ bool) error {
		fetched, err := a.client.Voices(ctx, target)
		if err != nil {
			return err
		}

		infos = fetched
		a.storeCatalog(target, fetched)

		return nil
	})
	if err != nil {
		return nil, classify(opVoices, err)
	}

	return infos, nil
}

// checkVoice validates voice and speaker against the catalog of target,
// fetching it on first use. An empty catalog disables the check.
func (a *Adapter) checkVoice(ctx context.Context, target EngineTarget, voice VoiceSpec, speaker string) error {
	if !a.cfg.ValidateVoices {
		return nil
	}

	catalog, err := a.catalogFor(ctx, target)
	if err != nil {
		return err
	}

	if len(catalog) == 0 {
		return nil
	}

	info, ok := catalog[voice]
	if !ok {
		return &VoiceNotFoundError{Voice: voice.String()}
	}

	if !info.HasSpeaker(speaker) {
		return &VoiceNotFoundError{Voice: voice.String(), Speaker: speaker}
	}

	return nil
}

func (a *Adapter) catalogFor(ctx context.Context, target EngineTarget) (map[VoiceSpec]VoiceInfo, error) {
	a.catalogMu.Lock()
	if a.catalog != nil && a.catalogTarget == target {
		catalog := a.catalog
		a.catalogMu.Unlock()

		return catalog, nil
	}
	a.catalogMu.Unlock()

	infos, err := a.client.Voices(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to load voice catalog: %w", err)
	}

	if len(infos) == 0 {
		a.log.Warn("Engine %s returned an empty voice catalog; voice validation skipped", target)
	}

	return a.storeCatalog(target, infos), nil
}

func (a *Adapter) storeCatalog(target EngineTarget, infos []VoiceInfo) map[VoiceSpec]VoiceInfo {
	catalog := make(map[VoiceSpec]VoiceInfo, len(infos))
	for _, info := range infos {
		catalog[info.Voice] = info
	}

	a.catalogMu.Lock()
	a.catalog = catalog
	a.catalogTarget = target
	a.catalogMu.Unlock()

	return catalog
}

// preload checks every configured preload voice against the catalog. An
// unreachable engine only logs a warning; a reachable engine missing a
// preload voice is a configuration error.
func (a *Adapter) preload() error {
	if len(a.cfg.PreloadVoices) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Timeout)
	defer cancel()

	infos, err := a.fetchVoices(ctx)
	if err != nil {
		a.log.Warn("Could not preload voices %v: %v", a.cfg.PreloadVoices, err)

		return nil
	}

	if len(infos) == 0 {
		return nil
	}

	catalog := make(map[VoiceSpec]struct{}, len(infos))
	for _, info := range infos {
		catalog[info.Voice] = struct{}{}
	}

	for _, voice := range a.cfg.PreloadVoices {
		if _, ok := catalog[voice]; !ok {
			return newConfigError(OptPreloadVoices, "voice %s is not installed", voice)
		}
	}

	a.log.Info("Preloaded voices: %v", a.cfg.PreloadVoices)

	return nil
}
