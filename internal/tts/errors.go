package tts

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every typed error below matches exactly one of them via
// errors.Is, so callers can branch without type assertions.
var (
	ErrConfig            = errors.New("invalid plugin configuration")
	ErrValidation        = errors.New("invalid synthesis input")
	ErrVoiceNotFound     = errors.New("voice not found in engine catalog")
	ErrEngineUnavailable = errors.New("no usable TTS engine")
	ErrEngineRequest     = errors.New("TTS engine request failed")
	ErrAdapterClosed     = errors.New("adapter has been closed")
)

// ConfigError reports bad plugin configuration detected at initialization.
type ConfigError struct {
	Option string
	Reason string
}

func newConfigError(option, format string, args ...any) *ConfigError {
	return &ConfigError{Option: option, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrConfig, e.Option, e.Reason)
}

// Is reports whether target is ErrConfig.
func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// ValidationError reports bad per-call input.
type ValidationError struct {
	Field  string
	Reason string
}

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrValidation, e.Field, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// VoiceNotFoundError reports a voice or speaker absent from the engine catalog.
type VoiceNotFoundError struct {
	Voice   string
	Speaker string
}

func (e *VoiceNotFoundError) Error() string {
	if e.Speaker != "" {
		return fmt.Sprintf("%v: %s (speaker %q)", ErrVoiceNotFound, e.Voice, e.Speaker)
	}

	return fmt.Sprintf("%v: %s", ErrVoiceNotFound, e.Voice)
}

// Is reports whether target is ErrVoiceNotFound.
func (e *VoiceNotFoundError) Is(target error) bool { return target == ErrVoiceNotFound }

// EngineUnavailableError reports that no engine target could be located.
type EngineUnavailableError struct {
	Reason string
	Err    error
}

func (e *EngineUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", ErrEngineUnavailable, e.Reason, e.Err)
	}

	return fmt.Sprintf("%v: %s", ErrEngineUnavailable, e.Reason)
}

// Is reports whether target is ErrEngineUnavailable.
func (e *EngineUnavailableError) Is(target error) bool { return target == ErrEngineUnavailable }

// Unwrap returns the underlying cause.
func (e *EngineUnavailableError) Unwrap() error { return e.Err }

// EngineRequestError reports a transport or process failure while talking to
// an otherwise located engine.
//
// Transient failures (timeouts, resets, gateway errors) are retried once.
// Connectivity failures make the adapter re-resolve its engine target; every
// transient failure is also a connectivity failure.
type EngineRequestError struct {
	Target       EngineTarget
	StatusCode   int
	Transient    bool
	Connectivity bool
	Err          error
}

func (e *EngineRequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%v: %s: status %d: %v", ErrEngineRequest, e.Target, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("%v: %s: %v", ErrEngineRequest, e.Target, e.Err)
}

// Is reports whether target is ErrEngineRequest.
func (e *EngineRequestError) Is(target error) bool { return target == ErrEngineRequest }

// Unwrap returns the underlying cause.
func (e *EngineRequestError) Unwrap() error { return e.Err }

// ErrorClass is the host-facing category of a failure.
type ErrorClass int

const (
	// ClassCaller marks bad input or configuration. Hosts should not retry.
	ClassCaller ErrorClass = iota
	// ClassService marks engine trouble. Hosts may retry or fall back to
	// another TTS plugin.
	ClassService
)

func (c ErrorClass) String() string {
	if c == ClassCaller {
		return "caller"
	}

	return "service"
}

// HostError is the only error type returned across the Adapter boundary.
type HostError struct {
	Class ErrorClass
	Op    string
	Err   error
}

func (e *HostError) Error() string {
	return fmt.Sprintf("%s (%s error): %v", e.Op, e.Class, e.Err)
}

// Unwrap returns the internal typed error.
func (e *HostError) Unwrap() error { return e.Err }

// Retryable reports whether the host may retry the call.
func (e *HostError) Retryable() bool { return e.Class == ClassService }

// classify maps an internal error onto the host error contract.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var hostErr *HostError
	if errors.As(err, &hostErr) {
		return err
	}

	class := ClassService

	switch {
	case errors.Is(err, ErrConfig), errors.Is(err, ErrValidation), errors.Is(err, ErrVoiceNotFound):
		class = ClassCaller
	case errors.Is(err, ErrEngineUnavailable), errors.Is(err, ErrEngineRequest):
		class = ClassService
	default:
		// Unclassified failures, context cancellation included, count as
		// engine trouble.
		err = &EngineRequestError{Err: err}
	}

	return &HostError{Class: class, Op: op, Err: err}
}

// IsCallerError reports whether err is a host error caused by the caller.
func IsCallerError(err error) bool {
	var hostErr *HostError

	return errors.As(err, &hostErr) && hostErr.Class == ClassCaller
}

// IsServiceError reports whether err is a host error caused by the engine.
func IsServiceError(err error) bool {
	var hostErr *HostError

	return errors.As(err, &hostErr) && hostErr.Class == ClassService
}
