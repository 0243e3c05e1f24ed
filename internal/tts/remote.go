package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/book-expert/mimic3-tts/internal/tts/audio"
)

// mimic3-server endpoints.
const (
	apiSynthesize = "/api/tts"
	apiVoices     = "/api/voices"
	apiVersion    = "/api/version"
)

// HTTP headers.
const (
	headerContentType   = "Content-Type"
	headerAccept        = "Accept"
	headerAuthorization = "Authorization"
	contentTypeText     = "text/plain; charset=utf-8"
	contentTypeJSON     = "application/json"
	bearerPrefix        = "Bearer "
)

// maxErrorBody bounds how much of an error response is kept for diagnostics.
const maxErrorBody = 4 << 10

// Error messages.
const (
	errFmtSendFailed      = "failed to send request to mimic3-server at %s: %w"
	errFmtReadFailed      = "failed to read response body: %w"
	errFmtNonOKStatus     = "mimic3-server returned non-OK status: %s, body: %s"
	errFmtUnexpectedCType = "unexpected content type: expected %s, got %s"
)

var errEmptyAudio = errors.New("received empty audio data")

// RemoteEngine talks to a mimic3-server HTTP endpoint. It is safe for
// concurrent use; requests are not serialized.
type RemoteEngine struct {
	httpClient *http.Client
	target     EngineTarget
}

// NewRemoteEngine creates an engine for a Remote target. The timeout applies
// to every HTTP request made by the engine.
func NewRemoteEngine(target EngineTarget, timeout time.Duration) *RemoteEngine {
	return &RemoteEngine{
		target: target,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Synthesize posts the request text to /api/tts and returns the WAV payload.
func (e *RemoteEngine) Synthesize(ctx context.Context, req *SynthesisRequest) (*SynthesisResult, error) {
	endpoint := e.target.BaseURL + apiSynthesize + "?" + req.QueryValues().Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(req.Text()))
	if err != nil {
		return nil, &EngineRequestError{Target: e.target, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	httpReq.Header.Set(headerContentType, contentTypeText)
	httpReq.Header.Set(headerAccept, audio.CONTENT_TYPE_WAV)

	body, err := e.do(httpReq, req)
	if err != nil {
		return nil, err
	}

	return newResult(body, e.target)
}

// Voices fetches the engine voice catalog from /api/voices.
func (e *RemoteEngine) Voices(ctx context.Context) ([]VoiceInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, e.target.BaseURL+apiVoices, http.NoBody)
	if err != nil {
		return nil, &EngineRequestError{Target: e.target, Err: fmt.Errorf("failed to create catalog request: %w", err)}
	}

	httpReq.Header.Set(headerAccept, contentTypeJSON)

	body, err := e.do(httpReq, nil)
	if err != nil {
		return nil, err
	}

	infos, err := decodeCatalog(body)
	if err != nil {
		return nil, &EngineRequestError{Target: e.target, Err: err}
	}

	return infos, nil
}

// HealthCheck verifies that the server answers on /api/version.
func (e *RemoteEngine) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, e.target.BaseURL+apiVersion, http.NoBody)
	if err != nil {
		return &EngineRequestError{Target: e.target, Err: fmt.Errorf("failed to create health check request: %w", err)}
	}

	_, err = e.do(httpReq, nil)

	return err
}

// Close drops idle keep-alive connections.
func (e *RemoteEngine) Close() error {
	e.httpClient.CloseIdleConnections()

	return nil
}

// do sends httpReq and returns the body of a 200 response. Failures are
// classified; req, when non-nil, names the voice in voice-not-found errors.
func (e *RemoteEngine) do(httpReq *http.Request, req *SynthesisRequest) ([]byte, error) {
	if e.target.AuthToken != "" {
		httpReq.Header.Set(headerAuthorization, bearerPrefix+e.target.AuthToken)
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, e.transportError(httpReq.Context(), fmt.Errorf(errFmtSendFailed, e.target.BaseURL, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, e.statusError(resp, req)
	}

	if req != nil {
		contentType := resp.Header.Get(headerContentType)
		if contentType != "" && !strings.HasPrefix(contentType, "audio/") {
			return nil, &EngineRequestError{
				Target: e.target,
				Err:    fmt.Errorf(errFmtUnexpectedCType, audio.CONTENT_TYPE_WAV, contentType),
			}
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, e.transportError(httpReq.Context(), fmt.Errorf(errFmtReadFailed, err))
	}

	return body, nil
}

// statusError maps a non-200 response onto the error taxonomy.
func (e *RemoteEngine) statusError(resp *http.Response, req *SynthesisRequest) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := strings.TrimSpace(string(body))

	switch {
	case req != nil && (resp.StatusCode == http.StatusNotFound || mentionsUnknownVoice(detail)):
		return &VoiceNotFoundError{Voice: req.Voice().String(), Speaker: req.Speaker()}
	case resp.StatusCode == http.StatusBadRequest && req != nil:
		return newValidationError("request", "rejected by engine: %s", detail)
	}

	transient := resp.StatusCode == http.StatusBadGateway ||
		resp.StatusCode == http.StatusServiceUnavailable ||
		resp.StatusCode == http.StatusGatewayTimeout

	return &EngineRequestError{
		Target:       e.target,
		StatusCode:   resp.StatusCode,
		Transient:    transient,
		Connectivity: transient,
		Err:          fmt.Errorf(errFmtNonOKStatus, resp.Status, detail),
	}
}

// transportError classifies a failure that happened before a status line
// was read, or while reading the body.
func (e *RemoteEngine) transportError(ctx context.Context, err error) error {
	reqErr := &EngineRequestError{Target: e.target, Err: err}

	// The caller gave up; retrying or relocating would outlive it.
	if ctx.Err() != nil {
		return reqErr
	}

	if isTransientNetError(err) {
		reqErr.Transient = true
		reqErr.Connectivity = true

		return reqErr
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError

	if errors.As(err, &dnsErr) || errors.As(err, &opErr) {
		reqErr.Connectivity = true
	}

	return reqErr
}

func isTransientNetError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}

// mentionsUnknownVoice matches the engine's complaint about a missing voice
// or speaker, which mimic3 reports as a plain-text message.
func mentionsUnknownVoice(detail string) bool {
	lower := strings.ToLower(detail)

	return strings.Contains(lower, "no voice") ||
		strings.Contains(lower, "voice not found") ||
		strings.Contains(lower, "unknown voice") ||
		strings.Contains(lower, "unknown speaker")
}
