package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rpupo63/portfolio-backend/errs"
	"github.com/rs/zerolog/log"
)

const serviceName = "deploy hook"

// maxResponseBytes caps how much of the deploy system's answer is relayed.
const maxResponseBytes = 1 << 20

// Forwarder hands project identifiers to an external deployment system and returns its answer verbatim.
type Forwarder interface {
	Forward(ctx context.Context, projects []json.RawMessage) (json.RawMessage, error)
}

// HTTPForwarder POSTs {"projects": [...]} to a deploy hook URL.
type HTTPForwarder struct {
	client  *http.Client
	url     string
	headers map[string]string
}

// Option configures HTTPForwarder.
type Option func(*HTTPForwarder)

// WithClient sets the HTTP client (default: 30s timeout).
func WithClient(c *http.Client) Option {
	return func(f *HTTPForwarder) {
		f.client = c
	}
}

// WithHeader sets a header sent on every request (e.g. Authorization).
func WithHeader(key, value string) Option {
	return func(f *HTTPForwarder) {
		if f.headers == nil {
			f.headers = make(map[string]string)
		}
		f.headers[key] = value
	}
}

func NewHTTPForwarder(url string, opts ...Option) *HTTPForwarder {
	f := &HTTPForwarder{
		client: &http.Client{Timeout: 30 * time.Second},
		url:    url,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type forwardRequest struct {
	Projects []json.RawMessage `json:"projects"`
}

// Forward makes one attempt; failures are returned, never retried.
func (f *HTTPForwarder) Forward(ctx context.Context, projects []json.RawMessage) (json.RawMessage, error) {
	if projects == nil {
		projects = []json.RawMessage{}
	}
	body, err := json.Marshal(forwardRequest{Projects: projects})
	if err != nil {
		return nil, errs.NewMalformedPayloadError("projects", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return nil, errs.NewServiceUnreachableError(serviceName, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errs.NewServiceUnreachableError(serviceName, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errs.NewServiceUnreachableError(serviceName, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.NewServiceRejectedError(serviceName, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	log.Info().Int("projects", len(projects)).Int("status", resp.StatusCode).Msg("deploy forwarded")
	return asJSON(payload), nil
}

// asJSON relays a JSON answer untouched and wraps anything else as a JSON string.
func asJSON(payload []byte) json.RawMessage {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return json.RawMessage(`{}`)
	}
	if json.Valid(payload) {
		return json.RawMessage(payload)
	}
	quoted, _ := json.Marshal(string(payload))
	return quoted
}

// Noop is used when no deploy hook is configured.
type Noop struct{}

func (Noop) Forward(ctx context.Context, projects []json.RawMessage) (json.RawMessage, error) {
	return nil, errs.NewConfigMissingError("DEPLOY_HOOK_URL")
}

var (
	_ Forwarder = (*HTTPForwarder)(nil)
	_ Forwarder = Noop{}
)
