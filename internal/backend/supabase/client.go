// Package supabase implements service.Auth and service.Service against a
// hosted Supabase project: GoTrue for sessions and PostgREST for rows.
package supabase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"supatodo/internal/config"
	"supatodo/internal/oauthflow"
	"supatodo/internal/session"
)

const (
	// APITimeout is the timeout for API calls.
	APITimeout = 10 * time.Second

	authPath = "/auth/v1"
	restPath = "/rest/v1"
)

// Client implements service.Auth and service.Service.
type Client struct {
	session.Broker

	baseURL     string
	anonKey     string
	sessionPath string
	http        *http.Client

	// Flow runs the browser half of OAuth sign-in.
	Flow oauthflow.Flow

	mu     sync.Mutex
	loaded bool
	stored *storedSession
	source oauth2.TokenSource
}

// New creates a client for the project configured in cfg.
func New(cfg *config.Config) (*Client, error) {
	return NewWithHTTPClient(cfg, &http.Client{})
}

// NewWithHTTPClient creates a client with a custom HTTP client (for testing).
func NewWithHTTPClient(cfg *config.Config, hc *http.Client) (*Client, error) {
	if cfg.URL == "" || cfg.AnonKey == "" {
		return nil, errors.New("supabase url and anon key are required")
	}
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	withKey := *hc
	withKey.Transport = apiKeyTransport{key: cfg.AnonKey, base: base}

	return &Client{
		baseURL:     strings.TrimRight(cfg.URL, "/"),
		anonKey:     cfg.AnonKey,
		sessionPath: cfg.SessionPath(),
		http:        &withKey,
	}, nil
}

// apiKeyTransport adds the project's anon key to every request.
type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("apikey", t.key)
	return t.base.RoundTrip(r)
}

// request describes one REST call.
type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	prefer string
	bearer string
}

// do sends r with hc and decodes a successful JSON response into out.
func (c *Client) do(ctx context.Context, hc *http.Client, r request, out any) error {
	var body io.Reader
	if r.body != nil {
		data, err := sonic.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", r.op, err)
		}
		body = bytes.NewReader(data)
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return fmt.Errorf("%s: %w", r.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.prefer != "" {
		req.Header.Set("Prefer", r.prefer)
	}
	if r.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+r.bearer)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return wrapError(r.op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return wrapError(r.op, err)
	}
	log.WithFields(log.Fields{"op": r.op, "status": resp.StatusCode}).Debug(r.method + " " + r.path)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(r.op, resp.StatusCode, data)
	}
	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := sonic.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", r.op, err)
		}
	}
	return nil
}
