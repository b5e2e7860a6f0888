package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"property-insight-be/pkg/store"
)

// ErrUpstreamUnavailable marks any failure to get an answer from the engine:
// transport errors, timeouts, non-2xx responses and undecodable bodies.
var ErrUpstreamUnavailable = errors.New("analysis engine unavailable")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analysis engine %s returned %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrUpstreamUnavailable
}

// Client is the outbound side of the Analysis Engine contract.
type Client interface {
	FetchSession(ctx context.Context, sessionID string) (*store.Session, error)
	StartAnalysis(ctx context.Context, sessionID string) error
}

type HTTPClient struct {
	BaseURL string
	Client  *http.Client
}

// Ensure HTTPClient implements Client
var _ Client = &HTTPClient{}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchSession reads the authoritative snapshot: GET {base}/session/{id}.
func (c *HTTPClient) FetchSession(ctx context.Context, sessionID string) (*store.Session, error) {
	endpoint := fmt.Sprintf("%s/session/%s", c.BaseURL, url.PathEscape(sessionID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build session request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, "fetch session")
	if err != nil {
		return nil, err
	}

	session, err := store.ParseSession(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return session, nil
}

// StartAnalysis (re)starts a run: POST {base}/start-analysis/{id}.
func (c *HTTPClient) StartAnalysis(ctx context.Context, sessionID string) error {
	endpoint := fmt.Sprintf("%s/start-analysis/%s", c.BaseURL, url.PathEscape(sessionID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader("{}"))
	if err != nil {
		return fmt.Errorf("failed to build start-analysis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	_, err = c.do(req, "start analysis")
	return err
}

func (c *HTTPClient) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %v", ErrUpstreamUnavailable, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(body)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Body: snippet}
	}

	return body, nil
}
