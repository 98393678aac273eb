package piweb

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/KhavKivar/piwebapi-etl/internal/auth"
)

// Session is a short-lived HTTP client bound to one credential. One session
// belongs to exactly one task for its lifetime; sessions are never shared
// across goroutines.
type Session struct {
	cred       auth.Credential
	httpClient *http.Client
}

// APIError represents a terminal non-2xx HTTP response.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
	retryAfter string // internal: Retry-After header value for 429s
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures Session behavior.
type Option func(*Session)

// WithTimeout sets the per-request timeout. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.httpClient.Timeout = d
	}
}

// WithInsecureSkipVerify disables TLS certificate verification. PI Web API
// deployments behind self-signed certs need this.
func WithInsecureSkipVerify() Option {
	return func(s *Session) {
		base := s.httpClient.Transport.(*http.Transport)
		base.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
}

// NewSession creates a Session authenticated with the given credential.
func NewSession(cred auth.Credential, opts ...Option) *Session {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	s := &Session{
		cred: cred,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	s.httpClient.Transport = transport
	for _, opt := range opts {
		opt(s)
	}
	s.httpClient.Transport = cred.Transport(s.httpClient.Transport)
	return s
}

// Close releases the session's idle connections. Safe to defer on every
// exit path.
func (s *Session) Close() {
	s.httpClient.CloseIdleConnections()
}

const maxRetries = 3

// GetJSON sends a GET to rawURL (absolute; PI Web API hands out absolute
// follow-up links) and unmarshals the JSON response into dest. Returns
// *APIError for terminal non-2xx responses. Retries on 429 (honoring
// Retry-After) and 5xx with exponential backoff: 1s, 2s, 4s. Max 3 retries.
func (s *Session) GetJSON(ctx context.Context, rawURL string, query url.Values, dest any) error {
	fullURL := rawURL
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var lastErr *APIError
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoffDelay(attempt, lastErr)
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		s.cred.Apply(req)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return err
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return json.Unmarshal(body, dest)
		}

		bodyStr := string(body)
		if len(bodyStr) > 512 {
			bodyStr = bodyStr[:512]
		}

		apiErr := &APIError{StatusCode: resp.StatusCode, Body: bodyStr}

		if resp.StatusCode == 429 {
			apiErr.retryAfter = resp.Header.Get("Retry-After")
			lastErr = apiErr
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = apiErr
			continue
		}

		return apiErr
	}

	return lastErr
}

// backoffDelay returns the wait duration before a retry attempt.
func backoffDelay(attempt int, lastErr *APIError) time.Duration {
	if lastErr != nil && lastErr.StatusCode == 429 && lastErr.retryAfter != "" {
		if secs, err := strconv.Atoi(lastErr.retryAfter); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Duration(1<<(attempt-1)) * time.Second
}
