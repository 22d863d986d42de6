// Package toolrunner executes live tools by POSTing their arguments to the
// tool's configured API URL.
package toolrunner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Strob0t/TuneForge/internal/adapter/otel"
	"github.com/Strob0t/TuneForge/internal/config"
	"github.com/Strob0t/TuneForge/internal/domain"
	"github.com/Strob0t/TuneForge/internal/resilience"
)

// Result is a successful upstream reply, returned to the caller verbatim.
type Result struct {
	Status      int
	ContentType string
	Body        []byte
}

// Runner calls tool endpoints through one circuit breaker per upstream host.
type Runner struct {
	httpClient  *http.Client
	breakers    *resilience.Set
	maxResponse int64
}

// New creates a Runner. Requests time out after cfg.ExecTimeout.
func New(cfg config.Tools, breakers *resilience.Set) *Runner {
	return &Runner{
		httpClient: &http.Client{
			Timeout:   cfg.ExecTimeout,
			Transport: otel.Transport(http.DefaultTransport),
		},
		breakers:    breakers,
		maxResponse: cfg.MaxResponseSize,
	}
}

// Execute POSTs args as JSON to apiURL. Any failure is a *domain.UpstreamError:
// a non-2xx reply carries its status and body, a transport failure or an open
// breaker carries status 0. Only 5xx replies and transport failures count
// against the host's breaker.
func (r *Runner) Execute(ctx context.Context, apiURL string, args json.RawMessage) (*Result, error) {
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("tool api_url %q is not a valid URL: %w", apiURL, domain.ErrValidation)
	}

	var (
		result   *Result
		rejected *domain.UpstreamError
	)
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(args))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := r.httpClient.Do(req)
		if err != nil {
			return &domain.UpstreamError{Detail: transportDetail(err)}
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxResponse+1))
		if err != nil {
			return &domain.UpstreamError{Detail: "read response: " + err.Error()}
		}
		if int64(len(body)) > r.maxResponse {
			return &domain.UpstreamError{Status: resp.StatusCode, Detail: fmt.Sprintf("response exceeds %d bytes", r.maxResponse)}
		}

		switch {
		case resp.StatusCode >= 500:
			return &domain.UpstreamError{Status: resp.StatusCode, Detail: string(body)}
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			rejected = &domain.UpstreamError{Status: resp.StatusCode, Detail: string(body)}
			return nil
		}

		result = &Result{
			Status:      resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        body,
		}
		return nil
	}

	if err := r.breakers.For(u.Host).Execute(call); err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, &domain.UpstreamError{Detail: "circuit open for " + u.Host}
		}
		return nil, err
	}
	if rejected != nil {
		return nil, rejected
	}
	return result, nil
}

// transportDetail drops the request URL that *url.Error prepends.
func transportDetail(err error) string {
	var ue *url.Error
	if errors.As(err, &ue) {
		err = ue.Err
	}
	return strings.TrimSpace(err.Error())
}
