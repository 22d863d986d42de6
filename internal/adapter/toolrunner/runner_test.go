package toolrunner

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Strob0t/TuneForge/internal/config"
	"github.com/Strob0t/TuneForge/internal/domain"
	"github.com/Strob0t/TuneForge/internal/resilience"
)

func newRunner(maxFailures int) *Runner {
	return New(config.Tools{ExecTimeout: 2 * time.Second, MaxResponseSize: 1 << 10}, resilience.NewSet(maxFailures, time.Minute))
}

func TestExecuteSuccess(t *testing.T) {
	var gotBody []byte
	var gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"temp":21}`))
	}))
	defer srv.Close()

	res, err := newRunner(3).Execute(context.Background(), srv.URL, json.RawMessage(`{"city":"Berlin"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if string(gotBody) != `{"city":"Berlin"}` {
		t.Errorf("upstream got body %s", gotBody)
	}
	if gotType != "application/json" {
		t.Errorf("upstream got content type %q", gotType)
	}
	if string(res.Body) != `{"temp":21}` || res.ContentType != "application/json" || res.Status != http.StatusOK {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestExecuteUpstreamErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "client error", status: http.StatusNotFound, body: "no such city", wantMsg: "External API Error: 404 no such city"},
		{name: "server error", status: http.StatusInternalServerError, body: "boom", wantMsg: "External API Error: 500 boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newRunner(3).Execute(context.Background(), srv.URL, json.RawMessage(`{}`))
			if !errors.Is(err, domain.ErrUpstream) {
				t.Fatalf("expected ErrUpstream, got %v", err)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("message = %q, want %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestExecuteTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newRunner(3).Execute(context.Background(), url, json.RawMessage(`{}`))
	var ue *domain.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *domain.UpstreamError, got %v", err)
	}
	if ue.Status != 0 {
		t.Errorf("expected status 0 for transport failure, got %d", ue.Status)
	}
}

func TestExecuteBreakerOpensOnServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	r := newRunner(2)
	for i := 0; i < 2; i++ {
		_, _ = r.Execute(context.Background(), srv.URL, json.RawMessage(`{}`))
	}
	_, err := r.Execute(context.Background(), srv.URL, json.RawMessage(`{}`))
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected breaker to block the third call, upstream saw %d", calls)
	}
}

func TestExecuteClientErrorsDoNotTripBreaker(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	r := newRunner(1)
	for i := 0; i < 3; i++ {
		_, _ = r.Execute(context.Background(), srv.URL, json.RawMessage(`{}`))
	}
	if calls != 3 {
		t.Errorf("expected all 3 calls to reach upstream, got %d", calls)
	}
}

func TestExecuteResponseTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 2<<10))
	}))
	defer srv.Close()

	_, err := newRunner(3).Execute(context.Background(), srv.URL, json.RawMessage(`{}`))
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestExecuteInvalidURL(t *testing.T) {
	_, err := newRunner(3).Execute(context.Background(), "not a url", json.RawMessage(`{}`))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
