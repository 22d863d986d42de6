package middleware

import (
	"bytes"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/Strob0t/TuneForge/internal/port/cache"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotency-Replayed"
	maxIdempotencyBody   = 1 << 20 // 1 MB
	maxIdempotencyKeyLen = 255
)

// replayedHeaders are the response headers stored alongside a cached body.
var replayedHeaders = []string{"Content-Type", "Content-Disposition", "Location"}

// idempotencyEntry stores a cached HTTP response.
type idempotencyEntry struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       []byte            `json:"body"`
}

// Idempotency returns middleware that replays the stored response of a
// POST/PUT/PATCH/DELETE request repeated with the same Idempotency-Key.
// Keys are scoped to the caller's IP, method and path. Server errors are
// not stored so the client can retry them.
func Idempotency(store cache.Cache, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(headerIdempotencyKey)
			if key == "" || len(key) > maxIdempotencyKeyLen {
				next.ServeHTTP(w, r)
				return
			}
			storeKey := idempotencyStoreKey(RequestIP(r), r.Method, r.URL.Path, key)

			if cached, ok, err := cache.GetJSON[idempotencyEntry](r.Context(), store, storeKey); err != nil {
				slog.Warn("idempotency lookup failed", "error", err)
			} else if ok {
				for k, v := range cached.Headers {
					w.Header().Set(k, v)
				}
				w.Header().Set(headerReplayed, "true")
				w.WriteHeader(cached.StatusCode)
				_, _ = w.Write(cached.Body)
				return
			}

			rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK, body: &bytes.Buffer{}}
			next.ServeHTTP(rec, r)

			if rec.statusCode >= http.StatusInternalServerError || rec.body.Len() > maxIdempotencyBody {
				return
			}
			entry := idempotencyEntry{
				StatusCode: rec.statusCode,
				Headers:    make(map[string]string),
				Body:       rec.body.Bytes(),
			}
			for _, h := range replayedHeaders {
				if v := w.Header().Get(h); v != "" {
					entry.Headers[h] = v
				}
			}
			if err := cache.SetJSON(r.Context(), store, storeKey, entry, ttl); err != nil {
				slog.Warn("idempotency store failed", "error", err)
			}
		})
	}
}

// idempotencyStoreKey scopes a client key to the caller's IP, method and
// path. The digest keeps store keys short and free of raw client input.
func idempotencyStoreKey(ip, method, path, key string) string {
	sum := blake2b.Sum256([]byte(ip + "\x00" + method + "\x00" + path + "\x00" + key))
	return "idem:" + hex.EncodeToString(sum[:])
}

// responseRecorder wraps http.ResponseWriter to capture the response.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *responseRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

