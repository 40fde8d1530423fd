package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Shugur-Network/edge-relay/internal/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixedStats health.StoreStats

func (f fixedStats) HealthStats() health.StoreStats { return health.StoreStats(f) }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestValidationMiddleware(t *testing.T) {
	h := ValidationMiddleware(DefaultInputValidation())(okHandler())

	tests := []struct {
		name   string
		mutate func(r *http.Request)
		want   int
	}{
		{"plain", func(r *http.Request) {}, http.StatusOK},
		{"long path", func(r *http.Request) { r.URL.Path = "/" + strings.Repeat("a", 2000) }, http.StatusBadRequest},
		{"long query", func(r *http.Request) { r.URL.RawQuery = "q=" + strings.Repeat("a", 2000) }, http.StatusBadRequest},
		{"long header", func(r *http.Request) { r.Header.Set("X-Big", strings.Repeat("a", 9000)) }, http.StatusBadRequest},
		{"header injection", func(r *http.Request) { r.Header["X-Forwarded-For"] = []string{"1.2.3.4\r\nX: y"} }, http.StatusBadRequest},
		{"bad encoding", func(r *http.Request) { r.Header["User-Agent"] = []string{"\xff\xfe"} }, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.mutate(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestSecurityMiddleware(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityMiddleware(APISecurityHeaders())(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")
}

func TestStatsHandler(t *testing.T) {
	src := fixedStats{StoredEvents: 25, MaxEvents: 100, Tombstones: 3, Subscriptions: 2}
	h := NewStatsHandler(src, time.Unix(1_700_000_000, 0), zap.NewNop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Stats     StatsData `json:"stats"`
		LiveSince string    `json:"live_since"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 25, body.Stats.StoredEvents)
	assert.Equal(t, 3, body.Stats.Tombstones)
	assert.Equal(t, 2, body.Stats.Subscriptions)
	assert.InDelta(t, 25.0, body.Stats.StoreUtilization, 0.001)
	assert.Contains(t, body.Stats.MemoryUsage, "heap_inuse")
	assert.Equal(t, "2023-11-14T22:13:20Z", body.LiveSince)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stats", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/stats", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
