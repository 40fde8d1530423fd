package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/Shugur-Network/edge-relay/internal/health"
	"github.com/Shugur-Network/edge-relay/internal/metrics"
	"go.uber.org/zap"
)

// StatsSource reports the store and registry sizes.
type StatsSource interface {
	HealthStats() health.StoreStats
}

// StatsData is the live counter snapshot served on /api/stats.
type StatsData struct {
	ActiveConnections int64            `json:"active_connections"`
	MessagesProcessed int64            `json:"messages_processed"`
	MessagesSent      int64            `json:"messages_sent"`
	StoredEvents      int              `json:"stored_events"`
	MaxEvents         int              `json:"max_events"`
	Tombstones        int              `json:"tombstones"`
	Subscriptions     int              `json:"active_subscriptions"`
	StoreUtilization  float64          `json:"store_utilization"`
	MemoryUsage       map[string]int64 `json:"memory_usage"`
}

// StatsHandler serves the stats API endpoint.
type StatsHandler struct {
	source    StatsSource
	liveSince time.Time
	logger    *zap.Logger
}

// NewStatsHandler creates a StatsHandler over source.
func NewStatsHandler(source StatsSource, liveSince time.Time, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{source: source, liveSince: liveSince, logger: logger}
}

// ServeHTTP implements http.Handler.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	APISecurityHeaders().Apply(w)

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodGet:
	default:
		w.Header().Set("Allow", "GET, OPTIONS")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := struct {
		Stats     *StatsData `json:"stats"`
		LiveSince string     `json:"live_since"`
	}{
		Stats:     h.statsData(),
		LiveSince: h.liveSince.UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode stats response", zap.Error(err))
	}
}

func (h *StatsHandler) statsData() *StatsData {
	store := h.source.HealthStats()

	var utilization float64
	if store.MaxEvents > 0 {
		utilization = float64(store.StoredEvents) / float64(store.MaxEvents) * 100
	}

	return &StatsData{
		ActiveConnections: metrics.GetActiveConnectionsCount(),
		MessagesProcessed: metrics.GetMessagesProcessedCount(),
		MessagesSent:      metrics.GetMessagesSentCount(),
		StoredEvents:      store.StoredEvents,
		MaxEvents:         store.MaxEvents,
		Tombstones:        store.Tombstones,
		Subscriptions:     store.Subscriptions,
		StoreUtilization:  utilization,
		MemoryUsage:       memoryUsage(),
	}
}

func memoryUsage() map[string]int64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return map[string]int64{
		"alloc":      int64(m.Alloc),
		"sys":        int64(m.Sys),
		"heap_inuse": int64(m.HeapInuse),
		"num_gc":     int64(m.NumGC),
		"goroutines": int64(runtime.NumGoroutine()),
	}
}
