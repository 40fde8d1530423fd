package health

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"go.uber.org/zap"
)

// HealthStatus represents the overall health status
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus represents the status of a specific component
type ComponentStatus struct {
	Name    string                 `json:"name"`
	Status  HealthStatus           `json:"status"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthResponse represents the complete health check response
type HealthResponse struct {
	Status        HealthStatus       `json:"status"`
	Timestamp     time.Time          `json:"timestamp"`
	Version       string             `json:"version"`
	Uptime        string             `json:"uptime"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Connections   int                `json:"connections"`
	StoredEvents  int                `json:"stored_events"`
	Components    []*ComponentStatus `json:"components"`
}

// StoreStats is what the health check needs to know about the event store.
type StoreStats struct {
	StoredEvents  int
	MaxEvents     int
	Tombstones    int
	Subscriptions int
}

// StoreInterface reports event store occupancy.
type StoreInterface interface {
	HealthStats() StoreStats
}

// NodeInterface defines the node operations needed for health checks
type NodeInterface interface {
	GetConnectionCount() int
	GetStartTime() time.Time
}

// HealthChecker assembles the /health response.
type HealthChecker struct {
	store   StoreInterface
	node    NodeInterface
	logger  *zap.Logger
	version string
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(store StoreInterface, node NodeInterface, logger *zap.Logger, version string) *HealthChecker {
	return &HealthChecker{
		store:   store,
		node:    node,
		logger:  logger.Named("health"),
		version: version,
	}
}

// CheckHealth runs every component check.
func (h *HealthChecker) CheckHealth() *HealthResponse {
	stats := h.store.HealthStats()
	components := []*ComponentStatus{
		h.checkStore(stats),
		h.checkMemory(),
		h.checkSystemResources(),
	}

	uptime := time.Since(h.node.GetStartTime())
	return &HealthResponse{
		Status:        determineOverallStatus(components),
		Timestamp:     time.Now().UTC(),
		Version:       h.version,
		Uptime:        formatUptime(uptime),
		UptimeSeconds: int64(uptime.Seconds()),
		Connections:   h.node.GetConnectionCount(),
		StoredEvents:  stats.StoredEvents,
		Components:    components,
	}
}

// checkStore flags a store running at capacity, where every insert evicts.
func (h *HealthChecker) checkStore(stats StoreStats) *ComponentStatus {
	status := &ComponentStatus{
		Name: "store",
		Details: map[string]interface{}{
			"stored_events": stats.StoredEvents,
			"max_events":    stats.MaxEvents,
			"tombstones":    stats.Tombstones,
			"subscriptions": stats.Subscriptions,
		},
	}

	utilization := 0.0
	if stats.MaxEvents > 0 {
		utilization = float64(stats.StoredEvents) / float64(stats.MaxEvents) * 100
	}
	status.Details["utilization_percent"] = utilization

	if utilization >= 100 {
		status.Status = StatusDegraded
		status.Message = "Store full, oldest events are being evicted"
	} else {
		status.Status = StatusHealthy
		status.Message = fmt.Sprintf("Store at %.1f%% capacity", utilization)
	}
	return status
}

// checkMemory checks memory usage
func (h *HealthChecker) checkMemory() *ComponentStatus {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	allocMB := float64(m.Alloc) / 1024 / 1024
	status := &ComponentStatus{
		Name: "memory",
		Details: map[string]interface{}{
			"alloc_mb": allocMB,
			"sys_mb":   float64(m.Sys) / 1024 / 1024,
			"heap_mb":  float64(m.HeapAlloc) / 1024 / 1024,
			"num_gc":   m.NumGC,
		},
	}

	// Sized for small hosts
	const (
		memoryWarningMB  = 128
		memoryCriticalMB = 256
	)

	switch {
	case allocMB > memoryCriticalMB:
		status.Status = StatusUnhealthy
		status.Message = fmt.Sprintf("High memory usage: %.1f MB", allocMB)
	case allocMB > memoryWarningMB:
		status.Status = StatusDegraded
		status.Message = fmt.Sprintf("Elevated memory usage: %.1f MB", allocMB)
	default:
		status.Status = StatusHealthy
		status.Message = fmt.Sprintf("Memory usage normal: %.1f MB", allocMB)
	}
	return status
}

// checkSystemResources checks system-level resources
func (h *HealthChecker) checkSystemResources() *ComponentStatus {
	goroutineCount := runtime.NumGoroutine()
	status := &ComponentStatus{
		Name: "system",
		Details: map[string]interface{}{
			"goroutines": goroutineCount,
			"cpus":       runtime.NumCPU(),
		},
	}

	const (
		goroutineWarning  = 1000
		goroutineCritical = 5000
	)

	switch {
	case goroutineCount > goroutineCritical:
		status.Status = StatusUnhealthy
		status.Message = fmt.Sprintf("High goroutine count: %d", goroutineCount)
	case goroutineCount > goroutineWarning:
		status.Status = StatusDegraded
		status.Message = fmt.Sprintf("Elevated goroutine count: %d", goroutineCount)
	default:
		status.Status = StatusHealthy
		status.Message = fmt.Sprintf("System resources normal: %d goroutines", goroutineCount)
	}
	return status
}

// determineOverallStatus is the worst component status.
func determineOverallStatus(components []*ComponentStatus) HealthStatus {
	overall := StatusHealthy
	for _, comp := range components {
		switch comp.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}

// formatUptime formats uptime duration as a human-readable string
func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// HandleHealth is the HTTP handler for health checks
func (h *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := h.CheckHealth()
	statusCode := http.StatusOK
	if resp.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
		return
	}

	h.logger.Debug("Health check completed",
		zap.String("status", string(resp.Status)),
		zap.Int("status_code", statusCode),
		zap.String("client_ip", r.RemoteAddr))
}
