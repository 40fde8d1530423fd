package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Shugur-Network/edge-relay/internal/logger"
	"github.com/Shugur-Network/edge-relay/internal/metrics"
	"go.uber.org/zap"
)

// ErrorResponse represents the JSON response format for errors
type ErrorResponse struct {
	Error struct {
		Type      ErrorType `json:"type"`
		Code      string    `json:"code"`
		Message   string    `json:"message"`
		Timestamp time.Time `json:"timestamp"`
	} `json:"error"`
}

// ErrorMiddleware handles error processing and response formatting
type ErrorMiddleware struct {
	logger *zap.Logger
}

// NewErrorMiddleware creates a new error middleware instance
func NewErrorMiddleware() *ErrorMiddleware {
	return &ErrorMiddleware{
		logger: logger.New("error_middleware"),
	}
}

// HandleError logs err, counts it and writes a JSON error response.
func (em *ErrorMiddleware) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := As(err)
	if !ok {
		appErr = Wrap(err, ErrorTypeInternal, "INTERNAL_ERROR", "An internal error occurred").
			WithSeverity(SeverityHigh)
	}

	em.logError(appErr, r)
	metrics.ErrorsCount.WithLabelValues(string(appErr.Type)).Inc()

	var response ErrorResponse
	response.Error.Type = appErr.Type
	response.Error.Code = appErr.Code
	response.Error.Message = appErr.Message
	response.Error.Timestamp = appErr.Timestamp

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(getHTTPStatusCode(appErr.Type))
	if encodeErr := json.NewEncoder(w).Encode(response); encodeErr != nil {
		em.logger.Error("Failed to encode error response", zap.Error(encodeErr))
	}
}

func (em *ErrorMiddleware) logError(err *AppError, r *http.Request) {
	fields := []zap.Field{
		zap.String("error_type", string(err.Type)),
		zap.String("error_code", err.Code),
		zap.String("severity", string(err.Severity)),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", r.RemoteAddr),
	}
	if err.Details != "" {
		fields = append(fields, zap.String("details", err.Details))
	}
	if err.Severity == SeverityHigh || err.Severity == SeverityCritical {
		fields = append(fields, zap.String("stack_trace", err.StackTrace))
	}

	switch err.Severity {
	case SeverityLow:
		em.logger.Info(err.Message, fields...)
	case SeverityMedium:
		em.logger.Warn(err.Message, fields...)
	default:
		em.logger.Error(err.Message, fields...)
	}
}

func getHTTPStatusCode(errorType ErrorType) int {
	switch errorType {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeAuthorization, ErrorTypePolicy:
		return http.StatusForbidden
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RecoveryMiddleware is a middleware that recovers from panics and converts them to structured errors
func (em *ErrorMiddleware) RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}
				err, ok := recovered.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", recovered)
				}
				em.HandleError(w, r, Wrap(err, ErrorTypeInternal, "PANIC_RECOVERED", "An unexpected error occurred").
					WithSeverity(SeverityCritical))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
