package errors

import (
	"fmt"

	"github.com/gorilla/websocket"
)

// Relay-specific error constructors

// WebSocketError classifies a transport failure on a client socket.
func WebSocketError(operation string, cause error) *AppError {
	var code string
	var severity ErrorSeverity

	switch {
	case websocket.IsCloseError(cause, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived):
		code, severity = "WS_NORMAL_CLOSURE", SeverityLow
	case websocket.IsCloseError(cause, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		code, severity = "WS_ABNORMAL_CLOSURE", SeverityLow
	case websocket.IsUnexpectedCloseError(cause):
		code, severity = "WS_UNEXPECTED_CLOSURE", SeverityMedium
	default:
		code, severity = "WS_ERROR", SeverityMedium
	}

	return Wrap(cause, ErrorTypeNetwork, code, fmt.Sprintf("WebSocket %s failed", operation)).
		WithSeverity(severity)
}

// NetworkError wraps a listener or socket failure.
func NetworkError(operation string, cause error) *AppError {
	return Wrap(cause, ErrorTypeNetwork, "NETWORK_ERROR", fmt.Sprintf("network %s failed", operation)).
		WithSeverity(SeverityHigh)
}

// ConfigurationError creates an error for configuration issues
func ConfigurationError(field, reason string) *AppError {
	return New(ErrorTypeInternal, "CONFIGURATION_ERROR", fmt.Sprintf("configuration error in %s: %s", field, reason)).
		WithSeverity(SeverityCritical)
}

// StorageError wraps a failed store mutation.
func StorageError(operation string, cause error) *AppError {
	return Wrap(cause, ErrorTypeStorage, "STORAGE_ERROR", fmt.Sprintf("storage %s failed", operation)).
		WithSeverity(SeverityHigh)
}

// IsRecoverable reports whether the connection can keep serving after err.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	appErr, ok := As(err)
	if !ok {
		return false
	}
	switch appErr.Type {
	case ErrorTypeValidation, ErrorTypeAuthorization, ErrorTypeRateLimit, ErrorTypePolicy:
		return true
	default:
		return appErr.Severity == SeverityLow
	}
}
