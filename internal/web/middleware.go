package web

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/Shugur-Network/edge-relay/internal/logger"
	"go.uber.org/zap"
)

// SecurityHeaders defines the security headers to be applied to responses
type SecurityHeaders struct {
	CSP                 string
	XContentTypeOptions string
	ReferrerPolicy      string
}

// APISecurityHeaders returns headers for JSON endpoints that never render HTML.
func APISecurityHeaders() *SecurityHeaders {
	return &SecurityHeaders{
		CSP:                 "default-src 'none'; frame-ancestors 'none'",
		XContentTypeOptions: "nosniff",
		ReferrerPolicy:      "no-referrer",
	}
}

// Apply applies the security headers directly to a ResponseWriter
func (sh *SecurityHeaders) Apply(w http.ResponseWriter) {
	if sh.CSP != "" {
		w.Header().Set("Content-Security-Policy", sh.CSP)
	}
	if sh.XContentTypeOptions != "" {
		w.Header().Set("X-Content-Type-Options", sh.XContentTypeOptions)
	}
	if sh.ReferrerPolicy != "" {
		w.Header().Set("Referrer-Policy", sh.ReferrerPolicy)
	}
}

// SecurityMiddleware wraps an http.Handler with security headers
func SecurityMiddleware(headers *SecurityHeaders) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers.Apply(w)
			next.ServeHTTP(w, r)
		})
	}
}

// InputValidation bounds request line and header sizes before any handler runs.
type InputValidation struct {
	MaxPathLength   int
	MaxQueryLength  int
	MaxHeaderLength int
}

// DefaultInputValidation returns the limits used on the relay port.
func DefaultInputValidation() *InputValidation {
	return &InputValidation{
		MaxPathLength:   1024,
		MaxQueryLength:  1024,
		MaxHeaderLength: 8192,
	}
}

// ValidationError represents an input validation error
type ValidationError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateRequest validates an HTTP request against the input validation rules
func (iv *InputValidation) ValidateRequest(r *http.Request) error {
	if len(r.URL.Path) > iv.MaxPathLength {
		return &ValidationError{Type: "path_length", Message: "Request path too long", Field: "url_path"}
	}
	if len(r.URL.RawQuery) > iv.MaxQueryLength {
		return &ValidationError{Type: "query_length", Message: "Query string too long", Field: "query_string"}
	}

	for name, values := range r.Header {
		for _, value := range values {
			if len(value) > iv.MaxHeaderLength {
				return &ValidationError{Type: "header_length", Message: "Header value too long", Field: name}
			}
		}
	}

	// Client IP extraction trusts these, so they must be clean.
	for _, name := range []string{"X-Forwarded-For", "X-Real-IP", "User-Agent"} {
		if err := validateHeaderValue(name, r.Header.Get(name)); err != nil {
			return err
		}
	}
	return nil
}

func validateHeaderValue(name, value string) error {
	if value == "" {
		return nil
	}
	if !utf8.ValidString(value) {
		return &ValidationError{Type: "invalid_encoding", Message: "Invalid character encoding in header", Field: name}
	}
	if strings.ContainsAny(value, "\x00\r\n") {
		return &ValidationError{Type: "header_injection", Message: "Potential header injection detected", Field: name}
	}
	return nil
}

// ValidationMiddleware wraps an http.Handler with input validation
func ValidationMiddleware(validation *InputValidation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := validation.ValidateRequest(r); err != nil {
				if validationErr, ok := err.(*ValidationError); ok {
					logger.Warn("Input validation failed",
						zap.String("type", validationErr.Type),
						zap.String("field", validationErr.Field),
						zap.String("client_ip", r.RemoteAddr),
						zap.String("user_agent", r.Header.Get("User-Agent")),
					)
				}
				http.Error(w, "Bad Request", http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
