package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorIsMatchesByCode(t *testing.T) {
	sentinel := Reject(ErrorTypeValidation, "BAD_SIG", "invalid: bad signature")
	other := Reject(ErrorTypeValidation, "BAD_SIG", "invalid: bad signature").WithDetails("event abc")

	wrapped := fmt.Errorf("submit: %w", other)
	assert.True(t, stderrors.Is(wrapped, sentinel))
	assert.False(t, stderrors.Is(wrapped, Reject(ErrorTypeValidation, "TOO_OLD", "")))

	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "invalid: bad signature", got.Message)
	assert.Equal(t, ErrorTypeValidation, TypeOf(wrapped))
	assert.Equal(t, ErrorTypeInternal, TypeOf(stderrors.New("plain")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("disk on fire")
	err := StorageError("put", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk on fire")
	assert.NotEmpty(t, err.StackTrace)
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(nil))
	assert.True(t, IsRecoverable(Reject(ErrorTypeRateLimit, "RATE", "rate-limited")))
	assert.False(t, IsRecoverable(NetworkError("read", stderrors.New("reset"))))
	assert.False(t, IsRecoverable(stderrors.New("plain")))
}

func TestWebSocketErrorCodes(t *testing.T) {
	normal := WebSocketError("read", &websocket.CloseError{Code: websocket.CloseNormalClosure})
	assert.Equal(t, "WS_NORMAL_CLOSURE", normal.Code)
	assert.Equal(t, SeverityLow, normal.Severity)

	abnormal := WebSocketError("read", &websocket.CloseError{Code: websocket.CloseAbnormalClosure})
	assert.Equal(t, "WS_ABNORMAL_CLOSURE", abnormal.Code)

	other := WebSocketError("read", stderrors.New("boom"))
	assert.Equal(t, "WS_ERROR", other.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := NewErrorMiddleware().RecoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("oops")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "PANIC_RECOVERED", body.Error.Code)
}
