package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInactiveLoggerIsNop(t *testing.T) {
	mu.Lock()
	active = false
	mu.Unlock()

	assert.NotPanics(t, func() { Info("dropped") })
	assert.False(t, New("x").Core().Enabled(zap.ErrorLevel))
	assert.Error(t, UpdateLevel("debug"))
}

func TestInitJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(
		WithLevel("info"),
		WithFormat("json"),
		WithWriter(&buf),
		WithVersion("test"),
		WithComponent("relay"),
	))
	t.Cleanup(func() { _ = Shutdown() })

	Debug("hidden")
	Info("shown", zap.Int("n", 1))
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"version":"test"`)

	require.NoError(t, UpdateLevel("debug"))
	Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(WithFormat("json"), WithWriter(&buf)))
	t.Cleanup(func() { _ = Shutdown() })

	ctx := WithConnID(context.Background(), "c-1")
	FromContext(ctx).Info("tagged")
	assert.Contains(t, buf.String(), `"conn_id":"c-1"`)

	custom := zap.NewNop()
	assert.Same(t, custom, FromContext(WithLogger(ctx, custom)))
}

func TestInitRejectsBadInput(t *testing.T) {
	assert.Error(t, Init(WithFormat("xml")))
	assert.Error(t, Init(WithLevel("loud")))
}
