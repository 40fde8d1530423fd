package relay

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Shugur-Network/edge-relay/internal/config"
	"github.com/Shugur-Network/edge-relay/internal/storage"
	"github.com/benbjohnson/clock"
	nostr "github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"
)

const testNow = 1_700_000_000

// fakeClient records every queued frame. A positive capacity bounds the
// number of batches it accepts.
type fakeClient struct {
	id       string
	capacity int

	mu      sync.Mutex
	batches int
	frames  [][]byte
	closed  bool
}

func newFakeClient(id string) *fakeClient {
	return &fakeClient{id: id}
}

func (f *fakeClient) ID() string         { return f.id }
func (f *fakeClient) RemoteAddr() string { return "127.0.0.1" }

func (f *fakeClient) Send(batch [][]byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || (f.capacity > 0 && f.batches >= f.capacity) {
		return false
	}
	f.batches++
	f.frames = append(f.frames, batch...)
	return true
}

func (f *fakeClient) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeClient) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// messages decodes the recorded frames and clears them.
func (f *fakeClient) messages(t *testing.T) [][]interface{} {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]interface{}, 0, len(f.frames))
	for _, raw := range f.frames {
		var msg []interface{}
		require.NoError(t, json.Unmarshal(raw, &msg))
		out = append(out, msg)
	}
	f.frames = nil
	return out
}

func labels(msgs [][]interface{}) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i], _ = m[0].(string)
	}
	return out
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	return cfg
}

func testClock() *clock.Mock {
	mock := clock.NewMock()
	mock.Set(time.Unix(testNow, 0))
	return mock
}

func newTestCore(t *testing.T, cfg *config.Config, clk clock.Clock) *Core {
	t.Helper()
	store, err := storage.NewFromConfig(clk, cfg.Storage)
	require.NoError(t, err)
	return NewCore(store, NewEventValidator(clk, cfg.Policy), cfg.Policy)
}

type signer struct {
	sk string
	pk string
}

func newSigner(t *testing.T) signer {
	t.Helper()
	sk := nostr.GeneratePrivateKey()
	pk, err := nostr.GetPublicKey(sk)
	require.NoError(t, err)
	return signer{sk: sk, pk: pk}
}

func (s signer) event(t *testing.T, kind int, createdAt int64, tags nostr.Tags, content string) *nostr.Event {
	t.Helper()
	evt := &nostr.Event{
		PubKey:    s.pk,
		CreatedAt: nostr.Timestamp(createdAt),
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	}
	if evt.Tags == nil {
		evt.Tags = nostr.Tags{}
	}
	require.NoError(t, evt.Sign(s.sk))
	return evt
}
