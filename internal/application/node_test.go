package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Shugur-Network/edge-relay/internal/config"
	"github.com/benbjohnson/clock"
	nostr "github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Unix(1_700_000_000, 0)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Relay.WSAddr = "127.0.0.1:0"
	cfg.Relay.DataDir = t.TempDir()
	cfg.Metrics.Enabled = false
	return cfg
}

func newTestNode(t *testing.T, cfg *config.Config) (*Node, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(testNow)
	node, err := New(context.Background(), cfg, WithClock(clk))
	require.NoError(t, err)
	t.Cleanup(node.Shutdown)
	return node, clk
}

type stubClient struct {
	id     string
	closed bool
}

func (c *stubClient) ID() string               { return c.id }
func (c *stubClient) Send(batch [][]byte) bool { return !c.closed }
func (c *stubClient) Close()                   { c.closed = true }
func (c *stubClient) RemoteAddr() string       { return "127.0.0.1" }

func signedEvent(t *testing.T, tags nostr.Tags) *nostr.Event {
	t.Helper()
	evt := &nostr.Event{
		Kind:      1,
		CreatedAt: nostr.Timestamp(testNow.Unix()),
		Tags:      tags,
		Content:   "maintenance",
	}
	require.NoError(t, evt.Sign(nostr.GeneratePrivateKey()))
	return evt
}

func TestNodeLifecycle(t *testing.T) {
	node, _ := newTestNode(t, testConfig(t))

	require.NoError(t, node.Start(context.Background()))
	assert.Equal(t, 0, node.GetConnectionCount())
	assert.False(t, node.GetStartTime().IsZero())

	node.Shutdown()
	select {
	case <-node.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("node did not stop")
	}
	assert.Error(t, node.Start(context.Background()))
	assert.False(t, node.WorkerPool.AddJob(func() {}))
}

func TestNodeTracksConnections(t *testing.T) {
	node, _ := newTestNode(t, testConfig(t))
	a, b := &stubClient{id: "a"}, &stubClient{id: "b"}

	node.RegisterConn(a)
	node.RegisterConn(b)
	assert.Equal(t, 2, node.GetConnectionCount())

	node.UnregisterConn(a)
	assert.Equal(t, 1, node.GetConnectionCount())

	node.Shutdown()
	assert.True(t, b.closed)
	assert.False(t, a.closed)
}

func TestNodeIdentityIsStable(t *testing.T) {
	cfg := testConfig(t)
	first, _ := newTestNode(t, cfg)
	second, _ := newTestNode(t, cfg)

	assert.Equal(t, first.Identity().PublicKey, second.Identity().PublicKey)
	assert.Equal(t, first.Identity().PublicKey, first.Info().PubKey)
	assert.Equal(t, cfg.Policy.MaxSubscriptions, first.Info().Limitation.MaxSubscriptions)
}

func TestMaintenancePurgesExpiredEvents(t *testing.T) {
	cfg := testConfig(t)
	node, clk := newTestNode(t, cfg)
	require.NoError(t, node.Start(context.Background()))

	expiring := signedEvent(t, nostr.Tags{{"expiration", fmt.Sprint(testNow.Unix() + 30)}})
	lasting := signedEvent(t, nil)
	for _, evt := range []*nostr.Event{expiring, lasting} {
		accepted, reason := node.Core().SubmitEvent(evt)
		require.True(t, accepted, reason)
	}
	require.Equal(t, 2, node.Core().Stats().StoredEvents)

	clk.Add(cfg.Storage.PurgeInterval)
	assert.Eventually(t, func() bool {
		return node.Core().Stats().StoredEvents == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestNewRejectsBadSecretKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Relay.SecretKey = "00"
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}
