package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Shugur-Network/edge-relay/internal/config"
	"github.com/Shugur-Network/edge-relay/internal/domain"
	"github.com/Shugur-Network/edge-relay/internal/relay/nips"
	"github.com/gorilla/websocket"
	nip11 "github.com/nbd-wtf/go-nostr/nip11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNode struct {
	cfg   *config.Config
	core  *Core
	mu    sync.Mutex
	conns map[string]domain.Client
	start time.Time
}

func (n *fakeNode) RegisterConn(c domain.Client) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.conns[c.ID()] = c
}

func (n *fakeNode) UnregisterConn(c domain.Client) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.conns, c.ID())
}

func (n *fakeNode) GetConnectionCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.conns)
}

func (n *fakeNode) Config() *config.Config  { return n.cfg }
func (n *fakeNode) GetStartTime() time.Time { return n.start }

func newTestServer(t *testing.T, tweaks ...func(*config.Config)) (*httptest.Server, *fakeNode) {
	t.Helper()
	cfg := testConfig(t)
	for _, tweak := range tweaks {
		tweak(cfg)
	}
	clk := testClock()
	core := newTestCore(t, cfg, clk)
	node := &fakeNode{cfg: cfg, core: core, conns: make(map[string]domain.Client), start: time.Now()}

	info := nips.InformationDocument{
		RelayInformationDocument: nip11.RelayInformationDocument{
			Name:          cfg.Relay.Name,
			SupportedNIPs: []any{1, 9, 11, 13, 40},
		},
		Limitation: &nips.Limitation{
			RelayLimitationDocument: nip11.RelayLimitationDocument{MaxSubscriptions: cfg.Policy.MaxSubscriptions},
			MaxFilters:              cfg.Policy.MaxFilters,
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(NewServer(cfg, node, core, info, clk).Handler(ctx))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv, node
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func read(t *testing.T, ws *websocket.Conn) []interface{} {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg []interface{}
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func TestServerRelayInformation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Accept")
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "GET")

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "edge-relay", body["name"])
	assert.NotEmpty(t, body["supported_nips"])
	limitation, ok := body["limitation"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(8), limitation["max_subscriptions"])

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/nostr+json")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, "application/nostr+json", resp2.Header.Get("Content-Type"))
	assert.Equal(t, "*", resp2.Header.Get("Access-Control-Allow-Origin"))
}

func TestServerPreflightAndHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body, "uptime")
	assert.Contains(t, body, "connections")
	assert.Contains(t, body, "stored_events")

	resp, err = http.Get(srv.URL + "/api/stats")
	require.NoError(t, err)
	var stats map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	resp.Body.Close()
	assert.Contains(t, stats, "stats")
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, err = http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerPublishSubscribe(t *testing.T) {
	srv, node := newTestServer(t)
	subscriber := dial(t, srv)
	publisher := dial(t, srv)

	require.NoError(t, subscriber.WriteJSON([]interface{}{"REQ", "notes", map[string]interface{}{"kinds": []int{1}}}))
	assert.Equal(t, []interface{}{"EOSE", "notes"}, read(t, subscriber))

	evt := newSigner(t).event(t, 1, testNow, nil, "over the wire")
	require.NoError(t, publisher.WriteJSON([]interface{}{"EVENT", evt}))
	assert.Equal(t, []interface{}{"OK", evt.ID, true, ""}, read(t, publisher))

	msg := read(t, subscriber)
	require.Len(t, msg, 3)
	assert.Equal(t, "EVENT", msg[0])
	assert.Equal(t, "notes", msg[1])
	assert.Equal(t, evt.ID, msg[2].(map[string]interface{})["id"])

	require.NoError(t, publisher.WriteMessage(websocket.TextMessage, []byte("garbage")))
	assert.Equal(t, []interface{}{"NOTICE", "invalid message format"}, read(t, publisher))

	require.NoError(t, subscriber.WriteJSON([]interface{}{"CLOSE", "notes"}))
	assert.Equal(t, []interface{}{"CLOSED", "notes", ""}, read(t, subscriber))

	assert.Equal(t, 2, node.GetConnectionCount())
}

func TestServerTeardownReleasesConnection(t *testing.T) {
	srv, node := newTestServer(t)
	ws := dial(t, srv)
	require.NoError(t, ws.WriteJSON([]interface{}{"REQ", "s", map[string]interface{}{}}))
	read(t, ws)
	require.Equal(t, 1, node.GetConnectionCount())
	require.Equal(t, 1, node.core.Stats().Subscriptions)

	require.NoError(t, ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	_ = ws.Close()

	assert.Eventually(t, func() bool {
		return node.GetConnectionCount() == 0 && node.core.Stats().Subscriptions == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServerAbruptDisconnectDropsSubscriptions(t *testing.T) {
	srv, node := newTestServer(t)
	ws := dial(t, srv)
	for _, subID := range []string{"a", "b", "c"} {
		require.NoError(t, ws.WriteJSON([]interface{}{"REQ", subID, map[string]interface{}{"kinds": []int{1}}}))
		assert.Equal(t, []interface{}{"EOSE", subID}, read(t, ws))
	}
	require.Equal(t, 3, node.core.Stats().Subscriptions)

	// No close frame: the TCP connection just goes away.
	require.NoError(t, ws.UnderlyingConn().Close())

	assert.Eventually(t, func() bool {
		return node.GetConnectionCount() == 0 && node.core.Stats().Subscriptions == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServerFrameFloodGuard(t *testing.T) {
	srv, node := newTestServer(t, func(cfg *config.Config) {
		cfg.Relay.FrameRate = 1
		cfg.Relay.FrameBurst = 1
	})
	ws := dial(t, srv)

	for i := 0; i < 3; i++ {
		require.NoError(t, ws.WriteJSON([]interface{}{"CLOSE", "s"}))
	}
	assert.Equal(t, []interface{}{"CLOSED", "s", ""}, read(t, ws))
	assert.Equal(t, []interface{}{"NOTICE", "rate-limited: slow down"}, read(t, ws))
	assert.Equal(t, []interface{}{"NOTICE", "rate-limited: slow down"}, read(t, ws))
	assert.Equal(t, 1, node.GetConnectionCount())

	// Once the bucket refills the same socket is served again.
	time.Sleep(1100 * time.Millisecond)
	require.NoError(t, ws.WriteJSON([]interface{}{"REQ", "later", map[string]interface{}{}}))
	assert.Equal(t, []interface{}{"EOSE", "later"}, read(t, ws))
}

func TestServerFrameFloodGuardDisabled(t *testing.T) {
	srv, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Relay.FrameRate = 0
		cfg.Relay.FrameBurst = 1
	})
	ws := dial(t, srv)

	const frames = 20
	for i := 0; i < frames; i++ {
		require.NoError(t, ws.WriteJSON([]interface{}{"CLOSE", "s"}))
	}
	for i := 0; i < frames; i++ {
		assert.Equal(t, []interface{}{"CLOSED", "s", ""}, read(t, ws))
	}
}
