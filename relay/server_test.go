package relay

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	atasmt5 "github.com/WolfMoss/atas-mt5"
)

func wsAddr(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

// dialWS opens a raw client connection and consumes the welcome frame.
func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	readFrame(t, conn)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return data
}

func waitFrame(t *testing.T, frames <-chan string) string {
	t.Helper()
	select {
	case frame := <-frames:
		return frame
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for frame")
		return ""
	}
}

// The full path: the client package dials the relay, gets the welcome
// frame, and round-trips requests with symbol mapping applied in between.
func TestServer_ClientRoundTrip(t *testing.T) {
	trader := &fakeTrader{
		connected:  true,
		openResult: OpenResult{Ticket: 10000001, Price: 64250.5},
	}
	srv := newTestServer(t, trader)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	frames := make(chan string, 16)
	ids := make(chan string, 16)

	client := atasmt5.New(wsAddr(ts),
		atasmt5.WithOnReceive(func(msg string) { frames <- msg }),
		atasmt5.WithOnSend(func(req *atasmt5.Request) { ids <- req.ID }),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.Connect(ctx))
	defer client.Close(context.Background())

	var welcome atasmt5.Welcome
	require.NoError(t, json.Unmarshal([]byte(waitFrame(t, frames)), &welcome))
	assert.Equal(t, atasmt5.StatusSuccess, welcome.Status)
	assert.True(t, welcome.MT5Connected)

	require.NoError(t, client.Send(ctx, atasmt5.ActionHealthCheck, nil))
	var health atasmt5.Response
	require.NoError(t, json.Unmarshal([]byte(waitFrame(t, frames)), &health))
	assert.True(t, health.OK())
	assert.Equal(t, <-ids, health.ID)

	require.NoError(t, client.Send(ctx, atasmt5.ActionOpenPosition, atasmt5.OpenPositionParams{
		Symbol:    "BTCUSDT",
		Volume:    5,
		OrderType: "BUY",
	}))

	var open struct {
		ID     string           `json:"id"`
		Status string           `json:"status"`
		Data   openPositionData `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(waitFrame(t, frames)), &open))
	assert.Equal(t, atasmt5.StatusSuccess, open.Status)
	assert.Equal(t, <-ids, open.ID)
	assert.Equal(t, int64(10000001), open.Data.Ticket)
	assert.Equal(t, "BTCUSD", open.Data.Symbol)
	assert.InDelta(t, 0.5, open.Data.Volume, 1e-9)
}

func TestServer_WelcomeReportsBackendDown(t *testing.T) {
	srv := newTestServer(t, &fakeTrader{connected: false})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsAddr(ts), nil)
	require.NoError(t, err)
	defer conn.Close()

	var welcome atasmt5.Welcome
	require.NoError(t, json.Unmarshal(readFrame(t, conn), &welcome))
	assert.Equal(t, atasmt5.StatusSuccess, welcome.Status)
	assert.False(t, welcome.MT5Connected)
}

func TestServer_RawFrames(t *testing.T) {
	srv := newTestServer(t, &fakeTrader{connected: true})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn := dialWS(t, wsAddr(ts))
	defer conn.Close()

	// Unparseable frames get an error response with no id to echo.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{broken")))
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(readFrame(t, conn), &raw))
	assert.NotContains(t, raw, "id")
	assert.Equal(t, `"error"`, string(raw["status"]))

	// Unknown actions still echo the request id.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"id":"req-1","action":"warp"}`)))
	var resp atasmt5.Response
	require.NoError(t, json.Unmarshal(readFrame(t, conn), &resp))
	assert.Equal(t, "req-1", resp.ID)
	assert.False(t, resp.OK())
	assert.Contains(t, resp.Message, "warp")

	// Binary frames are ignored, not answered.
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"id":"req-2","action":"health_check"}`)))
	require.NoError(t, json.Unmarshal(readFrame(t, conn), &resp))
	assert.Equal(t, "req-2", resp.ID)
	assert.True(t, resp.OK())
}

func TestServer_Broadcast(t *testing.T) {
	srv := newTestServer(t, &fakeTrader{connected: true})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	a := dialWS(t, wsAddr(ts))
	defer a.Close()
	b := dialWS(t, wsAddr(ts))
	defer b.Close()

	srv.Broadcast(map[string]string{"event": "price_update"})

	for _, conn := range []*websocket.Conn{a, b} {
		var msg map[string]string
		require.NoError(t, json.Unmarshal(readFrame(t, conn), &msg))
		assert.Equal(t, "price_update", msg["event"])
	}
}

func TestServer_ShutdownClosesClients(t *testing.T) {
	srv := newTestServer(t, &fakeTrader{connected: true})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn := dialWS(t, wsAddr(ts))
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	// Shutdown is idempotent.
	require.NoError(t, srv.Shutdown(ctx))
}
