package substrate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/nhbchain/txengine/engine"
	"github.com/nhbchain/txengine/gateway/substrate"
	"github.com/nhbchain/txengine/signer"
)

// fakeNode emulates just enough of a substrate-style JSON-RPC/WebSocket
// server to exercise the Client: chain.submitAndWatchExtrinsic accepts the
// extrinsic, immediately pushes InBlock then Finalized notifications, and
// system.account answers a fixed nonce.
func fakeNode(t *testing.T, nonce uint64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		defer conn.Close(websocket.StatusNormalClosure, "done")
		ctx := context.Background()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var req struct {
				ID     int64  `json:"id"`
				Method string `json:"method"`
			}
			require.NoError(t, json.Unmarshal(data, &req))
			switch req.Method {
			case "chain.submitAndWatchExtrinsic":
				writeJSON(t, ctx, conn, map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": "sub-1"})
				writeJSON(t, ctx, conn, map[string]any{
					"jsonrpc": "2.0", "method": "chain.submitAndWatchExtrinsic",
					"params": map[string]any{"subscription": "sub-1", "result": map[string]any{"inBlock": "0xblock"}},
				})
				writeJSON(t, ctx, conn, map[string]any{
					"jsonrpc": "2.0", "method": "chain.submitAndWatchExtrinsic",
					"params": map[string]any{"subscription": "sub-1", "result": map[string]any{"finalized": "0xfinal"}},
				})
			case "chain.unwatchExtrinsic":
				writeJSON(t, ctx, conn, map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": true})
			case "system.account":
				writeJSON(t, ctx, conn, map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": map[string]any{"nonce": nonce}})
			}
		}
	}))
}

func writeJSON(t *testing.T, ctx context.Context, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func TestClientSubmitDeliversConfirmedEvent(t *testing.T) {
	server := fakeNode(t, 42)
	defer server.Close()

	client := substrate.New()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Initialize(ctx, wsURL))
	defer client.Close()

	s, err := signer.Generate("addr-1")
	require.NoError(t, err)

	events := make(chan engine.Event, 4)
	unsubscribe, err := client.Submit(ctx, engine.Call{Module: "balances", Method: "transfer"}, s, 7, func(e engine.Event) {
		events <- e
	})
	require.NoError(t, err)
	require.NotNil(t, unsubscribe)

	var gotFinalized bool
	deadline := time.After(2 * time.Second)
	for !gotFinalized {
		select {
		case e := <-events:
			if e.Kind == engine.EventFinalized {
				gotFinalized = true
				require.False(t, e.ExtrinsicFailed)
			}
		case <-deadline:
			t.Fatal("timed out waiting for finalized event")
		}
	}
	unsubscribe()
}

func TestClientFetchNonce(t *testing.T) {
	server := fakeNode(t, 99)
	defer server.Close()

	client := substrate.New()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Initialize(ctx, wsURL))
	defer client.Close()

	nonce, err := client.FetchNonce(ctx, "addr-2")
	require.NoError(t, err)
	require.Equal(t, uint64(99), nonce)
}
