// Package substrate implements the engine's Chain Gateway contract (C1)
// over a JSON-RPC/WebSocket session to a substrate-style node, following
// the teacher's own JSON-RPC request/response envelope shapes
// (bench/posloader/main.go's rpcRequest/rpcResponse) and its client-side use
// of nhooyr.io/websocket for a long-lived streaming connection to the same
// benchmark tool.
package substrate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/nhbchain/txengine/engine"
	"github.com/nhbchain/txengine/observability/logging"
)

const (
	methodSubmitAndWatch = "chain.submitAndWatchExtrinsic"
	methodUnwatch        = "chain.unwatchExtrinsic"
	methodAccountNonce   = "system.account"

	writeTimeout = 10 * time.Second
	dialTimeout  = 10 * time.Second
)

// rpcRequest mirrors the JSON-RPC 2.0 envelope the teacher's own tooling
// sends (bench/posloader/main.go's rpcRequest).
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int64  `json:"id,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcMessage is read generically first so the client can tell a correlated
// response apart from an unsolicited subscription notification.
type rpcMessage struct {
	ID     int64           `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type subscriptionParams struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// extrinsicStatus is the payload carried by each submitAndWatch notification.
type extrinsicStatus struct {
	InBlock         string `json:"inBlock,omitempty"`
	Finalized       string `json:"finalized,omitempty"`
	ExtrinsicFailed bool   `json:"extrinsicFailed"`
}

type accountInfo struct {
	Nonce uint64 `json:"nonce"`
}

// signerCapable is the capability the substrate adapter needs beyond the
// engine's opaque SigningMaterial contract. The engine core never requires
// this — only this concrete adapter does, keeping the boundary from §6
// intact while still letting a real adapter produce real signatures.
type signerCapable interface {
	engine.SigningMaterial
	Sign(payload []byte, nonce uint64) ([]byte, error)
}

// Client is a concrete engine.Gateway backed by a persistent WebSocket
// session.
type Client struct {
	logger *slog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	nextID   int64
	pending  map[int64]chan rpcMessage
	subs     map[string]func(engine.Event)
	closed   bool
	cancelRL context.CancelFunc
}

// Option customises a Client instance.
type Option func(*Client)

// WithLogger installs a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New constructs a Client not yet connected to any node; call Initialize to
// dial.
func New(opts ...Option) *Client {
	c := &Client{
		logger:  slog.Default(),
		pending: make(map[int64]chan rpcMessage),
		subs:    make(map[string]func(engine.Event)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.WithComponent(c.logger, "gateway")
	return c
}

// Initialize dials nodeURL and starts the background read loop. It
// satisfies engine.Gateway.Initialize.
func (c *Client) Initialize(ctx context.Context, nodeURL string) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, nodeURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", nodeURL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.closed = false
	c.mu.Unlock()

	readCtx, readCancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancelRL = readCancel
	c.mu.Unlock()
	go c.readLoop(readCtx, conn)
	return nil
}

// Close tears down the WebSocket session.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.cancelRL != nil {
		c.cancelRL()
	}
	if c.conn != nil {
		return c.conn.Close(websocket.StatusNormalClosure, "client closed")
	}
	return nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			c.logger.Warn("substrate gateway read loop stopped", slog.Any("error", err))
			c.failAllPending(err)
			return
		}
		var msg rpcMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("substrate gateway received malformed frame", slog.Any("error", err))
			continue
		}
		if msg.ID != 0 {
			c.deliverResponse(msg)
			continue
		}
		if msg.Method == methodSubmitAndWatch {
			c.deliverNotification(msg)
		}
	}
}

func (c *Client) deliverResponse(msg rpcMessage) {
	c.mu.Lock()
	ch, ok := c.pending[msg.ID]
	if ok {
		delete(c.pending, msg.ID)
	}
	c.mu.Unlock()
	if ok {
		ch <- msg
	}
}

func (c *Client) deliverNotification(msg rpcMessage) {
	var params subscriptionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return
	}
	var status extrinsicStatus
	if err := json.Unmarshal(params.Result, &status); err != nil {
		return
	}
	c.mu.Lock()
	onEvent, ok := c.subs[params.Subscription]
	c.mu.Unlock()
	if !ok {
		return
	}
	if status.InBlock != "" {
		onEvent(engine.Event{Kind: engine.EventInBlock, ExtrinsicFailed: status.ExtrinsicFailed})
	}
	if status.Finalized != "" {
		onEvent(engine.Event{Kind: engine.EventFinalized, ExtrinsicFailed: status.ExtrinsicFailed})
	}
}

func (c *Client) failAllPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		ch <- rpcMessage{ID: id, Error: &rpcError{Message: err.Error()}}
		delete(c.pending, id)
	}
}

// call sends a JSON-RPC request and blocks for its correlated response.
func (c *Client) call(ctx context.Context, method string, params any) (rpcMessage, error) {
	c.mu.Lock()
	if c.conn == nil || c.closed {
		c.mu.Unlock()
		return rpcMessage{}, fmt.Errorf("substrate gateway not connected")
	}
	c.nextID++
	id := c.nextID
	ch := make(chan rpcMessage, 1)
	c.pending[id] = ch
	conn := c.conn
	c.mu.Unlock()

	req := rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: id}
	data, err := json.Marshal(req)
	if err != nil {
		return rpcMessage{}, fmt.Errorf("marshal request: %w", err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return rpcMessage{}, fmt.Errorf("write request: %w", err)
	}

	select {
	case msg := <-ch:
		if msg.Error != nil {
			return rpcMessage{}, fmt.Errorf("%s", msg.Error.Message)
		}
		return msg, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return rpcMessage{}, ctx.Err()
	}
}

// Submit implements engine.Gateway.Submit: it signs the call, dispatches
// chain.submitAndWatchExtrinsic, and registers onEvent against the returned
// subscription id.
func (c *Client) Submit(ctx context.Context, call engine.Call, sm engine.SigningMaterial, nonce uint64, onEvent func(engine.Event)) (func(), error) {
	signer, ok := sm.(signerCapable)
	if !ok {
		return nil, fmt.Errorf("signing material for %q cannot produce signatures", sm.Address())
	}
	payload, err := json.Marshal(struct {
		Module string `json:"module"`
		Method string `json:"method"`
		Params []any  `json:"params"`
		Nonce  uint64 `json:"nonce"`
	}{call.Module, call.Method, call.Params, nonce})
	if err != nil {
		return nil, fmt.Errorf("encode extrinsic payload: %w", err)
	}
	sig, err := signer.Sign(payload, nonce)
	if err != nil {
		return nil, fmt.Errorf("sign extrinsic: %w", err)
	}

	params := []any{signer.Address(), nonce, call.Module, call.Method, call.Params, sig}
	msg, err := c.call(ctx, methodSubmitAndWatch, params)
	if err != nil {
		return nil, err
	}
	var subID string
	if err := json.Unmarshal(msg.Result, &subID); err != nil {
		return nil, fmt.Errorf("decode subscription id: %w", err)
	}

	c.mu.Lock()
	c.subs[subID] = onEvent
	c.mu.Unlock()

	unsubscribe := func() {
		c.mu.Lock()
		delete(c.subs, subID)
		c.mu.Unlock()
		// The unwatch request runs on its own goroutine: unsubscribe is
		// invoked from event callbacks on the read loop, which must stay free
		// to read that request's response.
		go func() {
			unsubCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			defer cancel()
			_, _ = c.call(unsubCtx, methodUnwatch, []any{subID})
		}()
	}
	return unsubscribe, nil
}

// FetchNonce implements engine.Gateway.FetchNonce.
func (c *Client) FetchNonce(ctx context.Context, address string) (uint64, error) {
	msg, err := c.call(ctx, methodAccountNonce, []any{address})
	if err != nil {
		return 0, err
	}
	var info accountInfo
	if err := json.Unmarshal(msg.Result, &info); err != nil {
		return 0, fmt.Errorf("decode account info: %w", err)
	}
	return info.Nonce, nil
}
