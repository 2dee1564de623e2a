package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"solana-nft-tracker/internal/observability"
)

// WSConfig configures WebSocket client behavior.
type WSConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// WSAccountWatcher implements AccountWatcher using gorilla/websocket and the
// accountSubscribe RPC subscription.
type WSAccountWatcher struct {
	endpoint string
	config   WSConfig

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs maps subscription ID to the delivery channel and the pubkey the
	// subscription was created for (needed for resubscription).
	subs   map[int64]*accountSub
	subsMu sync.Mutex

	// pendingSubs maps request ID to channel waiting for subscription ID.
	pendingSubs   map[uint64]chan int64
	pendingSubsMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

type accountSub struct {
	pubkey string
	ch     chan AccountNotification
}

// NewWSAccountWatcher connects to the endpoint and starts the read loop.
func NewWSAccountWatcher(ctx context.Context, endpoint string, config *WSConfig) (*WSAccountWatcher, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	w := &WSAccountWatcher{
		endpoint:    endpoint,
		config:      cfg,
		subs:        make(map[int64]*accountSub),
		pendingSubs: make(map[uint64]chan int64),
		done:        make(chan struct{}),
	}

	if err := w.connect(ctx); err != nil {
		return nil, err
	}

	w.wg.Add(2)
	go w.readLoop()
	go w.pingLoop()

	return w, nil
}

func (w *WSAccountWatcher) connect(ctx context.Context) error {
	w.connMu.Lock()
	defer w.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	w.conn = conn
	return nil
}

// SubscribeAccount subscribes to changes of one account.
func (w *WSAccountWatcher) SubscribeAccount(ctx context.Context, pubkey string) (<-chan AccountNotification, error) {
	subID, err := w.subscribe(ctx, pubkey)
	if err != nil {
		return nil, err
	}

	ch := make(chan AccountNotification, 64)
	w.subsMu.Lock()
	w.subs[subID] = &accountSub{pubkey: pubkey, ch: ch}
	w.subsMu.Unlock()

	return ch, nil
}

// subscribe issues accountSubscribe and waits for the subscription ID.
func (w *WSAccountWatcher) subscribe(ctx context.Context, pubkey string) (int64, error) {
	if w.closed.Load() {
		return 0, fmt.Errorf("watcher closed")
	}

	reqID := w.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "accountSubscribe",
		Params: []interface{}{
			pubkey,
			map[string]string{"encoding": "base64", "commitment": "confirmed"},
		},
	}

	confirmCh := make(chan int64, 1)
	w.pendingSubsMu.Lock()
	w.pendingSubs[reqID] = confirmCh
	w.pendingSubsMu.Unlock()

	dropPending := func() {
		w.pendingSubsMu.Lock()
		delete(w.pendingSubs, reqID)
		w.pendingSubsMu.Unlock()
	}

	w.connMu.Lock()
	if w.conn == nil {
		w.connMu.Unlock()
		dropPending()
		return 0, fmt.Errorf("not connected")
	}
	w.conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
	err := w.conn.WriteJSON(req)
	w.connMu.Unlock()

	if err != nil {
		dropPending()
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case subID := <-confirmCh:
		return subID, nil
	case <-time.After(30 * time.Second):
		dropPending()
		return 0, fmt.Errorf("subscription timeout")
	case <-w.done:
		return 0, fmt.Errorf("watcher closed")
	case <-ctx.Done():
		dropPending()
		return 0, ctx.Err()
	}
}

// Close closes the WebSocket connection and all subscription channels.
func (w *WSAccountWatcher) Close() error {
	if w.closed.Swap(true) {
		return nil // Already closed
	}

	close(w.done)

	w.connMu.Lock()
	if w.conn != nil {
		w.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		w.conn.Close()
	}
	w.connMu.Unlock()

	w.subsMu.Lock()
	for id, sub := range w.subs {
		close(sub.ch)
		delete(w.subs, id)
	}
	w.subsMu.Unlock()

	w.pendingSubsMu.Lock()
	for id, ch := range w.pendingSubs {
		close(ch)
		delete(w.pendingSubs, id)
	}
	w.pendingSubsMu.Unlock()

	w.wg.Wait()
	return nil
}

// readLoop reads messages and dispatches to subscribers, reconnecting with
// exponential backoff on connection errors.
func (w *WSAccountWatcher) readLoop() {
	defer w.wg.Done()

	reconnectDelay := w.config.ReconnectDelay

	for !w.closed.Load() {
		w.connMu.Lock()
		conn := w.conn
		w.connMu.Unlock()

		if conn == nil {
			select {
			case <-w.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(w.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if w.closed.Load() {
				return
			}

			if !w.reconnecting.Swap(true) {
				go w.reconnect(reconnectDelay)
			}

			reconnectDelay *= 2
			if reconnectDelay > w.config.MaxReconnectDelay {
				reconnectDelay = w.config.MaxReconnectDelay
			}

			select {
			case <-w.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = w.config.ReconnectDelay
		w.handleMessage(message)
	}
}

// reconnect re-establishes the connection and resubscribes all accounts.
func (w *WSAccountWatcher) reconnect(delay time.Duration) {
	defer w.reconnecting.Store(false)

	if w.closed.Load() {
		return
	}

	select {
	case <-w.done:
		return
	case <-time.After(delay):
	}

	w.connMu.Lock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := w.connect(ctx); err != nil {
		// Reconnect failed, next read error retries
		return
	}

	observability.DefaultMetrics.WSReconnects.Inc()
	w.resubscribeAll()
}

func (w *WSAccountWatcher) resubscribeAll() {
	w.subsMu.Lock()
	old := make(map[int64]*accountSub, len(w.subs))
	for id, sub := range w.subs {
		old[id] = sub
	}
	w.subsMu.Unlock()

	for oldID, sub := range old {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		newID, err := w.subscribe(ctx, sub.pubkey)
		cancel()
		if err != nil {
			continue // keep old mapping, retried on next reconnect
		}

		w.subsMu.Lock()
		delete(w.subs, oldID)
		w.subs[newID] = sub
		w.subsMu.Unlock()
	}
}

func (w *WSAccountWatcher) handleMessage(message []byte) {
	// Subscription confirmation
	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.Result > 0 {
		w.pendingSubsMu.Lock()
		ch, ok := w.pendingSubs[resp.ID]
		if ok {
			delete(w.pendingSubs, resp.ID)
		}
		w.pendingSubsMu.Unlock()

		if ok {
			select {
			case ch <- resp.Result:
			default:
			}
		}
		return
	}

	// Account change notification
	var notif wsAccountNotification
	if err := json.Unmarshal(message, &notif); err != nil || notif.Method != "accountNotification" || notif.Params == nil {
		return
	}

	w.subsMu.Lock()
	sub, ok := w.subs[notif.Params.Subscription]
	w.subsMu.Unlock()
	if !ok {
		return
	}

	out := AccountNotification{
		Pubkey:   sub.pubkey,
		Lamports: notif.Params.Result.Value.Lamports,
	}
	if notif.Params.Result.Context != nil {
		out.Slot = notif.Params.Result.Context.Slot
	}

	select {
	case sub.ch <- out:
	case <-w.done:
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (w *WSAccountWatcher) pingLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.connMu.Lock()
			if w.conn != nil {
				w.conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
				// Errors surface in the read loop, which reconnects
				w.conn.WriteMessage(websocket.PingMessage, nil)
			}
			w.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"` // subscription ID
}

type wsAccountNotification struct {
	JSONRPC string           `json:"jsonrpc"`
	Method  string           `json:"method"`
	Params  *wsAccountParams `json:"params"`
}

type wsAccountParams struct {
	Subscription int64           `json:"subscription"`
	Result       wsAccountResult `json:"result"`
}

type wsAccountResult struct {
	Context *wsContext     `json:"context"`
	Value   wsAccountValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsAccountValue struct {
	Lamports uint64 `json:"lamports"`
	Owner    string `json:"owner"`
}
