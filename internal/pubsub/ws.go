package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// frame is the envelope of the broker's websocket protocol. Auth and
// subscribe flow client to broker, message frames flow broker to client,
// publish flows client to broker.
type frame struct {
	Type     string          `json:"type"`
	ClientID string          `json:"client_id,omitempty"`
	Username string          `json:"username,omitempty"`
	Password string          `json:"password,omitempty"`
	Topic    string          `json:"topic,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

const (
	frameAuth      = "auth"
	frameSubscribe = "subscribe"
	framePublish   = "publish"
	frameMessage   = "message"
)

type msgCallbackEntry struct {
	id       int
	callback MessageCallback
}

type stateCallbackEntry struct {
	id       int
	callback StateCallback
}

// WebSocket is the websocket-backed pub/sub client.
type WebSocket struct {
	wsURL    string
	username string
	password string
	clientID string

	conn   *websocket.Conn
	state  State
	stateM sync.RWMutex
	writeM sync.Mutex

	msgCbs   []msgCallbackEntry
	stateCbs []stateCallbackEntry
	cbM      sync.RWMutex

	subs  map[string]bool
	subsM sync.Mutex

	maxReconnectAttempts int
	reconnectDelay       time.Duration
	pingInterval         time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

var _ Client = (*WebSocket)(nil)

func NewWebSocket(wsURL, username, password string, maxReconnectAttempts int, reconnectDelay time.Duration) *WebSocket {
	return &WebSocket{
		wsURL:                wsURL,
		username:             username,
		password:             password,
		clientID:             uuid.NewString(),
		state:                StateDisconnected,
		maxReconnectAttempts: maxReconnectAttempts,
		reconnectDelay:       reconnectDelay,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
		subs:                 make(map[string]bool),
	}
}

func (ws *WebSocket) Connect(ctx context.Context) error {
	ws.stateM.Lock()
	if ws.state == StateConnected || ws.state == StateConnecting {
		ws.stateM.Unlock()
		return nil
	}
	ws.stateM.Unlock()

	ws.rootCtx, ws.rootCancel = context.WithCancel(context.Background())
	ws.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := ws.dial(dialCtx); err != nil {
		ws.setState(StateFailed)
		ws.scheduleReconnect()
		return err
	}

	ws.setState(StateConnected)
	ws.wg.Add(2)
	go ws.listen()
	go ws.pingLoop()
	return nil
}

// dial opens the connection, authenticates, and replays subscriptions.
func (ws *WebSocket) dial(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, ws.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		return err
	}
	ws.conn = conn

	auth := frame{Type: frameAuth, ClientID: ws.clientID, Username: ws.username, Password: ws.password}
	if err := ws.write(ctx, &auth); err != nil {
		_ = ws.closeConn(websocket.StatusGoingAway, "auth failure")
		return fmt.Errorf("auth frame: %w", err)
	}

	ws.subsM.Lock()
	topics := make([]string, 0, len(ws.subs))
	for t := range ws.subs {
		topics = append(topics, t)
	}
	ws.subsM.Unlock()
	for _, t := range topics {
		if err := ws.write(ctx, &frame{Type: frameSubscribe, Topic: t}); err != nil {
			_ = ws.closeConn(websocket.StatusGoingAway, "subscribe failure")
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
	}
	return nil
}

func (ws *WebSocket) Subscribe(ctx context.Context, topic string) error {
	ws.subsM.Lock()
	ws.subs[topic] = true
	ws.subsM.Unlock()

	if !ws.isConnected() {
		// Will be replayed on (re)connect.
		return nil
	}
	return ws.write(ctx, &frame{Type: frameSubscribe, Topic: topic})
}

func (ws *WebSocket) Publish(ctx context.Context, topic string, payload []byte) error {
	if !ws.isConnected() {
		return fmt.Errorf("publish %s: not connected", topic)
	}
	return ws.write(ctx, &frame{Type: framePublish, Topic: topic, Payload: json.RawMessage(payload)})
}

func (ws *WebSocket) write(ctx context.Context, f *frame) error {
	if ws.conn == nil {
		return fmt.Errorf("no connection")
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	ws.writeM.Lock()
	defer ws.writeM.Unlock()
	return wsjson.Write(ctx, ws.conn, f)
}

func (ws *WebSocket) listen() {
	defer ws.wg.Done()
	for {
		select {
		case <-ws.stopCh:
			return
		default:
		}

		if ws.conn == nil {
			return
		}
		var f frame
		if err := wsjson.Read(ws.rootCtx, ws.conn, &f); err != nil {
			if ws.isStopping() {
				return
			}
			ws.setState(StateDisconnected)
			_ = ws.closeConn(websocket.StatusGoingAway, "reconnect")
			ws.scheduleReconnect()
			return
		}
		if f.Type != frameMessage {
			continue
		}

		msg := &Message{Topic: f.Topic, Payload: []byte(f.Payload)}
		ws.cbM.RLock()
		callbacks := make([]msgCallbackEntry, len(ws.msgCbs))
		copy(callbacks, ws.msgCbs)
		ws.cbM.RUnlock()
		for _, entry := range callbacks {
			if entry.callback != nil {
				entry.callback(msg)
			}
		}
	}
}

func (ws *WebSocket) pingLoop() {
	defer ws.wg.Done()
	t := time.NewTicker(ws.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ws.stopCh:
			return
		case <-t.C:
			if ws.conn == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(ws.rootCtx, 3*time.Second)
			err := ws.conn.Ping(ctx)
			cancel()
			if err != nil {
				failures++
				if failures >= 2 {
					if ws.isStopping() {
						return
					}
					ws.setState(StateDisconnected)
					_ = ws.closeConn(websocket.StatusGoingAway, "ping failure")
					ws.scheduleReconnect()
					failures = 0
				}
				continue
			}
			failures = 0
		}
	}
}

func (ws *WebSocket) scheduleReconnect() {
	if ws.maxReconnectAttempts <= 0 {
		return
	}
	ws.setState(StateReconnecting)

	go func() {
		for attempt := 1; attempt <= ws.maxReconnectAttempts; attempt++ {
			select {
			case <-ws.stopCh:
				return
			case <-time.After(backoffDuration(attempt, ws.reconnectDelay)):
			}

			dialCtx, cancel := context.WithTimeout(ws.rootCtx, 10*time.Second)
			err := ws.dial(dialCtx)
			cancel()
			if err != nil {
				continue
			}

			ws.setState(StateConnected)
			ws.wg.Add(2)
			go ws.listen()
			go ws.pingLoop()
			return
		}
		ws.setState(StateFailed)
	}()
}

func (ws *WebSocket) OnMessage(cb MessageCallback) int {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	id := len(ws.msgCbs) + 1
	ws.msgCbs = append(ws.msgCbs, msgCallbackEntry{id: id, callback: cb})
	return id
}

func (ws *WebSocket) RemoveMessageCallback(id int) {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	for i, cb := range ws.msgCbs {
		if cb.id == id {
			ws.msgCbs = append(ws.msgCbs[:i], ws.msgCbs[i+1:]...)
			break
		}
	}
}

func (ws *WebSocket) OnStateChange(cb StateCallback) int {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	id := len(ws.stateCbs) + 1
	ws.stateCbs = append(ws.stateCbs, stateCallbackEntry{id: id, callback: cb})
	return id
}

func (ws *WebSocket) RemoveStateCallback(id int) {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	for i, cb := range ws.stateCbs {
		if cb.id == id {
			ws.stateCbs = append(ws.stateCbs[:i], ws.stateCbs[i+1:]...)
			break
		}
	}
}

func (ws *WebSocket) setState(state State) {
	ws.stateM.Lock()
	ws.state = state
	ws.stateM.Unlock()

	ws.cbM.RLock()
	callbacks := make([]stateCallbackEntry, len(ws.stateCbs))
	copy(callbacks, ws.stateCbs)
	ws.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(state)
		}
	}
}

func (ws *WebSocket) isConnected() bool {
	ws.stateM.RLock()
	defer ws.stateM.RUnlock()
	return ws.state == StateConnected
}

func (ws *WebSocket) Close(ctx context.Context) error {
	ws.stopOnce.Do(func() { close(ws.stopCh) })
	_ = ws.closeConn(websocket.StatusNormalClosure, "close")

	done := make(chan struct{})
	go func() {
		ws.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		if ws.rootCancel != nil {
			ws.rootCancel()
		}
		return nil
	}
}

func (ws *WebSocket) closeConn(code websocket.StatusCode, reason string) error {
	if ws.conn == nil {
		return nil
	}
	defer func() { ws.conn = nil }()
	return ws.conn.Close(code, reason)
}

func (ws *WebSocket) isStopping() bool {
	select {
	case <-ws.stopCh:
		return true
	default:
		return false
	}
}

func backoffDuration(attempt int, base time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	return time.Duration(1<<uint(attempt-1)) * base
}
