package pubsub

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mwisniewski00/ChessPage/internal/obslog"
)

// Redis is a pub/sub client backed by Redis channels. Each topic maps
// one-to-one onto a Redis channel name.
type Redis struct {
	rdb *redis.Client

	sub   *redis.PubSub
	state State

	msgCbs   []msgCallbackEntry
	stateCbs []stateCallbackEntry
	nextCbID int
	cbM      sync.RWMutex

	subs  map[string]bool
	subsM sync.Mutex

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	stateM   sync.RWMutex
}

var _ Client = (*Redis)(nil)

// NewRedis parses a redis:// or rediss:// URL and builds a client. The
// connection is not opened until Connect.
func NewRedis(rawURL string) (*Redis, error) {
	opts, err := parseRedisURL(rawURL)
	if err != nil {
		return nil, err
	}
	return &Redis{
		rdb:    redis.NewClient(opts),
		state:  StateDisconnected,
		subs:   make(map[string]bool),
		stopCh: make(chan struct{}),
	}, nil
}

// NewRedisWithClient wraps an existing client. Used by tests.
func NewRedisWithClient(rdb *redis.Client) *Redis {
	return &Redis{
		rdb:    rdb,
		state:  StateDisconnected,
		subs:   make(map[string]bool),
		stopCh: make(chan struct{}),
	}
}

func (r *Redis) Connect(ctx context.Context) error {
	r.stateM.Lock()
	if r.state == StateConnected {
		r.stateM.Unlock()
		return nil
	}
	r.stateM.Unlock()

	r.setState(StateConnecting)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.rdb.Ping(pingCtx).Err(); err != nil {
		r.setState(StateFailed)
		return fmt.Errorf("redis ping: %w", err)
	}

	// Subscribe with no channels; topics are added via Subscribe.
	r.sub = r.rdb.Subscribe(context.Background())

	r.setState(StateConnected)
	r.wg.Add(1)
	go r.listen()
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, topic string) error {
	r.subsM.Lock()
	r.subs[topic] = true
	r.subsM.Unlock()

	if r.sub == nil {
		return fmt.Errorf("subscribe %s: not connected", topic)
	}
	return r.sub.Subscribe(ctx, topic)
}

func (r *Redis) Publish(ctx context.Context, topic string, payload []byte) error {
	if !r.isConnected() {
		return fmt.Errorf("publish %s: not connected", topic)
	}
	return r.rdb.Publish(ctx, topic, payload).Err()
}

func (r *Redis) listen() {
	defer r.wg.Done()
	ch := r.sub.Channel()
	for {
		select {
		case <-r.stopCh:
			return
		case m, ok := <-ch:
			if !ok {
				if !r.isStopping() {
					r.setState(StateDisconnected)
					obslog.L().Warn("redis_subscription_closed")
				}
				return
			}
			msg := &Message{Topic: m.Channel, Payload: []byte(m.Payload)}
			r.cbM.RLock()
			callbacks := make([]msgCallbackEntry, len(r.msgCbs))
			copy(callbacks, r.msgCbs)
			r.cbM.RUnlock()
			for _, entry := range callbacks {
				if entry.callback != nil {
					entry.callback(msg)
				}
			}
		}
	}
}

func (r *Redis) OnMessage(cb MessageCallback) int {
	r.cbM.Lock()
	defer r.cbM.Unlock()
	r.nextCbID++
	r.msgCbs = append(r.msgCbs, msgCallbackEntry{id: r.nextCbID, callback: cb})
	return r.nextCbID
}

func (r *Redis) RemoveMessageCallback(id int) {
	r.cbM.Lock()
	defer r.cbM.Unlock()
	for i, cb := range r.msgCbs {
		if cb.id == id {
			r.msgCbs = append(r.msgCbs[:i], r.msgCbs[i+1:]...)
			break
		}
	}
}

func (r *Redis) OnStateChange(cb StateCallback) int {
	r.cbM.Lock()
	defer r.cbM.Unlock()
	r.nextCbID++
	r.stateCbs = append(r.stateCbs, stateCallbackEntry{id: r.nextCbID, callback: cb})
	return r.nextCbID
}

func (r *Redis) RemoveStateCallback(id int) {
	r.cbM.Lock()
	defer r.cbM.Unlock()
	for i, cb := range r.stateCbs {
		if cb.id == id {
			r.stateCbs = append(r.stateCbs[:i], r.stateCbs[i+1:]...)
			break
		}
	}
}

func (r *Redis) setState(state State) {
	r.stateM.Lock()
	r.state = state
	r.stateM.Unlock()

	r.cbM.RLock()
	callbacks := make([]stateCallbackEntry, len(r.stateCbs))
	copy(callbacks, r.stateCbs)
	r.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(state)
		}
	}
}

func (r *Redis) isConnected() bool {
	r.stateM.RLock()
	defer r.stateM.RUnlock()
	return r.state == StateConnected
}

func (r *Redis) isStopping() bool {
	select {
	case <-r.stopCh:
		return true
	default:
		return false
	}
}

func (r *Redis) Close(ctx context.Context) error {
	r.stopOnce.Do(func() { close(r.stopCh) })
	if r.sub != nil {
		_ = r.sub.Close()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	r.setState(StateDisconnected)
	return r.rdb.Close()
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
