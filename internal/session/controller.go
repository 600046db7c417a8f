package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mwisniewski00/ChessPage/internal/msgcat"
	"github.com/mwisniewski00/ChessPage/internal/obslog"
	"github.com/mwisniewski00/ChessPage/internal/rules"
	"github.com/mwisniewski00/ChessPage/internal/topics"
)

// Config wires a controller. Engine, Transport, Board, Chat, Shell, and
// Catalog are required; Schedule defaults to time.AfterFunc.
type Config struct {
	Topics topics.Set

	LocalUserID   string
	LocalUsername string
	OpponentID    string
	Color         rules.Color

	Engine    *rules.Engine
	Transport Transport
	Board     BoardView
	Chat      ChatView
	Shell     Shell
	Catalog   *msgcat.Catalog

	RedirectDelay time.Duration
	// Schedule runs fn once after d. Injectable for tests.
	Schedule func(d time.Duration, fn func())
}

// Controller owns all mutable session state. It is loop-confined: every
// method must be called from the single event loop that also delivers
// transport messages, so there is no locking here.
type Controller struct {
	cfg   Config
	phase Phase

	// pending is the optimistic move awaiting its authoritative echo.
	pending *rules.Move
	// lastFrom/lastTo feed the move highlight on redraws.
	lastFrom, lastTo string

	redirectScheduled bool
}

func New(cfg Config) (*Controller, error) {
	if cfg.Engine == nil || cfg.Transport == nil || cfg.Board == nil || cfg.Chat == nil || cfg.Shell == nil || cfg.Catalog == nil {
		return nil, errors.New("session: incomplete config")
	}
	if cfg.LocalUserID == "" {
		return nil, errors.New("session: local user id is empty")
	}
	if cfg.Color != rules.White && cfg.Color != rules.Black {
		return nil, errors.New("session: invalid color assignment")
	}
	if cfg.RedirectDelay <= 0 {
		cfg.RedirectDelay = 10 * time.Second
	}
	if cfg.Schedule == nil {
		cfg.Schedule = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	c := &Controller{cfg: cfg}
	c.phase = c.phaseFromTurn()
	return c, nil
}

// Start subscribes the broadcast topics and draws the initial position.
func (c *Controller) Start(ctx context.Context) error {
	for _, topic := range c.cfg.Topics.Broadcast() {
		if err := c.cfg.Transport.Subscribe(ctx, topic); err != nil {
			return err
		}
	}
	obslog.L().Info("session_started",
		zap.String("room_chat_topic", c.cfg.Topics.Chat),
		zap.String("color", string(c.cfg.Color)),
		zap.String("phase", string(c.phase)))
	c.render(ctx, nil)
	return nil
}

// Phase reports the current turn-taking state.
func (c *Controller) Phase() Phase { return c.phase }

// HandleMessage dispatches one inbound transport frame. Malformed payloads
// are dropped with a warning; unknown topics are ignored.
func (c *Controller) HandleMessage(ctx context.Context, topic string, payload []byte) {
	ev, err := decodeEnvelope(c.cfg.Topics, topic, payload)
	if err != nil {
		obslog.L().Warn("session_payload_malformed", zap.String("topic", topic), zap.Error(err))
		return
	}
	switch ev.kind {
	case kindChat:
		c.handleChat(*ev.chat)
	case kindMove:
		c.handleMove(ctx, *ev.move)
	case kindGameOver:
		c.handleGameOver(*ev.gameOver)
	case kindUnknown:
		obslog.L().Debug("session_topic_ignored", zap.String("topic", topic))
	}
}

// phaseFromTurn maps the engine's turn indicator onto a waiting phase.
func (c *Controller) phaseFromTurn() Phase {
	if c.cfg.Engine.Turn() == c.cfg.Color {
		return PhaseWaitingLocalTurn
	}
	return PhaseWaitingRemoteTurn
}

func (c *Controller) gameplayLocked() bool {
	return c.phase == PhaseTerminated || c.phase == PhaseDesynced
}

// render draws the current position with the last-move highlight. Target
// squares come from hover queries only.
func (c *Controller) render(ctx context.Context, targets []string) {
	if err := c.cfg.Board.Render(ctx, c.cfg.Engine.Board(), c.lastFrom, c.lastTo, targets); err != nil {
		obslog.L().Warn("session_render_failed", zap.Error(err))
	}
}
