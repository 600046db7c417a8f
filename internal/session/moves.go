package session

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/mwisniewski00/ChessPage/internal/obslog"
	"github.com/mwisniewski00/ChessPage/internal/rules"
	"github.com/mwisniewski00/ChessPage/pkg/roomdto"
)

// AttemptMove handles a local drag-drop gesture. Outside the local turn
// (pending echo, remote turn, terminated, desynced) the piece snaps back and
// nothing is published. A legal move is applied optimistically, published on
// the move intent topic, and rendered; the controller then waits in
// PendingLocalMove for the authoritative echo.
func (c *Controller) AttemptMove(ctx context.Context, from, to, promotionHint string) DropResult {
	if c.phase != PhaseWaitingLocalTurn {
		return DropSnapback
	}

	mv, err := c.cfg.Engine.TryMove(from, to, promotionHint)
	if err != nil {
		obslog.L().Debug("session_move_rejected",
			zap.String("from", from), zap.String("to", to))
		return DropSnapback
	}

	c.pending = mv
	c.phase = PhasePendingLocalMove
	c.lastFrom, c.lastTo = mv.From, mv.To

	c.publishMoveIntent(ctx, mv)
	c.render(ctx, nil)
	return DropApplied
}

// Hover returns the legal destination squares of a piece and renders the
// highlight. Pure read against the engine; outside the local turn it is a
// no-op returning nil.
func (c *Controller) Hover(ctx context.Context, from string) []string {
	if c.phase != PhaseWaitingLocalTurn {
		return nil
	}
	targets := c.cfg.Engine.LegalTargets(from)
	if len(targets) > 0 {
		c.render(ctx, targets)
	}
	return targets
}

func (c *Controller) publishMoveIntent(ctx context.Context, mv *rules.Move) {
	mb := roomdto.MoveBroadcast{
		UserID:   c.cfg.LocalUserID,
		Username: c.cfg.LocalUsername,
		Move:     moveToDTO(mv),
	}
	payload, err := json.Marshal(mb)
	if err != nil {
		obslog.L().Warn("session_move_encode_failed", zap.Error(err))
		return
	}
	if err := c.cfg.Transport.Publish(ctx, c.cfg.Topics.MoveIntent, payload); err != nil {
		obslog.L().Warn("session_move_publish_failed", zap.Error(err))
		return
	}
	obslog.L().Info("session_move_publish",
		zap.String("from", mv.From), zap.String("to", mv.To), zap.String("san", mv.SAN))
}

// handleMove processes an authoritative move broadcast.
func (c *Controller) handleMove(ctx context.Context, mb roomdto.MoveBroadcast) {
	if c.gameplayLocked() {
		obslog.L().Debug("session_move_after_lock", zap.String("phase", string(c.phase)))
		return
	}

	if mb.UserID == c.cfg.LocalUserID {
		c.reconcileSelfEcho(ctx, mb)
		return
	}

	mv, err := c.cfg.Engine.ApplyRemote(mb.Move.From, mb.Move.To, mb.Move.Promotion)
	if err != nil {
		// Out-of-turn or stale broadcast loses the tie-break; drop it.
		if errors.Is(err, rules.ErrIllegalMove) {
			obslog.L().Debug("session_remote_move_noop",
				zap.String("from", mb.Move.From), zap.String("to", mb.Move.To))
			return
		}
		obslog.L().Warn("session_remote_move_failed", zap.Error(err))
		return
	}

	c.lastFrom, c.lastTo = mv.From, mv.To
	if c.pending == nil {
		c.phase = c.phaseFromTurn()
	}
	c.render(ctx, nil)
}

// reconcileSelfEcho compares the authoritative echo of a local move against
// the optimistic apply. A match closes the pending window. On mismatch the
// echo wins: resync from its FEN when it carries one, otherwise lock
// gameplay rather than let the two clients diverge silently.
//
// The match is keyed on the pending move alone, not on the phase: an
// opponent's broadcast can arrive between the intent and its echo and move
// the phase on while the echo is still in flight. The delayed echo must then
// confirm the pending move, not trigger a resync that would roll the
// opponent's move back.
func (c *Controller) reconcileSelfEcho(ctx context.Context, mb roomdto.MoveBroadcast) {
	if c.pending != nil &&
		c.pending.From == mb.Move.From &&
		c.pending.To == mb.Move.To &&
		c.pending.Promotion == mb.Move.Promotion {
		c.pending = nil
		c.phase = c.phaseFromTurn()
		return
	}

	if mb.Move.FEN != "" {
		if mb.Move.FEN == c.cfg.Engine.FEN() {
			c.pending = nil
			c.phase = c.phaseFromTurn()
			return
		}
		if err := c.cfg.Engine.LoadFEN(mb.Move.FEN); err != nil {
			obslog.L().Warn("session_resync_failed", zap.Error(err))
			c.phase = PhaseDesynced
			return
		}
		obslog.L().Warn("session_resynced_from_echo",
			zap.String("from", mb.Move.From), zap.String("to", mb.Move.To))
		c.pending = nil
		c.lastFrom, c.lastTo = mb.Move.From, mb.Move.To
		c.phase = c.phaseFromTurn()
		c.render(ctx, nil)
		return
	}

	obslog.L().Warn("session_desynced",
		zap.String("echo_from", mb.Move.From), zap.String("echo_to", mb.Move.To))
	c.pending = nil
	c.phase = PhaseDesynced
}

func moveToDTO(mv *rules.Move) roomdto.Move {
	return roomdto.Move{
		From:      mv.From,
		To:        mv.To,
		Promotion: mv.Promotion,
		SAN:       mv.SAN,
		Captured:  mv.Captured,
		Color:     mv.Color,
		FEN:       mv.FEN,
	}
}
