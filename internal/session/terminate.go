package session

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/mwisniewski00/ChessPage/internal/obslog"
	"github.com/mwisniewski00/ChessPage/pkg/roomdto"
)

// Leave publishes a game-over intent conceding the game to the opponent and
// hides the local surrender affordance immediately. Fire-and-forget: the
// transition to Terminated happens only when the authoritative broadcast
// comes back.
func (c *Controller) Leave(ctx context.Context) error {
	ev := roomdto.GameOverEvent{
		IsDraw:    false,
		WinnerID:  c.cfg.OpponentID,
		Surrender: true,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	c.cfg.Shell.HideSurrender()

	if err := c.cfg.Transport.Publish(ctx, c.cfg.Topics.GameOverIntent, payload); err != nil {
		obslog.L().Warn("session_leave_publish_failed", zap.Error(err))
		return err
	}
	obslog.L().Info("session_leave_published", zap.String("winner_id", ev.WinnerID))
	return nil
}

// handleGameOver runs the wind-down: lock gameplay, hide the surrender
// affordance, show exactly one outcome banner, and schedule the single
// non-cancellable navigation. Duplicate broadcasts are no-ops.
func (c *Controller) handleGameOver(ev roomdto.GameOverEvent) {
	if c.phase == PhaseTerminated {
		obslog.L().Debug("session_over_duplicate")
		return
	}

	c.phase = PhaseTerminated
	c.pending = nil
	c.cfg.Shell.HideSurrender()

	banner := c.outcomeBanner(ev)
	c.cfg.Shell.ShowBanner(banner)
	obslog.L().Info("session_over",
		zap.Bool("draw", ev.IsDraw),
		zap.String("winner_id", ev.WinnerID),
		zap.Bool("surrender", ev.Surrender))

	if !c.redirectScheduled {
		c.redirectScheduled = true
		c.cfg.Schedule(c.cfg.RedirectDelay, c.cfg.Shell.Navigate)
	}
}

// outcomeBanner picks the draw/win/loss presentation. isDraw takes
// precedence over the winner id; surrender prepends its clause to the win
// and loss banners.
func (c *Controller) outcomeBanner(ev roomdto.GameOverEvent) string {
	seconds := int(c.cfg.RedirectDelay.Seconds())
	data := map[string]any{"Seconds": seconds}

	if ev.IsDraw {
		return c.cfg.Catalog.RenderOr("session.over.draw", data, "The game ended in a draw!")
	}

	won := ev.WinnerID == c.cfg.LocalUserID
	var base, clause string
	if won {
		base = c.cfg.Catalog.RenderOr("session.over.win", data, "You won!")
		if ev.Surrender {
			clause = c.cfg.Catalog.RenderOr("session.over.win_surrender", nil, "The opponent gave up this game!")
		}
	} else {
		base = c.cfg.Catalog.RenderOr("session.over.loss", data, "You lost!")
		if ev.Surrender {
			clause = c.cfg.Catalog.RenderOr("session.over.loss_surrender", nil, "You surrendered the game!")
		}
	}
	if clause != "" {
		return strings.TrimSpace(clause + " " + base)
	}
	return base
}
