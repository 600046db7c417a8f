package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mwisniewski00/ChessPage/internal/rules"
	"github.com/mwisniewski00/ChessPage/pkg/roomdto"
)

func TestInitialPhaseFromColor(t *testing.T) {
	white := newTestRig(t, rules.White, "")
	if white.ctrl.Phase() != PhaseWaitingLocalTurn {
		t.Fatalf("white initial phase = %s", white.ctrl.Phase())
	}
	black := newTestRig(t, rules.Black, "")
	if black.ctrl.Phase() != PhaseWaitingRemoteTurn {
		t.Fatalf("black initial phase = %s", black.ctrl.Phase())
	}
	// Mid-game resume with black to move.
	resumed := newTestRig(t, rules.Black, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1")
	if resumed.ctrl.Phase() != PhaseWaitingLocalTurn {
		t.Fatalf("resumed black phase = %s", resumed.ctrl.Phase())
	}
}

func TestAttemptMoveIllegalSnapsBack(t *testing.T) {
	rig := newTestRig(t, rules.White, "")
	ctx := context.Background()

	before := rig.ctrl.cfg.Engine.FEN()
	if got := rig.ctrl.AttemptMove(ctx, "e2", "e5", ""); got != DropSnapback {
		t.Fatalf("AttemptMove = %s", got)
	}
	if rig.ctrl.cfg.Engine.FEN() != before {
		t.Fatalf("position changed on illegal move")
	}
	if len(rig.transport.published) != 0 {
		t.Fatalf("illegal move published")
	}
}

func TestAttemptMovePublishesAndPends(t *testing.T) {
	rig := newTestRig(t, rules.White, "")
	ctx := context.Background()

	if got := rig.ctrl.AttemptMove(ctx, "e2", "e4", ""); got != DropApplied {
		t.Fatalf("AttemptMove = %s", got)
	}
	if rig.ctrl.Phase() != PhasePendingLocalMove {
		t.Fatalf("phase = %s", rig.ctrl.Phase())
	}
	if len(rig.transport.published) != 1 {
		t.Fatalf("published %d frames", len(rig.transport.published))
	}
	frame := rig.transport.published[0]
	if frame.topic != rig.topics.MoveIntent {
		t.Fatalf("topic = %s", frame.topic)
	}
	var mb roomdto.MoveBroadcast
	if err := json.Unmarshal(frame.payload, &mb); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if mb.UserID != "local" || mb.Move.From != "e2" || mb.Move.To != "e4" || mb.Move.SAN != "e4" {
		t.Fatalf("broadcast = %+v", mb)
	}
	if mb.Move.FEN == "" {
		t.Fatalf("intent missing fen")
	}
	if rig.board.renders != 1 || rig.board.lastFrom != "e2" || rig.board.lastTo != "e4" {
		t.Fatalf("render state: %+v", rig.board)
	}

	// Double submission before the echo is rejected without a second publish.
	if got := rig.ctrl.AttemptMove(ctx, "d2", "d4", ""); got != DropSnapback {
		t.Fatalf("second AttemptMove = %s", got)
	}
	if len(rig.transport.published) != 1 {
		t.Fatalf("double submission published")
	}
}

func TestSelfEchoResolvesPendingWindow(t *testing.T) {
	rig := newTestRig(t, rules.White, "")
	ctx := context.Background()

	rig.ctrl.AttemptMove(ctx, "e2", "e4", "")
	payload, _ := json.Marshal(roomdto.MoveBroadcast{
		UserID: "local",
		Move:   roomdto.Move{From: "e2", To: "e4"},
	})
	rig.ctrl.HandleMessage(ctx, rig.topics.Move, payload)

	if rig.ctrl.Phase() != PhaseWaitingRemoteTurn {
		t.Fatalf("phase = %s", rig.ctrl.Phase())
	}
}

func TestSelfEchoMismatchResyncsFromFEN(t *testing.T) {
	rig := newTestRig(t, rules.White, "")
	ctx := context.Background()

	rig.ctrl.AttemptMove(ctx, "e2", "e4", "")
	// Server disagreed and echoed a different move with its position.
	serverFEN := "rnbqkbnr/pppppppp/8/8/3P4/8/PPP1PPPP/RNBQKBNR b KQkq d3 0 1"
	payload, _ := json.Marshal(roomdto.MoveBroadcast{
		UserID: "local",
		Move:   roomdto.Move{From: "d2", To: "d4", FEN: serverFEN},
	})
	rig.ctrl.HandleMessage(ctx, rig.topics.Move, payload)

	if rig.ctrl.cfg.Engine.FEN() != serverFEN {
		t.Fatalf("engine not resynced: %s", rig.ctrl.cfg.Engine.FEN())
	}
	if rig.ctrl.Phase() != PhaseWaitingRemoteTurn {
		t.Fatalf("phase = %s", rig.ctrl.Phase())
	}
}

func TestSelfEchoMismatchWithoutFENLocksGameplay(t *testing.T) {
	rig := newTestRig(t, rules.White, "")
	ctx := context.Background()

	rig.ctrl.AttemptMove(ctx, "e2", "e4", "")
	payload, _ := json.Marshal(roomdto.MoveBroadcast{
		UserID: "local",
		Move:   roomdto.Move{From: "d2", To: "d4"},
	})
	rig.ctrl.HandleMessage(ctx, rig.topics.Move, payload)

	if rig.ctrl.Phase() != PhaseDesynced {
		t.Fatalf("phase = %s", rig.ctrl.Phase())
	}
	if got := rig.ctrl.AttemptMove(ctx, "g1", "f3", ""); got != DropSnapback {
		t.Fatalf("desynced session accepted a move")
	}
}

func TestDelayedSelfEchoAfterRemoteMove(t *testing.T) {
	rig := newTestRig(t, rules.White, "")
	ctx := context.Background()

	// Local e2e4 is applied optimistically and awaits its echo.
	if got := rig.ctrl.AttemptMove(ctx, "e2", "e4", ""); got != DropApplied {
		t.Fatalf("AttemptMove = %s", got)
	}
	echoFEN := rig.ctrl.cfg.Engine.FEN()

	// The opponent's reply lands before the echo.
	remote, _ := json.Marshal(roomdto.MoveBroadcast{
		UserID: "remote",
		Move:   roomdto.Move{From: "e7", To: "e5"},
	})
	rig.ctrl.HandleMessage(ctx, rig.topics.Move, remote)
	afterBoth := rig.ctrl.cfg.Engine.FEN()

	// The pending window stays open until the echo arrives.
	if rig.ctrl.Phase() != PhasePendingLocalMove {
		t.Fatalf("phase after interleaved remote move = %s", rig.ctrl.Phase())
	}
	if got := rig.ctrl.AttemptMove(ctx, "d2", "d4", ""); got != DropSnapback {
		t.Fatalf("gesture while echo outstanding = %s", got)
	}

	// The delayed echo confirms the pending move. It must not resync from
	// its stale FEN and erase the opponent's move.
	echo, _ := json.Marshal(roomdto.MoveBroadcast{
		UserID: "local",
		Move:   roomdto.Move{From: "e2", To: "e4", FEN: echoFEN},
	})
	rig.ctrl.HandleMessage(ctx, rig.topics.Move, echo)

	if rig.ctrl.cfg.Engine.FEN() != afterBoth {
		t.Fatalf("echo rewound the game: want %q, got %q", afterBoth, rig.ctrl.cfg.Engine.FEN())
	}
	if rig.ctrl.Phase() != PhaseWaitingLocalTurn {
		t.Fatalf("phase after echo = %s", rig.ctrl.Phase())
	}
}

func TestRemoteMoveApplies(t *testing.T) {
	rig := newTestRig(t, rules.Black, "")
	ctx := context.Background()

	payload, _ := json.Marshal(roomdto.MoveBroadcast{
		UserID: "remote",
		Move:   roomdto.Move{From: "e2", To: "e4"},
	})
	rig.ctrl.HandleMessage(ctx, rig.topics.Move, payload)

	if rig.ctrl.Phase() != PhaseWaitingLocalTurn {
		t.Fatalf("phase = %s", rig.ctrl.Phase())
	}
	if rig.ctrl.cfg.Engine.Turn() != rules.Black {
		t.Fatalf("turn = %s", rig.ctrl.cfg.Engine.Turn())
	}
	if rig.board.renders != 1 || rig.board.lastFrom != "e2" {
		t.Fatalf("render state: %+v", rig.board)
	}
}

func TestOutOfTurnRemoteMoveIsNoop(t *testing.T) {
	rig := newTestRig(t, rules.Black, "")
	ctx := context.Background()

	apply := func(from, to string) {
		payload, _ := json.Marshal(roomdto.MoveBroadcast{
			UserID: "remote",
			Move:   roomdto.Move{From: from, To: to},
		})
		rig.ctrl.HandleMessage(ctx, rig.topics.Move, payload)
	}

	apply("e2", "e4")
	before := rig.ctrl.cfg.Engine.FEN()
	// A second white move without black moving loses the tie-break.
	apply("d2", "d4")

	if rig.ctrl.cfg.Engine.FEN() != before {
		t.Fatalf("out-of-turn move applied")
	}
	if rig.ctrl.Phase() != PhaseWaitingLocalTurn {
		t.Fatalf("phase = %s", rig.ctrl.Phase())
	}
}

func TestHoverIdempotentAndGated(t *testing.T) {
	rig := newTestRig(t, rules.White, "")
	ctx := context.Background()

	first := rig.ctrl.Hover(ctx, "e2")
	second := rig.ctrl.Hover(ctx, "e2")
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("targets = %v / %v", first, second)
	}
	if rig.board.renders != 2 {
		t.Fatalf("renders = %d", rig.board.renders)
	}
	if len(rig.board.lastTargets) != 2 {
		t.Fatalf("highlight targets = %v", rig.board.lastTargets)
	}

	// Not the local turn after an applied move: hover goes quiet.
	rig.ctrl.AttemptMove(ctx, "e2", "e4", "")
	if got := rig.ctrl.Hover(ctx, "d2"); got != nil {
		t.Fatalf("hover outside local turn = %v", got)
	}
}

func TestMalformedMovePayloadDropped(t *testing.T) {
	rig := newTestRig(t, rules.Black, "")
	ctx := context.Background()

	before := rig.ctrl.cfg.Engine.FEN()
	rig.ctrl.HandleMessage(ctx, rig.topics.Move, []byte(`{"_id":"remote","move":{}}`))
	rig.ctrl.HandleMessage(ctx, rig.topics.Move, []byte("garbage"))

	if rig.ctrl.cfg.Engine.FEN() != before {
		t.Fatalf("malformed payload mutated the position")
	}
	if rig.ctrl.Phase() != PhaseWaitingRemoteTurn {
		t.Fatalf("phase = %s", rig.ctrl.Phase())
	}
}
