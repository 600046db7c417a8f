package session

import (
	"context"

	nchess "github.com/corentings/chess/v2"

	"github.com/mwisniewski00/ChessPage/pkg/roomdto"
)

// Phase is the turn-taking state of the room.
type Phase string

const (
	// PhaseWaitingLocalTurn accepts drag gestures.
	PhaseWaitingLocalTurn Phase = "waiting_local_turn"
	// PhasePendingLocalMove is the window between publishing a local move
	// intent and receiving its authoritative echo. Gestures are disabled.
	PhasePendingLocalMove Phase = "pending_local_move"
	// PhaseWaitingRemoteTurn waits for the opponent's broadcast.
	PhaseWaitingRemoteTurn Phase = "waiting_remote_turn"
	// PhaseTerminated is entered once, on a game-over broadcast. One-way.
	PhaseTerminated Phase = "terminated"
	// PhaseDesynced locks gameplay after an irreconcilable self-echo.
	PhaseDesynced Phase = "desynced"
)

// DropResult tells the gesture layer what to do with a dropped piece.
type DropResult string

const (
	DropApplied  DropResult = "applied"
	DropSnapback DropResult = "snapback"
)

// ChatBucket is the presentation class of a transcript entry.
type ChatBucket string

const (
	BucketSelf ChatBucket = "self"
	BucketBot  ChatBucket = "bot"
	BucketPeer ChatBucket = "peer"
)

// Transport is the slice of the pub/sub client the controller needs.
type Transport interface {
	Subscribe(ctx context.Context, topic string) error
	Publish(ctx context.Context, topic string, payload []byte) error
}

// BoardView draws the position. lastFrom/lastTo mark the most recent move,
// targets are hover highlight squares; either may be empty.
type BoardView interface {
	Render(ctx context.Context, board *nchess.Board, lastFrom, lastTo string, targets []string) error
}

// ChatView is the transcript.
type ChatView interface {
	Append(bucket ChatBucket, msg roomdto.ChatMessage)
	ScrollToEnd()
}

// Shell is the surrounding room view: the terminal banner, the surrender
// affordance, and navigation away from the room.
type Shell interface {
	ShowBanner(text string)
	HideSurrender()
	Navigate()
}
