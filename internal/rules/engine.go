package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Color identifies a side of the board.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Short returns the single-letter form used on the wire ("w"/"b").
func (c Color) Short() string {
	if c == Black {
		return "b"
	}
	return "w"
}

var (
	ErrIllegalMove = errf("illegal move")
	ErrInvalidFEN  = errf("invalid fen")
)

// Move is a fully resolved move as the engine applied it.
type Move struct {
	From      string
	To        string
	Promotion string
	SAN       string
	Captured  string
	Color     string // "w" or "b", the mover
	FEN       string // position after the move
}

// Engine wraps the chess library behind the narrow oracle surface the session
// core needs: attempt a move, apply an authoritative move, report the turn,
// list legal targets, serialize the position.
type Engine struct {
	game *nchess.Game
}

// New starts an engine at the standard starting position.
func New() *Engine {
	return &Engine{game: nchess.NewGame()}
}

// NewFromFEN seeds the engine from a serialized position. An empty string
// falls back to the starting position (fresh rooms have no gameFen).
func NewFromFEN(fen string) (*Engine, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return New(), nil
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	return &Engine{game: nchess.NewGame(opt)}, nil
}

// LoadFEN replaces the current position. Used to resync against an
// authoritative position when the local one has drifted.
func (e *Engine) LoadFEN(fen string) error {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return fmt.Errorf("%w: empty", ErrInvalidFEN)
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	e.game = nchess.NewGame(opt)
	return nil
}

// Turn reports whose move it is.
func (e *Engine) Turn() Color {
	if e.game.Position().Turn() == nchess.Black {
		return Black
	}
	return White
}

// FEN serializes the current position.
func (e *Engine) FEN() string { return e.game.FEN() }

// GameOver reports whether the position itself is terminal (checkmate,
// stalemate, insufficient material, ...). Session termination by surrender is
// tracked above this layer.
func (e *Engine) GameOver() bool { return e.game.Outcome() != nchess.NoOutcome }

// Outcome describes a terminal position.
type Outcome struct {
	Finished bool
	Draw     bool
	Winner   Color
	Method   string
}

func (e *Engine) Outcome() Outcome {
	switch e.game.Outcome() {
	case nchess.WhiteWon:
		return Outcome{Finished: true, Winner: White, Method: e.game.Method().String()}
	case nchess.BlackWon:
		return Outcome{Finished: true, Winner: Black, Method: e.game.Method().String()}
	case nchess.Draw:
		return Outcome{Finished: true, Draw: true, Method: e.game.Method().String()}
	default:
		return Outcome{}
	}
}

// Board exposes the current board for rendering.
func (e *Engine) Board() *nchess.Board { return e.game.Position().Board() }

// TryMove validates and applies a local gesture move. The promotion hint is
// only consulted when the move turns out to be a promotion; an empty hint
// defaults to queen.
func (e *Engine) TryMove(from, to, promotionHint string) (*Move, error) {
	return e.apply(from, to, promotionHint)
}

// ApplyRemote applies an authoritative move from the opponent. Rejections
// (out of turn, illegal against the local position) surface as ErrIllegalMove
// and leave the position untouched.
func (e *Engine) ApplyRemote(from, to, promotion string) (*Move, error) {
	return e.apply(from, to, promotion)
}

func (e *Engine) apply(from, to, promotion string) (*Move, error) {
	if e.game.Outcome() != nchess.NoOutcome {
		return nil, ErrIllegalMove
	}
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	promotion = strings.ToLower(strings.TrimSpace(promotion))
	if promotion == "" {
		promotion = "q"
	}
	if from == "" || to == "" {
		return nil, ErrIllegalMove
	}

	notationUCI := nchess.UCINotation{}
	notationSAN := nchess.AlgebraicNotation{}
	pos := e.game.Position()

	move, err := notationUCI.Decode(pos, from+to)
	if err != nil {
		move, err = notationUCI.Decode(pos, from+to+promotion)
	}
	if err != nil {
		return nil, ErrIllegalMove
	}

	captured := capturedAt(pos, move)
	san := notationSAN.Encode(pos, move)
	mover := strings.ToLower(pos.Turn().String())

	if err := e.game.Move(move, nil); err != nil {
		return nil, ErrIllegalMove
	}

	resolved := &Move{
		From:     from,
		To:       to,
		SAN:      san,
		Captured: captured,
		Color:    mover,
		FEN:      e.game.FEN(),
	}
	if uci := strings.ToLower(notationUCI.Encode(pos, move)); len(uci) > 4 {
		resolved.Promotion = uci[4:]
	}
	return resolved, nil
}

// LegalTargets lists the destination squares of every legal move from the
// given square. Read-only and idempotent; empty when the square has no moves,
// the game is over, or the square does not parse.
func (e *Engine) LegalTargets(from string) []string {
	if e.game.Outcome() != nchess.NoOutcome {
		return nil
	}
	from = strings.ToLower(strings.TrimSpace(from))
	var targets []string
	seen := map[string]bool{}
	for _, mv := range e.game.ValidMoves() {
		if mv.S1().String() != from {
			continue
		}
		to := mv.S2().String()
		if seen[to] {
			continue
		}
		seen[to] = true
		targets = append(targets, to)
	}
	return targets
}

func capturedAt(pos *nchess.Position, move *nchess.Move) string {
	if move.HasTag(nchess.EnPassant) {
		return "p"
	}
	piece := pos.Board().Piece(move.S2())
	if piece == nchess.NoPiece {
		return ""
	}
	switch piece.Type() {
	case nchess.Queen:
		return "q"
	case nchess.Rook:
		return "r"
	case nchess.Bishop:
		return "b"
	case nchess.Knight:
		return "n"
	case nchess.Pawn:
		return "p"
	default:
		return ""
	}
}

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
