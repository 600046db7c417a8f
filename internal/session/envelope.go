package session

import (
	"encoding/json"
	"fmt"

	"github.com/mwisniewski00/ChessPage/internal/topics"
	"github.com/mwisniewski00/ChessPage/pkg/roomdto"
)

type eventKind int

const (
	kindUnknown eventKind = iota
	kindChat
	kindMove
	kindGameOver
)

// event is the decoded form of an inbound frame. Exactly one field is set,
// matching the kind.
type event struct {
	kind     eventKind
	chat     *roomdto.ChatMessage
	move     *roomdto.MoveBroadcast
	gameOver *roomdto.GameOverEvent
}

// decodeEnvelope classifies an inbound frame by topic and decodes the payload
// once, at the boundary. Unknown topics return kindUnknown with a nil error;
// a payload that does not parse returns an error and the frame must be
// dropped without touching session state.
func decodeEnvelope(set topics.Set, topic string, payload []byte) (event, error) {
	switch topic {
	case set.Chat:
		var msg roomdto.ChatMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return event{}, fmt.Errorf("chat payload: %w", err)
		}
		return event{kind: kindChat, chat: &msg}, nil
	case set.Move:
		var mb roomdto.MoveBroadcast
		if err := json.Unmarshal(payload, &mb); err != nil {
			return event{}, fmt.Errorf("move payload: %w", err)
		}
		if mb.Move.From == "" || mb.Move.To == "" {
			return event{}, fmt.Errorf("move payload: missing from/to")
		}
		return event{kind: kindMove, move: &mb}, nil
	case set.GameOver:
		var ev roomdto.GameOverEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return event{}, fmt.Errorf("game over payload: %w", err)
		}
		return event{kind: kindGameOver, gameOver: &ev}, nil
	default:
		return event{kind: kindUnknown}, nil
	}
}
