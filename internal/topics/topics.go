package topics

import (
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidRoomID is returned for an empty or malformed room identifier.
var ErrInvalidRoomID = errf("invalid room id")

// roomIDPattern matches the identifiers the lobby hands out. Anything else
// (slashes, whitespace, wildcard characters) would bleed into other rooms'
// topic namespaces.
var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Set holds the six topics of a room: three broadcast topics subscribed by
// both participants and three intent topics consumed only by the server.
type Set struct {
	Chat           string
	ChatIntent     string
	Move           string
	MoveIntent     string
	GameOver       string
	GameOverIntent string
}

// ForRoom derives the topic set for a room. Pure: same room id, same set.
func ForRoom(roomID string) (Set, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" || !roomIDPattern.MatchString(roomID) {
		return Set{}, fmt.Errorf("%w: %q", ErrInvalidRoomID, roomID)
	}
	return Set{
		Chat:           "/rooms/" + roomID + "/chat",
		ChatIntent:     "/server/rooms/" + roomID + "/chat",
		Move:           "/rooms/" + roomID + "/game/move",
		MoveIntent:     "/server/rooms/" + roomID + "/game/move",
		GameOver:       "/rooms/" + roomID + "/game/over",
		GameOverIntent: "/server/rooms/" + roomID + "/game/over",
	}, nil
}

// Broadcast lists the topics a participant subscribes to.
func (s Set) Broadcast() []string {
	return []string{s.Chat, s.Move, s.GameOver}
}

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
