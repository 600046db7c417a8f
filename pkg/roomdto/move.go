package roomdto

// Move is a fully resolved move as produced by the rules engine. The
// authoritative echo may additionally carry the position FEN after the move,
// which clients use to resync when their optimistic apply disagrees.
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	SAN       string `json:"san,omitempty"`
	Captured  string `json:"captured,omitempty"`
	Color     string `json:"color,omitempty"`
	FEN       string `json:"fen,omitempty"`
}

// MoveBroadcast is published on the move intent topic by the mover and echoed
// back on the move topic by the server once accepted.
type MoveBroadcast struct {
	UserID   string `json:"_id"`
	Username string `json:"username"`
	Move     Move   `json:"move"`
}
