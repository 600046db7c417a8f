package roomdto

// GameOverEvent is terminal for a room. `winner_id` is meaningless when
// `isDraw` is set; `surrender` marks outcomes caused by a player giving up.
type GameOverEvent struct {
	IsDraw    bool   `json:"isDraw"`
	WinnerID  string `json:"winner_id"`
	Surrender bool   `json:"surrender"`
}
