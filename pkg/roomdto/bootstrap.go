package roomdto

// The three blobs a room view receives at load time.

// Credentials are the broker credentials for the room's pub/sub channel.
type Credentials struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// User is the locally signed-in player.
type User struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
}

// Room describes the game room. Host plays white, guest plays black.
// GameFEN, when present, seeds a mid-game resume position.
type Room struct {
	ID      string `json:"_id"`
	Host    string `json:"host"`
	Guest   string `json:"guest"`
	GameFEN string `json:"gameFen,omitempty"`
}
