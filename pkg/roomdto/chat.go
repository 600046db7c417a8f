package roomdto

// ChatMessage is the payload of the chat topics. The `_id` field carries the
// sender's user id; matching it against the local user id is how a client
// recognizes its own echoed messages.
type ChatMessage struct {
	UserID   string `json:"_id"`
	Username string `json:"username"`
	Text     string `json:"text"`
	IsBot    bool   `json:"isBot"`
}
