package session

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/mwisniewski00/ChessPage/internal/obslog"
	"github.com/mwisniewski00/ChessPage/pkg/roomdto"
)

// SubmitChat publishes a chat intent. The return value tells the input
// control whether to clear itself: empty or whitespace-only submissions are
// rejected without clearing, so the user's draft is not lost. The local
// transcript is not appended here; the self bucket is driven solely by the
// server's broadcast echo.
func (c *Controller) SubmitChat(ctx context.Context, text string) bool {
	// A terminated session gates the whole submit: nothing is published and
	// the input is left untouched.
	if c.phase == PhaseTerminated {
		obslog.L().Debug("chat_drop_terminated")
		return false
	}
	if strings.TrimSpace(text) == "" {
		return false
	}
	text = normalizeChatText(text)

	msg := roomdto.ChatMessage{
		UserID:   c.cfg.LocalUserID,
		Username: c.cfg.LocalUsername,
		Text:     text,
		IsBot:    false,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		obslog.L().Warn("chat_encode_failed", zap.Error(err))
		return true
	}
	if err := c.cfg.Transport.Publish(ctx, c.cfg.Topics.ChatIntent, payload); err != nil {
		obslog.L().Warn("chat_publish_failed", zap.Error(err))
	}
	return true
}

// handleChat classifies a broadcast message into exactly one bucket. The
// self check runs before the bot check, so a self-echo flagged isBot still
// lands in the self bucket.
func (c *Controller) handleChat(msg roomdto.ChatMessage) {
	bucket := BucketPeer
	switch {
	case msg.UserID == c.cfg.LocalUserID:
		bucket = BucketSelf
	case msg.IsBot:
		bucket = BucketBot
	}
	c.cfg.Chat.Append(bucket, msg)
	c.cfg.Chat.ScrollToEnd()
}

// normalizeChatText collapses line breaks to single spaces so multi-line
// input cannot break the single-line transcript rendering.
func normalizeChatText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", " ")
	return text
}
