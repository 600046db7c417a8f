package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mwisniewski00/ChessPage/internal/rules"
	"github.com/mwisniewski00/ChessPage/pkg/roomdto"
)

func TestSubmitChatRejectsEmpty(t *testing.T) {
	rig := newTestRig(t, rules.White, "")
	ctx := context.Background()

	for _, text := range []string{"", "   ", "\n", " \t "} {
		if rig.ctrl.SubmitChat(ctx, text) {
			t.Fatalf("SubmitChat(%q) accepted", text)
		}
	}
	if len(rig.transport.published) != 0 {
		t.Fatalf("published %d frames", len(rig.transport.published))
	}
}

func TestSubmitChatNormalizesNewlines(t *testing.T) {
	rig := newTestRig(t, rules.White, "")

	if !rig.ctrl.SubmitChat(context.Background(), "a\nb\r\nc") {
		t.Fatalf("SubmitChat rejected")
	}
	if len(rig.transport.published) != 1 {
		t.Fatalf("published %d frames", len(rig.transport.published))
	}
	frame := rig.transport.published[0]
	if frame.topic != rig.topics.ChatIntent {
		t.Fatalf("topic = %s", frame.topic)
	}
	var msg roomdto.ChatMessage
	if err := json.Unmarshal(frame.payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Text != "a b c" {
		t.Fatalf("text = %q", msg.Text)
	}
	if msg.UserID != "local" || msg.Username != "alice" || msg.IsBot {
		t.Fatalf("msg = %+v", msg)
	}
	// No local append; the transcript fills only from the broadcast echo.
	if len(rig.chat.entries) != 0 {
		t.Fatalf("transcript appended on send")
	}
}

func TestChatBucketClassification(t *testing.T) {
	rig := newTestRig(t, rules.White, "")
	ctx := context.Background()

	send := func(userID string, isBot bool) {
		payload, _ := json.Marshal(roomdto.ChatMessage{UserID: userID, Username: "x", Text: "hi", IsBot: isBot})
		rig.ctrl.HandleMessage(ctx, rig.topics.Chat, payload)
	}

	// Self precedence beats the bot flag.
	send("local", true)
	send("bot", true)
	send("remote", false)

	if len(rig.chat.entries) != 3 {
		t.Fatalf("entries = %d", len(rig.chat.entries))
	}
	if rig.chat.entries[0].bucket != BucketSelf {
		t.Fatalf("first bucket = %s", rig.chat.entries[0].bucket)
	}
	if rig.chat.entries[1].bucket != BucketBot {
		t.Fatalf("second bucket = %s", rig.chat.entries[1].bucket)
	}
	if rig.chat.entries[2].bucket != BucketPeer {
		t.Fatalf("third bucket = %s", rig.chat.entries[2].bucket)
	}
	if rig.chat.scrolls != 3 {
		t.Fatalf("scrolls = %d", rig.chat.scrolls)
	}
}

func TestSubmitChatAfterTerminationIsInert(t *testing.T) {
	rig := newTestRig(t, rules.White, "")
	ctx := context.Background()

	payload, _ := json.Marshal(roomdto.GameOverEvent{IsDraw: true})
	rig.ctrl.HandleMessage(ctx, rig.topics.GameOver, payload)

	if rig.ctrl.SubmitChat(ctx, "gg") {
		t.Fatalf("submit after termination should not clear the input")
	}
	if len(rig.transport.published) != 0 {
		t.Fatalf("published after termination")
	}
}

func TestMalformedChatPayloadDropped(t *testing.T) {
	rig := newTestRig(t, rules.White, "")
	rig.ctrl.HandleMessage(context.Background(), rig.topics.Chat, []byte("{not json"))
	if len(rig.chat.entries) != 0 {
		t.Fatalf("malformed payload reached the transcript")
	}
}

func TestUnknownTopicIgnored(t *testing.T) {
	rig := newTestRig(t, rules.White, "")
	rig.ctrl.HandleMessage(context.Background(), "/rooms/other/chat", []byte(`{}`))
	if len(rig.chat.entries) != 0 || rig.ctrl.Phase() != PhaseWaitingLocalTurn {
		t.Fatalf("unknown topic had an effect")
	}
}
