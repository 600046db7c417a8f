package session

import (
	"context"
	"testing"
	"time"

	nchess "github.com/corentings/chess/v2"

	"github.com/mwisniewski00/ChessPage/internal/msgcat"
	"github.com/mwisniewski00/ChessPage/internal/rules"
	"github.com/mwisniewski00/ChessPage/internal/topics"
	"github.com/mwisniewski00/ChessPage/pkg/roomdto"
)

type publishedFrame struct {
	topic   string
	payload []byte
}

type fakeTransport struct {
	subscribed []string
	published  []publishedFrame
}

func (f *fakeTransport) Subscribe(_ context.Context, topic string) error {
	f.subscribed = append(f.subscribed, topic)
	return nil
}

func (f *fakeTransport) Publish(_ context.Context, topic string, payload []byte) error {
	f.published = append(f.published, publishedFrame{topic: topic, payload: payload})
	return nil
}

type fakeBoard struct {
	renders     int
	lastFrom    string
	lastTo      string
	lastTargets []string
}

func (f *fakeBoard) Render(_ context.Context, _ *nchess.Board, lastFrom, lastTo string, targets []string) error {
	f.renders++
	f.lastFrom, f.lastTo = lastFrom, lastTo
	f.lastTargets = targets
	return nil
}

type transcriptEntry struct {
	bucket ChatBucket
	msg    roomdto.ChatMessage
}

type fakeChat struct {
	entries []transcriptEntry
	scrolls int
}

func (f *fakeChat) Append(bucket ChatBucket, msg roomdto.ChatMessage) {
	f.entries = append(f.entries, transcriptEntry{bucket: bucket, msg: msg})
}

func (f *fakeChat) ScrollToEnd() { f.scrolls++ }

type fakeShell struct {
	banners       []string
	hideSurrender int
	navigations   int
}

func (f *fakeShell) ShowBanner(text string) { f.banners = append(f.banners, text) }
func (f *fakeShell) HideSurrender()         { f.hideSurrender++ }
func (f *fakeShell) Navigate()              { f.navigations++ }

// manualScheduler captures scheduled callbacks so tests can fire them.
type manualScheduler struct {
	delays []time.Duration
	fns    []func()
}

func (s *manualScheduler) schedule(d time.Duration, fn func()) {
	s.delays = append(s.delays, d)
	s.fns = append(s.fns, fn)
}

func (s *manualScheduler) fireAll() {
	for _, fn := range s.fns {
		fn()
	}
}

type testRig struct {
	ctrl      *Controller
	transport *fakeTransport
	board     *fakeBoard
	chat      *fakeChat
	shell     *fakeShell
	sched     *manualScheduler
	topics    topics.Set
}

func newTestRig(t *testing.T, color rules.Color, fen string) *testRig {
	t.Helper()
	set, err := topics.ForRoom("room1")
	if err != nil {
		t.Fatalf("topics.ForRoom: %v", err)
	}
	engine, err := rules.NewFromFEN(fen)
	if err != nil {
		t.Fatalf("rules.NewFromFEN: %v", err)
	}
	catalog, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat.New: %v", err)
	}

	rig := &testRig{
		transport: &fakeTransport{},
		board:     &fakeBoard{},
		chat:      &fakeChat{},
		shell:     &fakeShell{},
		sched:     &manualScheduler{},
		topics:    set,
	}
	ctrl, err := New(Config{
		Topics:        set,
		LocalUserID:   "local",
		LocalUsername: "alice",
		OpponentID:    "remote",
		Color:         color,
		Engine:        engine,
		Transport:     rig.transport,
		Board:         rig.board,
		Chat:          rig.chat,
		Shell:         rig.shell,
		Catalog:       catalog,
		RedirectDelay: 10 * time.Second,
		Schedule:      rig.sched.schedule,
	})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	rig.ctrl = ctrl
	return rig
}
