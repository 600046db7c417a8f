package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/mwisniewski00/ChessPage/internal/board"
	appcfg "github.com/mwisniewski00/ChessPage/internal/config"
	"github.com/mwisniewski00/ChessPage/internal/lobby"
	"github.com/mwisniewski00/ChessPage/internal/msgcat"
	"github.com/mwisniewski00/ChessPage/internal/obslog"
	"github.com/mwisniewski00/ChessPage/internal/pubsub"
	"github.com/mwisniewski00/ChessPage/internal/rules"
	"github.com/mwisniewski00/ChessPage/internal/session"
	"github.com/mwisniewski00/ChessPage/internal/topics"
	"github.com/mwisniewski00/ChessPage/pkg/roomdto"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lobbyClient := lobby.NewClient(cfg.LobbyBaseURL, lobby.WithSessionCookie(cfg.SessionCookie))

	bootCtx, bootCancel := context.WithTimeout(ctx, 30*time.Second)
	user, err := lobbyClient.Me(bootCtx)
	if err != nil {
		bootCancel()
		log.Fatalf("lobby me error: %v", err)
	}
	room, err := lobbyClient.Room(bootCtx, cfg.RoomID)
	if err != nil {
		bootCancel()
		log.Fatalf("lobby room error: %v", err)
	}
	creds, err := lobbyClient.Credentials(bootCtx, cfg.RoomID)
	if err != nil {
		bootCancel()
		log.Fatalf("lobby credentials error: %v", err)
	}
	bootCancel()

	color, opponentID, err := assignSeat(room, user)
	if err != nil {
		log.Fatalf("seat error: %v", err)
	}

	set, err := topics.ForRoom(room.ID)
	if err != nil {
		log.Fatalf("topics error: %v", err)
	}

	engine, err := rules.NewFromFEN(room.GameFEN)
	if err != nil {
		log.Fatalf("rules engine error: %v", err)
	}

	catalog, err := msgcat.New(cfg.TemplateDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	brokerURL := creds.URL
	if cfg.BrokerURL != "" {
		brokerURL = cfg.BrokerURL
	}
	transport, err := newTransport(brokerURL, creds)
	if err != nil {
		log.Fatalf("transport error: %v", err)
	}

	// Everything below runs on one event loop: transport callbacks, stdin
	// commands, and the redirect timer all post closures here, so the
	// controller never sees concurrent calls.
	events := make(chan func(), 64)
	post := func(fn func()) {
		select {
		case events <- fn:
		case <-ctx.Done():
		}
	}

	orientation := board.WhiteSide
	if color == rules.Black {
		orientation = board.BlackSide
	}
	boardView := &fileBoardView{
		renderer: board.NewRenderer(orientation),
		sink:     &board.FileSink{Path: cfg.BoardFile},
	}
	chatView := &consoleChat{out: os.Stdout, localLabel: catalog.RenderOr("chat.label.self", nil, "You")}
	shell := &consoleShell{out: os.Stdout, leave: cancel}

	ctrl, err := session.New(session.Config{
		Topics:        set,
		LocalUserID:   user.ID,
		LocalUsername: user.Username,
		OpponentID:    opponentID,
		Color:         color,
		Engine:        engine,
		Transport:     transport,
		Board:         boardView,
		Chat:          chatView,
		Shell:         shell,
		Catalog:       catalog,
		RedirectDelay: cfg.RedirectDelay,
		Schedule: func(d time.Duration, fn func()) {
			time.AfterFunc(d, func() { post(fn) })
		},
	})
	if err != nil {
		log.Fatalf("session error: %v", err)
	}

	transport.OnMessage(func(msg *pubsub.Message) {
		topic, payload := msg.Topic, msg.Payload
		post(func() { ctrl.HandleMessage(ctx, topic, payload) })
	})
	transport.OnStateChange(func(state pubsub.State) {
		obslog.L().Info("transport_state", zap.String("state", string(state)))
	})

	connectCtx, connectCancel := context.WithTimeout(ctx, 15*time.Second)
	if err := transport.Connect(connectCtx); err != nil {
		connectCancel()
		log.Fatalf("transport connect error: %v", err)
	}
	connectCancel()

	if err := ctrl.Start(ctx); err != nil {
		log.Fatalf("session start error: %v", err)
	}
	fmt.Printf("joined room %s as %s (%s); board written to %s\n", room.ID, user.Username, color, cfg.BoardFile)
	fmt.Println("commands: say <text> | move e2e4 [q] | hover e2 | leave | quit")

	go readCommands(ctx, post, ctrl, cancel)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case fn := <-events:
			fn()
		case <-sigCh:
			cancel()
		case <-ctx.Done():
			closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = transport.Close(closeCtx)
			closeCancel()
			return
		}
	}
}

// assignSeat maps the room document onto a color: host plays white, guest
// plays black.
func assignSeat(room *roomdto.Room, user *roomdto.User) (rules.Color, string, error) {
	switch user.ID {
	case room.Host:
		return rules.White, room.Guest, nil
	case room.Guest:
		return rules.Black, room.Host, nil
	default:
		return "", "", fmt.Errorf("user %s is not a participant of room %s", user.ID, room.ID)
	}
}

func newTransport(brokerURL string, creds *roomdto.Credentials) (pubsub.Client, error) {
	switch {
	case strings.HasPrefix(brokerURL, "redis://"), strings.HasPrefix(brokerURL, "rediss://"):
		return pubsub.NewRedis(brokerURL)
	case strings.HasPrefix(brokerURL, "ws://"), strings.HasPrefix(brokerURL, "wss://"):
		return pubsub.NewWebSocket(brokerURL, creds.Username, creds.Password, 5, time.Second), nil
	default:
		return nil, fmt.Errorf("unsupported broker url: %s", brokerURL)
	}
}

func readCommands(ctx context.Context, post func(func()), ctrl *session.Controller, quit func()) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")
		switch strings.ToLower(cmd) {
		case "say":
			post(func() {
				if !ctrl.SubmitChat(ctx, rest) {
					fmt.Println("(empty message, kept)")
				}
			})
		case "move":
			from, to, promo, err := parseMoveArg(rest)
			if err != nil {
				fmt.Printf("bad move: %v\n", err)
				continue
			}
			post(func() {
				if ctrl.AttemptMove(ctx, from, to, promo) == session.DropSnapback {
					fmt.Println("(snapback)")
				}
			})
		case "hover":
			sq := strings.TrimSpace(rest)
			post(func() {
				targets := ctrl.Hover(ctx, sq)
				if len(targets) > 0 {
					fmt.Printf("legal from %s: %s\n", sq, strings.Join(targets, " "))
				}
			})
		case "leave":
			post(func() { _ = ctrl.Leave(ctx) })
		case "quit":
			quit()
			return
		default:
			fmt.Println("commands: say <text> | move e2e4 [q] | hover e2 | leave | quit")
		}
	}
}

// parseMoveArg accepts "e2e4", "e2 e4", and an optional promotion letter.
func parseMoveArg(arg string) (from, to, promo string, err error) {
	fields := strings.Fields(strings.ToLower(arg))
	switch len(fields) {
	case 0:
		return "", "", "", fmt.Errorf("missing squares")
	case 1:
		s := fields[0]
		if len(s) < 4 || len(s) > 5 {
			return "", "", "", fmt.Errorf("want e2e4 or e7e8q, got %q", s)
		}
		from, to = s[:2], s[2:4]
		if len(s) == 5 {
			promo = s[4:]
		}
	default:
		from, to = fields[0], fields[1]
		if len(fields) > 2 {
			promo = fields[2]
		}
	}
	return from, to, promo, nil
}

// fileBoardView renders each frame and writes it to the board file.
type fileBoardView struct {
	renderer board.Renderer
	sink     board.Sink
}

func (v *fileBoardView) Render(ctx context.Context, b *nchess.Board, lastFrom, lastTo string, targets []string) error {
	opts := board.RenderOptions{}
	if lastFrom != "" && lastTo != "" {
		from, err1 := board.ParseSquare(lastFrom)
		to, err2 := board.ParseSquare(lastTo)
		if err1 == nil && err2 == nil {
			opts.Highlight = &board.MoveHighlight{From: from, To: to}
		}
	}
	for _, t := range targets {
		sq, err := board.ParseSquare(t)
		if err != nil {
			continue
		}
		opts.Targets = append(opts.Targets, sq)
	}
	data, err := v.renderer.RenderPNG(ctx, b, opts)
	if err != nil {
		return err
	}
	return v.sink.Write(data)
}

// consoleChat prints the transcript to stdout, one line per message.
type consoleChat struct {
	out        *os.File
	localLabel string
}

func (c *consoleChat) Append(bucket session.ChatBucket, msg roomdto.ChatMessage) {
	label := msg.Username
	switch bucket {
	case session.BucketSelf:
		label = c.localLabel
	case session.BucketBot:
		label = "[bot] " + msg.Username
	}
	fmt.Fprintf(c.out, "%s: %s\n", label, msg.Text)
}

func (c *consoleChat) ScrollToEnd() {}

// consoleShell prints banners and ends the room view on navigation.
type consoleShell struct {
	out   *os.File
	leave func()
}

func (s *consoleShell) ShowBanner(text string) {
	fmt.Fprintf(s.out, "\n=== %s ===\n", text)
}

func (s *consoleShell) HideSurrender() {
	fmt.Fprintln(s.out, "(surrender closed)")
}

func (s *consoleShell) Navigate() {
	fmt.Fprintln(s.out, "leaving room")
	s.leave()
}
