package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	LobbyBaseURL string
	RoomID       string

	// Overrides the broker URL from the lobby credentials when set.
	BrokerURL string

	SessionCookie string

	BoardFile   string
	TemplateDir string

	RedirectDelay time.Duration
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		BoardFile:     "board.png",
		RedirectDelay: 10 * time.Second,
	}

	cfg.LobbyBaseURL = strings.TrimSpace(os.Getenv("CHESSPAGE_LOBBY_URL"))
	cfg.RoomID = strings.TrimSpace(os.Getenv("CHESSPAGE_ROOM_ID"))
	cfg.BrokerURL = strings.TrimSpace(os.Getenv("CHESSPAGE_BROKER_URL"))
	cfg.SessionCookie = strings.TrimSpace(os.Getenv("CHESSPAGE_SESSION_COOKIE"))
	cfg.TemplateDir = strings.TrimSpace(os.Getenv("CHESSPAGE_TEMPLATE_DIR"))

	if v := strings.TrimSpace(os.Getenv("CHESSPAGE_BOARD_FILE")); v != "" {
		cfg.BoardFile = v
	}
	if v := strings.TrimSpace(os.Getenv("CHESSPAGE_REDIRECT_DELAY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RedirectDelay = time.Duration(n) * time.Second
		}
	}

	if cfg.LobbyBaseURL == "" {
		return nil, errors.New("CHESSPAGE_LOBBY_URL is required")
	}
	if cfg.RoomID == "" {
		return nil, errors.New("CHESSPAGE_ROOM_ID is required")
	}

	return cfg, nil
}
