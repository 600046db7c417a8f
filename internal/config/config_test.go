package config

import (
	"testing"
	"time"
)

func TestLoadRequiredAndDefaults(t *testing.T) {
	t.Setenv("CHESSPAGE_LOBBY_URL", "http://lobby.local")
	t.Setenv("CHESSPAGE_ROOM_ID", "r1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BoardFile != "board.png" {
		t.Fatalf("BoardFile = %q", cfg.BoardFile)
	}
	if cfg.RedirectDelay != 10*time.Second {
		t.Fatalf("RedirectDelay = %s", cfg.RedirectDelay)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHESSPAGE_LOBBY_URL", "http://lobby.local")
	t.Setenv("CHESSPAGE_ROOM_ID", "r1")
	t.Setenv("CHESSPAGE_BOARD_FILE", "/tmp/b.png")
	t.Setenv("CHESSPAGE_REDIRECT_DELAY", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BoardFile != "/tmp/b.png" || cfg.RedirectDelay != 3*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("CHESSPAGE_LOBBY_URL", "")
	t.Setenv("CHESSPAGE_ROOM_ID", "r1")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without lobby url")
	}

	t.Setenv("CHESSPAGE_LOBBY_URL", "http://lobby.local")
	t.Setenv("CHESSPAGE_ROOM_ID", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without room id")
	}
}
