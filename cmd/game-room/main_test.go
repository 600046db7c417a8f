package main

import (
	"testing"

	"github.com/mwisniewski00/ChessPage/internal/rules"
	"github.com/mwisniewski00/ChessPage/pkg/roomdto"
)

func TestParseMoveArg(t *testing.T) {
	cases := []struct {
		in              string
		from, to, promo string
		wantErr         bool
	}{
		{in: "e2e4", from: "e2", to: "e4"},
		{in: "e7e8q", from: "e7", to: "e8", promo: "q"},
		{in: "e2 e4", from: "e2", to: "e4"},
		{in: "e7 e8 q", from: "e7", to: "e8", promo: "q"},
		{in: "E2E4", from: "e2", to: "e4"},
		{in: "", wantErr: true},
		{in: "e2", wantErr: true},
		{in: "e2e4qq", wantErr: true},
	}
	for _, tc := range cases {
		from, to, promo, err := parseMoveArg(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseMoveArg(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseMoveArg(%q): %v", tc.in, err)
		}
		if from != tc.from || to != tc.to || promo != tc.promo {
			t.Fatalf("parseMoveArg(%q) = %s %s %s", tc.in, from, to, promo)
		}
	}
}

func TestAssignSeat(t *testing.T) {
	room := &roomdto.Room{ID: "r1", Host: "h", Guest: "g"}

	color, opp, err := assignSeat(room, &roomdto.User{ID: "h"})
	if err != nil || color != rules.White || opp != "g" {
		t.Fatalf("host seat: %v %s %s", err, color, opp)
	}
	color, opp, err = assignSeat(room, &roomdto.User{ID: "g"})
	if err != nil || color != rules.Black || opp != "h" {
		t.Fatalf("guest seat: %v %s %s", err, color, opp)
	}
	if _, _, err := assignSeat(room, &roomdto.User{ID: "x"}); err == nil {
		t.Fatalf("expected error for non-participant")
	}
}
