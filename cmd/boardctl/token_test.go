package main

import (
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v4"

	"prism-board/api"
	"prism-board/config"
)

func TestTokenAcceptedByHS256Auth(t *testing.T) {
	out, err := executeCommand(rootCmd, "token", "alice", "--secret", "s3cret", "--audience", "", "--count", "1", "--json=false")
	if err != nil {
		t.Fatalf("token: %v\n%s", err, out)
	}
	tok := strings.TrimSpace(out)

	auth, err := api.NewAuth(config.AuthHS256, nil, "", "", []byte("s3cret"))
	if err != nil {
		t.Fatalf("new auth: %v", err)
	}
	p, err := auth.Authenticate("Bearer " + tok)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if p.UserID != "alice" {
		t.Fatalf("unexpected user %q", p.UserID)
	}
}

func TestTokenBatchUsesPrefix(t *testing.T) {
	out, err := executeCommand(rootCmd, "token", "--secret", "s3cret", "--audience", "", "--count", "3", "--prefix", "perf", "--start", "5", "--json=false")
	if err != nil {
		t.Fatalf("token: %v\n%s", err, out)
	}
	lines := strings.Fields(out)
	if len(lines) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(lines))
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(lines[2], claims); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims["sub"] != "perf-7" {
		t.Fatalf("unexpected sub %v", claims["sub"])
	}
}

func TestTokenRequiresSecret(t *testing.T) {
	if _, err := executeCommand(rootCmd, "token", "bob", "--secret", "", "--count", "1"); err == nil {
		t.Fatalf("expected missing secret error")
	}
	if _, err := executeCommand(rootCmd, "token", "bob", "--secret", "x", "--count", "2"); err == nil {
		t.Fatalf("expected user id with count error")
	}
}
