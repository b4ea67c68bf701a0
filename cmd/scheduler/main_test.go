package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chopshop-gg/platform/pkg/logger"
)

func TestLoadJobConfigDefaults(t *testing.T) {
	cfg, err := loadJobConfig("")
	if err != nil {
		t.Fatalf("loadJobConfig: %v", err)
	}
	if cfg.Schedule != "* * * * *" {
		t.Fatalf("unexpected default schedule %q", cfg.Schedule)
	}
	if cfg.TickURL != "http://localhost:8080/auction/tick" {
		t.Fatalf("unexpected default tick_url %q", cfg.TickURL)
	}
	if cfg.Timeout != 30*time.Second {
		t.Fatalf("unexpected default timeout %v", cfg.Timeout)
	}
}

func TestLoadJobConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.yaml")
	body := "schedule: \"*/5 * * * *\"\ntick_url: http://api:8080/auction/tick\nauth_token: secret\ntimeout: 5s\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadJobConfig(path)
	if err != nil {
		t.Fatalf("loadJobConfig: %v", err)
	}
	if cfg.Schedule != "*/5 * * * *" {
		t.Fatalf("schedule = %q", cfg.Schedule)
	}
	if cfg.TickURL != "http://api:8080/auction/tick" {
		t.Fatalf("tick_url = %q", cfg.TickURL)
	}
	if cfg.AuthToken != "secret" {
		t.Fatalf("auth_token = %q", cfg.AuthToken)
	}
	if cfg.Timeout != 5*time.Second {
		t.Fatalf("timeout = %v", cfg.Timeout)
	}
}

func TestLoadJobConfigMissingURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.yaml")
	if err := os.WriteFile(path, []byte("tick_url: \"\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadJobConfig(path); err == nil {
		t.Fatal("expected error for empty tick_url")
	}
}

func TestTickSendsBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","transitioned":[],"finalized":[],"started":null}`))
	}))
	defer server.Close()

	cfg := jobConfig{TickURL: server.URL, AuthToken: "secret", Timeout: time.Second}
	tick(context.Background(), server.Client(), cfg, logger.NewDefault("test"))

	if gotAuth != "Bearer secret" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
}
