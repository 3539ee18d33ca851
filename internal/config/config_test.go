package config

import (
	"log/slog"
	"testing"
	"time"
)

func clearAllEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DOORMAN_REGISTRY", "DOORMAN_NATS_URL", "DOORMAN_SUBJECT_PREFIX",
		"DOORMAN_HTTP_ADDR", "DOORMAN_AUTH_TOKEN", "DOORMAN_LOG_LEVEL",
		"DOORMAN_REPLY_FOLLOW",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	for _, tc := range []struct {
		name       string
		env        map[string]string
		wantErr    bool
		wantNATS   string
		wantPrefix string
		wantHTTP   string
		wantToken  string
	}{
		{
			name:    "MissingRegistry",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name:       "Defaults",
			env:        map[string]string{"DOORMAN_REGISTRY": "/etc/doorman/doors.toml"},
			wantNATS:   "nats://127.0.0.1:4222",
			wantPrefix: "doors",
			wantHTTP:   ":8089",
		},
		{
			name: "Custom",
			env: map[string]string{
				"DOORMAN_REGISTRY":       "doors.toml",
				"DOORMAN_NATS_URL":       "nats://bus:4222",
				"DOORMAN_SUBJECT_PREFIX": "garage",
				"DOORMAN_HTTP_ADDR":      ":9000",
				"DOORMAN_AUTH_TOKEN":     "sekrit",
			},
			wantNATS:   "nats://bus:4222",
			wantPrefix: "garage",
			wantHTTP:   ":9000",
			wantToken:  "sekrit",
		},
		{
			name: "BadPrefix",
			env: map[string]string{
				"DOORMAN_REGISTRY":       "doors.toml",
				"DOORMAN_SUBJECT_PREFIX": "doors.v1",
			},
			wantErr: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearAllEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.RegistryPath != tc.env["DOORMAN_REGISTRY"] {
				t.Errorf("RegistryPath = %q, want %q", cfg.RegistryPath, tc.env["DOORMAN_REGISTRY"])
			}
			if cfg.NATSURL != tc.wantNATS {
				t.Errorf("NATSURL = %q, want %q", cfg.NATSURL, tc.wantNATS)
			}
			if cfg.SubjectPrefix != tc.wantPrefix {
				t.Errorf("SubjectPrefix = %q, want %q", cfg.SubjectPrefix, tc.wantPrefix)
			}
			if cfg.HTTPAddr != tc.wantHTTP {
				t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, tc.wantHTTP)
			}
			if cfg.AuthToken != tc.wantToken {
				t.Errorf("AuthToken = %q, want %q", cfg.AuthToken, tc.wantToken)
			}
		})
	}
}

func TestLoadLogLevel(t *testing.T) {
	for _, tc := range []struct {
		val     string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", 0, true},
	} {
		t.Run("Level_"+tc.val, func(t *testing.T) {
			clearAllEnv(t)
			t.Setenv("DOORMAN_REGISTRY", "doors.toml")
			t.Setenv("DOORMAN_LOG_LEVEL", tc.val)

			cfg, err := Load()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.LogLevel != tc.want {
				t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, tc.want)
			}
		})
	}
}

func TestLoadReplyFollow(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("DOORMAN_REGISTRY", "doors.toml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ReplyFollow != 90*time.Second {
		t.Errorf("ReplyFollow = %v, want 90s", cfg.ReplyFollow)
	}

	t.Setenv("DOORMAN_REPLY_FOLLOW", "2m")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ReplyFollow != 2*time.Minute {
		t.Errorf("ReplyFollow = %v, want 2m", cfg.ReplyFollow)
	}

	t.Setenv("DOORMAN_REPLY_FOLLOW", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid DOORMAN_REPLY_FOLLOW")
	}
}

func TestEnvOrDefault(t *testing.T) {
	for _, tc := range []struct {
		name     string
		key      string
		envVal   string
		fallback string
		want     string
	}{
		{"EmptyUsesDefault", "TEST_ENVDEFAULT_EMPTY", "", "default-val", "default-val"},
		{"SetUsesEnv", "TEST_ENVDEFAULT_SET", "custom", "default-val", "custom"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.envVal)
			got := envOrDefault(tc.key, tc.fallback)
			if got != tc.want {
				t.Errorf("envOrDefault(%q, %q) = %q, want %q", tc.key, tc.fallback, got, tc.want)
			}
		})
	}
}
