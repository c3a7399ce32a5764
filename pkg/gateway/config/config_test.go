package config

import (
	"strings"
	"testing"
	"time"
)

var gatewayEnvKeys = []string{
	"SERENOVA_ADDR",
	"SERENOVA_DATABASE_URL",
	"SERENOVA_COMPLETION_BACKEND",
	"SERENOVA_COMPLETION_API_KEY",
	"SERENOVA_COMPLETION_BASE_URL",
	"SERENOVA_COMPLETION_MODEL",
	"SERENOVA_GEMINI_API_KEY",
	"SERENOVA_ELEVENLABS_API_KEY",
	"SERENOVA_ELEVENLABS_VOICE_ID",
	"SERENOVA_VOICERSS_API_KEY",
	"SERENOVA_IDENTITY_BASE_URL",
	"SERENOVA_IDENTITY_API_KEY",
	"SERENOVA_STATIC_TOKENS",
	"SERENOVA_CORS_ORIGINS",
	"SERENOVA_HISTORY_LIMIT",
	"SERENOVA_COMPLETION_TIMEOUT",
	"SERENOVA_CAPTURE_QUIET_PERIOD",
	"SERENOVA_CAPTURE_MIN_TRANSCRIPT",
	"SERENOVA_CAPTURE_REARM_DELAY",
	"SERENOVA_WS_PING_INTERVAL",
	"SERENOVA_WS_WRITE_TIMEOUT",
	"SERENOVA_READ_HEADER_TIMEOUT",
	"SERENOVA_READ_TIMEOUT",
	"SERENOVA_SHUTDOWN_GRACE_PERIOD",
}

func clearGatewayEnv(t *testing.T) {
	t.Helper()
	for _, key := range gatewayEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("SERENOVA_IDENTITY_BASE_URL", "https://identity.example")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("DatabaseURL = %q, want empty (in-memory store)", cfg.DatabaseURL)
	}
	if cfg.CompletionBackend != BackendOpenAI {
		t.Fatalf("CompletionBackend = %q", cfg.CompletionBackend)
	}
	if cfg.CompletionBaseURL != "https://api.together.xyz/v1" {
		t.Fatalf("CompletionBaseURL = %q", cfg.CompletionBaseURL)
	}
	if cfg.CompletionModel != "meta-llama/Llama-3-8b-chat-hf" {
		t.Fatalf("CompletionModel = %q", cfg.CompletionModel)
	}
	if cfg.HistoryLimit != 40 {
		t.Fatalf("HistoryLimit = %d, want 40", cfg.HistoryLimit)
	}
	if cfg.CompletionTimeout != 30*time.Second {
		t.Fatalf("CompletionTimeout = %v, want 30s", cfg.CompletionTimeout)
	}
	if cfg.CaptureQuietPeriod != 1500*time.Millisecond {
		t.Fatalf("CaptureQuietPeriod = %v, want 1.5s", cfg.CaptureQuietPeriod)
	}
	if cfg.CaptureMinTranscript != 11 {
		t.Fatalf("CaptureMinTranscript = %d, want 11", cfg.CaptureMinTranscript)
	}
	if cfg.CaptureRearmDelay != 500*time.Millisecond {
		t.Fatalf("CaptureRearmDelay = %v, want 500ms", cfg.CaptureRearmDelay)
	}
	if cfg.WSPingInterval != 20*time.Second {
		t.Fatalf("WSPingInterval = %v, want 20s", cfg.WSPingInterval)
	}
	if cfg.ShutdownGracePeriod != 30*time.Second {
		t.Fatalf("ShutdownGracePeriod = %v, want 30s", cfg.ShutdownGracePeriod)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("SERENOVA_ADDR", ":9090")
	t.Setenv("SERENOVA_DATABASE_URL", "postgres://localhost/serenova")
	t.Setenv("SERENOVA_COMPLETION_BACKEND", "gemini")
	t.Setenv("SERENOVA_GEMINI_API_KEY", "gk")
	t.Setenv("SERENOVA_IDENTITY_BASE_URL", "https://identity.example")
	t.Setenv("SERENOVA_CORS_ORIGINS", "https://a.example, https://b.example,,")
	t.Setenv("SERENOVA_HISTORY_LIMIT", "12")
	t.Setenv("SERENOVA_CAPTURE_QUIET_PERIOD", "900ms")
	t.Setenv("SERENOVA_CAPTURE_MIN_TRANSCRIPT", "5")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Addr != ":9090" || cfg.DatabaseURL != "postgres://localhost/serenova" {
		t.Fatalf("Addr/DatabaseURL = %q/%q", cfg.Addr, cfg.DatabaseURL)
	}
	if cfg.CompletionBackend != BackendGemini || cfg.GeminiAPIKey != "gk" {
		t.Fatalf("backend = %q, gemini key = %q", cfg.CompletionBackend, cfg.GeminiAPIKey)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("CORSAllowedOrigins len=%d, want 2", len(cfg.CORSAllowedOrigins))
	}
	if _, ok := cfg.CORSAllowedOrigins["https://b.example"]; !ok {
		t.Fatalf("missing https://b.example")
	}
	if cfg.HistoryLimit != 12 {
		t.Fatalf("HistoryLimit = %d, want 12", cfg.HistoryLimit)
	}
	if cfg.CaptureQuietPeriod != 900*time.Millisecond || cfg.CaptureMinTranscript != 5 {
		t.Fatalf("capture config = %v/%d", cfg.CaptureQuietPeriod, cfg.CaptureMinTranscript)
	}
}

func TestLoadFromEnv_ParsesStaticTokens(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("SERENOVA_STATIC_TOKENS", "tok1=user-1, tok2=user-2")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if len(cfg.StaticTokens) != 2 {
		t.Fatalf("StaticTokens len=%d, want 2", len(cfg.StaticTokens))
	}
	if cfg.StaticTokens["tok2"] != "user-2" {
		t.Fatalf("tok2 = %q", cfg.StaticTokens["tok2"])
	}
}

func TestLoadFromEnv_Rejections(t *testing.T) {
	cases := []struct {
		name      string
		env       map[string]string
		errSubstr string
	}{
		{
			name:      "no identity source",
			env:       map[string]string{},
			errSubstr: "SERENOVA_IDENTITY_BASE_URL",
		},
		{
			name: "bad backend",
			env: map[string]string{
				"SERENOVA_IDENTITY_BASE_URL":  "https://identity.example",
				"SERENOVA_COMPLETION_BACKEND": "bedrock",
			},
			errSubstr: "SERENOVA_COMPLETION_BACKEND",
		},
		{
			name: "gemini backend without key",
			env: map[string]string{
				"SERENOVA_IDENTITY_BASE_URL":  "https://identity.example",
				"SERENOVA_COMPLETION_BACKEND": "gemini",
			},
			errSubstr: "SERENOVA_GEMINI_API_KEY",
		},
		{
			name: "malformed static token",
			env: map[string]string{
				"SERENOVA_STATIC_TOKENS": "justatoken",
			},
			errSubstr: "SERENOVA_STATIC_TOKENS",
		},
		{
			name: "zero history limit",
			env: map[string]string{
				"SERENOVA_IDENTITY_BASE_URL": "https://identity.example",
				"SERENOVA_HISTORY_LIMIT":     "0",
			},
			errSubstr: "SERENOVA_HISTORY_LIMIT",
		},
		{
			name: "zero quiet period",
			env: map[string]string{
				"SERENOVA_IDENTITY_BASE_URL":    "https://identity.example",
				"SERENOVA_CAPTURE_QUIET_PERIOD": "0s",
			},
			errSubstr: "SERENOVA_CAPTURE_QUIET_PERIOD",
		},
		{
			name: "zero shutdown grace",
			env: map[string]string{
				"SERENOVA_IDENTITY_BASE_URL":     "https://identity.example",
				"SERENOVA_SHUTDOWN_GRACE_PERIOD": "0s",
			},
			errSubstr: "SERENOVA_SHUTDOWN_GRACE_PERIOD",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearGatewayEnv(t)
			for key, value := range tc.env {
				t.Setenv(key, value)
			}
			_, err := LoadFromEnv()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.errSubstr) {
				t.Fatalf("error = %v, expected substring %q", err, tc.errSubstr)
			}
		})
	}
}
