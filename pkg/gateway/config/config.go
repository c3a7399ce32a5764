package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CompletionBackend selects which completion provider the daemon wires.
type CompletionBackend string

const (
	BackendOpenAI CompletionBackend = "openai"
	BackendGemini CompletionBackend = "gemini"
)

type Config struct {
	Addr string

	// Empty means the in-memory store (dev mode, no persistence).
	DatabaseURL string

	// Completion oracle.
	CompletionBackend CompletionBackend
	CompletionAPIKey  string
	CompletionBaseURL string
	CompletionModel   string
	GeminiAPIKey      string

	// Speech synthesis. Missing keys disable the respective provider;
	// voice turns then fall back to text-only replies.
	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string
	VoiceRSSAPIKey    string

	// Identity. IdentityBaseURL points at the token-lookup service; the
	// static keys map "token=userID" pairs for dev deployments.
	IdentityBaseURL string
	IdentityAPIKey  string
	StaticTokens    map[string]string

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Turn pipeline.
	HistoryLimit      int
	CompletionTimeout time.Duration

	// Capture state machine defaults pushed to live call sessions.
	CaptureQuietPeriod   time.Duration
	CaptureMinTranscript int
	CaptureRearmDelay    time.Duration

	// Live WebSocket sessions.
	WSPingInterval time.Duration
	WSWriteTimeout time.Duration

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                 envOr("SERENOVA_ADDR", ":8080"),
		DatabaseURL:          envOr("SERENOVA_DATABASE_URL", ""),
		CompletionBackend:    CompletionBackend(envOr("SERENOVA_COMPLETION_BACKEND", string(BackendOpenAI))),
		CompletionAPIKey:     envOr("SERENOVA_COMPLETION_API_KEY", ""),
		CompletionBaseURL:    envOr("SERENOVA_COMPLETION_BASE_URL", "https://api.together.xyz/v1"),
		CompletionModel:      envOr("SERENOVA_COMPLETION_MODEL", "meta-llama/Llama-3-8b-chat-hf"),
		GeminiAPIKey:         envOr("SERENOVA_GEMINI_API_KEY", ""),
		ElevenLabsAPIKey:     envOr("SERENOVA_ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:    envOr("SERENOVA_ELEVENLABS_VOICE_ID", ""),
		VoiceRSSAPIKey:       envOr("SERENOVA_VOICERSS_API_KEY", ""),
		IdentityBaseURL:      envOr("SERENOVA_IDENTITY_BASE_URL", ""),
		IdentityAPIKey:       envOr("SERENOVA_IDENTITY_API_KEY", ""),
		StaticTokens:         make(map[string]string),
		CORSAllowedOrigins:   make(map[string]struct{}),
		HistoryLimit:         envIntOr("SERENOVA_HISTORY_LIMIT", 40),
		CompletionTimeout:    envDurationOr("SERENOVA_COMPLETION_TIMEOUT", 30*time.Second),
		CaptureQuietPeriod:   envDurationOr("SERENOVA_CAPTURE_QUIET_PERIOD", 1500*time.Millisecond),
		CaptureMinTranscript: envIntOr("SERENOVA_CAPTURE_MIN_TRANSCRIPT", 11),
		CaptureRearmDelay:    envDurationOr("SERENOVA_CAPTURE_REARM_DELAY", 500*time.Millisecond),
		WSPingInterval:       envDurationOr("SERENOVA_WS_PING_INTERVAL", 20*time.Second),
		WSWriteTimeout:       envDurationOr("SERENOVA_WS_WRITE_TIMEOUT", 5*time.Second),
		ReadHeaderTimeout:    envDurationOr("SERENOVA_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:          envDurationOr("SERENOVA_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod:  envDurationOr("SERENOVA_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	switch cfg.CompletionBackend {
	case BackendOpenAI, BackendGemini:
	default:
		return Config{}, fmt.Errorf("SERENOVA_COMPLETION_BACKEND must be one of openai|gemini")
	}

	for _, origin := range splitCSV(os.Getenv("SERENOVA_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	// token=userID pairs, comma separated.
	for _, pair := range splitCSV(os.Getenv("SERENOVA_STATIC_TOKENS")) {
		token, userID, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(token) == "" || strings.TrimSpace(userID) == "" {
			return Config{}, fmt.Errorf("SERENOVA_STATIC_TOKENS entries must look like token=userID")
		}
		cfg.StaticTokens[strings.TrimSpace(token)] = strings.TrimSpace(userID)
	}

	if cfg.IdentityBaseURL == "" && len(cfg.StaticTokens) == 0 {
		return Config{}, fmt.Errorf("either SERENOVA_IDENTITY_BASE_URL or SERENOVA_STATIC_TOKENS must be set")
	}
	if cfg.HistoryLimit <= 0 {
		return Config{}, fmt.Errorf("SERENOVA_HISTORY_LIMIT must be > 0")
	}
	if cfg.CompletionTimeout <= 0 {
		return Config{}, fmt.Errorf("SERENOVA_COMPLETION_TIMEOUT must be > 0")
	}
	if cfg.CaptureQuietPeriod <= 0 {
		return Config{}, fmt.Errorf("SERENOVA_CAPTURE_QUIET_PERIOD must be > 0")
	}
	if cfg.CaptureMinTranscript <= 0 {
		return Config{}, fmt.Errorf("SERENOVA_CAPTURE_MIN_TRANSCRIPT must be > 0")
	}
	if cfg.CaptureRearmDelay <= 0 {
		return Config{}, fmt.Errorf("SERENOVA_CAPTURE_REARM_DELAY must be > 0")
	}
	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("SERENOVA_WS_PING_INTERVAL must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("SERENOVA_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("SERENOVA_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("SERENOVA_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("SERENOVA_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if cfg.CompletionBackend == BackendGemini && cfg.GeminiAPIKey == "" {
		return Config{}, fmt.Errorf("SERENOVA_GEMINI_API_KEY must be set when SERENOVA_COMPLETION_BACKEND=gemini")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
