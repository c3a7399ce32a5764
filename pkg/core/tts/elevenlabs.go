package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

const elevenLabsDefaultBaseURL = "https://api.elevenlabs.io"

// ElevenLabsProvider synthesizes speech through the ElevenLabs REST API.
type ElevenLabsProvider struct {
	apiKey     string
	voiceID    string
	baseURL    string
	httpClient *http.Client
}

// ElevenLabsOption configures the provider.
type ElevenLabsOption func(*ElevenLabsProvider)

// WithElevenLabsBaseURL sets a custom base URL (for testing).
func WithElevenLabsBaseURL(base string) ElevenLabsOption {
	return func(p *ElevenLabsProvider) {
		if strings.TrimSpace(base) != "" {
			p.baseURL = base
		}
	}
}

// WithElevenLabsHTTPClient sets a custom HTTP client.
func WithElevenLabsHTTPClient(client *http.Client) ElevenLabsOption {
	return func(p *ElevenLabsProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// NewElevenLabs creates the primary speech provider.
func NewElevenLabs(apiKey, voiceID string, opts ...ElevenLabsOption) *ElevenLabsProvider {
	p := &ElevenLabsProvider{
		apiKey:     strings.TrimSpace(apiKey),
		voiceID:    strings.TrimSpace(voiceID),
		baseURL:    elevenLabsDefaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *ElevenLabsProvider) Name() string {
	return "elevenlabs"
}

// Synthesize posts the text as a multipart form and returns MP3 audio.
func (p *ElevenLabsProvider) Synthesize(ctx context.Context, text string) (*Audio, error) {
	if p.apiKey == "" || p.voiceID == "" {
		return nil, fmt.Errorf("elevenlabs api key or voice id is missing")
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("text", text); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	if err := form.WriteField("model_id", "eleven_monolingual_v1"); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	if err := form.WriteField("voice_settings", `{"stability":0.5,"similarity_boost":0.75}`); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}

	endpoint := strings.TrimRight(p.baseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(p.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("elevenlabs %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("elevenlabs returned empty audio")
	}
	return &Audio{Data: audio, MIME: "audio/mpeg"}, nil
}
