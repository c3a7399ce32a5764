package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const voiceRSSDefaultBaseURL = "https://api.voicerss.org"

// VoiceRSSProvider is the secondary speech provider. Unlike ElevenLabs it
// takes a plain GET with query parameters and reports failures as a 200
// with an "ERROR" text body.
type VoiceRSSProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// VoiceRSSOption configures the provider.
type VoiceRSSOption func(*VoiceRSSProvider)

// WithVoiceRSSBaseURL sets a custom base URL (for testing).
func WithVoiceRSSBaseURL(base string) VoiceRSSOption {
	return func(p *VoiceRSSProvider) {
		if strings.TrimSpace(base) != "" {
			p.baseURL = base
		}
	}
}

// WithVoiceRSSHTTPClient sets a custom HTTP client.
func WithVoiceRSSHTTPClient(client *http.Client) VoiceRSSOption {
	return func(p *VoiceRSSProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// NewVoiceRSS creates the fallback speech provider.
func NewVoiceRSS(apiKey string, opts ...VoiceRSSOption) *VoiceRSSProvider {
	p := &VoiceRSSProvider{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    voiceRSSDefaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *VoiceRSSProvider) Name() string {
	return "voicerss"
}

// Synthesize fetches MP3 audio for the text.
func (p *VoiceRSSProvider) Synthesize(ctx context.Context, text string) (*Audio, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("voicerss api key is missing")
	}

	q := url.Values{}
	q.Set("key", p.apiKey)
	q.Set("hl", "en-us")
	q.Set("v", "Mary")
	q.Set("c", "MP3")
	q.Set("f", "16khz_16bit_stereo")
	q.Set("src", text)

	endpoint := strings.TrimRight(p.baseURL, "/") + "/?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("voicerss %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	// VoiceRSS reports errors in-band with a 200 status.
	if bytes.HasPrefix(audio, []byte("ERROR")) {
		return nil, fmt.Errorf("voicerss: %s", strings.TrimSpace(string(audio)))
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("voicerss returned empty audio")
	}
	return &Audio{Data: audio, MIME: "audio/mpeg"}, nil
}
