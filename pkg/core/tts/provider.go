// Package tts converts companion replies to speech. An ElevenLabs primary
// and a VoiceRSS fallback are chained; when both fail the caller gets a nil
// audio reference, which means "use on-device speech output instead".
package tts

import (
	"context"
	"encoding/base64"
)

// Audio is a self-contained audio payload. The caller decides whether to
// persist it or hand it straight to playback.
type Audio struct {
	Data []byte
	MIME string
}

// DataURL encodes the payload as a data: URI suitable for direct playback
// in a browser audio element.
func (a *Audio) DataURL() string {
	if a == nil || len(a.Data) == 0 {
		return ""
	}
	return "data:" + a.MIME + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// Provider is one speech synthesis backend.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to audio. A missing credential is an error
	// like any other; the chain decides what failures mean.
	Synthesize(ctx context.Context, text string) (*Audio, error)
}
