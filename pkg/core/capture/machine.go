// Package capture implements the voice capture state machine: it owns the
// microphone for the duration of a call session, debounces transcript
// fragments into finalized utterances, and keeps capture and assistant
// playback mutually exclusive.
package capture

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Phase is the machine's single authoritative state.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseListening  Phase = "listening"
	PhaseDebouncing Phase = "debouncing"
	PhaseFinalizing Phase = "finalizing"
	PhaseSpeaking   Phase = "speaking"
	PhaseError      Phase = "error"
)

const (
	// DefaultQuietPeriod is how long after the last fragment an utterance
	// is considered complete.
	DefaultQuietPeriod = 1500 * time.Millisecond
	// DefaultMinTranscript is the minimum utterance length in runes;
	// shorter transcripts are discarded without a turn.
	DefaultMinTranscript = 11
	// DefaultRearmDelay is the pause before capture re-arms after an
	// engine error.
	DefaultRearmDelay = 500 * time.Millisecond
)

// Config tunes the machine's timing thresholds. Zero values take the
// defaults.
type Config struct {
	QuietPeriod   time.Duration
	MinTranscript int
	RearmDelay    time.Duration
}

func (c Config) withDefaults() Config {
	if c.QuietPeriod <= 0 {
		c.QuietPeriod = DefaultQuietPeriod
	}
	if c.MinTranscript <= 0 {
		c.MinTranscript = DefaultMinTranscript
	}
	if c.RearmDelay <= 0 {
		c.RearmDelay = DefaultRearmDelay
	}
	return c
}

// Callbacks are invoked outside the machine's lock, so they may call back
// into the machine.
type Callbacks struct {
	// OnFinalize receives the debounced transcript when an utterance is
	// handed to the turn pipeline. The session must answer with
	// TurnComplete or TurnFailed.
	OnFinalize func(transcript string)
	// OnPhaseChange observes every transition.
	OnPhaseChange func(from, to Phase, reason string)
}

// Machine is the capture state machine for one call session. All methods
// are safe for concurrent use.
type Machine struct {
	cfg Config
	cb  Callbacks

	mu         sync.Mutex
	phase      Phase
	active     bool
	muted      bool
	speakerOff bool
	committed  []string
	pending    string
	quietTimer *time.Timer
	rearmTimer *time.Timer
	gen        int // invalidates stale timer callbacks
}

// New creates a machine in the idle phase.
func New(cfg Config, cb Callbacks) *Machine {
	return &Machine{cfg: cfg.withDefaults(), cb: cb, phase: PhaseIdle}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Start activates the channel. Capture begins immediately unless muted.
func (m *Machine) Start() {
	m.mu.Lock()
	m.active = true
	var fire func()
	if !m.muted && m.phase == PhaseIdle {
		fire = m.transition(PhaseListening, "channel active")
	}
	m.mu.Unlock()
	if fire != nil {
		fire()
	}
}

// Stop ends the channel session and releases capture resources.
func (m *Machine) Stop() {
	m.mu.Lock()
	m.active = false
	m.reset()
	var fire func()
	if m.phase != PhaseIdle {
		fire = m.transition(PhaseIdle, "channel ended")
	}
	m.mu.Unlock()
	if fire != nil {
		fire()
	}
}

// SetMuted toggles the microphone. Muting releases capture; unmuting
// re-arms it while the channel is active.
func (m *Machine) SetMuted(muted bool) {
	m.mu.Lock()
	m.muted = muted
	var fire func()
	switch {
	case muted && m.phase != PhaseIdle:
		m.reset()
		fire = m.transition(PhaseIdle, "muted")
	case !muted && m.active && m.phase == PhaseIdle:
		fire = m.transition(PhaseListening, "unmuted")
	}
	m.mu.Unlock()
	if fire != nil {
		fire()
	}
}

// SetSpeakerEnabled toggles assistant audio playback. With the speaker off,
// finalized turns return straight to listening.
func (m *Machine) SetSpeakerEnabled(enabled bool) {
	m.mu.Lock()
	m.speakerOff = !enabled
	m.mu.Unlock()
}

// Fragment feeds one transcript fragment from the recognition engine.
// Interim fragments replace the pending tail; final fragments commit. Every
// non-empty fragment resets the quiet timer.
func (m *Machine) Fragment(text string, final bool) {
	if strings.TrimSpace(text) == "" {
		return
	}
	m.mu.Lock()
	if m.phase != PhaseListening && m.phase != PhaseDebouncing {
		m.mu.Unlock()
		return
	}
	if final {
		m.committed = append(m.committed, strings.TrimSpace(text))
		m.pending = ""
	} else {
		m.pending = strings.TrimSpace(text)
	}
	var fire func()
	if m.phase == PhaseListening {
		fire = m.transition(PhaseDebouncing, "fragment received")
	}
	m.armQuietTimer()
	m.mu.Unlock()
	if fire != nil {
		fire()
	}
}

// CaptureError handles a recognition-engine failure. The machine recovers
// to idle and re-arms after the configured delay unless muted.
func (m *Machine) CaptureError(reason string) {
	m.mu.Lock()
	m.reset()
	fire := m.transition(PhaseError, reason)
	gen := m.gen
	m.rearmTimer = time.AfterFunc(m.cfg.RearmDelay, func() { m.rearm(gen) })
	m.mu.Unlock()
	if fire != nil {
		fire()
	}
}

// TurnComplete reports the orchestrated turn's outcome. With audio present
// and the speaker enabled the machine enters speaking; otherwise capture
// resumes.
func (m *Machine) TurnComplete(hasAudio bool) {
	m.mu.Lock()
	if m.phase != PhaseFinalizing {
		m.mu.Unlock()
		return
	}
	var fire func()
	if hasAudio && !m.speakerOff {
		fire = m.transition(PhaseSpeaking, "turn complete, playing audio")
	} else {
		fire = m.resumeListening("turn complete, no audio")
	}
	m.mu.Unlock()
	if fire != nil {
		fire()
	}
}

// TurnFailed resumes capture after an orchestrator failure.
func (m *Machine) TurnFailed(reason string) {
	m.mu.Lock()
	if m.phase != PhaseFinalizing {
		m.mu.Unlock()
		return
	}
	fire := m.resumeListening(reason)
	m.mu.Unlock()
	if fire != nil {
		fire()
	}
}

// PlaybackEnded resumes capture when assistant audio finishes.
func (m *Machine) PlaybackEnded() {
	m.playbackDone("playback ended")
}

// PlaybackError resumes capture when assistant audio fails to play.
func (m *Machine) PlaybackError() {
	m.playbackDone("playback error")
}

func (m *Machine) playbackDone(reason string) {
	m.mu.Lock()
	if m.phase != PhaseSpeaking {
		m.mu.Unlock()
		return
	}
	fire := m.resumeListening(reason)
	m.mu.Unlock()
	if fire != nil {
		fire()
	}
}

// quietExpired runs when the quiet period elapses with no new fragment.
func (m *Machine) quietExpired(gen int) {
	m.mu.Lock()
	if gen != m.gen || m.phase != PhaseDebouncing {
		m.mu.Unlock()
		return
	}
	transcript := m.transcript()
	m.committed = nil
	m.pending = ""

	var fire func()
	if utf8.RuneCountInString(transcript) < m.cfg.MinTranscript {
		fire = m.transition(PhaseListening, "transcript too short, discarded")
		m.mu.Unlock()
		if fire != nil {
			fire()
		}
		return
	}
	fire = m.transition(PhaseFinalizing, "quiet period elapsed")
	onFinalize := m.cb.OnFinalize
	m.mu.Unlock()
	if fire != nil {
		fire()
	}
	if onFinalize != nil {
		onFinalize(transcript)
	}
}

func (m *Machine) rearm(gen int) {
	m.mu.Lock()
	if gen != m.gen || m.phase != PhaseError {
		m.mu.Unlock()
		return
	}
	var fire func()
	if m.active && !m.muted {
		fire = m.transition(PhaseListening, "re-armed after error")
	} else {
		fire = m.transition(PhaseIdle, "recovered from error")
	}
	m.mu.Unlock()
	if fire != nil {
		fire()
	}
}

// resumeListening returns capture to listening, or to idle when the channel
// ended or the user muted mid-turn. Caller holds the lock.
func (m *Machine) resumeListening(reason string) func() {
	if m.active && !m.muted {
		return m.transition(PhaseListening, reason)
	}
	return m.transition(PhaseIdle, reason)
}

// transition changes the phase under the lock and returns the observer
// callback to fire after unlocking.
func (m *Machine) transition(to Phase, reason string) func() {
	from := m.phase
	if from == to {
		return nil
	}
	m.phase = to
	if cb := m.cb.OnPhaseChange; cb != nil {
		return func() { cb(from, to, reason) }
	}
	return nil
}

func (m *Machine) armQuietTimer() {
	m.gen++
	gen := m.gen
	if m.quietTimer != nil {
		m.quietTimer.Stop()
	}
	m.quietTimer = time.AfterFunc(m.cfg.QuietPeriod, func() { m.quietExpired(gen) })
}

// reset drops buffered transcript and cancels timers. Caller holds the
// lock.
func (m *Machine) reset() {
	m.gen++
	if m.quietTimer != nil {
		m.quietTimer.Stop()
		m.quietTimer = nil
	}
	if m.rearmTimer != nil {
		m.rearmTimer.Stop()
		m.rearmTimer = nil
	}
	m.committed = nil
	m.pending = ""
}

func (m *Machine) transcript() string {
	parts := m.committed
	if m.pending != "" {
		parts = append(parts, m.pending)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
