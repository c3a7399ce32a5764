package lifecycle

import "sync/atomic"

// Lifecycle is a tiny process state holder shared across handlers. During
// graceful shutdown it marks the gateway as draining so new live call
// sessions are refused while in-flight ones finish.
type Lifecycle struct {
	draining atomic.Bool
}

func (l *Lifecycle) SetDraining(draining bool) {
	if l == nil {
		return
	}
	l.draining.Store(draining)
}

func (l *Lifecycle) IsDraining() bool {
	if l == nil {
		return false
	}
	return l.draining.Load()
}
