// Package stream provides the throttled streaming session used by every
// backend path. Delta sources can produce hundreds of tiny chunks per second;
// the session coalesces them so callers see a bounded number of update
// notifications while the accumulated text stays exact.
package stream

import (
	"sync"
	"time"
)

// DefaultInterval is the minimum time between outbound update notifications.
const DefaultInterval = 50 * time.Millisecond

// Session accumulates streamed text and relays it through an emit callback
// at most once per interval, always with the latest accumulated value. The
// final text is read with Text once the source is exhausted; it is exact
// regardless of how many intermediate notifications were coalesced.
type Session struct {
	emit     func(text string)
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	text     string
	lastEmit time.Time
	emitted  int
}

// Option configures a Session.
type Option func(*Session)

// WithInterval overrides the throttle interval.
func WithInterval(d time.Duration) Option {
	return func(s *Session) { s.interval = d }
}

// WithClock injects a time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New creates a session. emit receives the accumulated text; it may be nil
// when the caller only wants the final value.
func New(emit func(text string), opts ...Option) *Session {
	s := &Session{
		emit:     emit,
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append adds an incremental delta to the accumulated text.
func (s *Session) Append(delta string) {
	if delta == "" {
		return
	}
	s.mu.Lock()
	s.text += delta
	s.maybeEmitLocked()
	s.mu.Unlock()
}

// Set replaces the accumulated text with a new cumulative value. Sources
// that resend the full text on every read go through here; each value is the
// new state, never appended. A value shorter than what was already seen is
// stale and ignored, preserving the increasing-text guarantee.
func (s *Session) Set(full string) {
	s.mu.Lock()
	if len(full) < len(s.text) {
		s.mu.Unlock()
		return
	}
	s.text = full
	s.maybeEmitLocked()
	s.mu.Unlock()
}

func (s *Session) maybeEmitLocked() {
	if s.emit == nil {
		return
	}
	now := s.now()
	if !s.lastEmit.IsZero() && now.Sub(s.lastEmit) < s.interval {
		return
	}
	s.lastEmit = now
	s.emitted++
	s.emit(s.text)
}

// Text returns the full accumulated text.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Emitted returns how many update notifications were sent.
func (s *Session) Emitted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emitted
}
