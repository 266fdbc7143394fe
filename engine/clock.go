package engine

import "time"

// Timer is a non-repeating elapsed-time counter advanced once per frame.
// It stays finished until Reset.
type Timer struct {
	Duration time.Duration
	Elapsed  time.Duration
}

// NewTimer returns a stopped-at-zero timer of duration d.
func NewTimer(d time.Duration) Timer { return Timer{Duration: d} }

// Tick advances the timer by dt, saturating at Duration.
func (t *Timer) Tick(dt time.Duration) {
	if dt <= 0 || t.Finished() {
		return
	}
	t.Elapsed += dt
	if t.Elapsed > t.Duration {
		t.Elapsed = t.Duration
	}
}

// Finished reports whether the timer has run its full duration.
func (t *Timer) Finished() bool { return t.Elapsed >= t.Duration }

// Reset rewinds the timer to zero.
func (t *Timer) Reset() { t.Elapsed = 0 }

// SetDuration changes the duration without touching Elapsed.
func (t *Timer) SetDuration(d time.Duration) { t.Duration = d }

// Remaining returns the time left before the timer finishes.
func (t *Timer) Remaining() time.Duration {
	if t.Finished() {
		return 0
	}
	return t.Duration - t.Elapsed
}

// Clock holds the study's two gates: the post-resolution window (animation
// or fade-out, depending on the last outcome) and the overall session.
type Clock struct {
	Animation Timer
	Session   Timer
}

// NewClock returns a clock for rules.
func NewClock(rules StudyRules) Clock {
	return Clock{
		Animation: NewTimer(rules.AnimationDuration),
		Session:   NewTimer(rules.SessionDuration),
	}
}

// Tick advances both timers.
func (c *Clock) Tick(dt time.Duration) {
	c.Animation.Tick(dt)
	c.Session.Tick(dt)
}
