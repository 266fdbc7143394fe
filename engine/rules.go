package engine

import (
	"fmt"
	"strings"
	"time"
)

// AdviserMode selects how the human is guided and policed.
type AdviserMode uint8

const (
	AdviserLeastLimiting AdviserMode = 0 // show safety/fairness guards; violate on a safety match
	AdviserNextMove      AdviserMode = 1 // show one scripted move; violate on deviation
	AdviserNone          AdviserMode = 2 // no hints; still violate on a safety match
)

var adviserModeNames = [...]string{"LeastLimiting", "NextMove", "None"}

func (m AdviserMode) String() string {
	if int(m) < len(adviserModeNames) {
		return adviserModeNames[m]
	}
	return fmt.Sprintf("AdviserMode(%d)", uint8(m))
}

// Num returns the numeric code stored with study results.
func (m AdviserMode) Num() uint32 { return uint32(m) }

// AdviserModeFromNum converts a stored numeric code into an AdviserMode.
func AdviserModeFromNum(n uint32) (AdviserMode, error) {
	if n >= uint32(len(adviserModeNames)) {
		return 0, fmt.Errorf("invalid adviser mode %d", n)
	}
	return AdviserMode(n), nil
}

// ParseAdviserMode accepts a mode name (case-insensitive) or its numeric code.
func ParseAdviserMode(s string) (AdviserMode, error) {
	for i, name := range adviserModeNames {
		if strings.EqualFold(s, name) || s == fmt.Sprint(i) {
			return AdviserMode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown adviser mode %q", s)
}

// StudyRules holds configurable study settings.
type StudyRules struct {
	Mode              AdviserMode
	AnimationDuration time.Duration // window after a normal resolution
	FadeDuration      time.Duration // window after a violation, before the reset
	SessionDuration   time.Duration // whole session; expiry ends the study
}

// DefaultStudyRules returns the settings used in the study.
func DefaultStudyRules() StudyRules {
	return StudyRules{
		Mode:              AdviserLeastLimiting,
		AnimationDuration: 500 * time.Millisecond,
		FadeDuration:      1500 * time.Millisecond,
		SessionDuration:   2 * time.Minute,
	}
}

// Validate rejects non-positive durations.
func (r StudyRules) Validate() error {
	if r.AnimationDuration <= 0 || r.FadeDuration <= 0 || r.SessionDuration <= 0 {
		return fmt.Errorf("study rules: durations must be positive (anim=%s fade=%s session=%s)",
			r.AnimationDuration, r.FadeDuration, r.SessionDuration)
	}
	if r.Mode.Num() >= uint32(len(adviserModeNames)) {
		return fmt.Errorf("study rules: invalid adviser mode %d", r.Mode)
	}
	return nil
}
