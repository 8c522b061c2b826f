// Package classifier implements the heuristic spam checks for a single form
// submission. Checks run in a fixed order and short-circuit at the first
// failure: honeypot, timing, length, language plausibility.
package classifier

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Reason identifies the check a submission failed.
type Reason string

const (
	ReasonHoneypot         Reason = "HONEYPOT"
	ReasonTooFast          Reason = "TOO_FAST"
	ReasonTooShort         Reason = "TOO_SHORT"
	ReasonLanguageMismatch Reason = "LANGUAGE_MISMATCH"
)

// Verdict is the outcome of a failed classification. A nil *Verdict means
// the submission passed every check.
type Verdict struct {
	Reason Reason
}

// Submission carries the per-request inputs of one classification.
type Submission struct {
	Content  string
	Honeypot string // value of the hidden honeypot field, "" for humans

	// Elapsed is the time since the form was first rendered. It is only
	// meaningful when HasElapsed is true; when the render phase could not
	// record a start time the timing check is skipped entirely.
	Elapsed    time.Duration
	HasElapsed bool
}

// Checks holds the resolved thresholds for one classification. None of the
// numeric fields may be negative.
type Checks struct {
	MinDelay     time.Duration
	MinLength    int // in runes, not bytes
	MinStopwords int
	Language     string
}

// Classify runs all checks against the submission and returns nil on pass
// or the first failing check's verdict.
func Classify(sub Submission, cfg Checks) *Verdict {
	if sub.Honeypot != "" {
		return &Verdict{Reason: ReasonHoneypot}
	}

	if sub.HasElapsed && sub.Elapsed < cfg.MinDelay {
		return &Verdict{Reason: ReasonTooFast}
	}

	text := strings.TrimSpace(sub.Content)
	if utf8.RuneCountInString(text) < cfg.MinLength {
		return &Verdict{Reason: ReasonTooShort}
	}

	if !Plausible(text, cfg.Language, cfg.MinStopwords) {
		return &Verdict{Reason: ReasonLanguageMismatch}
	}

	return nil
}
