// Package engine orchestrates the anti-spam decision across the two request
// phases: field compilation before a form is shown, and per-field validation
// on POST. It drives the classifier, the session strike tracker and the
// address reputation engine, and emits audit entries for every event.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lumasweb/antispam/internal/audit"
	"github.com/lumasweb/antispam/internal/classifier"
	"github.com/lumasweb/antispam/internal/config"
	"github.com/lumasweb/antispam/internal/metrics"
	"github.com/lumasweb/antispam/internal/reputation"
	"github.com/lumasweb/antispam/internal/session"
)

// Lifecycle reason codes emitted to the audit sink in addition to the
// classifier's own reasons.
const (
	ReasonSessionBlockHidden = "SESSION_BLOCK_ACTIVE_FORM_HIDDEN"
	ReasonSessionBlockOnPost = "SESSION_BLOCK_ACTIVE_ON_POST"
	ReasonSessionBlockSet    = "SESSION_BLOCK_SET"
	ReasonAddressBlockHidden = "IP_BLOCK_ACTIVE_FORM_HIDDEN"
	ReasonAddressBlockOnPost = "IP_BLOCK_ACTIVE_ON_POST"
)

// Throttle windows for the repeated "form hidden" entries a blocked visitor
// generates on every render.
const (
	sessionHiddenWindow = 60 * time.Second
	addressHiddenWindow = 120 * time.Second
)

// contentFields are the recognized names of the one field per form whose
// value is classified.
var contentFields = map[string]bool{
	"message":   true,
	"nachricht": true,
	"comment":   true,
	"msg":       true,
	"text":      true,
}

// emailFields are checked in order when deriving an email for audit context.
var emailFields = []string{"email", "e-mail", "mail", "email_address"}

// Request carries the attributes of one form render or submission, as
// provided by the hosting environment.
type Request struct {
	FormID    string // stable form identifier, used for settings lookup
	FormKey   string // form instance key, scopes session state; falls back to FormID
	FormAlias string // human-readable name for audit entries; falls back to FormID
	SessionID string
	Address   string
	URI       string
	UserAgent string
	POST      bool
	StartedAt time.Time // request start, the "now" of all state decisions

	// Values holds the submitted field values on POST. Honeypot is the
	// submitted value of the hidden honeypot field, "" for humans.
	Values   map[string]string
	Honeypot string
}

func (r Request) key() string {
	if r.FormKey != "" {
		return r.FormKey
	}
	return r.FormID
}

func (r Request) alias() string {
	if r.FormAlias != "" {
		return r.FormAlias
	}
	return r.FormID
}

// Engine ties the classifier, tracker, reputation engine and audit sinks
// together. All methods are safe for concurrent use; the request-scoped
// State is the only per-request mutable piece.
type Engine struct {
	cfg        *config.Config
	tracker    *session.Tracker
	reputation *reputation.Engine
	throttle   *audit.Throttle
	sinks      []audit.Sink
}

// New creates the orchestrator. At least one sink should be provided so
// events are not lost; a sink-less engine still functions.
func New(cfg *config.Config, tracker *session.Tracker, rep *reputation.Engine, throttle *audit.Throttle, sinks ...audit.Sink) *Engine {
	return &Engine{
		cfg:        cfg,
		tracker:    tracker,
		reputation: rep,
		throttle:   throttle,
		sinks:      sinks,
	}
}

// settings resolves the per-feature values for this request through the
// override chain: form values, then site values, then built-in defaults.
func (e *Engine) settings(req Request) config.Settings {
	return config.ResolveSettings(
		config.MapSource(e.cfg.Forms[req.FormID]),
		config.MapSource(e.cfg.Site),
	)
}

// CompileFields runs the pre-render phase. It returns true when the form's
// fields must be suppressed because the session or the address holds an
// active block. On a non-POST render it records the form's start time, only
// if none exists yet.
func (e *Engine) CompileFields(ctx context.Context, req Request) bool {
	s := e.settings(req)
	if !s.Enabled || req.SessionID == "" || req.Address == "" {
		return false
	}
	formKey := req.key()

	blocked, remaining, st, err := e.tracker.Blocked(ctx, req.SessionID, formKey, req.StartedAt, s.SessionBlockDuration)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("session").Inc()
		log.Warn().Err(err).Str("form", formKey).Msg("session state unavailable, not enforcing")
	}
	if blocked {
		metrics.BlocksEnforced.WithLabelValues("session", "compile").Inc()
		if e.throttle.Allow(ctx, "session_hidden/"+formKey+"/"+req.SessionID, sessionHiddenWindow) {
			e.record(ctx, audit.Entry{
				Time:      req.StartedAt,
				Address:   req.Address,
				Reason:    ReasonSessionBlockHidden,
				FormAlias: req.alias(),
				Details: map[string]any{
					"form_key":      formKey,
					"remaining_s":   int64(remaining.Seconds()),
					"invalid_count": st.InvalidCount,
					"uri":           req.URI,
					"ua":            req.UserAgent,
				},
			})
		}
		return true
	}

	if s.AddressEnforcement {
		addrBlocked, err := e.reputation.IsBlocked(ctx, req.Address)
		if err != nil {
			metrics.StoreErrors.WithLabelValues("status_read").Inc()
			log.Warn().Err(err).Str("address", req.Address).Msg("reputation unavailable, failing open")
		}
		if addrBlocked {
			metrics.BlocksEnforced.WithLabelValues("address", "compile").Inc()
			if e.throttle.Allow(ctx, "address_hidden/"+formKey+"/"+req.Address, addressHiddenWindow) {
				e.record(ctx, audit.Entry{
					Time:      req.StartedAt,
					Address:   req.Address,
					Reason:    ReasonAddressBlockHidden,
					FormAlias: req.alias(),
					Details: map[string]any{
						"form_key": formKey,
						"uri":      req.URI,
						"ua":       req.UserAgent,
					},
				})
			}
			return true
		}
	}

	if !req.POST {
		if err := e.tracker.MarkStart(ctx, req.SessionID, formKey, req.StartedAt); err != nil {
			metrics.StoreErrors.WithLabelValues("session").Inc()
			log.Warn().Err(err).Str("form", formKey).Msg("could not record form start time")
		}
	}
	return false
}

// ValidateField runs the per-field validation phase. It returns "" when the
// field is acceptable, or the configured generic rejection message. The
// message never reveals which check failed.
func (e *Engine) ValidateField(ctx context.Context, st *State, req Request, field, value string) string {
	s := e.settings(req)
	if !s.Enabled || req.SessionID == "" || req.Address == "" {
		return ""
	}
	formKey := req.key()

	// A form decided earlier in this request short-circuits: flagged means
	// every remaining field carries the rejection, passed means no field is
	// reprocessed.
	switch st.outcome(formKey) {
	case flagged:
		return e.cfg.RejectMessage
	case passed:
		return ""
	}

	blocked, remaining, sess, err := e.tracker.Blocked(ctx, req.SessionID, formKey, req.StartedAt, s.SessionBlockDuration)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("session").Inc()
		log.Warn().Err(err).Str("form", formKey).Msg("session state unavailable, not enforcing")
	}
	if blocked {
		st.flag(formKey)
		metrics.BlocksEnforced.WithLabelValues("session", "validate").Inc()
		e.record(ctx, audit.Entry{
			Time:      req.StartedAt,
			Address:   req.Address,
			Reason:    ReasonSessionBlockOnPost,
			FormAlias: req.alias(),
			Details: map[string]any{
				"form_key":      formKey,
				"remaining_s":   int64(remaining.Seconds()),
				"invalid_count": sess.InvalidCount,
				"email":         extractEmail(req.Values),
				"uri":           req.URI,
				"ua":            req.UserAgent,
			},
		})
		return e.cfg.RejectMessage
	}

	if s.AddressEnforcement {
		addrBlocked, err := e.reputation.IsBlocked(ctx, req.Address)
		if err != nil {
			metrics.StoreErrors.WithLabelValues("status_read").Inc()
			log.Warn().Err(err).Str("address", req.Address).Msg("reputation unavailable, failing open")
		}
		if addrBlocked {
			st.flag(formKey)
			metrics.BlocksEnforced.WithLabelValues("address", "validate").Inc()
			e.record(ctx, audit.Entry{
				Time:      req.StartedAt,
				Address:   req.Address,
				Reason:    ReasonAddressBlockOnPost,
				FormAlias: req.alias(),
				Details: map[string]any{
					"form_key": formKey,
					"email":    extractEmail(req.Values),
					"uri":      req.URI,
					"ua":       req.UserAgent,
				},
			})
			return e.cfg.RejectMessage
		}
	}

	// Only the designated content field is classified; everything else
	// passes through untouched until the form is decided.
	if !contentFields[strings.ToLower(field)] {
		return ""
	}

	start, hasStart, err := e.tracker.StartTime(ctx, req.SessionID, formKey)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("session").Inc()
		log.Warn().Err(err).Str("form", formKey).Msg("start time unavailable, skipping timing check")
		hasStart = false
	}

	metrics.SubmissionsChecked.Inc()
	verdict := classifier.Classify(classifier.Submission{
		Content:    value,
		Honeypot:   req.Honeypot,
		Elapsed:    req.StartedAt.Sub(start),
		HasElapsed: hasStart,
	}, classifier.Checks{
		MinDelay:     s.MinDelay,
		MinLength:    s.MinLength,
		MinStopwords: s.StopwordCount,
		Language:     s.Language,
	})
	if verdict == nil {
		st.pass(formKey)
		return ""
	}

	st.flag(formKey)
	metrics.SpamDetected.WithLabelValues(string(verdict.Reason)).Inc()

	marker := session.Marker(formKey, req.SessionID, req.StartedAt)
	sess, _, blockedNow, err := e.tracker.RecordFailure(ctx, req.SessionID, formKey, marker, req.StartedAt)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("session").Inc()
		log.Warn().Err(err).Str("form", formKey).Msg("could not count session strike")
	}

	details := map[string]any{
		"form_key":      formKey,
		"field":         field,
		"email":         extractEmail(req.Values),
		"uri":           req.URI,
		"ua":            req.UserAgent,
		"lang":          s.Language,
		"invalid_count": sess.InvalidCount,
		"session_block": sess.BlockedAt != 0,
		"now":           req.StartedAt.Unix(),
		"min_delay_s":   int64(s.MinDelay.Seconds()),
	}
	if hasStart {
		details["start"] = start.Unix()
		details["delta_s"] = int64(req.StartedAt.Sub(start).Seconds())
	}
	e.record(ctx, audit.Entry{
		Time:      req.StartedAt,
		Address:   req.Address,
		Reason:    string(verdict.Reason),
		FormAlias: req.alias(),
		Details:   details,
	})

	if blockedNow {
		metrics.SessionBlocksSet.Inc()
		e.record(ctx, audit.Entry{
			Time:      req.StartedAt,
			Address:   req.Address,
			Reason:    ReasonSessionBlockSet,
			FormAlias: req.alias(),
			Details: map[string]any{
				"form_key":       formKey,
				"invalid_count":  sess.InvalidCount,
				"block_time_min": int64(s.SessionBlockDuration.Minutes()),
				"uri":            req.URI,
				"ua":             req.UserAgent,
			},
		})
	}

	// The reputation score counts every failure, whether or not address
	// enforcement is active. A write failure never blocks the rejection.
	if _, err := e.reputation.RecordFailure(ctx, req.Address); err != nil {
		metrics.StoreErrors.WithLabelValues("reputation_write").Inc()
		log.Warn().Err(err).Str("address", req.Address).Msg("could not record reputation failure")
	}

	return e.cfg.RejectMessage
}

// record fans an entry out to every sink. Sink failures are logged and
// swallowed; they never influence submission processing.
func (e *Engine) record(ctx context.Context, entry audit.Entry) {
	for _, sink := range e.sinks {
		if err := sink.Record(ctx, entry); err != nil {
			metrics.StoreErrors.WithLabelValues("audit_write").Inc()
			log.Warn().Err(err).Str("sink", sink.Name()).Str("reason", entry.Reason).Msg("audit write failed")
		}
	}
}

// extractEmail returns the first recognized email field value, for audit
// context only.
func extractEmail(values map[string]string) string {
	for _, name := range emailFields {
		if v := strings.TrimSpace(values[name]); v != "" {
			return v
		}
	}
	return ""
}
