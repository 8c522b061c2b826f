package audit

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogSink mirrors audit entries into the operational zerolog output, so a
// deployment without a persistent audit store still sees every event.
type LogSink struct{}

var _ Sink = (*LogSink)(nil)

func (LogSink) Name() string { return "log" }

func (LogSink) Record(ctx context.Context, e Entry) error {
	log.Info().
		Str("address", e.Address).
		Str("reason", e.Reason).
		Str("form", e.FormAlias).
		Fields(e.Details).
		Msg("antispam event")
	return nil
}

func (LogSink) Close() error { return nil }
