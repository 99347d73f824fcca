// Package handler routes raw NATS messages to PostHog captures.
// Each analytics.* subject maps to one PostHog event name.
package handler

import (
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/listening-companion/internal/platform/analytics"
)

// Sink is the subset of the PostHog client the dispatcher needs.
type Sink interface {
	Capture(distinctID, event string, props map[string]any)
	Identify(userID string, traits map[string]any)
}

// Dispatcher routes incoming NATS messages to the correct PostHog capture call.
type Dispatcher struct {
	ph  Sink
	log *zap.Logger
}

// New creates a Dispatcher.
func New(ph Sink, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{ph: ph, log: log}
}

var captureNames = map[string]string{
	analytics.SubjectAuthLoggedIn:    "user_logged_in",
	analytics.SubjectSessionCreated:  "listening_session_created",
	analytics.SubjectQuizGenerated:   "quiz_generated",
	analytics.SubjectQuizAttempted:   "quiz_attempted",
	analytics.SubjectContentImported: "content_imported",
}

// Dispatch routes msg to the correct handler based on its subject.
// Unknown subjects are logged; the caller acks them anyway to avoid replay.
func (d *Dispatcher) Dispatch(msg *nats.Msg) {
	d.dispatch(msg.Subject, msg.Data)
}

func (d *Dispatcher) dispatch(subject string, data []byte) {
	ev, err := analytics.Decode(data)
	if err != nil {
		d.log.Error("analytics: unmarshal message", zap.String("subject", subject), zap.Error(err))
		return
	}
	distinctID := ev.UserID
	if distinctID == "" {
		distinctID = "anonymous"
	}

	// ── auth events ──
	if subject == analytics.SubjectAuthRegistered {
		traits := map[string]any{"created_at": ev.OccurredAt}
		if email, ok := ev.Properties["email"]; ok {
			traits["email"] = email
		}
		d.ph.Identify(distinctID, traits)
		d.ph.Capture(distinctID, "user_registered", nil)
		return
	}

	name, ok := captureNames[subject]
	if !ok {
		d.log.Debug("analytics: unhandled subject", zap.String("subject", subject))
		return
	}
	d.ph.Capture(distinctID, name, ev.Properties)
}
