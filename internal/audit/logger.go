package audit

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Event represents an audit log event.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Kind      string    `json:"kind,omitempty"`    // Account kind
	Account   string    `json:"account,omitempty"` // Account ID, or email when no account resolved
	Details   string    `json:"details,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

var auditLogger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// SetOutput replaces the audit sink, e.g. to silence audit output in tests.
func SetOutput(l zerolog.Logger) {
	auditLogger = l
}

// Log records an audit event.
func Log(action, kind, account, details string, success bool, err error) {
	event := Event{
		Timestamp: time.Now().UTC(),
		Action:    action,
		Kind:      kind,
		Account:   account,
		Details:   details,
		Success:   success,
	}
	if err != nil {
		event.Error = err.Error()
	}

	entry, marshalErr := json.Marshal(event)
	if marshalErr != nil {
		log.Error().Err(marshalErr).Msg("Failed to marshal audit event to JSON")
		return
	}
	auditLogger.Log().RawJSON("audit_event", entry).Msg("")
}
