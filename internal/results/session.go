package results

import "github.com/google/uuid"

// SessionID names one orchestrator invocation; it keys log lines and the
// failure artifact directory.
type SessionID string

func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}
