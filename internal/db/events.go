package db

import (
	"database/sql"

	"github.com/sirupsen/logrus"
)

// EventLog records events under a fixed root, dropping write failures after
// logging them. A nil EventLog or one without a DB records nothing.
type EventLog struct {
	DB     *sql.DB
	Root   *int64
	Logger logrus.FieldLogger
}

// Record writes an event. A nil parent attaches it to the log's root. It
// returns the new event id, or 0 when nothing was written.
func (l *EventLog) Record(parent *int64, eventType string, payload map[string]any) int64 {
	if l == nil || l.DB == nil {
		return 0
	}
	if parent == nil {
		parent = l.Root
	}
	id, err := LogEvent(l.DB, parent, eventType, payload)
	if err != nil {
		if l.Logger != nil {
			l.Logger.WithError(err).WithField("event_type", eventType).Warn("failed to record event")
		}
		return 0
	}
	return id
}
