package database

import (
	"context"
	"time"

	"github.com/nao1215/clientmap/internal/model"
)

// defaultSinkTimeout bounds one archive write.
const defaultSinkTimeout = 5 * time.Second

// ObjectRecorder stores reported objects per session. *HistoryDB
// implements it.
type ObjectRecorder interface {
	RecordObject(ctx context.Context, sessionID string, obj model.ReportedObject) error
}

// SessionSink archives objects for one session. It satisfies history.Sink.
type SessionSink struct {
	db        ObjectRecorder
	sessionID string
	timeout   time.Duration
}

// NewSessionSink creates a sink that writes into sessionID.
func NewSessionSink(db ObjectRecorder, sessionID string) *SessionSink {
	return &SessionSink{db: db, sessionID: sessionID, timeout: defaultSinkTimeout}
}

// SessionID returns the session the sink writes into.
func (s *SessionSink) SessionID() string {
	return s.sessionID
}

// Record archives obj.
func (s *SessionSink) Record(obj model.ReportedObject) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.db.RecordObject(ctx, s.sessionID, obj)
}
