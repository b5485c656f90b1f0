package audit

import (
	"log"
	"sync"
	"time"
)

// AuditEvent represents a verification or authorization event.
type AuditEvent struct {
	Timestamp time.Time
	EventType string // e.g., "SignatureVerification", "TokenVerification"
	EntityID  string // org id, actor or token subject
	Result    string // "success" or "failure"
	Reason    string
	Metadata  map[string]string
}

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// AuditLogger is the interface for logging audit events.
type AuditLogger interface {
	LogEvent(event AuditEvent)
}

// LogAuditLogger writes events through a standard logger.
type LogAuditLogger struct {
	logger *log.Logger
}

func (l *LogAuditLogger) LogEvent(event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	l.logger.Printf("[AUDIT] [%s] [%s] Entity: %s, Result: %s, Reason: %s, Metadata: %v",
		event.Timestamp.Format(time.RFC3339), event.EventType, event.EntityID, event.Result, event.Reason, event.Metadata)
}

// NewLogAuditLogger returns an AuditLogger writing to logger, or to the
// standard logger when logger is nil.
func NewLogAuditLogger(logger *log.Logger) AuditLogger {
	if logger == nil {
		logger = log.Default()
	}
	return &LogAuditLogger{logger: logger}
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (r *Recorder) LogEvent(event AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AuditEvent(nil), r.events...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) LogEvent(AuditEvent) {}
