package audit

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *AuditEvent) error
}

// Nop returns a logger that drops every event
func Nop() Logger {
	return noOpLogger{}
}

type noOpLogger struct{}

func (noOpLogger) Log(ctx context.Context, event *AuditEvent) error {
	return nil
}

// LogrusLogger writes each event as one structured log entry
type LogrusLogger struct {
	log *logrus.Logger
}

// NewLogrusLogger creates an audit logger backed by logrus
func NewLogrusLogger(log *logrus.Logger) *LogrusLogger {
	return &LogrusLogger{log: log}
}

// Log logs an audit event
func (l *LogrusLogger) Log(ctx context.Context, event *AuditEvent) error {
	fields := logrus.Fields{
		"audit":         true,
		"event_type":    event.EventType,
		"status":        event.Status,
		"actor_id":      event.ActorID,
		"resource_type": event.ResourceType,
		"resource_id":   event.ResourceID,
	}
	for k, v := range event.Metadata {
		fields["meta_"+k] = v
	}
	entry := l.log.WithContext(ctx).WithFields(fields).WithTime(event.Timestamp)
	if event.Status == EventStatusSuccess {
		entry.Info(event.Message)
	} else {
		entry.Warn(event.Message)
	}
	return nil
}

// MemoryLogger keeps events in memory
type MemoryLogger struct {
	mu     sync.Mutex
	events []*AuditEvent
}

// NewMemoryLogger creates an empty in-memory audit logger
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

// Log logs an audit event
func (m *MemoryLogger) Log(ctx context.Context, event *AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of the recorded events
func (m *MemoryLogger) Events() []*AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*AuditEvent, len(m.events))
	copy(out, m.events)
	return out
}

// OfType returns the recorded events of one type
func (m *MemoryLogger) OfType(eventType EventType) []*AuditEvent {
	var out []*AuditEvent
	for _, e := range m.Events() {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// MultiLogger logs to multiple audit loggers
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a new multi-logger that writes to multiple destinations
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log logs an audit event to all configured loggers, returning the first error
func (m *MultiLogger) Log(ctx context.Context, event *AuditEvent) error {
	var firstErr error
	for _, logger := range m.loggers {
		if err := logger.Log(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
