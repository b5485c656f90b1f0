package audit

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogAuditLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogAuditLogger(log.New(&buf, "", 0))
	l.LogEvent(AuditEvent{EventType: "SignatureVerification", EntityID: "hospital:H1", Result: ResultFailure, Reason: "payload hash mismatch"})

	out := buf.String()
	assert.Contains(t, out, "[AUDIT]")
	assert.Contains(t, out, "[SignatureVerification]")
	assert.Contains(t, out, "Entity: hospital:H1")
	assert.Contains(t, out, "Reason: payload hash mismatch")
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	r.LogEvent(AuditEvent{EventType: "a"})
	r.LogEvent(AuditEvent{EventType: "b"})
	events := r.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "b", events[1].EventType)

	events[0].EventType = "changed"
	assert.Equal(t, "a", r.Events()[0].EventType)
}
