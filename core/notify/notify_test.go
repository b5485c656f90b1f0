package notify

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogNotifierOmitsBody(t *testing.T) {
	var buf bytes.Buffer
	LogNotifier{Logger: log.New(&buf, "", 0)}.Notify(Notification{
		Type:      NotifyUser,
		Recipient: "ASHA-1",
		Subject:   "otp_issued",
		Reference: "ASHA-1",
		Body:      "code 123456",
	})
	assert.Contains(t, buf.String(), "[NOTIFY] To: ASHA-1")
	assert.NotContains(t, buf.String(), "123456")
}

func TestOutbox(t *testing.T) {
	o := &Outbox{}
	_, ok := o.Last()
	assert.False(t, ok)

	o.Notify(Notification{Subject: "a"})
	o.Notify(Notification{Subject: "b"})
	last, ok := o.Last()
	require.True(t, ok)
	assert.Equal(t, "b", last.Subject)
	assert.Len(t, o.Sent(), 2)
}
