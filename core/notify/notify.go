package notify

import (
	"log"
	"sync"
)

// NotificationType represents the kind of notification to send.
type NotificationType string

const (
	NotifyAdmin    NotificationType = "admin"
	NotifyUser     NotificationType = "user"
	NotifyHospital NotificationType = "hospital"
)

// Notification holds the data for a notification event.
type Notification struct {
	Type      NotificationType
	Recipient string // worker id, hospital id, phone number
	Subject   string
	Reference string // claim id, worker id, tx id
	// Body may carry secrets such as one-time codes and is never logged.
	Body string
}

// Notifier delivers notifications. Delivery is best effort.
type Notifier interface {
	Notify(n Notification)
}

// LogNotifier logs notifications without their body.
type LogNotifier struct {
	Logger *log.Logger
}

func (l LogNotifier) Notify(n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("[NOTIFY] To: %s | Type: %s | Subject: %s | Ref: %s", n.Recipient, n.Type, n.Subject, n.Reference)
}

// Outbox keeps notifications in memory.
type Outbox struct {
	mu   sync.Mutex
	sent []Notification
}

func (o *Outbox) Notify(n Notification) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, n)
}

// Sent returns a copy of the delivered notifications.
func (o *Outbox) Sent() []Notification {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Notification(nil), o.sent...)
}

// Last returns the most recent notification.
func (o *Outbox) Last() (Notification, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		return Notification{}, false
	}
	return o.sent[len(o.sent)-1], true
}
