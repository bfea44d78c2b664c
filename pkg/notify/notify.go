package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrSuppressed reports that the provider accepted but did not deliver a message
var ErrSuppressed = errors.New("notification suppressed by provider")

// Channel is the delivery medium
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Template names used by the platform
const (
	TemplateInviteCode   = "invite_code"
	TemplateClientInvite = "client_invite"
	TemplateContentShare = "content_share"
)

// Message is one outbound notification
type Message struct {
	ID        string            `json:"id"`
	Channel   Channel           `json:"channel"`
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject,omitempty"`
	Template  string            `json:"template,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	Body      string            `json:"body,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Email builds an email message rendered by the provider from template and data
func Email(recipient, subject, template string, data map[string]string) *Message {
	return &Message{Channel: ChannelEmail, Recipient: recipient, Subject: subject, Template: template, Data: data}
}

// SMS builds a text message
func SMS(recipient, body string) *Message {
	return &Message{Channel: ChannelSMS, Recipient: recipient, Body: body}
}

// Notifier delivers messages
type Notifier interface {
	Send(ctx context.Context, msg *Message) error
}

// LogNotifier logs messages instead of delivering them
type LogNotifier struct {
	Logger logrus.FieldLogger
}

// Send logs msg
func (n LogNotifier) Send(ctx context.Context, msg *Message) error {
	log := n.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{
		"notification_id": msg.ID,
		"channel":         msg.Channel,
		"recipient":       msg.Recipient,
		"template":        msg.Template,
	}).Info("notification")
	return nil
}

// MemoryNotifier records every message it is asked to send
type MemoryNotifier struct {
	mu   sync.Mutex
	sent []*Message
	// Err, when set, is returned from Send after recording
	Err error
}

// Send records msg
func (n *MemoryNotifier) Send(ctx context.Context, msg *Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.Err
}

// Sent returns the recorded messages
func (n *MemoryNotifier) Sent() []*Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Message, len(n.sent))
	copy(out, n.sent)
	return out
}
