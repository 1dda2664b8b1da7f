// Package mailer delivers outbound email through SendGrid.
package mailer

import (
	"fmt"
	"sync"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Message is one outbound email.
type Message struct {
	To      string
	From    string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a message to a recipient.
type Sender interface {
	Send(Message) error
}

// SendGridSender delivers through the SendGrid v3 API.
type SendGridSender struct {
	client *sendgrid.Client
}

// NewSendGridSender builds a sender with the given API key.
func NewSendGridSender(apiKey string) *SendGridSender {
	return &SendGridSender{client: sendgrid.NewSendClient(apiKey)}
}

// Send delivers the message, returning an error on non-2xx responses.
func (s *SendGridSender) Send(m Message) error {
	email := mail.NewSingleEmail(
		mail.NewEmail("", m.From),
		m.Subject,
		mail.NewEmail("", m.To),
		m.Text,
		m.HTML,
	)
	resp, err := s.client.Send(email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// MemorySender stores messages in memory for inspection in tests.
type MemorySender struct {
	mu       sync.Mutex
	messages []Message
	// Fail, when set, is returned for matching recipients.
	Fail map[string]error
}

// NewMemorySender constructs an empty memory sender.
func NewMemorySender() *MemorySender {
	return &MemorySender{}
}

// Send records the message.
func (m *MemorySender) Send(msg Message) error {
	if err, ok := m.Fail[msg.To]; ok {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns a copy of messages seen so far.
func (m *MemorySender) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}
