package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImpactMessageRendersBothBodies(t *testing.T) {
	msg, err := ImpactMessage("noreply@example.com", "alice@example.com", ImpactData{
		Name:     "Alice",
		Deposits: 12,
		TotalKg:  "4.50",
		Points:   450,
	})
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", msg.To)
	assert.Equal(t, "noreply@example.com", msg.From)
	assert.Equal(t, "Your Monthly UCO Impact Report 🌱", msg.Subject)

	assert.Contains(t, msg.Text, "Hi Alice,")
	assert.Contains(t, msg.Text, "Total deposits: 12")
	assert.Contains(t, msg.Text, "4.50 kg")
	assert.Contains(t, msg.Text, "Current points: 450")

	assert.Contains(t, msg.HTML, "<b>Alice</b>")
	assert.Contains(t, msg.HTML, "4.50 kg")
	assert.NotContains(t, msg.Text, "<b>")
}

func TestTestMessage(t *testing.T) {
	msg := TestMessage("noreply@example.com", "admin@example.com")
	assert.Equal(t, "admin@example.com", msg.To)
	assert.Equal(t, "SendGrid test ✅", msg.Subject)
	assert.NotEmpty(t, msg.Text)
	assert.NotEmpty(t, msg.HTML)
}

func TestMemorySenderFailMap(t *testing.T) {
	sender := NewMemorySender()
	sender.Fail = map[string]error{"bad@example.com": assert.AnError}

	require.NoError(t, sender.Send(Message{To: "good@example.com"}))
	require.Error(t, sender.Send(Message{To: "bad@example.com"}))
	assert.Len(t, sender.Messages(), 1)
}
