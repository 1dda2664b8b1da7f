package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kioskops/mailer"
	"kioskops/models"
)

func TestSendReportsCountsOutcomes(t *testing.T) {
	store := &fakeImpactStore{users: []models.User{
		{UID: "u1", Email: "alice@example.com", Name: "Alice", DepositCount: 12, TotalRecycled: 4500, Points: 450},
		{UID: "u2", Email: ""}, // opted in but no address on file
		{UID: "u3", Email: "bob@example.com", Name: "Bob"},
	}}
	sender := mailer.NewMemorySender()
	sender.Fail = map[string]error{"bob@example.com": errors.New("bounced")}

	impact := NewImpact(store, sender, "noreply@example.com")
	report, err := impact.SendReports(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Failed)

	msgs := sender.Messages()
	require.Len(t, msgs, 1)
	msg := msgs[0]
	assert.Equal(t, "alice@example.com", msg.To)
	assert.Equal(t, "noreply@example.com", msg.From)
	assert.Equal(t, "Your Monthly UCO Impact Report 🌱", msg.Subject)
	assert.True(t, strings.Contains(msg.Text, "Alice"))
	assert.True(t, strings.Contains(msg.Text, "4.50"))
	assert.True(t, strings.Contains(msg.HTML, "450"))
}

func TestSendReportsNoRecipients(t *testing.T) {
	sender := mailer.NewMemorySender()
	impact := NewImpact(&fakeImpactStore{}, sender, "noreply@example.com")

	report, err := impact.SendReports(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Sent)
	assert.Empty(t, sender.Messages())
}

func TestRecipientName(t *testing.T) {
	assert.Equal(t, "Alice", recipientName(&models.User{Name: "Alice", Email: "a@x.com"}))
	assert.Equal(t, "alice", recipientName(&models.User{Email: "alice@x.com"}))
	assert.Equal(t, "there", recipientName(&models.User{}))
}
