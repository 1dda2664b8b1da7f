package engine

import (
	"context"
	"fmt"
	"log"
	"strings"

	"kioskops/mailer"
	"kioskops/models"
)

// ImpactStore lists the users who opted in to email updates.
type ImpactStore interface {
	UsersWithEmailUpdates(ctx context.Context) ([]models.User, error)
}

// ImpactReport counts the outcome of one mailing run.
type ImpactReport struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Impact sends the monthly per-user recycling impact summary.
type Impact struct {
	store  ImpactStore
	sender mailer.Sender
	from   string
}

// NewImpact builds the mailing job.
func NewImpact(store ImpactStore, sender mailer.Sender, from string) *Impact {
	return &Impact{store: store, sender: sender, from: from}
}

// SendReports mails every opted-in user their impact summary. Sends are
// fire-and-forget per recipient: a failure is logged and counted, never
// aborts the batch.
func (i *Impact) SendReports(ctx context.Context) (*ImpactReport, error) {
	users, err := i.store.UsersWithEmailUpdates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list opted-in users: %w", err)
	}

	report := &ImpactReport{}
	if len(users) == 0 {
		log.Println("sendMonthlyImpactEmails: no users opted-in.")
		return report, nil
	}

	for _, u := range users {
		if u.Email == "" {
			report.Skipped++
			continue
		}

		msg, err := mailer.ImpactMessage(i.from, u.Email, mailer.ImpactData{
			Name:     recipientName(&u),
			Deposits: u.DepositCount,
			TotalKg:  fmt.Sprintf("%.2f", float64(u.TotalRecycled)/1000),
			Points:   u.Points,
		})
		if err != nil {
			report.Failed++
			log.Printf("❌ Impact email render failed for uid=%s: %v", u.UID, err)
			continue
		}

		if err := i.sender.Send(msg); err != nil {
			report.Failed++
			log.Printf("❌ Email failed for uid=%s email=%s: %v", u.UID, u.Email, err)
			continue
		}
		report.Sent++
	}

	log.Printf("sendMonthlyImpactEmails done. sent=%d, skipped=%d, failed=%d",
		report.Sent, report.Skipped, report.Failed)
	return report, nil
}

func recipientName(u *models.User) string {
	if u.Name != "" {
		return u.Name
	}
	if at := strings.Index(u.Email, "@"); at > 0 {
		return u.Email[:at]
	}
	return "there"
}
