package mailer

import (
	"fmt"
	"strings"
	"text/template"
)

// ImpactData fills the monthly impact report templates.
type ImpactData struct {
	Name     string
	Deposits int64
	TotalKg  string
	Points   int64
}

const impactSubject = "Your Monthly UCO Impact Report 🌱"

var impactText = template.Must(template.New("impact_text").Parse(strings.TrimSpace(`
Hi {{.Name}},

Here is your monthly impact summary:

• Total deposits: {{.Deposits}}
• Total recycled: {{.TotalKg}} kg
• Current points: {{.Points}}

Thank you for helping keep used cooking oil out of drains and the environment!

— UCO Kiosk App
`)))

var impactHTML = template.Must(template.New("impact_html").Parse(strings.TrimSpace(`
<div style="font-family:Arial,sans-serif;line-height:1.5">
  <h2>Your Monthly UCO Impact Report 🌱</h2>
  <p>Hi <b>{{.Name}}</b>,</p>
  <p>Here is your monthly impact summary:</p>
  <ul>
    <li><b>Total deposits:</b> {{.Deposits}}</li>
    <li><b>Total recycled:</b> {{.TotalKg}} kg</li>
    <li><b>Current points:</b> {{.Points}}</li>
  </ul>
  <p>Thank you for helping keep used cooking oil out of drains and the environment!</p>
  <p style="color:#6B7280">— UCO Kiosk App</p>
</div>
`)))

// ImpactMessage renders the monthly impact report for one recipient.
func ImpactMessage(from, to string, data ImpactData) (Message, error) {
	var text, html strings.Builder
	if err := impactText.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render impact text: %w", err)
	}
	if err := impactHTML.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render impact html: %w", err)
	}
	return Message{
		To:      to,
		From:    from,
		Subject: impactSubject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// TestMessage is the body sent by the send-test-email admin endpoint.
func TestMessage(from, to string) Message {
	return Message{
		To:      to,
		From:    from,
		Subject: "SendGrid test ✅",
		Text:    "If you received this, SendGrid and the kiosk backend secrets are working.",
		HTML:    "<b>If you received this, SendGrid and the kiosk backend secrets are working.</b>",
	}
}
