package mailer

import (
	"context"
	"time"

	mg "github.com/mailgun/mailgun-go/v4"
)

const mailgunTimeout = 10 * time.Second

type mailgunClient interface {
	NewMessage(from, subject, text string, to ...string) *mg.Message
	Send(ctx context.Context, m *mg.Message) (string, string, error)
}

// Mailgun renders messages and sends them through the Mailgun API.
type Mailgun struct {
	client mailgunClient
	sender string
}

func NewMailgun(domain, apiKey, sender string) *Mailgun {
	return &Mailgun{client: mg.NewMailgun(domain, apiKey), sender: sender}
}

func (m *Mailgun) Send(ctx context.Context, msg Message) error {
	rendered, err := Render(msg)
	if err != nil {
		return err
	}

	message := m.client.NewMessage(m.sender, rendered.Subject, rendered.Text, msg.To)
	if rendered.HTML != "" {
		message.SetHtml(rendered.HTML)
	}

	c, cancel := context.WithTimeout(ctx, mailgunTimeout)
	defer cancel()
	_, _, err = m.client.Send(c, message)
	return err
}
