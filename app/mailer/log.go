package mailer

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogMailer renders messages and writes them to the log instead of sending
// them. Used in development and when no mail provider is configured.
type LogMailer struct{}

func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	rendered, err := Render(msg)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"to":       msg.To,
		"subject":  rendered.Subject,
		"template": msg.Template,
	}).Info(rendered.Text)
	return nil
}
