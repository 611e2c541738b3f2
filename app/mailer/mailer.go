// Package mailer delivers templated account mail. Transports either send
// directly (log, mailgun) or enqueue the message for the mail worker (amqp,
// kafka), which renders and sends it through a direct transport.
package mailer

import (
	"context"
	"errors"
)

const (
	TemplateVerifyEmail   = "verify-email"
	TemplateResetPassword = "reset-password"
)

var ErrUnknownTemplate = errors.New("unknown mail template")

// Message is also the queue payload, so its JSON shape is part of the wire
// contract between the API and the mail worker.
type Message struct {
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data"`
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
