package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUndeliverable marks a queued message that can never be sent, such as
// malformed JSON or an unknown template. Such messages are dropped instead of
// requeued.
var ErrUndeliverable = errors.New("undeliverable mail message")

// Handler decodes a queued message and hands it to a direct transport.
type Handler struct {
	mailer Mailer
}

func NewHandler(mailer Mailer) *Handler {
	return &Handler{mailer: mailer}
}

func (h *Handler) Handle(ctx context.Context, body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrUndeliverable, err)
	}
	if msg.To == "" {
		return fmt.Errorf("%w: missing recipient", ErrUndeliverable)
	}
	if _, err := Render(msg); err != nil {
		return fmt.Errorf("%w: %v", ErrUndeliverable, err)
	}
	return h.mailer.Send(ctx, msg)
}
