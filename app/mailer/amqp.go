package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const amqpPrefetch = 16

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPMailer enqueues messages on a durable RabbitMQ queue.
type AMQPMailer struct {
	conn  *amqp.Connection
	ch    amqpPublisher
	queue string
}

func NewAMQPMailer(url, queue string) (*AMQPMailer, error) {
	conn, ch, err := dialQueue(url, queue)
	if err != nil {
		return nil, err
	}
	return &AMQPMailer{conn: conn, ch: ch, queue: queue}, nil
}

func (m *AMQPMailer) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return m.ch.PublishWithContext(ctx,
		"",      // default exchange
		m.queue, // routing key = queue
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}

func (m *AMQPMailer) Close() error {
	if m == nil || m.conn == nil {
		return nil
	}
	return m.conn.Close()
}

// dialQueue opens a channel and declares the durable mail queue.
func dialQueue(url, queue string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

// ConsumeAMQP drains the mail queue until ctx is done or the channel closes.
func ConsumeAMQP(ctx context.Context, url, queue string, handler *Handler) error {
	conn, ch, err := dialQueue(url, queue)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	if err := ch.Qos(amqpPrefetch, 0, false); err != nil {
		return err
	}
	deliveries, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	logrus.WithField("queue", queue).Info("Mail worker consuming from RabbitMQ")
	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("amqp delivery channel closed")
			}
			handleDelivery(ctx, handler, delivery)
		}
	}
}

// handleDelivery acks sent messages, drops undeliverable ones and requeues
// transient failures.
func handleDelivery(ctx context.Context, handler *Handler, delivery amqp.Delivery) {
	err := handler.Handle(ctx, delivery.Body)
	switch {
	case err == nil:
		_ = delivery.Ack(false)
	case errors.Is(err, ErrUndeliverable):
		logrus.WithError(err).Warn("Dropping undeliverable mail message")
		_ = delivery.Nack(false, false)
	default:
		logrus.WithError(err).Error("Failed to send mail, requeueing")
		_ = delivery.Nack(false, true)
	}
}
