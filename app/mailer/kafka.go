package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const (
	kafkaWriteTimeout = 10 * time.Second
	kafkaSendAttempts = 3
)

var retryDelay = time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaMailer publishes messages on a Kafka topic keyed by recipient.
type KafkaMailer struct {
	writer messageWriter
}

func NewKafkaMailer(brokers []string, topic string) *KafkaMailer {
	return &KafkaMailer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: kafkaWriteTimeout,
		},
	}
}

func (m *KafkaMailer) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return m.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.To),
		Value: body,
		Time:  time.Now(),
	})
}

func (m *KafkaMailer) Close() error {
	return m.writer.Close()
}

func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// ConsumeKafka drains the mail topic until ctx is done. Transient send
// failures are retried a few times before the message is committed anyway.
func ConsumeKafka(ctx context.Context, reader messageReader, handler *Handler) error {
	defer func() { _ = reader.Close() }()

	logrus.Info("Mail worker consuming from Kafka")
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		handleKafkaMessage(ctx, handler, msg)

		if err := reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func handleKafkaMessage(ctx context.Context, handler *Handler, msg kafka.Message) {
	for attempt := 1; attempt <= kafkaSendAttempts; attempt++ {
		err := handler.Handle(ctx, msg.Value)
		if err == nil {
			return
		}
		if errors.Is(err, ErrUndeliverable) {
			logrus.WithError(err).WithField("offset", msg.Offset).Warn("Dropping undeliverable mail message")
			return
		}
		logrus.WithError(err).WithField("attempt", attempt).Error("Failed to send mail")

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * retryDelay):
		}
	}
}
