package mailer

import (
	"fmt"

	"github.com/vibast-solutions/ms-go-accounts/config"
)

const (
	TransportLog     = "log"
	TransportMailgun = "mailgun"
	TransportAMQP    = "amqp"
	TransportKafka   = "kafka"
)

// New builds the transport selected by MAIL_TRANSPORT. The returned close
// function releases broker connections.
func New(cfg config.MailConfig) (Mailer, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Transport {
	case "", TransportLog:
		return NewLogMailer(), noop, nil
	case TransportMailgun:
		m, err := NewDirect(cfg)
		return m, noop, err
	case TransportAMQP:
		if cfg.AMQPURL == "" {
			return nil, nil, fmt.Errorf("AMQP_URL is required for the %s mail transport", TransportAMQP)
		}
		m, err := NewAMQPMailer(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		return m, m.Close, nil
	case TransportKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, nil, fmt.Errorf("KAFKA_BROKERS is required for the %s mail transport", TransportKafka)
		}
		m := NewKafkaMailer(cfg.KafkaBrokers, cfg.KafkaTopic)
		return m, m.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown mail transport %q", cfg.Transport)
	}
}

// NewDirect returns a transport that actually delivers mail: Mailgun when it
// is configured, the log otherwise.
func NewDirect(cfg config.MailConfig) (Mailer, error) {
	if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" {
		if cfg.Transport == TransportMailgun {
			return nil, fmt.Errorf("MAILGUN_DOMAIN and MAILGUN_API_KEY are required for the %s mail transport", TransportMailgun)
		}
		return NewLogMailer(), nil
	}
	return NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.From), nil
}
