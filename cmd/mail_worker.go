package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-accounts/app/mailer"
)

var mailWorkerCmd = &cobra.Command{
	Use:   "mail-worker",
	Short: "Deliver queued mail",
	Long:  `Consume mail messages from RabbitMQ or Kafka (per MAIL_TRANSPORT) and deliver them through Mailgun, or the log when Mailgun is not configured.`,
	Args:  cobra.NoArgs,
	RunE:  runMailWorker,
}

func init() {
	rootCmd.AddCommand(mailWorkerCmd)
}

func runMailWorker(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	direct, err := mailer.NewDirect(cfg.Mail)
	if err != nil {
		return err
	}
	handler := mailer.NewHandler(direct)

	switch cfg.Mail.Transport {
	case mailer.TransportAMQP:
		err = mailer.ConsumeAMQP(ctx, cfg.Mail.AMQPURL, cfg.Mail.AMQPQueue, handler)
	case mailer.TransportKafka:
		reader := mailer.NewKafkaReader(cfg.Mail.KafkaBrokers, cfg.Mail.KafkaTopic, cfg.Mail.KafkaGroup)
		defer reader.Close()
		err = mailer.ConsumeKafka(ctx, reader, handler)
	default:
		return fmt.Errorf("mail-worker requires MAIL_TRANSPORT %s or %s, got %q", mailer.TransportAMQP, mailer.TransportKafka, cfg.Mail.Transport)
	}
	if err != nil {
		return err
	}

	logrus.Info("Mail worker stopped")
	return nil
}
