package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	"github.com/nazeru/storefront-go/pkg/kafka"
	"github.com/nazeru/storefront-go/pkg/logging"
	"github.com/nazeru/storefront-go/pkg/outbox"
)

type cfg struct {
	Environment  string        `envconfig:"ENVIRONMENT" default:"development"`
	DatabaseURL  string        `envconfig:"DATABASE_URL" required:"true"`
	KafkaBrokers string        `envconfig:"KAFKA_BROKERS" required:"true"`
	KafkaTopic   string        `envconfig:"KAFKA_TOPIC" default:"storefront.events"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"1s"`
	BatchSize    int           `envconfig:"BATCH_SIZE" default:"100"`
}

func main() {
	var c cfg
	if err := envconfig.Process("", &c); err != nil {
		logrus.Fatalf("config error: %v", err)
	}
	log := logging.New(c.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, c.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	defer pool.Close()

	pub := kafka.NewPublisher(kafka.ParseBrokers(c.KafkaBrokers), c.KafkaTopic)
	defer pub.Close()

	log.WithField("topic", c.KafkaTopic).Info("outbox relay started")
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("outbox relay stopping")
			return
		case <-ticker.C:
			if err := drain(ctx, pool, pub, c.BatchSize, log); err != nil {
				log.WithError(err).Error("outbox drain failed")
			}
		}
	}
}

// drain publishes pending records oldest first. A record is marked
// sent only after the broker accepts it; a crash in between republishes
// the event, which consumers dedup by event_id.
func drain(ctx context.Context, pool *pgxpool.Pool, pub *kafka.Publisher, batch int, log *logrus.Logger) error {
	records, err := outbox.FetchPending(ctx, pool, batch)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := pub.Publish(ctx, rec.Key, rec.Payload); err != nil {
			return err
		}
		if err := outbox.MarkSent(ctx, pool, rec.ID); err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"event_id": rec.EventID, "topic": rec.Topic}).Debug("event published")
	}
	return nil
}
