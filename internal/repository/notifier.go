package repository

import (
	"context"

	"MarketDeck/internal/domain/models"
	drepo "MarketDeck/internal/domain/repository"
	pkgkafka "MarketDeck/pkg/kafka"
	"MarketDeck/pkg/logger"
)

// KafkaNotifier publishes trade notifications to a Kafka topic. Downstream
// consumers (alert bridges, Telegram relay) subscribe there.
type KafkaNotifier struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaNotifier creates a Kafka-backed notification sink.
func NewKafkaNotifier(producer *pkgkafka.Producer, topic string) drepo.NotificationSink {
	return &KafkaNotifier{producer: producer, topic: topic}
}

func (n *KafkaNotifier) Notify(ctx context.Context, t *models.TradeNotification) error {
	// Keyed by symbol so one symbol's trades stay ordered per partition.
	return n.producer.Publish(ctx, n.topic, []byte(t.Symbol), t)
}

func (n *KafkaNotifier) Close() error {
	if n.producer != nil {
		return n.producer.Close()
	}
	return nil
}

// LogNotifier writes notifications to the application log. Used when no
// broker is configured.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a log-backed notification sink.
func NewLogNotifier(log *logger.Logger) drepo.NotificationSink {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, t *models.TradeNotification) error {
	n.log.Info("trade notification",
		logger.Bool("buy", t.Buy),
		logger.String("symbol", t.Symbol),
		logger.Float64("qty", t.Qty),
		logger.Float64("price", t.Price),
		logger.String("time", t.Time),
	)
	return nil
}

func (n *LogNotifier) Close() error { return nil }
