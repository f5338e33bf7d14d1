package kafka_middleware

import (
	"context"
	"time"

	"medislot/pkg/kafka"
	"medislot/pkg/metrics"
)

const (
	DirectionPublish = "publish"
	DirectionConsume = "consume"
)

// MetricsProducerMiddleware records publish counts and latency
func MetricsProducerMiddleware(m *metrics.Metrics) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		m.ObserveKafka(DirectionPublish, msg.Topic, err != nil, time.Since(start).Seconds())
		return err
	}
}

// MetricsConsumerMiddleware records consume counts and latency
func MetricsConsumerMiddleware(m *metrics.Metrics) kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		m.ObserveKafka(DirectionConsume, msg.Topic, err != nil, time.Since(start).Seconds())
		return err
	}
}
