package repository

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	pkgkafka "MarketPulse/pkg/kafka"
)

// SignalEvent is the wire form of a computed signal on the signals topic.
type SignalEvent struct {
	Ticker             string             `json:"ticker"`
	FinalScore         float64            `json:"final_score"`
	Signal             models.Signal      `json:"signal"`
	Confidence         models.Confidence  `json:"confidence"`
	Annotation         models.Annotation  `json:"annotation"`
	Regime             models.Regime      `json:"regime"`
	Weights            map[string]float64 `json:"weights"`
	CalibrationVersion string             `json:"calibration_version"`
	Timestamp          time.Time          `json:"timestamp"`
}

// NewSignalEvent projects a result onto the event schema.
func NewSignalEvent(r *models.FinalResult) SignalEvent {
	return SignalEvent{
		Ticker:             r.Ticker,
		FinalScore:         r.FinalScore,
		Signal:             r.Signal,
		Confidence:         r.Confidence,
		Annotation:         r.Annotation,
		Regime:             r.Regime,
		Weights:            r.Weights.Map(),
		CalibrationVersion: r.CalibrationVersion,
		Timestamp:          r.Timestamp,
	}
}

// keyedPublisher is satisfied by *pkg/kafka.Producer.
type keyedPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaSignalPublisher implements SignalPublisher for Kafka, keyed by ticker.
type KafkaSignalPublisher struct {
	producer keyedPublisher
	topic    string
}

var _ domrepo.SignalPublisher = (*KafkaSignalPublisher)(nil)

func NewKafkaSignalPublisher(p keyedPublisher, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: p, topic: topic}
}

func (k *KafkaSignalPublisher) PublishSignal(ctx context.Context, r *models.FinalResult) error {
	return k.producer.Publish(ctx, k.topic, []byte(r.Ticker), NewSignalEvent(r))
}

// PublishSignals writes results as one producer batch.
func (k *KafkaSignalPublisher) PublishSignals(ctx context.Context, rs []*models.FinalResult) error {
	msgs := make([]pkgkafka.Message, 0, len(rs))
	for _, r := range rs {
		msgs = append(msgs, pkgkafka.Message{Key: []byte(r.Ticker), Value: NewSignalEvent(r)})
	}
	return k.producer.PublishBatch(ctx, k.topic, msgs)
}

// Close is a no-op; the producer is shared and closed by the app.
func (k *KafkaSignalPublisher) Close() error {
	return nil
}
