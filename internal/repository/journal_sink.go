package repository

import (
	"context"

	"TradeLens/internal/domain/models"
	domrepo "TradeLens/internal/domain/repository"
	pkgkafka "TradeLens/pkg/kafka"
	applogger "TradeLens/pkg/logger"
)

// BatchPublisher is the subset of the Kafka producer used by the mirror.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

// KafkaJournalMirror copies journal batches to a topic, one message per
// event keyed by session id.
type KafkaJournalMirror struct {
	producer BatchPublisher
	topic    string
}

func NewKafkaJournalMirror(producer BatchPublisher, topic string) *KafkaJournalMirror {
	return &KafkaJournalMirror{producer: producer, topic: topic}
}

func (m *KafkaJournalMirror) Submit(ctx context.Context, sessionID string, events []models.JournalEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(events))
	for i, ev := range events {
		msgs[i] = pkgkafka.Message{Key: []byte(sessionID), Value: ev}
	}
	return m.producer.PublishBatch(ctx, m.topic, msgs)
}

// PublishMessage lets the mirror carry log digests too.
func (m *KafkaJournalMirror) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	if topic == "" {
		topic = m.topic
	}
	return m.producer.PublishBatch(ctx, topic, []pkgkafka.Message{{Value: payload}})
}

// FanoutSink submits to a primary sink and best-effort mirrors. Only the
// primary decides whether a flush succeeded.
type FanoutSink struct {
	primary domrepo.JournalSink
	mirrors []domrepo.JournalSink
	l       *applogger.Logger
}

func NewFanoutSink(primary domrepo.JournalSink, l *applogger.Logger, mirrors ...domrepo.JournalSink) *FanoutSink {
	if l == nil {
		l = applogger.Nop()
	}
	return &FanoutSink{primary: primary, mirrors: mirrors, l: l}
}

func (f *FanoutSink) Submit(ctx context.Context, sessionID string, events []models.JournalEvent) error {
	if err := f.primary.Submit(ctx, sessionID, events); err != nil {
		return err
	}
	for _, m := range f.mirrors {
		if err := m.Submit(ctx, sessionID, events); err != nil {
			f.l.Warn("journal mirror failed",
				applogger.Int("events", len(events)),
				applogger.Error(err),
			)
		}
	}
	return nil
}
