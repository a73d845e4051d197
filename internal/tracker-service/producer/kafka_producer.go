package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mlaurent/parlay-tracker/pkg/contracts/events"
)

// KafkaPublisher publica os eventos do tracker (bet_settled e
// session_closed) em writers dedicados por tópico.
type KafkaPublisher struct {
	SettledWriter *kafka.Writer
	ClosedWriter  *kafka.Writer
}

func NewKafkaPublisher(settled, closed *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{SettledWriter: settled, ClosedWriter: closed}
}

func (p *KafkaPublisher) PublishBetSettled(ctx context.Context, e events.BetSettled) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return p.SettledWriter.WriteMessages(ctx, kafka.Message{Key: []byte(e.BetID), Value: b})
}

func (p *KafkaPublisher) PublishSessionClosed(ctx context.Context, e events.SessionClosed) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return p.ClosedWriter.WriteMessages(ctx, kafka.Message{Key: []byte(e.SessionID), Value: b})
}
