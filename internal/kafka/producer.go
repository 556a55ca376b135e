package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"cine-pos/internal/logger"
	"cine-pos/internal/models"
)

// Producer streams settlement events keyed by order number. In mock mode no
// broker is contacted; events are only logged, which keeps a till usable
// when the reporting pipeline is down.
type Producer struct {
	Writer   *kafka.Writer
	Logger   *logger.Logger
	MockMode bool
}

func NewProducer(brokers []string, topic string, log *logger.Logger, mockMode bool) *Producer {
	p := &Producer{Logger: log, MockMode: mockMode}
	if !mockMode {
		p.Writer = kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   topic,
		})
	}
	return p
}

// PublishOrderSettled streams one settlement event, complete or partial.
func (p *Producer) PublishOrderSettled(evt models.OrderSettled) error {
	msgBytes, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	if p.MockMode || p.Writer == nil {
		if p.Logger != nil {
			p.Logger.LogKafka("MOCK", "pos.order.settled", string(msgBytes))
		}
		return nil
	}

	if p.Logger != nil {
		p.Logger.LogKafka("PUBLISH", "pos.order.settled", fmt.Sprintf("order %s partial=%v", evt.OrderNumber, evt.Partial))
	}

	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(evt.OrderNumber),
			Value: msgBytes,
		},
	)
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	if p.Writer != nil {
		return p.Writer.Close()
	}
	return nil
}
