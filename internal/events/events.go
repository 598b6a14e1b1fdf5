package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Simplici0/pricedesk/internal/pricing"
)

const EventTypePriceChanged = "PriceChanged"

// PriceChanged announces a newly derived price set for one product.
type PriceChanged struct {
	EventID         string                                `json:"event_id"`
	EventType       string                                `json:"event_type"`
	ProductID       string                                `json:"product_id"`
	Currency        string                                `json:"currency"`
	ExchangeRate    decimal.Decimal                       `json:"exchange_rate"`
	ConfigVersion   int64                                 `json:"config_version"`
	PendingApproval bool                                  `json:"pending_approval"`
	SubPrice        decimal.Decimal                       `json:"sub_price"`
	Prices          map[pricing.PriceType]decimal.Decimal `json:"prices"`
	OccurredAt      time.Time                             `json:"occurred_at"`
}

// NewPriceChanged builds the event for a freshly derived price set.
func NewPriceChanged(productID string, cost pricing.CostInput, set pricing.PriceSet, at time.Time) PriceChanged {
	return PriceChanged{
		EventID:         uuid.NewString(),
		EventType:       EventTypePriceChanged,
		ProductID:       productID,
		Currency:        cost.OriginalCurrency,
		ExchangeRate:    cost.ExchangeRate,
		ConfigVersion:   set.ConfigVersion,
		PendingApproval: set.PendingApproval,
		SubPrice:        set.SubPrice,
		Prices:          set.Prices,
		OccurredAt:      at,
	}
}

// Publisher announces price changes to downstream consumers.
type Publisher interface {
	PublishPriceChanged(ctx context.Context, ev PriceChanged) error
	Close() error
}

// messageWriter abstracts kafka.Writer for tests.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events keyed by product id, so every product's
// changes land on one partition in order.
type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

// NewKafkaPublisher connects to brokers and publishes to topic.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		logger: logger,
	}
}

// NewKafkaPublisherWith injects a writer; used by tests.
func NewKafkaPublisherWith(w messageWriter, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, logger: logger}
}

func (p *KafkaPublisher) PublishPriceChanged(ctx context.Context, ev PriceChanged) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.EventType, err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.ProductID),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("publish %s event for product %s: %w", ev.EventType, ev.ProductID, err)
	}

	p.logger.Debug("published price change",
		zap.String("event_id", ev.EventID),
		zap.String("product_id", ev.ProductID),
		zap.Int64("config_version", ev.ConfigVersion),
	)
	return nil
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// NopPublisher drops events. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishPriceChanged(context.Context, PriceChanged) error { return nil }
func (NopPublisher) Close() error                                            { return nil }
