package services

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"pizzaria/internal/utils"
)

// StockEventType - тип события склада
type StockEventType string

const (
	EventStockEntry      StockEventType = "stock_entry"
	EventStockAdjusted   StockEventType = "stock_adjusted"
	EventSaleRecorded    StockEventType = "sale_recorded"
	EventLowStock        StockEventType = "low_stock"
	EventCapacityChanged StockEventType = "capacity_changed"
)

// RedisStockChannelPrefix - префикс каналов pub/sub (stock_events:<tenant_id>)
const RedisStockChannelPrefix = "stock_events:"

// StockEvent - событие склада для дашборда и внешних потребителей
type StockEvent struct {
	Type           StockEventType `json:"type"`
	TenantID       string         `json:"tenant_id"`
	IngredientID   string         `json:"ingredient_id,omitempty"`
	IngredientName string         `json:"ingredient_name,omitempty"`
	RecipeID       string         `json:"recipe_id,omitempty"`
	RecipeName     string         `json:"recipe_name,omitempty"`
	Quantity       float64        `json:"quantity,omitempty"`
	CurrentStock   *float64       `json:"current_stock,omitempty"`
	Status         string         `json:"status,omitempty"`
	Capacity       *int           `json:"capacity,omitempty"`
	Message        string         `json:"message,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

// MessageWriter - часть kafka.Writer, которую использует публикатор
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventPublisher отправляет события склада в Kafka, при ее отсутствии в Redis pub/sub, иначе только логирует
type EventPublisher struct {
	writer    MessageWriter
	redisUtil *utils.RedisClient
	sentCount int64
}

func NewEventPublisher(redisUtil *utils.RedisClient) *EventPublisher {
	return &EventPublisher{redisUtil: redisUtil}
}

// SetKafkaWriter включает отправку в Kafka
func (p *EventPublisher) SetKafkaWriter(writer MessageWriter) {
	p.writer = writer
}

// Publish отправляет событие, не блокируя вызывающий код ожиданием Kafka
func (p *EventPublisher) Publish(event StockEvent) {
	if p == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("❌ Не удалось сериализовать событие %s: %v", event.Type, err)
		return
	}

	switch {
	case p.writer != nil:
		go p.writeKafka(event, payload)
	case p.redisUtil != nil:
		if err := p.redisUtil.Publish(RedisStockChannelPrefix+event.TenantID, string(payload)); err != nil {
			log.Printf("⚠️ Redis publish %s failed: %v", event.Type, err)
		}
	default:
		log.Printf("📡 Событие склада %s (tenant %s): %s", event.Type, event.TenantID, event.Message)
	}
}

func (p *EventPublisher) writeKafka(event StockEvent, payload []byte) {
	// Не ctx запроса: он может быть отменен раньше, чем Kafka подтвердит запись
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TenantID),
		Value: payload,
	})
	if err != nil {
		if !strings.Contains(err.Error(), "Unknown Topic Or Partition") {
			log.Printf("⚠️ Kafka error при отправке события %s: %v", event.Type, err)
		}
		return
	}
	if atomic.AddInt64(&p.sentCount, 1) <= 10 {
		log.Printf("✅ Kafka: отправлено событие %s для tenant %s", event.Type, event.TenantID)
	}
}

// Close закрывает Kafka writer
func (p *EventPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
