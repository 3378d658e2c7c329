package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"pizzaria/internal/services"
)

// EventBroadcaster - получатель событий склада (WebSocket хаб)
type EventBroadcaster interface {
	BroadcastEvent(tenantID, eventType string, data interface{})
}

// KafkaWSConsumer читает события склада из Kafka и отправляет их в WebSocket пиццерии
type KafkaWSConsumer struct {
	topic     string
	groupID   string
	reader    *kafka.Reader
	target    EventBroadcaster
	ctx       context.Context
	cancel    context.CancelFunc
	processed int64 // Счетчик обработанных событий
	lastLog   int64 // Время последнего лога
}

// NewKafkaWSConsumer создает новый Kafka Consumer для WebSocket.
// Каждый экземпляр сервера читает все события (свой GroupID не задается), потому что
// дашборды подключены к разным экземплярам.
func NewKafkaWSConsumer(brokers, topic string, target EventBroadcaster, username, password, caCert string) *KafkaWSConsumer {
	ctx, cancel := context.WithCancel(context.Background())

	// Создаем dialer с SASL/PLAIN и TLS если нужно
	dialer := CreateKafkaDialer(username, password, caCert)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     ParseKafkaBrokers(brokers),
		Topic:       topic,
		StartOffset: kafka.LastOffset, // Дашборду нужны только новые события
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     1 * time.Second,
		Dialer:      dialer,
	})

	return &KafkaWSConsumer{
		topic:   topic,
		reader:  reader,
		target:  target,
		ctx:     ctx,
		cancel:  cancel,
		lastLog: time.Now().Unix(),
	}
}

// Start запускает чтение из Kafka и отправку в WebSocket
func (kc *KafkaWSConsumer) Start() {
	log.Printf("📡 Kafka WS Consumer запущен: topic=%s, startOffset=LastOffset", kc.topic)

	go func() {
		for {
			msg, err := kc.reader.ReadMessage(kc.ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || kc.ctx.Err() != nil {
					return
				}
				log.Printf("⚠️ Kafka WS Consumer ошибка чтения: %v", err)
				time.Sleep(1 * time.Second)
				continue
			}

			if !forwardStockEvent(kc.target, msg.Value) {
				continue
			}

			// Логируем только раз в 5 секунд для прогресса
			processed := atomic.AddInt64(&kc.processed, 1)
			now := time.Now().Unix()
			if now-atomic.LoadInt64(&kc.lastLog) >= 5 {
				atomic.StoreInt64(&kc.lastLog, now)
				log.Printf("📊 Kafka WS Consumer: обработано %d событий", processed)
			}
		}
	}()
}

// Stop останавливает Kafka Consumer
func (kc *KafkaWSConsumer) Stop() {
	kc.cancel()
	if kc.reader != nil {
		kc.reader.Close()
	}
	log.Println("🛑 Kafka WS Consumer остановлен")
}

// forwardStockEvent разбирает событие и отправляет его пиццерии. Нечитаемые сообщения пропускаются.
func forwardStockEvent(target EventBroadcaster, payload []byte) bool {
	var event services.StockEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		// Не логируем каждую ошибку парсинга, чтобы не спамить
		return false
	}
	if event.TenantID == "" || event.Type == "" {
		return false
	}
	target.BroadcastEvent(event.TenantID, string(event.Type), event)
	return true
}
