package api

import (
	"context"
	"log"

	"pizzaria/internal/services"
	"pizzaria/internal/utils"
)

// StartRedisStockListener пересылает события склада из Redis pub/sub в WebSocket.
// Используется, когда Kafka не настроена и EventPublisher публикует в stock_events:<tenant_id>.
func StartRedisStockListener(ctx context.Context, redisUtil *utils.RedisClient, target EventBroadcaster) {
	messages, closeSub := redisUtil.PSubscribe(services.RedisStockChannelPrefix + "*")
	log.Printf("📡 Redis pub/sub: подписка на %s*", services.RedisStockChannelPrefix)

	go func() {
		defer closeSub()
		for {
			select {
			case <-ctx.Done():
				log.Println("🛑 Redis stock listener остановлен")
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				forwardStockEvent(target, []byte(msg.Payload))
			}
		}
	}()
}
