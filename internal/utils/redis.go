package utils

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient обертка над Redis клиентом для кэша мощности, статусов арендаторов и pub/sub событий склада
type RedisClient struct {
	client redis.UniversalClient
	ctx    context.Context
}

// NewRedisClient создает новый Redis клиент
func NewRedisClient(client redis.UniversalClient) *RedisClient {
	return &RedisClient{
		client: client,
		ctx:    context.Background(),
	}
}

// Set сохраняет значение с TTL. Строки сохраняются как есть, остальное как JSON.
func (r *RedisClient) Set(key string, value interface{}, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	return r.client.Set(r.ctx, key, data, ttl).Err()
}

// Get получает значение
func (r *RedisClient) Get(key string) (string, error) {
	return r.client.Get(r.ctx, key).Result()
}

// GetJSON получает и парсит JSON значение
func (r *RedisClient) GetJSON(key string, dest interface{}) error {
	data, err := r.client.Get(r.ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

// DeleteByPattern удаляет все ключи по паттерну через SCAN (KEYS блокирует Redis)
func (r *RedisClient) DeleteByPattern(pattern string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := r.client.Scan(r.ctx, cursor, pattern, 200).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			if err := r.client.Del(r.ctx, keys...).Err(); err != nil {
				return deleted, err
			}
			deleted += len(keys)
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}

// Publish публикует сообщение в канал (Pub/Sub)
func (r *RedisClient) Publish(channel string, message string) error {
	return r.client.Publish(r.ctx, channel, message).Err()
}

// PSubscribe подписывается на каналы по паттерну и возвращает канал сообщений
func (r *RedisClient) PSubscribe(pattern string) (<-chan *redis.Message, func() error) {
	pubsub := r.client.PSubscribe(r.ctx, pattern)
	return pubsub.Channel(), pubsub.Close
}

// IsMiss сообщает, что ключ отсутствует в кэше
func IsMiss(err error) bool {
	return err == redis.Nil
}

func encode(value interface{}) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
