package services

import (
	"fmt"
	"log"
	"time"

	"pizzaria/internal/inventory"
	"pizzaria/internal/utils"
)

// CapacityCache кэширует результат расчета мощности рецептов в Redis.
// Любое изменение остатков арендатора сбрасывает все его ключи.
type CapacityCache struct {
	redisUtil *utils.RedisClient
	ttl       time.Duration
}

func NewCapacityCache(redisUtil *utils.RedisClient, ttl time.Duration) *CapacityCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CapacityCache{redisUtil: redisUtil, ttl: ttl}
}

func capacityKey(tenantID, recipeID string) string {
	return fmt.Sprintf("capacity:%s:%s", tenantID, recipeID)
}

// Get возвращает закэшированный результат, ok=false при промахе или недоступном Redis
func (c *CapacityCache) Get(tenantID, recipeID string) (inventory.CapacityResult, bool) {
	var result inventory.CapacityResult
	if c == nil || c.redisUtil == nil {
		return result, false
	}
	if err := c.redisUtil.GetJSON(capacityKey(tenantID, recipeID), &result); err != nil {
		if !utils.IsMiss(err) {
			log.Printf("⚠️ Capacity cache read failed: %v", err)
		}
		return inventory.CapacityResult{}, false
	}
	return result, true
}

func (c *CapacityCache) Set(tenantID, recipeID string, result inventory.CapacityResult) {
	if c == nil || c.redisUtil == nil {
		return
	}
	if err := c.redisUtil.Set(capacityKey(tenantID, recipeID), result, c.ttl); err != nil {
		log.Printf("⚠️ Capacity cache write failed: %v", err)
	}
}

// InvalidateTenant удаляет все закэшированные мощности арендатора
func (c *CapacityCache) InvalidateTenant(tenantID string) {
	if c == nil || c.redisUtil == nil {
		return
	}
	if _, err := c.redisUtil.DeleteByPattern(capacityKey(tenantID, "*")); err != nil {
		log.Printf("⚠️ Capacity cache invalidation failed for tenant %s: %v", tenantID, err)
	}
}
