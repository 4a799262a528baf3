package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// RateLimitConfig содержит настройки rate limiting
type RateLimitConfig struct {
	// MaxRequests: максимальное количество запросов за Window
	MaxRequests int
	// Window: временное окно для подсчёта запросов
	Window time.Duration
	// KeyPrefix: префикс для ключей в Redis
	KeyPrefix string
}

// GenerationRateLimitConfigs лимиты генерации: строже для анонимов
func GenerationRateLimitConfigs(anonymousPerMinute, authenticatedPerMinute int) (anonymous, authenticated RateLimitConfig) {
	if anonymousPerMinute <= 0 {
		anonymousPerMinute = 5
	}
	if authenticatedPerMinute <= 0 {
		authenticatedPerMinute = 30
	}
	anonymous = RateLimitConfig{MaxRequests: anonymousPerMinute, Window: time.Minute, KeyPrefix: "rl:gen:anon"}
	authenticated = RateLimitConfig{MaxRequests: authenticatedPerMinute, Window: time.Minute, KeyPrefix: "rl:gen:user"}
	return anonymous, authenticated
}

// PublicRateLimitConfig лимит по IP для открытых эндпоинтов (экспорт, публичные ссылки)
func PublicRateLimitConfig(perMinute int) RateLimitConfig {
	if perMinute <= 0 {
		perMinute = 60
	}
	return RateLimitConfig{MaxRequests: perMinute, Window: time.Minute, KeyPrefix: "rl:public"}
}

// RateLimiter создаёт middleware для rate limiting на основе Redis (fixed window)
type RateLimiter struct {
	redisClient redis.UniversalClient
}

// NewRateLimiter создает новый RateLimiter
func NewRateLimiter(redisClient redis.UniversalClient) *RateLimiter {
	return &RateLimiter{redisClient: redisClient}
}

// LimitGeneration ограничивает генерацию: авторизованные по user_id, анонимы по IP.
// Должен применяться после OptionalAuth.
func (rl *RateLimiter) LimitGeneration(anonymous, authenticated RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := anonymous
		subject := c.ClientIP()
		if userID := c.GetString(ContextUserID); userID != "" {
			cfg = authenticated
			subject = userID
		}
		rl.check(c, cfg, fmt.Sprintf("%s:%s", cfg.KeyPrefix, subject))
	}
}

// LimitByIP ограничивает количество запросов по IP (без привязки к path)
func (rl *RateLimiter) LimitByIP(cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		rl.check(c, cfg, fmt.Sprintf("%s:%s", cfg.KeyPrefix, c.ClientIP()))
	}
}

func (rl *RateLimiter) check(c *gin.Context, cfg RateLimitConfig, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	count, err := rl.redisClient.Incr(ctx, key).Result()
	if err != nil {
		// При ошибке Redis пропускаем запрос (fail-open), но логируем
		log.Printf("[RateLimiter] Redis error for key %s: %v. Allowing request (fail-open).", key, err)
		c.Next()
		return
	}

	// Первый запрос в окне выставляет TTL
	if count == 1 {
		if err := rl.redisClient.Expire(ctx, key, cfg.Window).Err(); err != nil {
			log.Printf("[RateLimiter] Failed to set TTL for key %s: %v", key, err)
		}
	}

	remaining := cfg.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	ttl, _ := rl.redisClient.TTL(ctx, key).Result()
	retryAfter := int(ttl.Seconds())
	if retryAfter < 0 {
		retryAfter = int(cfg.Window.Seconds())
	}

	c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.MaxRequests))
	c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
	c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", retryAfter))

	if int(count) > cfg.MaxRequests {
		log.Printf("[RateLimiter] Rate limit exceeded for key=%s. Count=%d, Limit=%d", key, count, cfg.MaxRequests)

		c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "Too many requests. Please try again later.",
			"error_type":  "rate_limited",
			"retry_after": retryAfter,
		})
		return
	}

	c.Next()
}
