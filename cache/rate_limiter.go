package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter 限流器接口
type RateLimiter interface {
	// Allow 判断请求是否允许通过
	Allow(ctx context.Context) (bool, error)
}

// 令牌桶算法的Lua脚本，原子取令牌
const tokenBucketScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local period = 1

local tokens_key = key .. ":tokens"
local timestamp_key = key .. ":ts"

local tokens = tonumber(redis.call("get", tokens_key) or burst)
local last_update = tonumber(redis.call("get", timestamp_key) or 0)

local elapsed = math.max(0, now - last_update)
local new_tokens = math.min(burst, tokens + elapsed * rate)

if new_tokens < 1 then
	return 0
end

new_tokens = new_tokens - 1

redis.call("setex", tokens_key, period * 2, new_tokens)
redis.call("setex", timestamp_key, period * 2, now)

return 1
`

// TokenBucketRateLimiter 令牌桶限流器。Redis不可用时退化为进程内的
// rate.Limiter，单实例部署下语义等价。
type TokenBucketRateLimiter struct {
	key      string
	rate     int // 每秒生成的令牌数量
	burst    int // 令牌桶最大容量
	fallback *rate.Limiter
}

// NewTokenBucketRateLimiter 创建新的令牌桶限流器
func NewTokenBucketRateLimiter(key string, r, burst int) *TokenBucketRateLimiter {
	return &TokenBucketRateLimiter{
		key:      fmt.Sprintf("rate_limit:%s", key),
		rate:     r,
		burst:    burst,
		fallback: rate.NewLimiter(rate.Limit(r), burst),
	}
}

// Allow 判断请求是否允许通过
func (l *TokenBucketRateLimiter) Allow(ctx context.Context) (bool, error) {
	client, err := GetClient()
	if err != nil {
		// 模拟模式或Redis不可用，走进程内限流
		return l.fallback.Allow(), nil
	}

	now := time.Now().Unix()
	keys := []string{l.key}
	args := []interface{}{now, l.rate, l.burst}

	result, err := client.Eval(ctx, tokenBucketScript, keys, args...).Result()
	if err != nil {
		return false, err
	}

	return result.(int64) == 1, nil
}

// UserRateLimiter 用户级别限流器，全局桶加每用户独立桶。用于OTP发送
// 和登录尝试这类昂贵或敏感的端点。
type UserRateLimiter struct {
	globalLimiter RateLimiter
	keyPrefix     string
	rate          int
	burst         int

	mu       sync.Mutex
	limiters map[string]RateLimiter
}

// NewUserRateLimiter 创建新的用户级别限流器
func NewUserRateLimiter(keyPrefix string, globalRate, globalBurst, userRate, userBurst int) *UserRateLimiter {
	return &UserRateLimiter{
		globalLimiter: NewTokenBucketRateLimiter(keyPrefix+":global", globalRate, globalBurst),
		keyPrefix:     keyPrefix,
		rate:          userRate,
		burst:         userBurst,
		limiters:      make(map[string]RateLimiter),
	}
}

// getUserLimiter 获取用户的限流器
func (l *UserRateLimiter) getUserLimiter(userID string) RateLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, ok := l.limiters[userID]; ok {
		return limiter
	}

	limiter := NewTokenBucketRateLimiter(l.keyPrefix+":user:"+userID, l.rate, l.burst)
	l.limiters[userID] = limiter
	return limiter
}

// AllowUser 判断用户请求是否允许通过
func (l *UserRateLimiter) AllowUser(ctx context.Context, userID string) (bool, error) {
	// 先检查全局限流
	allowed, err := l.globalLimiter.Allow(ctx)
	if err != nil || !allowed {
		return allowed, err
	}

	// 再检查用户级别限流
	return l.getUserLimiter(userID).Allow(ctx)
}
