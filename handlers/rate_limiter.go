package handlers

import (
	"log"
	"net/http"
	"strconv"
	"sync"

	"college-voting-backend/auth"
	"college-voting-backend/cache"
	"college-voting-backend/config"

	"github.com/gin-gonic/gin"
)

// RateLimiterStats 限流统计信息
type RateLimiterStats struct {
	TotalRequests    int64            `json:"total_requests"`
	AllowedRequests  int64            `json:"allowed_requests"`
	RejectedRequests int64            `json:"rejected_requests"`
	UserRequestStats map[string]int64 `json:"user_request_stats"`
}

// RateLimitMiddleware API限流中间件。已登录请求按用户ID限流，
// 匿名请求按客户端IP限流。
type RateLimitMiddleware struct {
	limiter *cache.UserRateLimiter
	enabled bool

	statsLock sync.RWMutex
	total     int64
	allowed   int64
	rejected  int64
	perUser   map[string]int64
}

// NewRateLimitMiddleware 按配置创建限流中间件
func NewRateLimitMiddleware(cfg *config.Config) *RateLimitMiddleware {
	m := &RateLimitMiddleware{
		enabled: cfg.RateLimitEnabled,
		perUser: make(map[string]int64),
	}

	if m.enabled {
		m.limiter = cache.NewUserRateLimiter("api",
			cfg.GlobalRate, cfg.GlobalBurst,
			cfg.UserRate, cfg.UserBurst)
		log.Printf("API限流已启用: global=%d/s user=%d/s", cfg.GlobalRate, cfg.UserRate)
	}

	return m
}

// Handler 返回gin中间件函数
func (m *RateLimitMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.enabled {
			c.Next()
			return
		}

		key := c.ClientIP()
		if user := auth.CurrentUser(c); user != nil {
			key = "u" + strconv.FormatUint(uint64(user.ID), 10)
		}

		allowed, err := m.limiter.AllowUser(c.Request.Context(), key)
		if err != nil {
			// 限流器故障时放行，不把Redis故障放大成服务不可用
			log.Printf("限流检查失败: %v", err)
			allowed = true
		}

		m.record(key, allowed)

		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (m *RateLimitMiddleware) record(key string, allowed bool) {
	m.statsLock.Lock()
	defer m.statsLock.Unlock()

	m.total++
	if allowed {
		m.allowed++
	} else {
		m.rejected++
	}
	m.perUser[key]++
}

// Stats 返回当前限流统计
func (m *RateLimitMiddleware) Stats() RateLimiterStats {
	m.statsLock.RLock()
	defer m.statsLock.RUnlock()

	perUser := make(map[string]int64, len(m.perUser))
	for k, v := range m.perUser {
		perUser[k] = v
	}

	return RateLimiterStats{
		TotalRequests:    m.total,
		AllowedRequests:  m.allowed,
		RejectedRequests: m.rejected,
		UserRequestStats: perUser,
	}
}

// StatsHandler 暴露限流统计端点
func (m *RateLimitMiddleware) StatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, m.Stats())
}
