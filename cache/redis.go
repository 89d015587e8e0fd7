package cache

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"college-voting-backend/config"

	"github.com/redis/go-redis/v9"
)

// 全局Redis客户端
var (
	redisClient *redis.Client
	redisCtx    = context.Background()
	initOnce    sync.Once
	initialized bool

	// 模拟模式相关
	mockMode  bool
	mockMutex sync.Mutex
	mockData  = make(map[string]string)
	mockLocks = make(map[string]bool)

	// 计票缓存过期时间
	tallyExpiration = 30 * time.Second
	// 空值缓存过期时间（用于缓存穿透）
	nullExpiration = 5 * time.Minute
	// 缓存时间抖动系数
	jitterFactor = 0.2
)

// InitRedis 初始化Redis连接。连接失败时退化为进程内模拟模式，
// 投票主流程不依赖Redis可用。
func InitRedis(cfg *config.Config) error {
	initOnce.Do(func() {
		// 检查是否强制使用模拟模式
		if cfg.RedisMock {
			log.Println("强制使用Redis模拟模式")
			mockMode = true
			initialized = true
			return
		}

		log.Printf("初始化Redis连接, 地址: %s", cfg.RedisAddr)

		options := &redis.Options{
			Addr:        cfg.RedisAddr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			DialTimeout: 3 * time.Second,
			ReadTimeout: 3 * time.Second,
			PoolSize:    10,
		}

		client := redis.NewClient(options)

		// 测试连接
		if _, err := client.Ping(redisCtx).Result(); err != nil {
			log.Printf("Redis连接失败: %v，将使用模拟模式", err)
			mockMode = true
			initialized = true
			return
		}

		redisClient = client
		initialized = true
		mockMode = false
		log.Println("Redis连接初始化成功")
	})

	return nil
}

// GetClient 获取Redis客户端实例
func GetClient() (*redis.Client, error) {
	if !initialized {
		return nil, fmt.Errorf("Redis客户端未初始化")
	}
	if mockMode {
		return nil, fmt.Errorf("处于模拟模式，无法获取真实客户端")
	}
	return redisClient, nil
}

// IsMockMode reports whether the package fell back to the in-process store
func IsMockMode() bool {
	return mockMode
}

// tallyKey 计票结果缓存键
func tallyKey(electionID uint) string {
	return fmt.Sprintf("election:%d:tally", electionID)
}

// liveCountKey 实时票数计数键
func liveCountKey(electionID, candidateID uint) string {
	return fmt.Sprintf("election:%d:live:%d", electionID, candidateID)
}

// CacheTally stores a serialized tally payload with a jittered TTL.
// An empty payload caches the marker value so repeated lookups for an
// unknown election do not reach the database.
func CacheTally(electionID uint, payload string) error {
	if !initialized {
		return ErrRedisNotAvailable
	}

	key := tallyKey(electionID)
	expiration := tallyExpiration
	if payload == "" {
		payload = "nil"
		expiration = nullExpiration
	}

	// 添加随机抖动，防止缓存雪崩
	jitter := time.Duration(float64(expiration) * (1 + jitterFactor*(0.5-rand.Float64())))

	if mockMode {
		mockMutex.Lock()
		mockData[key] = payload
		mockMutex.Unlock()
		return nil
	}

	return redisClient.Set(redisCtx, key, payload, jitter).Err()
}

// GetCachedTally returns the cached tally payload. ErrCacheMiss means
// the caller should rebuild from the database; an empty string with a
// nil error means a cached negative entry.
func GetCachedTally(electionID uint) (string, error) {
	if !initialized {
		return "", ErrRedisNotAvailable
	}

	key := tallyKey(electionID)

	if mockMode {
		mockMutex.Lock()
		defer mockMutex.Unlock()
		if data, ok := mockData[key]; ok {
			if data == "nil" {
				return "", nil
			}
			return data, nil
		}
		return "", ErrCacheMiss
	}

	data, err := redisClient.Get(redisCtx, key).Result()
	if err == redis.Nil {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("查询计票缓存失败: %v", err)
	}
	if data == "nil" {
		return "", nil
	}
	return data, nil
}

// InvalidateTally drops the cached tally after a successful cast
func InvalidateTally(electionID uint) {
	if !initialized {
		return
	}

	key := tallyKey(electionID)

	if mockMode {
		mockMutex.Lock()
		delete(mockData, key)
		mockMutex.Unlock()
		return
	}

	if err := redisClient.Del(redisCtx, key).Err(); err != nil {
		log.Printf("清除计票缓存失败: %v", err)
	}
}

// IncrementLiveCount 原子增加候选人实时票数，供推送通道使用
func IncrementLiveCount(electionID, candidateID uint) (int64, error) {
	if !initialized {
		return 0, ErrRedisNotAvailable
	}

	key := liveCountKey(electionID, candidateID)

	if mockMode {
		mockMutex.Lock()
		defer mockMutex.Unlock()

		currentVal := int64(0)
		if val, ok := mockData[key]; ok {
			if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
				currentVal = parsed
			}
		}
		currentVal++
		mockData[key] = strconv.FormatInt(currentVal, 10)
		return currentVal, nil
	}

	count, err := redisClient.Incr(redisCtx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("增加实时票数失败: %v", err)
	}

	// 计数键跟随选举窗口存活即可
	redisClient.Expire(redisCtx, key, 48*time.Hour)

	return count, nil
}

// AcquireLock 获取简单SetNX锁。需要重试语义时用DistributedLockService。
func AcquireLock(lockKey string, expiration time.Duration) (bool, error) {
	if !initialized {
		return false, ErrRedisNotAvailable
	}

	key := "vote:lock:" + lockKey

	if mockMode {
		mockMutex.Lock()
		defer mockMutex.Unlock()

		if locked, exists := mockLocks[key]; exists && locked {
			return false, nil
		}
		mockLocks[key] = true
		return true, nil
	}

	success, err := redisClient.SetNX(redisCtx, key, "1", expiration).Result()
	if err != nil {
		return false, fmt.Errorf("获取锁失败: %v", err)
	}
	return success, nil
}

// ReleaseLock 释放锁
func ReleaseLock(lockKey string) error {
	if !initialized {
		return ErrRedisNotAvailable
	}

	key := "vote:lock:" + lockKey

	if mockMode {
		mockMutex.Lock()
		defer mockMutex.Unlock()
		delete(mockLocks, key)
		return nil
	}

	if _, err := redisClient.Del(redisCtx, key).Result(); err != nil {
		return fmt.Errorf("释放锁失败: %v", err)
	}
	return nil
}

// ResetMock 清空模拟存储，测试用
func ResetMock() {
	mockMutex.Lock()
	defer mockMutex.Unlock()
	mockData = make(map[string]string)
	mockLocks = make(map[string]bool)
}

// CloseRedis 关闭Redis连接
func CloseRedis() {
	if initialized && !mockMode && redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Printf("关闭Redis连接错误: %v", err)
		}
		log.Println("Redis连接已关闭")
	}
}
