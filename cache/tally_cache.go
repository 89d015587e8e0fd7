package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"time"
)

// electionFilter 选举ID存在性预判的最小接口，由BloomFilter实现
type electionFilter interface {
	MightContainElection(ctx context.Context, electionID uint) (bool, error)
	AddElection(ctx context.Context, electionID uint) error
}

// TallyCache 计票结果缓存管理器。读路径带分布式锁防止缓存击穿，
// 后台刷新器定期重算进行中选举的计票，投票高峰期绝大部分结果
// 请求不触达数据库。
type TallyCache struct {
	lockService  *DistributedLockService
	bloomFilter  electionFilter
	refreshTimer *time.Ticker
	done         chan struct{}
}

// NewTallyCache 创建计票缓存管理器
func NewTallyCache(lockService *DistributedLockService, bloomFilter *BloomFilter) *TallyCache {
	c := &TallyCache{
		lockService: lockService,
		done:        make(chan struct{}),
	}
	if bloomFilter != nil {
		c.bloomFilter = bloomFilter
	}
	return c
}

// Get returns the cached tally for the election, rebuilding it through
// loader under a per-election lock when absent. The boolean reports
// whether the election exists; a cached negative entry short-circuits.
func (c *TallyCache) Get(ctx context.Context, electionID uint, loader func() (interface{}, bool, error)) (string, bool, error) {
	// 1. 布隆过滤器预判。未命中也可能是启动后新建的选举，
	// 回源确认一次，命中则补灌过滤器
	if c.bloomFilter != nil {
		if might, err := c.bloomFilter.MightContainElection(ctx, electionID); err == nil && !might {
			data, found, err := loader()
			if err != nil {
				return "", false, err
			}
			if !found {
				if err := CacheTally(electionID, ""); err != nil && err != ErrRedisNotAvailable {
					log.Printf("缓存空计票失败: %v", err)
				}
				return "", false, nil
			}
			jsonData, err := json.Marshal(data)
			if err != nil {
				return "", false, err
			}
			payload := string(jsonData)
			if err := CacheTally(electionID, payload); err != nil && err != ErrRedisNotAvailable {
				log.Printf("缓存计票结果失败: %v", err)
			}
			if err := c.bloomFilter.AddElection(ctx, electionID); err != nil {
				log.Printf("更新选举过滤器失败: %v", err)
			}
			return payload, true, nil
		}
	}

	// 2. 尝试从缓存获取
	payload, err := GetCachedTally(electionID)
	if err == nil {
		if payload == "" {
			return "", false, nil
		}
		return payload, true, nil
	}
	if err != ErrCacheMiss {
		log.Printf("查询计票缓存失败: %v", err)
	}

	// 3. 分布式锁防止缓存击穿
	lockKey := fmt.Sprintf("tally:rebuild:%d", electionID)
	var result string
	var exists bool

	lockErr := c.lockService.WithLock(lockKey, 5*time.Second, func() error {
		// 双重检查，可能其他实例已经重建了缓存
		if payload, err := GetCachedTally(electionID); err == nil {
			if payload == "" {
				exists = false
				return nil
			}
			result = payload
			exists = true
			return nil
		}

		data, found, err := loader()
		if err != nil {
			return err
		}

		if !found {
			exists = false
			// 缓存空值防止穿透
			if err := CacheTally(electionID, ""); err != nil && err != ErrRedisNotAvailable {
				log.Printf("缓存空计票失败: %v", err)
			}
			return nil
		}

		jsonData, err := json.Marshal(data)
		if err != nil {
			return err
		}
		result = string(jsonData)
		exists = true

		if err := CacheTally(electionID, result); err != nil && err != ErrRedisNotAvailable {
			log.Printf("缓存计票结果失败: %v", err)
		}
		if c.bloomFilter != nil {
			if err := c.bloomFilter.AddElection(ctx, electionID); err != nil {
				log.Printf("更新选举过滤器失败: %v", err)
			}
		}
		return nil
	})

	if lockErr == ErrLockNotAcquired {
		// 没拿到锁就直接回源，不阻塞请求
		data, found, err := loader()
		if err != nil {
			return "", false, err
		}
		if !found {
			return "", false, nil
		}
		jsonData, err := json.Marshal(data)
		if err != nil {
			return "", false, err
		}
		return string(jsonData), true, nil
	}
	if lockErr != nil {
		return "", false, lockErr
	}

	return result, exists, nil
}

// StartRefresher 启动后台刷新，定期重算热点选举的计票
func (c *TallyCache) StartRefresher(interval time.Duration, hotElections func() ([]uint, error), rebuild func(electionID uint) (interface{}, error)) {
	c.refreshTimer = time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-c.refreshTimer.C:
				ids, err := hotElections()
				if err != nil {
					log.Printf("获取进行中选举列表失败: %v", err)
					continue
				}

				for _, id := range ids {
					go func(electionID uint) {
						lockKey := fmt.Sprintf("tally:refresh:%d", electionID)
						err := c.lockService.WithLock(lockKey, time.Second, func() error {
							data, err := rebuild(electionID)
							if err != nil {
								return err
							}
							jsonData, err := json.Marshal(data)
							if err != nil {
								return err
							}
							return CacheTally(electionID, string(jsonData))
						})
						if err != nil && err != ErrLockNotAcquired {
							log.Printf("刷新选举 %d 计票失败: %v", electionID, err)
						}
					}(id)
				}
			case <-c.done:
				return
			}
		}
	}()
}

// StopRefresher 停止刷新器
func (c *TallyCache) StopRefresher() {
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		close(c.done)
	}
}

// Prewarm rebuilds and caches the listed elections, staggering the
// TTLs so they do not expire together.
func (c *TallyCache) Prewarm(ctx context.Context, electionIDs []uint, rebuild func(electionID uint) (interface{}, error)) {
	log.Println("开始预热计票缓存...")

	for _, id := range electionIDs {
		go func(electionID uint) {
			data, err := rebuild(electionID)
			if err != nil {
				log.Printf("预热选举 %d 计票失败: %v", electionID, err)
				return
			}

			jsonData, err := json.Marshal(data)
			if err != nil {
				return
			}
			// 预热阶段错开一点再写入，降低同时失效的概率
			time.Sleep(time.Duration(rand.Intn(200)) * time.Millisecond)
			if err := CacheTally(electionID, string(jsonData)); err != nil && err != ErrRedisNotAvailable {
				log.Printf("写入预热计票失败: %v", err)
			}
			if c.bloomFilter != nil {
				_ = c.bloomFilter.AddElection(ctx, electionID)
			}
		}(id)
	}
}
