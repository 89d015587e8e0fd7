package cache

import (
	"fmt"
	"log"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
)

var (
	// rs 全局的Redsync实例
	rs *redsync.Redsync
)

// DistributedLockService 分布式锁服务。模拟模式下退化为SetNX风格的
// 进程内锁，接口保持一致。
type DistributedLockService struct {
	rs *redsync.Redsync
}

// InitDistLock 初始化分布式锁
func InitDistLock() {
	if mockMode {
		log.Println("模拟模式下使用进程内锁")
		return
	}

	client, err := GetClient()
	if err != nil {
		log.Printf("初始化分布式锁失败: %v", err)
		return
	}

	pool := goredis.NewPool(client)
	rs = redsync.New(pool)
	log.Println("分布式锁初始化成功")
}

// GetLockService 获取分布式锁服务实例
func GetLockService() *DistributedLockService {
	if rs == nil && !mockMode {
		InitDistLock()
	}
	return &DistributedLockService{rs: rs}
}

// AcquireMutex 尝试获取锁，带有超时时间和重试
func (s *DistributedLockService) AcquireMutex(lockName string, expiry time.Duration) (*redsync.Mutex, bool, error) {
	mutex := s.rs.NewMutex(lockName,
		redsync.WithExpiry(expiry),
		redsync.WithTries(5),
		redsync.WithRetryDelay(50*time.Millisecond),
		redsync.WithDriftFactor(0.01),
	)

	if err := mutex.Lock(); err != nil {
		return nil, false, err
	}
	return mutex, true, nil
}

// WithLock 在锁内执行操作
func (s *DistributedLockService) WithLock(lockName string, expiry time.Duration, action func() error) error {
	if s.rs == nil {
		// 进程内退化路径
		acquired, err := AcquireLock(lockName, expiry)
		if err != nil {
			return err
		}
		if !acquired {
			return ErrLockNotAcquired
		}
		defer func() { _ = ReleaseLock(lockName) }()
		return action()
	}

	mutex, acquired, err := s.AcquireMutex(lockName, expiry)
	if err != nil {
		return err
	}
	if !acquired {
		return ErrLockNotAcquired
	}

	defer func() {
		_, _ = mutex.Unlock()
	}()

	return action()
}

// WithOTPLock serializes OTP issuance per user so parallel requests
// cannot leave more than one pending code behind.
func (s *DistributedLockService) WithOTPLock(userID uint, action func() error) error {
	lockName := fmt.Sprintf("otp:issue:user:%d", userID)
	return s.WithLock(lockName, 5*time.Second, action)
}
