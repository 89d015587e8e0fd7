package cache

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"

	"github.com/redis/go-redis/v9"
)

// BloomFilter 布隆过滤器，基于Redis位图实现。用于选举ID存在性
// 预判，把对不存在选举的结果查询挡在数据库之外。
type BloomFilter struct {
	client    *redis.Client
	key       string
	hashCount int
}

// NewBloomFilter 创建新的布隆过滤器
func NewBloomFilter(client *redis.Client, key string, hashCount int) *BloomFilter {
	return &BloomFilter{
		client:    client,
		key:       "bloom:" + key,
		hashCount: hashCount,
	}
}

// InitElectionFilter 初始化选举ID过滤器并灌入已知ID。
// 模拟模式下返回nil，调用方按过滤器缺失处理（全部放行）。
func InitElectionFilter(electionIDs []uint) *BloomFilter {
	client, err := GetClient()
	if err != nil {
		log.Printf("初始化选举过滤器跳过: %v", err)
		return nil
	}

	bf := NewBloomFilter(client, "elections", 5)
	ctx := context.Background()
	for _, id := range electionIDs {
		if err := bf.AddElection(ctx, id); err != nil {
			log.Printf("灌入选举ID %d 失败: %v", id, err)
		}
	}
	log.Printf("选举过滤器已灌入 %d 个ID", len(electionIDs))
	return bf
}

// AddElection 添加选举ID到过滤器
func (bf *BloomFilter) AddElection(ctx context.Context, electionID uint) error {
	return bf.add(ctx, fmt.Sprintf("%d", electionID))
}

// MightContainElection 检查选举ID是否可能存在。
// 返回false时肯定不存在，返回true时可能存在（有误判率）。
func (bf *BloomFilter) MightContainElection(ctx context.Context, electionID uint) (bool, error) {
	return bf.contains(ctx, fmt.Sprintf("%d", electionID))
}

func (bf *BloomFilter) add(ctx context.Context, item string) error {
	if bf.client == nil {
		return ErrRedisNotAvailable
	}

	// 位图不设过期：键失效会把所有选举误判为不存在
	pipe := bf.client.Pipeline()
	for i := 0; i < bf.hashCount; i++ {
		pipe.SetBit(ctx, bf.key, bf.hash(item, i), 1)
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (bf *BloomFilter) contains(ctx context.Context, item string) (bool, error) {
	if bf.client == nil {
		return false, ErrRedisNotAvailable
	}

	pipe := bf.client.Pipeline()
	var cmds []*redis.IntCmd
	for i := 0; i < bf.hashCount; i++ {
		cmds = append(cmds, pipe.GetBit(ctx, bf.key, bf.hash(item, i)))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	// 任何一位为0则元素肯定不存在
	for _, cmd := range cmds {
		if cmd.Val() == 0 {
			return false, nil
		}
	}
	return true, nil
}

// hash 计算哈希值，使用不同的种子
func (bf *BloomFilter) hash(key string, seed int) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	h.Write([]byte{byte(seed)})
	return int64(h.Sum64() % uint64(1<<30))
}
