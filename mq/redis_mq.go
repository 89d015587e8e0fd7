package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMQ 基于Redis List实现的邮件投递队列。SMTP调用慢且会失败，
// 注册和OTP请求只入队，投递、重试和死信都由消费者处理。
type RedisMQ struct {
	client            *redis.Client
	ctx               context.Context
	handler           func(msg MailMessage) error
	isRunning         bool
	stopChan          chan struct{}
	wg                sync.WaitGroup
	processingTimeout time.Duration // 消息处理超时时间
	retryDelay        time.Duration // 重试延迟
	maxRetries        int           // 最大重试次数
}

// 队列名称常量
const (
	MainQueueName       = "mail_queue"       // 主队列
	ProcessingQueueName = "mail_processing"  // 处理中队列
	DeadLetterQueueName = "mail_dead_letter" // 死信队列
	RetriesHashName     = "mail_retries"     // 重试次数记录
	ProcessedSetName    = "mail_message_ids" // 幂等性集合
)

// NewRedisMQ 创建邮件队列
func NewRedisMQ(redisClient *redis.Client) *RedisMQ {
	return &RedisMQ{
		client:            redisClient,
		ctx:               context.Background(),
		isRunning:         false,
		stopChan:          make(chan struct{}),
		processingTimeout: 5 * time.Minute,
		retryDelay:        30 * time.Second,
		maxRetries:        3,
	}
}

// RegisterHandler 注册投递函数
func (r *RedisMQ) RegisterHandler(handler func(msg MailMessage) error) {
	r.handler = handler
}

// Enqueue 发送邮件消息到主队列
func (r *RedisMQ) Enqueue(msg MailMessage) error {
	if msg.MessageID == "" {
		msg.MessageID = generateMessageID(msg.Kind, msg.Recipient)
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %v", err)
	}

	// 幂等性检查，避免同一消息重复投递
	exists, err := r.client.SIsMember(r.ctx, ProcessedSetName, msg.MessageID).Result()
	if err != nil {
		log.Printf("检查消息幂等性出错: %v", err)
	} else if exists {
		log.Printf("消息已处理过，跳过: %s", msg.MessageID)
		return nil
	}

	if err := r.client.SAdd(r.ctx, ProcessedSetName, msg.MessageID).Err(); err != nil {
		log.Printf("添加消息ID到幂等性集合出错: %v", err)
	}
	// 设置过期时间，避免集合无限增长
	r.client.Expire(r.ctx, ProcessedSetName, 48*time.Hour)

	if err := r.client.LPush(r.ctx, MainQueueName, jsonData).Err(); err != nil {
		return fmt.Errorf("发送消息到队列失败: %v", err)
	}

	log.Printf("邮件消息入队: %s, 消息ID: %s", msg.Kind, msg.MessageID)
	return nil
}

// Start 启动消费者
func (r *RedisMQ) Start() error {
	if r.handler == nil {
		return fmt.Errorf("投递函数未注册")
	}

	if r.isRunning {
		return nil
	}

	r.isRunning = true
	log.Println("邮件队列消费者启动中...")

	r.wg.Add(1)
	go r.consumeLoop()

	r.wg.Add(1)
	go r.timeoutCheckLoop()

	log.Println("邮件队列消费者已启动")
	return nil
}

// Stop 关闭消费者
func (r *RedisMQ) Stop() {
	if !r.isRunning {
		return
	}

	log.Println("正在关闭邮件队列消费者...")
	close(r.stopChan)
	r.wg.Wait()
	r.isRunning = false
	log.Println("邮件队列消费者已关闭")
}

// 主消费循环
func (r *RedisMQ) consumeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.stopChan:
			return
		default:
			// BRPOPLPUSH原子地从主队列取出并放入处理中队列
			result, err := r.client.BRPopLPush(r.ctx, MainQueueName, ProcessingQueueName, 1*time.Second).Result()
			if err != nil {
				if err != redis.Nil {
					log.Printf("从队列获取消息失败: %v", err)
				}
				continue
			}

			go r.processMessage(result)
		}
	}
}

// 超时检查循环
func (r *RedisMQ) timeoutCheckLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.checkTimeouts()
		}
	}
}

// checkTimeouts 把卡在处理中队列的消息重新入队或送入死信队列
func (r *RedisMQ) checkTimeouts() {
	messages, err := r.client.LRange(r.ctx, ProcessingQueueName, 0, -1).Result()
	if err != nil {
		log.Printf("获取处理中队列消息失败: %v", err)
		return
	}

	now := time.Now().Unix()

	for _, msgData := range messages {
		var msg MailMessage
		if err := json.Unmarshal([]byte(msgData), &msg); err != nil {
			log.Printf("解析消息数据失败: %v", err)
			continue
		}

		if now-msg.Timestamp > int64(r.processingTimeout.Seconds()) {
			retries, _ := r.client.HGet(r.ctx, RetriesHashName, msg.MessageID).Int()

			if retries >= r.maxRetries {
				log.Printf("消息 %s 超过最大重试次数，移至死信队列", msg.MessageID)
				r.moveToDeadLetter(msgData)
			} else {
				r.client.HIncrBy(r.ctx, RetriesHashName, msg.MessageID, 1)

				msg.Timestamp = now
				updatedData, _ := json.Marshal(msg)

				r.client.LRem(r.ctx, ProcessingQueueName, 1, msgData)

				time.AfterFunc(r.retryDelay, func() {
					r.client.LPush(r.ctx, MainQueueName, updatedData)
					log.Printf("消息 %s 重新入队，重试次数: %d", msg.MessageID, retries+1)
				})
			}
		}
	}
}

// 处理单个消息
func (r *RedisMQ) processMessage(msgData string) {
	var msg MailMessage
	if err := json.Unmarshal([]byte(msgData), &msg); err != nil {
		log.Printf("解析消息失败: %v", err)
		r.moveToDeadLetter(msgData)
		return
	}

	log.Printf("投递邮件: kind=%s, recipient=%s, messageID=%s",
		msg.Kind, msg.Recipient, msg.MessageID)

	if err := r.handler(msg); err != nil {
		log.Printf("投递邮件失败: %v", err)

		retries, _ := r.client.HGet(r.ctx, RetriesHashName, msg.MessageID).Int()

		if retries >= r.maxRetries {
			log.Printf("消息 %s 超过最大重试次数，移至死信队列", msg.MessageID)
			r.moveToDeadLetter(msgData)
		} else {
			r.client.HIncrBy(r.ctx, RetriesHashName, msg.MessageID, 1)

			msg.Timestamp = time.Now().Unix()
			updatedData, _ := json.Marshal(msg)

			time.AfterFunc(r.retryDelay, func() {
				r.client.LPush(r.ctx, MainQueueName, updatedData)
				log.Printf("消息 %s 重新入队，重试次数: %d", msg.MessageID, retries+1)
			})
		}
	} else {
		log.Printf("邮件投递成功: %s", msg.MessageID)
	}

	// 无论成功失败，都从处理中队列移除
	r.client.LRem(r.ctx, ProcessingQueueName, 1, msgData)
}

// 移动消息到死信队列
func (r *RedisMQ) moveToDeadLetter(msgData string) {
	r.client.LPush(r.ctx, DeadLetterQueueName, msgData)
	r.client.LRem(r.ctx, ProcessingQueueName, 1, msgData)
}

// RetryDeadLetters 把死信队列中的消息移回主队列重新投递
func (r *RedisMQ) RetryDeadLetters() error {
	messages, err := r.client.LRange(r.ctx, DeadLetterQueueName, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("获取死信队列消息失败: %v", err)
	}

	count := 0
	for _, msgData := range messages {
		if err := r.client.LPush(r.ctx, MainQueueName, msgData).Err(); err != nil {
			log.Printf("重新入队消息失败: %v", err)
			continue
		}

		r.client.LRem(r.ctx, DeadLetterQueueName, 1, msgData)

		// 重置重试计数
		var msg MailMessage
		if json.Unmarshal([]byte(msgData), &msg) == nil {
			r.client.HDel(r.ctx, RetriesHashName, msg.MessageID)
		}

		count++
	}

	log.Printf("成功将 %d 条消息从死信队列移回主队列", count)
	return nil
}

// GetQueueStats 获取各队列的消息数量统计
func (r *RedisMQ) GetQueueStats() map[string]int64 {
	stats := make(map[string]int64)

	mainLen, _ := r.client.LLen(r.ctx, MainQueueName).Result()
	procLen, _ := r.client.LLen(r.ctx, ProcessingQueueName).Result()
	deadLen, _ := r.client.LLen(r.ctx, DeadLetterQueueName).Result()

	stats["main_queue"] = mainLen
	stats["processing_queue"] = procLen
	stats["dead_letter_queue"] = deadLen

	return stats
}

// ClearAllQueues 清空所有队列（仅用于测试）
func (r *RedisMQ) ClearAllQueues() error {
	err := r.client.Del(r.ctx, MainQueueName, ProcessingQueueName, DeadLetterQueueName, RetriesHashName, ProcessedSetName).Err()
	if err != nil {
		return fmt.Errorf("清空队列失败: %v", err)
	}
	return nil
}
