package mq

import (
	"fmt"
	"log"
	"sync"

	"college-voting-backend/cache"
	"college-voting-backend/mailer"
)

// MailDispatcher 邮件分发适配器。Redis可用时走队列异步投递，
// 否则退化为同步直发。实现mailer.Sender，服务层无需感知差异。
type MailDispatcher struct {
	direct       mailer.Sender
	redisMQ      *RedisMQ
	queueEnabled bool
	initOnce     sync.Once
}

// NewMailDispatcher 创建邮件分发器
func NewMailDispatcher(direct mailer.Sender) *MailDispatcher {
	return &MailDispatcher{direct: direct}
}

// Initialize 初始化队列。Redis不可用时记录日志并保持同步模式。
func (d *MailDispatcher) Initialize() error {
	var initErr error

	d.initOnce.Do(func() {
		client, err := cache.GetClient()
		if err != nil {
			log.Printf("邮件队列不可用，使用同步投递: %v", err)
			return
		}

		d.redisMQ = NewRedisMQ(client)
		d.redisMQ.RegisterHandler(d.deliver)

		if err := d.redisMQ.Start(); err != nil {
			initErr = fmt.Errorf("启动邮件队列消费者失败: %v", err)
			d.redisMQ = nil
			return
		}

		d.queueEnabled = true
		log.Println("邮件队列已启用")
	})

	return initErr
}

// deliver 消费端实际投递
func (d *MailDispatcher) deliver(msg MailMessage) error {
	switch msg.Kind {
	case MailKindOTP:
		return d.direct.SendOTP(msg.Recipient, msg.Code, msg.Name)
	case MailKindLoginLink:
		return d.direct.SendLoginLink(msg.Recipient, msg.Name, msg.LoginURL)
	default:
		return fmt.Errorf("未知邮件类型: %s", msg.Kind)
	}
}

// SendOTP 实现mailer.Sender
func (d *MailDispatcher) SendOTP(recipient, code, name string) error {
	if d.queueEnabled {
		return d.redisMQ.Enqueue(MailMessage{
			Kind:      MailKindOTP,
			Recipient: recipient,
			Name:      name,
			Code:      code,
		})
	}
	return d.direct.SendOTP(recipient, code, name)
}

// SendLoginLink 实现mailer.Sender
func (d *MailDispatcher) SendLoginLink(recipient, name, loginURL string) error {
	if d.queueEnabled {
		return d.redisMQ.Enqueue(MailMessage{
			Kind:      MailKindLoginLink,
			Recipient: recipient,
			Name:      name,
			LoginURL:  loginURL,
		})
	}
	return d.direct.SendLoginLink(recipient, name, loginURL)
}

// RetryDeadLetters 重试死信队列中的消息
func (d *MailDispatcher) RetryDeadLetters() error {
	if !d.queueEnabled {
		return fmt.Errorf("邮件队列未启用")
	}
	return d.redisMQ.RetryDeadLetters()
}

// QueueStats 队列统计，供管理端点使用
func (d *MailDispatcher) QueueStats() map[string]interface{} {
	stats := make(map[string]interface{})

	if !d.queueEnabled {
		stats["mode"] = "synchronous"
		return stats
	}

	stats["mode"] = "queue"
	stats["queues"] = d.redisMQ.GetQueueStats()
	return stats
}

// Close 关闭队列消费者
func (d *MailDispatcher) Close() {
	if d.queueEnabled && d.redisMQ != nil {
		d.redisMQ.Stop()
	}
	log.Println("邮件分发器已关闭")
}
