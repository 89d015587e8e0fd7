package mq

import (
	"fmt"
	"time"
)

// 邮件消息类型
const (
	MailKindOTP       = "otp"
	MailKindLoginLink = "login_link"
)

// MailMessage 待投递的邮件消息
type MailMessage struct {
	Kind      string `json:"kind"`
	Recipient string `json:"recipient"`
	Name      string `json:"name"`
	Code      string `json:"code,omitempty"`
	LoginURL  string `json:"login_url,omitempty"`
	Timestamp int64  `json:"timestamp"`
	MessageID string `json:"message_id"`
}

// generateMessageID 生成唯一的消息ID
func generateMessageID(kind, recipient string) string {
	return fmt.Sprintf("mail_%s_%s_%d", kind, recipient, time.Now().UnixNano())
}
