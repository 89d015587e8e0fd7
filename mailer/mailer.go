package mailer

import (
	"fmt"
	"log"

	"college-voting-backend/config"

	"gopkg.in/gomail.v2"
)

// Sender delivers transactional mail. The OTP engine and registration
// flow only depend on this interface; delivery failures are surfaced to
// the caller and never roll back committed state.
type Sender interface {
	SendOTP(recipient, code, name string) error
	SendLoginLink(recipient, name, loginURL string) error
}

// SMTPSender sends mail through a regular SMTP account
type SMTPSender struct {
	dialer           *gomail.Dialer
	from             string
	name             string
	otpExpiryMinutes int
}

// NewSender 根据配置选择真实SMTP发送器或模拟发送器
func NewSender(cfg *config.Config) Sender {
	if cfg.MailMock || cfg.SMTPUser == "" {
		log.Println("使用邮件模拟模式，邮件内容仅写入日志")
		return &MockSender{}
	}
	minutes := cfg.OTPExpiryMinutes
	if minutes <= 0 {
		minutes = 10
	}
	return &SMTPSender{
		dialer:           gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:             cfg.SenderEmail,
		name:             cfg.SenderName,
		otpExpiryMinutes: minutes,
	}
}

// SendOTP mails the 6-digit verification code
func (s *SMTPSender) SendOTP(recipient, code, name string) error {
	return s.send(recipient, "College Voting System - OTP Verification", s.otpBody(name, code))
}

// otpBody 渲染验证码邮件正文，有效期跟随OTP配置
func (s *SMTPSender) otpBody(name, code string) string {
	if name == "" {
		name = "User"
	}

	return fmt.Sprintf(`
<html>
  <body style="font-family: Arial, sans-serif;">
    <h2>College Digital Voting System</h2>
    <p>Hello <strong>%s</strong>,</p>
    <p>To verify your email, enter the code below. It expires in %d minutes.</p>
    <h1 style="letter-spacing: 8px;">%s</h1>
    <p>If you did not request this code you can ignore this mail.</p>
  </body>
</html>`, name, s.otpExpiryMinutes, code)
}

// SendLoginLink mails the single-use login link issued at registration
func (s *SMTPSender) SendLoginLink(recipient, name, loginURL string) error {
	if name == "" {
		name = "User"
	}

	body := fmt.Sprintf(`
<html>
  <body style="font-family: Arial, sans-serif;">
    <h2>Welcome to the College Digital Voting System</h2>
    <p>Hello <strong>%s</strong>,</p>
    <p>Your account has been created. You can sign in directly with the
    link below; it is valid for 24 hours and can be used once.</p>
    <p><a href="%s">%s</a></p>
  </body>
</html>`, name, loginURL, loginURL)

	return s.send(recipient, "Welcome to the College Voting System", body)
}

func (s *SMTPSender) send(recipient, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.name)
	m.SetHeader("To", recipient)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("发送邮件到 %s 失败: %w", recipient, err)
	}
	return nil
}

// MockSender logs instead of sending. 开发和测试环境使用。
type MockSender struct {
	// 记录最近一次发送的OTP，便于测试断言
	LastOTPRecipient string
	LastOTPCode      string
	LastLoginURL     string
}

func (m *MockSender) SendOTP(recipient, code, name string) error {
	m.LastOTPRecipient = recipient
	m.LastOTPCode = code
	log.Printf("[MAIL MOCK] OTP %s -> %s (%s)", code, recipient, name)
	return nil
}

func (m *MockSender) SendLoginLink(recipient, name, loginURL string) error {
	m.LastLoginURL = loginURL
	log.Printf("[MAIL MOCK] login link -> %s: %s", recipient, loginURL)
	return nil
}
