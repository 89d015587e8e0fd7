package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config 保存进程的全部运行配置。启动时构造一次，按引用传入各个组件，
// 不再依赖包级全局变量。
type Config struct {
	// HTTP服务器
	ServerPort  string
	FrontendURL string

	// MySQL数据库
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisMock     bool

	// JWT
	JWTSecret        []byte
	AccessTokenTTL   time.Duration
	LoginTokenTTL    time.Duration
	OTPExpiryMinutes int

	// SMTP邮件
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SenderName   string
	SenderEmail  string
	MailMock     bool

	// 投票身份校验策略
	RequireFaceMatch bool

	// 限流配置
	RateLimitEnabled bool
	GlobalRate       int
	GlobalBurst      int
	UserRate         int
	UserBurst        int

	Environment string
}

// Load reads .env (when present) and the environment, and returns the
// assembled configuration. Missing values fall back to development defaults.
func Load() *Config {
	// .env不存在时不报错，生产环境通常直接注入环境变量
	if err := godotenv.Load(".env"); err != nil {
		log.Println("未找到.env文件，使用环境变量配置")
	}

	cfg := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8090"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		DBUser:     getEnv("DB_USER", "voteuser"),
		DBPassword: getEnv("DB_PASSWORD", "votepassword"),
		DBHost:     getEnv("DB_HOST", "mysql"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBName:     getEnv("DB_NAME", "college_voting"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisMock:     getEnv("REDIS_MOCK", "") == "true",

		JWTSecret:        []byte(getEnv("JWT_SECRET", "change-me-in-production")),
		AccessTokenTTL:   time.Duration(getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,
		LoginTokenTTL:    time.Duration(getEnvInt("LOGIN_TOKEN_EXPIRE_HOURS", 24)) * time.Hour,
		OTPExpiryMinutes: getEnvInt("OTP_EXPIRY_MINUTES", 10),

		SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SenderName:   getEnv("SENDER_NAME", "College Voting System"),
		SenderEmail:  getEnv("SENDER_EMAIL", ""),
		MailMock:     getEnv("MAIL_MOCK", "") == "true",

		RequireFaceMatch: getEnv("REQUIRE_FACE_MATCH", "") == "true",

		RateLimitEnabled: getEnv("ENABLE_RATE_LIMIT", "") == "true",
		GlobalRate:       getEnvInt("GLOBAL_RATE_LIMIT", 100),
		GlobalBurst:      getEnvInt("GLOBAL_RATE_BURST", 200),
		UserRate:         getEnvInt("USER_RATE_LIMIT", 10),
		UserBurst:        getEnvInt("USER_RATE_BURST", 20),

		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if cfg.SenderEmail == "" {
		cfg.SenderEmail = cfg.SMTPUser
	}

	return cfg
}

// DSN 构建MySQL连接串
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// getEnv 获取环境变量值或使用默认值
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt 获取整型环境变量值或使用默认值
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
