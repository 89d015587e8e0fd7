package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"college-voting-backend/config"
	"college-voting-backend/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB 初始化数据库连接并迁移模型。连接句柄由调用方持有并显式传递，
// 不再暴露包级全局变量。
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	// 配置GORM
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             time.Second, // 慢SQL阈值
			LogLevel:                  logger.Warn, // 日志级别
			IgnoreRecordNotFoundError: true,        // 忽略ErrRecordNotFound错误
			Colorful:                  true,        // 启用彩色打印
		},
	)

	log.Println("使用MySQL数据库")
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger:         newLogger,
		TranslateError: true, // 唯一键冲突翻译为gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %v", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("迁移模型失败: %v", err)
	}

	// 仅在开发模式下播种默认管理员
	if cfg.Environment == "development" {
		seedDefaultAdmin(db)
	}

	log.Println("数据库连接和迁移成功")
	return db, nil
}

// Migrate runs the schema migration for every model. Shared with the
// test setup, which runs it against in-memory SQLite.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Admin{},
		&models.Election{},
		&models.Candidate{},
		&models.Vote{},
		&models.OTP{},
		&models.LoginToken{},
		&models.FaceEncoding{},
	)
}

// seedDefaultAdmin 创建开发环境的默认管理员账号
func seedDefaultAdmin(db *gorm.DB) {
	var count int64
	db.Model(&models.Admin{}).Count(&count)
	if count > 0 {
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("生成默认管理员密码失败: %v", err)
		return
	}

	admin := models.Admin{
		Email:          "admin@college.local",
		FullName:       "Default Admin",
		HashedPassword: string(hash),
		IsActive:       true,
	}
	if err := db.Create(&admin).Error; err != nil {
		log.Printf("创建默认管理员失败: %v", err)
		return
	}
	log.Println("已创建默认管理员 admin@college.local（仅开发环境）")
}

// CloseDB 关闭数据库连接
func CloseDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("获取数据库连接失败: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("关闭数据库连接失败: %v", err)
		return
	}

	log.Println("数据库连接已关闭")
}
