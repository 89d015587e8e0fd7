package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"college-voting-backend/auth"
	"college-voting-backend/cache"
	"college-voting-backend/config"
	"college-voting-backend/database"
	"college-voting-backend/mailer"
	"college-voting-backend/models"
	"college-voting-backend/mq"
	"college-voting-backend/routes"
	"college-voting-backend/service"
)

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化数据库连接
	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("无法初始化数据库: %v", err)
	}
	log.Println("数据库连接初始化成功")

	// 初始化Redis，失败时自动退化为模拟模式
	if err := cache.InitRedis(cfg); err != nil {
		log.Printf("警告: Redis初始化失败: %v", err)
	}
	cache.InitDistLock()
	locks := cache.GetLockService()

	// 邮件发送器与异步投递队列
	sender := mailer.NewSender(cfg)
	dispatcher := mq.NewMailDispatcher(sender)
	if err := dispatcher.Initialize(); err != nil {
		log.Printf("警告: 邮件队列初始化失败: %v", err)
	}

	// 装配服务层
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)
	otps := service.NewOTPService(db, cfg.OTPExpiryMinutes)
	users := service.NewUserService(db, otps, dispatcher, cfg.FrontendURL, cfg.LoginTokenTTL)
	// 选举存在性过滤器先于服务装配，新建选举会即时灌入
	var electionIDs []uint
	if err := db.Model(&models.Election{}).Pluck("id", &electionIDs).Error; err != nil {
		log.Printf("读取选举ID失败: %v", err)
	}
	bloomFilter := cache.InitElectionFilter(electionIDs)

	admins := service.NewAdminService(db)
	elections := service.NewElectionService(db, bloomFilter)
	votes := service.NewVoteService(db)
	faces := service.NewFaceService(db)

	tallyCache := cache.NewTallyCache(locks, bloomFilter)

	// 后台刷新进行中选举的计票缓存
	tallyCache.StartRefresher(30*time.Second,
		func() ([]uint, error) {
			var ids []uint
			err := db.Model(&models.Election{}).
				Where("is_active = ? AND status = ?", true, models.ElectionOngoing).
				Pluck("id", &ids).Error
			return ids, err
		},
		func(electionID uint) (interface{}, error) {
			return votes.Tally(electionID)
		})

	// 设置路由并启动服务器
	router := routes.SetupRouter(routes.Deps{
		DB:         db,
		Cfg:        cfg,
		Tokens:     tokens,
		Mail:       dispatcher,
		Dispatcher: dispatcher,
		Users:      users,
		Admins:     admins,
		Elections:  elections,
		Votes:      votes,
		OTPs:       otps,
		Faces:      faces,
		TallyCache: tallyCache,
		Locks:      locks,
	})
	srv := routes.StartServer(router, cfg)
	log.Println("服务器启动成功")

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 不接受新请求并等待现有请求完成
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务器强制关闭: %v", err)
	}

	tallyCache.StopRefresher()
	dispatcher.Close()
	database.CloseDB(db)
	cache.CloseRedis()

	log.Println("服务器优雅关闭")
}
