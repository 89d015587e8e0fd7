package routes

import (
	"log"
	"net/http"
	"time"

	"college-voting-backend/auth"
	"college-voting-backend/cache"
	"college-voting-backend/config"
	"college-voting-backend/handlers"
	"college-voting-backend/mailer"
	"college-voting-backend/mq"
	"college-voting-backend/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Server 是HTTP服务器的封装
type Server struct {
	*http.Server
}

// Deps 路由依赖集合，由main装配
type Deps struct {
	DB         *gorm.DB
	Cfg        *config.Config
	Tokens     *auth.TokenManager
	Mail       mailer.Sender
	Dispatcher *mq.MailDispatcher

	Users     service.UserService
	Admins    service.AdminService
	Elections service.ElectionService
	Votes     service.VoteService
	OTPs      service.OTPService
	Faces     service.FaceService

	TallyCache *cache.TallyCache
	Locks      *cache.DistributedLockService
}

// SetupRouter 设置和配置Gin路由
func SetupRouter(deps Deps) *gin.Engine {
	router := gin.Default()

	// 配置CORS中间件
	allowOrigins := []string{"*"}
	if deps.Cfg.FrontendURL != "" {
		allowOrigins = []string{deps.Cfg.FrontendURL}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// OTP发送限流：默认每用户每分钟1次，突发3次
	otpLimiter := cache.NewUserRateLimiter("otp", 20, 40, 1, 3)

	rateLimit := handlers.NewRateLimitMiddleware(deps.Cfg)

	hub := handlers.NewHub()

	authCtl := handlers.NewAuthController(deps.Users, deps.Tokens)
	otpCtl := handlers.NewOTPController(deps.OTPs, deps.Mail, otpLimiter, deps.Locks)
	electionCtl := handlers.NewElectionController(deps.Elections)
	voteCtl := handlers.NewVoteController(deps.Votes, deps.Faces, deps.Cfg, deps.TallyCache, hub)
	candidateCtl := handlers.NewCandidatePortalController(deps.Elections, deps.Tokens)
	adminCtl := handlers.NewAdminController(deps.Admins, deps.Tokens, deps.Dispatcher)
	faceCtl := handlers.NewFaceController(deps.Faces)
	healthCtl := handlers.NewHealthController(deps.DB)

	// 启动后台检查器
	go startElectionStatusChecker(deps.Elections)
	go startOTPCleanupChecker(deps.OTPs)

	api := router.Group("/api")
	{
		// 全局API限流中间件
		api.Use(rateLimit.Handler())

		healthCtl.RegisterRoutes(api)
		api.GET("/ratelimit/stats", rateLimit.StatsHandler)

		// 公开端点
		authCtl.RegisterRoutes(api)
		electionCtl.RegisterPublicRoutes(api)
		voteCtl.RegisterPublicRoutes(api)
		candidateCtl.RegisterPublicRoutes(api)
		adminCtl.RegisterPublicRoutes(api)

		// 实时计票推送
		api.GET("/elections/:id/ws", hub.HandleWebSocket)
		api.GET("/elections/:id/live", handlers.HandleSSE)

		// 用户认证端点
		user := api.Group("")
		user.Use(auth.Middleware(deps.DB, deps.Tokens))
		{
			user.GET("/auth/me", authCtl.Me)
			otpCtl.RegisterRoutes(user)
			voteCtl.RegisterRoutes(user)
			faceCtl.RegisterRoutes(user)
		}

		// 具有管理角色的用户（管理员/选举干事）的选举管理入口
		officer := api.Group("/manage")
		officer.Use(auth.Middleware(deps.DB, deps.Tokens), auth.RequireRoles(auth.ManagementRoles...))
		{
			electionCtl.RegisterAdminRoutes(officer)
		}

		// 候选人门户
		candidate := api.Group("")
		candidate.Use(auth.CandidateMiddleware(deps.DB, deps.Tokens))
		{
			candidateCtl.RegisterProtectedRoutes(candidate)
		}

		// 管理后台
		admin := api.Group("")
		admin.Use(auth.AdminMiddleware(deps.DB, deps.Tokens))
		{
			adminCtl.RegisterProtectedRoutes(admin)
			electionCtl.RegisterAdminRoutes(admin)
		}
	}

	return router
}

// StartServer 启动HTTP服务器
func StartServer(router *gin.Engine, cfg *config.Config) *Server {
	addr := ":" + cfg.ServerPort

	srv := &Server{
		&http.Server{
			Addr:    addr,
			Handler: router,
		},
	}

	go func() {
		log.Printf("服务器启动在 %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务器启动失败: %v", err)
		}
	}()

	return srv
}

// startElectionStatusChecker 定期按时间窗口刷新选举状态
func startElectionStatusChecker(elections service.ElectionService) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		if err := elections.RefreshStatuses(); err != nil {
			log.Printf("刷新选举状态失败: %v", err)
		}
	}
}

// startOTPCleanupChecker 定期清理过期验证码
func startOTPCleanupChecker(otps service.OTPService) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		if removed, err := otps.CleanupExpired(); err != nil {
			log.Printf("清理过期OTP失败: %v", err)
		} else if removed > 0 {
			log.Printf("已清理 %d 条过期OTP", removed)
		}
	}
}
