package handlers

import (
	"net/http"
	"runtime"
	"time"

	"college-voting-backend/cache"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SystemInfo contains basic system metrics and information
type SystemInfo struct {
	Status       string    `json:"status"`
	Version      string    `json:"version"`
	Uptime       string    `json:"uptime"`
	StartTime    time.Time `json:"start_time"`
	CurrentTime  time.Time `json:"current_time"`
	GoVersion    string    `json:"go_version"`
	NumGoroutine int       `json:"num_goroutine"`
	NumCPU       int       `json:"num_cpu"`
	DBStatus     string    `json:"db_status"`
	CacheStatus  string    `json:"cache_status"`
}

var (
	startTime = time.Now()
	version   = "0.1.0" // 应用版本，可通过构建参数注入
)

// HealthController 健康检查控制器
type HealthController struct {
	db *gorm.DB
}

// NewHealthController 创建健康检查控制器
func NewHealthController(db *gorm.DB) *HealthController {
	return &HealthController{db: db}
}

// RegisterRoutes 注册健康检查路由
func (ctl *HealthController) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", ctl.HealthCheck)
	router.GET("/health/status", ctl.SystemStatus)
}

// HealthCheck 提供基本健康检查端点
func (ctl *HealthController) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// SystemStatus 提供详细的系统状态信息
func (ctl *HealthController) SystemStatus(c *gin.Context) {
	// 检查数据库连接
	dbStatus := "ok"
	sqlDB, err := ctl.db.DB()
	if err != nil || sqlDB.Ping() != nil {
		dbStatus = "error"
	}

	cacheStatus := "ok"
	if cache.IsMockMode() {
		cacheStatus = "mock"
	} else if _, err := cache.GetClient(); err != nil {
		cacheStatus = "error"
	}

	info := SystemInfo{
		Status:       "ok",
		Version:      version,
		Uptime:       time.Since(startTime).String(),
		StartTime:    startTime,
		CurrentTime:  time.Now(),
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		DBStatus:     dbStatus,
		CacheStatus:  cacheStatus,
	}

	c.JSON(http.StatusOK, info)
}
