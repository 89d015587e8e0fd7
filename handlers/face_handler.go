package handlers

import (
	"encoding/base64"
	"net/http"

	"college-voting-backend/auth"
	"college-voting-backend/service"

	"github.com/gin-gonic/gin"
)

// FaceController 人脸注册与校验控制器
type FaceController struct {
	faces service.FaceService
}

// NewFaceController 创建人脸控制器
func NewFaceController(faces service.FaceService) *FaceController {
	return &FaceController{faces: faces}
}

// RegisterRoutes 注册人脸路由，挂在用户认证中间件之后
func (ctl *FaceController) RegisterRoutes(router *gin.RouterGroup) {
	face := router.Group("/face")
	{
		face.POST("/register", ctl.Register)
		face.POST("/verify", ctl.Verify)
		face.GET("/status", ctl.Status)
	}
}

// FaceInput 人脸数据请求体，encoding为base64
type FaceInput struct {
	Encoding   string  `json:"encoding" binding:"required"`
	Confidence float64 `json:"confidence"`
}

// Register 注册或替换当前用户的人脸编码
func (ctl *FaceController) Register(c *gin.Context) {
	user := auth.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var input FaceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	encoding, err := base64.StdEncoding.DecodeString(input.Encoding)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid encoding format"})
		return
	}

	record, err := ctl.faces.Register(user.ID, encoding, input.Confidence)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":     record.Status,
		"confidence": record.Confidence,
	})
}

// Verify 将提交的采集与已存编码比对
func (ctl *FaceController) Verify(c *gin.Context) {
	user := auth.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var input FaceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	capture, err := base64.StdEncoding.DecodeString(input.Encoding)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid encoding format"})
		return
	}

	matched, err := ctl.faces.Verify(user.ID, capture)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"matched": matched})
}

// Status 返回当前用户的人脸注册状态
func (ctl *FaceController) Status(c *gin.Context) {
	user := auth.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	record, err := ctl.faces.Status(user.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       record.Status,
		"confidence":   record.Confidence,
		"verified_at":  record.VerifiedAt,
		"last_used_at": record.LastUsedAt,
	})
}
