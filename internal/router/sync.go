package router

import (
	"context"
	"errors"
	"net/http"

	"erp2mirror/internal/app"
	"erp2mirror/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SyncService 是路由层依赖的编排器能力，由 app.Service 实现。
type SyncService interface {
	TriggerFullPass(ctx context.Context, trigger string) domain.SyncResult
	TriggerEntityPass(ctx context.Context, entity domain.EntityType) (domain.SyncStats, error)
	Status() app.Status
	SetScheduleEnabled(enabled bool) error
	Stats(entity domain.EntityType) (domain.SyncStats, bool)
}

// SyncHandler 负责手动触发同步、查询状态和切换定时任务。
type SyncHandler struct {
	svc    SyncService
	logger *zap.Logger
}

// NewSyncHandler 构建一个新的 SyncHandler。
func NewSyncHandler(svc SyncService, logger *zap.Logger) *SyncHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncHandler{svc: svc, logger: logger}
}

// RegisterRoutes 将同步路由注册到给定的路由组。
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/run", h.handleRun)
	rg.GET("/status", h.handleStatus)
	rg.PUT("/schedule", h.handleSchedule)
	rg.POST("/:entity", h.handleEntity)
	rg.GET("/:entity/stats", h.handleStats)
}

const triggerManual = "manual"

func (h *SyncHandler) handleRun(c *gin.Context) {
	// 客户端断开不应中断进行中的同步
	result := h.svc.TriggerFullPass(context.WithoutCancel(c.Request.Context()), triggerManual)
	if result.RunID == "" {
		c.JSON(http.StatusConflict, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *SyncHandler) handleEntity(c *gin.Context) {
	entity, ok := domain.ParseEntityType(c.Param("entity"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown entity type"})
		return
	}
	stats, err := h.svc.TriggerEntityPass(context.WithoutCancel(c.Request.Context()), entity)
	switch {
	case errors.Is(err, app.ErrSyncInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, app.ErrUnknownEntity):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		h.logger.Error("entity sync failed", zap.String("entity", string(entity)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, stats)
	}
}

func (h *SyncHandler) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Status())
}

type scheduleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (h *SyncHandler) handleSchedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if err := h.svc.SetScheduleEnabled(*req.Enabled); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.svc.Status())
}

func (h *SyncHandler) handleStats(c *gin.Context) {
	entity, ok := domain.ParseEntityType(c.Param("entity"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown entity type"})
		return
	}
	stats, ok := h.svc.Stats(entity)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no pass has run for this entity yet"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
