// Package handler 提供 HTTP 请求处理
package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xilian/telemetry-dashboard/internal/middleware"
	"github.com/xilian/telemetry-dashboard/internal/model"
	"github.com/xilian/telemetry-dashboard/internal/service"
	"github.com/xilian/telemetry-dashboard/internal/ws"
)

// Handler HTTP 处理器
type Handler struct {
	dashboard   *service.DashboardService
	hub         *ws.Hub
	logger      *zap.Logger
	requests    *middleware.RequestMetrics
	upgrader    websocket.Upgrader
	promHandler http.Handler
}

// NewHandler 创建处理器
func NewHandler(dashboard *service.DashboardService, hub *ws.Hub, requests *middleware.RequestMetrics, registry *prometheus.Registry, logger *zap.Logger) *Handler {
	return &Handler{
		dashboard: dashboard,
		hub:       hub,
		logger:    logger,
		requests:  requests,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// 看板对浏览器开放，来源控制交给部署层
			CheckOrigin: func(*http.Request) bool { return true },
		},
		promHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// 健康检查
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/live", h.Live)

	// 指标
	r.GET("/metrics", h.Metrics)
	r.GET("/metrics/prometheus", gin.WrapH(h.promHandler))

	// 推送
	r.GET("/ws", h.WebSocket)

	// API v1
	v1 := r.Group("/api/v1")
	{
		v1.GET("/nodes", h.Nodes)
		v1.GET("/nodes/:id", h.Node)
		v1.GET("/nodes/:id/series", h.NodeSeries)
		v1.GET("/profiles", h.Profiles)
		v1.GET("/status", h.Status)
	}
}

// Health 健康检查
// 数据源不可达上报 cannot_connect，与节点暂无数据语义分离
func (h *Handler) Health(c *gin.Context) {
	status := h.dashboard.GetHealthStatus()

	httpStatus := http.StatusOK
	if status.Status == model.StatusCannotConnect {
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, status)
}

// Ready 就绪检查
func (h *Handler) Ready(c *gin.Context) {
	if !h.dashboard.Connected() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"ready":  false,
			"reason": "live source unreachable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}

// Live 存活检查
func (h *Handler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"alive":     true,
		"timestamp": time.Now().UnixMilli(),
	})
}

// Metrics 指标端点
func (h *Handler) Metrics(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	c.JSON(http.StatusOK, gin.H{
		"dashboard": h.dashboard.GetMetrics(),
		"requests":  h.requests.GetStats(),
		"websocket": gin.H{
			"clients": h.hub.ClientCount(),
		},
		"runtime": gin.H{
			"goroutines":      runtime.NumGoroutine(),
			"memory_alloc_mb": float64(memStats.Alloc) / 1024 / 1024,
		},
	})
}

// Nodes 全部节点视图模型
func (h *Handler) Nodes(c *gin.Context) {
	view, profile := h.displayParams(c)
	models := h.dashboard.ViewModels(view, profile)

	c.JSON(http.StatusOK, gin.H{
		"nodes":   models,
		"count":   len(models),
		"view":    view,
		"profile": profile.Name,
	})
}

// Node 单节点视图模型
func (h *Handler) Node(c *gin.Context) {
	view, profile := h.displayParams(c)
	vm, ok := h.dashboard.ViewModel(c.Param("id"), view, profile)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown node"})
		return
	}
	c.JSON(http.StatusOK, vm)
}

// NodeSeries 单节点图表序列
func (h *Handler) NodeSeries(c *gin.Context) {
	view, profile := h.displayParams(c)
	vm, ok := h.dashboard.ViewModel(c.Param("id"), view, profile)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown node"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"node_id": vm.NodeID,
		"view":    vm.View,
		"series":  vm.Series,
		"stats":   vm.Stats,
		"trend":   vm.Trend,
	})
}

// Profiles 内置阈值配置
func (h *Handler) Profiles(c *gin.Context) {
	profiles := h.dashboard.Profiles()
	c.JSON(http.StatusOK, gin.H{
		"profiles": profiles,
		"count":    len(profiles),
	})
}

// Status 服务状态
func (h *Handler) Status(c *gin.Context) {
	health := h.dashboard.GetHealthStatus()

	c.JSON(http.StatusOK, gin.H{
		"service": "telemetry-dashboard",
		"version": "1.0.0",
		"status":  health.Status,
		"health":  health,
		"runtime": gin.H{
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
			"cpus":       runtime.NumCPU(),
		},
	})
}

// WebSocket 升级连接并移交推送中枢
func (h *Handler) WebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed",
			zap.Error(err),
			zap.String("client_ip", c.ClientIP()),
		)
		return
	}
	h.hub.HandleConnection(conn)
}

// displayParams 解析按次覆盖的视图与阈值配置参数
// 未知值回退到配置默认，保持展示层的不出错语义
func (h *Handler) displayParams(c *gin.Context) (model.ViewMode, model.ThresholdProfile) {
	view := model.ParseViewMode(c.Query("view"), h.dashboard.DefaultView())
	profile := h.dashboard.ResolveProfile(c.Query("profile"))
	return view, profile
}
