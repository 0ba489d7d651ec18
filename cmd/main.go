// Package main 服务入口
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/xilian/telemetry-dashboard/internal/config"
	"github.com/xilian/telemetry-dashboard/internal/handler"
	"github.com/xilian/telemetry-dashboard/internal/middleware"
	"github.com/xilian/telemetry-dashboard/internal/service"
	"github.com/xilian/telemetry-dashboard/internal/source"
	"github.com/xilian/telemetry-dashboard/internal/ws"
)

func main() {
	// 初始化日志
	logger := initLogger()
	defer logger.Sync()

	logger.Info("Starting telemetry-dashboard service...")

	// 加载配置
	cfg := config.Load()
	logger.Info("Configuration loaded",
		zap.String("profile", cfg.Dashboard.ProfileName),
		zap.String("default_view", cfg.Dashboard.DefaultView),
		zap.Duration("staleness_window", cfg.Dashboard.StalenessWindow),
	)

	// 指标
	registry := prometheus.NewRegistry()
	prom := service.NewPromMetrics(registry)

	// 看板服务
	dashboard := service.NewDashboardService(cfg, logger, prom)
	dashboard.Start()

	// 实时数据源
	redisSource := source.NewRedisSource(cfg.Redis, logger)
	syncer := service.NewSyncer(redisSource, dashboard, logger, cfg.Dashboard.ResyncInterval)

	// 推送中枢
	hub := ws.NewHub(cfg.WebSocket, logger)
	hub.OnCountChange(func(count int64) {
		prom.WSClients.Set(float64(count))
	})

	// 后台循环
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return syncer.Run(gctx) })
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return pushLoop(gctx, dashboard, hub) })

	var feed *source.KafkaFeed
	if cfg.Kafka.Enabled {
		feed = source.NewKafkaFeed(cfg.Kafka, redisSource, logger)
		g.Go(func() error { return feed.Run(gctx) })
	}

	// 创建 Gin 引擎
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	requests := middleware.NewRequestMetrics()
	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.LoggingMiddleware(logger))
	r.Use(middleware.MetricsMiddleware(requests))
	r.Use(middleware.RateLimitMiddleware(middleware.NewRateLimiter(cfg.Server.MaxRPS)))

	h := handler.NewHandler(dashboard, hub, requests, registry, logger)
	h.RegisterRoutes(r)

	// 创建 HTTP 服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		logger.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// 先等后台循环退出，再停服务，避免向已关闭的通知通道投递
	_ = g.Wait()
	if feed != nil {
		_ = feed.Close()
	}
	dashboard.Stop()
	_ = redisSource.Close()

	logger.Info("Server exited")
}

// pushLoop 把节点刷新通知转成浏览器广播
func pushLoop(ctx context.Context, dashboard *service.DashboardService, hub *ws.Hub) error {
	view := dashboard.DefaultView()
	profile := dashboard.ResolveProfile("")

	for {
		select {
		case update, ok := <-dashboard.Updates():
			if !ok {
				return nil
			}
			if update.Removed {
				hub.Broadcast(map[string]interface{}{
					"type":    "node_removed",
					"node_id": update.NodeID,
				})
				continue
			}
			if vm, exists := dashboard.ViewModel(update.NodeID, view, profile); exists {
				hub.Broadcast(map[string]interface{}{
					"type": "node_update",
					"node": vm,
				})
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func initLogger() *zap.Logger {
	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(zap.InfoLevel),
		Development: false,
		Encoding:    "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}

	return logger
}
