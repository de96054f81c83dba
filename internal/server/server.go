package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	v1 "fleetcomply/internal/api/v1"
	"fleetcomply/internal/compliance"
	"fleetcomply/internal/config"
	"fleetcomply/internal/metrics"
	"fleetcomply/internal/middleware"
	"fleetcomply/internal/storage"
	"fleetcomply/internal/store"
)

// shutdownTimeout 收到停止信号后在途请求的最长处理时间
const shutdownTimeout = 10 * time.Second

// Server HTTP 服务及后台提醒扫描
type Server struct {
	cfg     *config.AppConfig
	router  *gin.Engine
	store   *store.Store
	sweeper *compliance.Sweeper
	logger  *zap.Logger
}

// NewServer 打开数据库和上传目录并组装路由
func NewServer(cfg *config.AppConfig, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	devMode := cfg.Server.DevMode
	if !devMode {
		gin.SetMode(gin.ReleaseMode)
	}

	dataDir, uploadDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}
	st, err := store.New(config.DBPath(dataDir))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	files, err := storage.NewLocal(uploadDir, cfg.Storage.PublicBaseURL)
	if err != nil {
		st.Close()
		return nil, err
	}

	svc := compliance.NewService(st, cfg.Compliance.AtRiskDays, logger.Named("compliance"))
	s := &Server{
		cfg:     cfg,
		store:   st,
		sweeper: compliance.NewSweeper(svc, cfg.Compliance.SweepInterval.Duration, logger.Named("sweeper")),
		logger:  logger,
	}

	if devMode {
		s.router = gin.Default()
	} else {
		s.router = gin.New()
		s.router.Use(gin.Recovery(), middleware.Logger(logger.Named("http")))
	}
	maxUpload := int64(cfg.Storage.MaxUploadMB) << 20
	s.router.MaxMultipartMemory = maxUpload

	handler := v1.NewHandler(v1.Deps{
		Store:      st,
		Compliance: svc,
		Storage:    files,
		Limiter:    middleware.NewTenantLimiter(cfg.RateLimit.UploadsPerSecond, cfg.RateLimit.Burst),
		Import:     cfg.Import,
		MaxUpload:  maxUpload,
		Logger:     logger.Named("api"),
	})
	s.setupRoutes(handler)
	return s, nil
}

func (s *Server) setupRoutes(handler *v1.Handler) {
	s.router.Use(middleware.CORS(), middleware.Metrics())

	s.router.GET("/healthz", func(c *gin.Context) {
		if err := s.store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := s.router.Group("/api/v1")
	{
		handler.RegisterRoutes(api)
	}
}

// Handler 暴露路由，主要供测试使用
func (s *Server) Handler() http.Handler {
	return s.router
}

// Store 返回数据库
func (s *Server) Store() *store.Store {
	return s.store
}

// Run 在 addr 上提供服务并运行提醒扫描，ctx 结束后优雅关闭监听
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return s.sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close 释放数据库
func (s *Server) Close() error {
	return s.store.Close()
}
