// Package httpapi 对外暴露合流分析与订单流查询的 HTTP 接口。
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Server 封装 Gin 引擎与监听生命周期。
type Server struct {
	addr   string
	router *gin.Engine
}

type ServerConfig struct {
	Addr   string
	Router *Router
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Router == nil {
		return nil, errors.New("router 不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/healthz", handleHealth)
	cfg.Router.Register(engine.Group("/api/v1"))

	return &Server{addr: cfg.Addr, router: engine}, nil
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Handler 返回底层处理器，测试直接驱动，无需监听端口。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start 启动 HTTP 服务，阻塞直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
