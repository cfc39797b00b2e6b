package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"KabuRadar/pkg/config"
)

// Server 監視銘柄と通知タイムラインを提供するHTTPサーバ
type Server struct {
	engine *gin.Engine
	server *http.Server
	log    zerolog.Logger
}

// NewServer APIサーバを生成し、ルーティングを登録する
func NewServer(cfg *config.Config, handlers *Handlers, log zerolog.Logger) *Server {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(log))

	engine.GET("/healthz", handlers.Health)

	v1 := engine.Group("/api/v1")
	{
		v1.GET("/watchlist", handlers.ListWatchlist)
		v1.POST("/watchlist", handlers.CreateWatchlistItem)
		v1.GET("/watchlist/history", handlers.ListWatchlistHistory)
		v1.GET("/watchlist/:ticker", handlers.GetWatchlistItem)
		v1.PATCH("/watchlist/:ticker", handlers.UpdateWatchlistItem)
		v1.DELETE("/watchlist/:ticker", handlers.DeleteWatchlistItem)

		v1.GET("/notifications", handlers.ListNotifications)

		v1.GET("/signals", handlers.ListLatestSignals)
		v1.GET("/signals/:ticker", handlers.GetLatestSignal)
	}

	server := &http.Server{
		Addr:         ":" + cfg.API.Port,
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.API.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.API.WriteTimeoutSec) * time.Second,
	}

	return &Server{engine: engine, server: server, log: log}
}

// Run サーバを起動し、SIGINT/SIGTERMで猶予付き停止する
func (s *Server) Run() error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.server.Addr).Msg("APIサーバ起動")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("APIサーバ起動失敗: %w", err)
	case sig := <-quit:
		s.log.Info().Str("signal", sig.String()).Msg("APIサーバ停止開始")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("APIサーバ停止失敗: %w", err)
	}

	s.log.Info().Msg("APIサーバ停止完了")
	return nil
}

// Engine テストからルーティングへ直接アクセスするために公開する
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(started)).
			Msg("HTTPリクエスト")
	}
}
