package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"
)

const requestIDHeader = "X-Request-ID"

type Server struct {
	Engine  *gin.Engine
	Addr    string
	db      HealthChecker
	breaker BreakerState
}

// HealthChecker is implemented by *sql.DB.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// BreakerState is implemented by *storage.Breaker.
type BreakerState interface {
	State() gobreaker.State
}

// New creates the HTTP server with /health and /metrics registered.
// db and breaker are optional.
func New(addr string, mode string, db HealthChecker, breaker BreakerState) *Server {
	if mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(requestID())

	s := &Server{
		Engine:  r,
		Addr:    addr,
		db:      db,
		breaker: breaker,
	}

	r.GET("/health", s.healthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return s
}

// requestID propagates or assigns an X-Request-ID per request.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := gin.H{"status": "healthy"}

	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			slog.Error("[Server] Health check failed: database unreachable", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database unreachable",
			})
			return
		}
		body["database"] = "connected"
	}

	if s.breaker != nil {
		state := s.breaker.State()
		body["breaker"] = state.String()
		if state == gobreaker.StateOpen {
			body["status"] = "unhealthy"
			body["error"] = "event store circuit open"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}

	c.JSON(http.StatusOK, body)
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("[Server] Starting HTTP server", "address", s.Addr)

	go func() {
		<-ctx.Done()
		slog.Info("[Server] Stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("[Server] HTTP server forced to shutdown", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
