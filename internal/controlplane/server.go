// Package controlplane 对外暴露只读的 HTTP 运维面：健康检查、引擎状态快照、调试计数器。
package controlplane

import (
	"context"
	"expvar"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/quotekit/autotrader/internal/engine"
)

var log = logrus.WithField("component", "controlplane")

var (
	statusRequests = expvar.NewInt("controlplane_status_requests")
	startedAt      = expvar.NewString("controlplane_started_at")
)

// Server 运维面 HTTP 服务。只读，不提供任何改变引擎状态的接口。
type Server struct {
	eng  *engine.Engine
	http *http.Server
}

func New(addr string, eng *engine.Engine) *Server {
	s := &Server{eng: eng}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/status", s.handleStatus)
	r.GET("/debug/vars", gin.WrapH(expvar.Handler()))

	return r
}

func (s *Server) handleStatus(c *gin.Context) {
	statusRequests.Add(1)
	st := s.eng.Status()
	if st.At.IsZero() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "引擎尚未发布状态"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// Start 在独立 goroutine 中启动监听。
func (s *Server) Start() {
	startedAt.Set(time.Now().Format(time.RFC3339))
	go func() {
		log.Infof("运维面监听 %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("运维面退出: %v", err)
		}
	}()
}

// Shutdown 优雅关停 HTTP 服务。
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
