package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"faucetScope/internal/alert"
	"faucetScope/internal/faucet"
	"faucetScope/internal/reconcile"
)

// Server exposes the faucet workflow over HTTP. Handlers hold no state
// across requests: each call re-reads the store, so any instance can
// serve any request.
type Server struct {
	oracle     *faucet.Oracle
	recorder   *faucet.Recorder
	reconciler *reconcile.Reconciler
	networks   []reconcile.Network
	annotator  *alert.Annotator
	logger     *zap.Logger
}

func NewServer(
	oracle *faucet.Oracle,
	recorder *faucet.Recorder,
	reconciler *reconcile.Reconciler,
	networks []reconcile.Network,
	annotator *alert.Annotator,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		oracle:     oracle,
		recorder:   recorder,
		reconciler: reconciler,
		networks:   networks,
		annotator:  annotator,
		logger:     logger,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLog())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.GET("/faucet/:wallet/eligibility", s.handleEligibility)
	v1.POST("/faucet/claim", s.handleClaim)
	v1.POST("/reconcile", s.handleReconcile)
	v1.GET("/alerts", s.handleAlerts)
	v1.POST("/alerts/:id/resolve", s.handleResolveAlert)

	return r
}

// HTTPServer wraps the router in an http.Server bound to addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
