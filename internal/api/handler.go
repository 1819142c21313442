package api

import (
	"net/http"
	"time"

	"strategy-lab/internal/engine"
	"strategy-lab/internal/events"
	"strategy-lab/internal/monitor"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Options tunes the middleware stack. A zero RateLimit disables rate limiting.
// RequestTimeout applies to /api routes only, so /ws streams stay open.
type Options struct {
	JWTSecret      string
	RateLimit      float64
	RateBurst      int
	RequestTimeout time.Duration
}

// Server wires HTTP endpoints around the engine facade and the event bus.
type Server struct {
	Router    *gin.Engine
	Engine    engine.Service
	Bus       *events.Bus
	Metrics   *monitor.Metrics
	Logger    *zap.Logger
	JWTSecret string

	limiter *ipLimiter
	timeout time.Duration
}

func NewServer(svc engine.Service, bus *events.Bus, metrics *monitor.Metrics, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = int(opts.RateLimit*2.5) + 1
	}

	r := gin.New()
	s := &Server{
		Router:    r,
		Engine:    svc,
		Bus:       bus,
		Metrics:   metrics,
		Logger:    logger,
		JWTSecret: opts.JWTSecret,
		timeout:   opts.RequestTimeout,
	}
	if opts.RateLimit > 0 {
		s.limiter = newIPLimiter(opts.RateLimit, opts.RateBurst)
	}

	// Middleware stack (order matters!)
	r.Use(RecoveryMiddleware(logger))
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(logger, metrics))
	if s.limiter != nil {
		r.Use(s.limiter.Middleware(logger))
	}
	r.Use(CORSMiddleware())

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)
	if s.Metrics != nil {
		s.Router.GET("/metrics", gin.WrapH(s.Metrics.Handler()))
	}

	api := s.Router.Group("/api")
	if s.timeout > 0 {
		api.Use(TimeoutMiddleware(s.timeout))
	}
	{
		api.GET("/system/status", s.getSystemStatus)

		strategies := api.Group("/strategy")
		{
			strategies.GET("/list", s.listRecords)
			strategies.GET("/:symbol", s.getRecord)
		}

		trader := api.Group("/trader")
		{
			trader.GET("/status", s.traderStatus)
			trader.GET("/logs", s.traderLogs)
			trader.GET("/chart", s.traderChart)
			trader.GET("/signals", s.traderSignals)
		}

		// Mutating routes
		protected := api.Group("")
		if s.JWTSecret != "" {
			protected.Use(AuthMiddleware(s.JWTSecret))
		}
		{
			protected.POST("/strategy/backtest", s.backtest)
			protected.POST("/strategy/optimize", s.optimize)
			protected.POST("/strategy/save", s.saveRecord)
			protected.POST("/strategy/:symbol/retrain", s.retrain)
			protected.DELETE("/strategy/:symbol", s.deleteRecord)

			protected.POST("/trader/start", s.startTrader)
			protected.POST("/trader/stop", s.stopTrader)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Handler exposes the router for http.Server.
func (s *Server) Handler() http.Handler {
	return s.Router
}
