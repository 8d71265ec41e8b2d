package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/rentbook/internal/config"
	"github.com/smallbiznis/rentbook/internal/dashboard"
	dashboarddomain "github.com/smallbiznis/rentbook/internal/dashboard/domain"
	"github.com/smallbiznis/rentbook/internal/invoice"
	invoicedomain "github.com/smallbiznis/rentbook/internal/invoice/domain"
	"github.com/smallbiznis/rentbook/internal/observability"
	obsmiddleware "github.com/smallbiznis/rentbook/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/rentbook/internal/observability/metrics"
	obstracing "github.com/smallbiznis/rentbook/internal/observability/tracing"
	"github.com/smallbiznis/rentbook/internal/reading"
	readingdomain "github.com/smallbiznis/rentbook/internal/reading/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module wires the HTTP API and the services behind it. The record stores
// are supplied by the caller so local and remote mode share everything else.
var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	reading.Module,
	invoice.Module,
	dashboard.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, base *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(base, obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, log, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	readingSvc   readingdomain.Service
	invoiceSvc   invoicedomain.Service
	dashboardSvc dashboarddomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	ReadingSvc   readingdomain.Service
	InvoiceSvc   invoicedomain.Service
	DashboardSvc dashboarddomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		readingSvc:   p.ReadingSvc,
		invoiceSvc:   p.InvoiceSvc,
		dashboardSvc: p.DashboardSvc,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Readings --------
	api.GET("/readings", s.ListReadings)
	api.GET("/readings/stats", s.GetReadingStats)
	api.GET("/readings/export", s.ExportReadings)
	api.GET("/readings/:id", s.GetReadingByID)
	api.POST("/readings", s.CreateReading)
	api.PATCH("/readings/:id", s.UpdateReading)
	api.DELETE("/readings/:id", s.DeleteReading)
	api.PATCH("/readings/:id/approve", s.ApproveReading)

	// -------- Invoices --------
	api.GET("/invoices", s.ListInvoices)
	api.GET("/invoices/summary", s.GetInvoiceSummary)
	api.GET("/invoices/:id", s.GetInvoiceByID)

	// -------- Dashboard --------
	api.GET("/dashboard", s.GetDashboard)
	api.POST("/dashboard/reload", s.ReloadDashboard)
	api.POST("/dashboard/readings/:id/approve", s.ApproveFromDashboard)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
