package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/lvlrf/radpanel/internal/config"
	orderservice "github.com/lvlrf/radpanel/internal/order/service"
	paymentservice "github.com/lvlrf/radpanel/internal/payment/service"
	"github.com/lvlrf/radpanel/internal/ratelimit"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accountdomain "github.com/lvlrf/radpanel/internal/account/domain"
	plandomain "github.com/lvlrf/radpanel/internal/plan/domain"
	walletdomain "github.com/lvlrf/radpanel/internal/wallet/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, log *zap.Logger) *gin.Engine {
	return NewEngine(cfg, log)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
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
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node

	accounts   accountdomain.Repository
	plans      plandomain.Repository
	walletSvc  walletdomain.Service
	orderSvc   orderservice.Service
	paymentSvc paymentservice.Service
	limiter    *ratelimit.SubmitLimiter
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Accounts   accountdomain.Repository
	Plans      plandomain.Repository
	WalletSvc  walletdomain.Service
	OrderSvc   orderservice.Service
	PaymentSvc paymentservice.Service
	Limiter    *ratelimit.SubmitLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		log:        p.Log.Named("server"),
		genID:      p.GenID,
		accounts:   p.Accounts,
		plans:      p.Plans,
		walletSvc:  p.WalletSvc,
		orderSvc:   p.OrderSvc,
		paymentSvc: p.PaymentSvc,
		limiter:    p.Limiter,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Accounts --------
	api.POST("/accounts", s.CreateAccount)
	api.GET("/accounts/:id", s.GetAccountByID)
	api.GET("/accounts/:id/balance", s.GetAccountBalance)
	api.GET("/accounts/:id/transactions", s.ListAccountTransactions)
	api.POST("/accounts/:id/adjust", s.AdjustAccountCredit)

	// -------- Plans --------
	api.GET("/plans", s.ListPlans)
	api.POST("/plans", s.CreatePlan)
	api.GET("/plans/:id", s.GetPlanByID)
	api.PATCH("/plans/:id/status", s.SetPlanStatus)

	// -------- Orders --------
	api.GET("/orders", s.ListOrders)
	api.POST("/orders", s.CreateOrder)
	api.GET("/orders/:id", s.GetOrderByID)
	api.DELETE("/orders/:id", s.DeleteOrder)
	api.POST("/orders/:id/disable", s.DisableOrder)

	// -------- Payments --------
	api.GET("/payments", s.ListPayments)
	api.POST("/payments", s.SubmitPayment)
	api.GET("/payments/:id", s.GetPaymentByID)
	api.POST("/payments/:id/approve", s.ApprovePayment)
	api.POST("/payments/:id/reject", s.RejectPayment)

	// -------- Payment methods --------
	api.GET("/payment_methods", s.ListPaymentMethods)
	api.POST("/payment_methods", s.CreatePaymentMethod)
	api.PATCH("/payment_methods/:id/enabled", s.SetPaymentMethodEnabled)

	// -------- Uploads --------
	api.POST("/uploads/receipts", s.UploadReceipt)
}
