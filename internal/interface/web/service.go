package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/acc-network/relay/internal/core/application"
	"github.com/acc-network/relay/internal/infrastructure/metrics"
	"github.com/acc-network/relay/internal/interface/web/handlers"
	"github.com/acc-network/relay/internal/interface/web/types"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

type Services struct {
	Payments *application.PaymentService
	Accounts *application.AccountService
	Shops    *application.ShopService
	// Metrics is optional, /metrics is not served without it.
	Metrics *metrics.Registry
}

type service struct {
	cfg        Config
	httpServer *http.Server
}

func NewService(cfg Config, svcs Services) (*service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %s", err)
	}
	router, err := NewRouter(cfg, svcs)
	if err != nil {
		return nil, err
	}
	return &service{
		cfg: cfg,
		httpServer: &http.Server{
			Addr:              cfg.address(),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Start serves in background. The returned channel yields the error that
// stopped the server, if any.
func (s *service) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	log.Infof("started HTTP server at %s", s.cfg.address())
	return errCh
}

func (s *service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("failed to shutdown HTTP server")
		return
	}
	log.Info("stopped HTTP server")
}

func NewRouter(cfg Config, svcs Services) (*gin.Engine, error) {
	if err := types.RegisterValidators(); err != nil {
		return nil, fmt.Errorf("failed to register validators: %s", err)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.SentryEnabled {
		router.Use(SentryMiddleware())
	}
	if svcs.Metrics != nil {
		router.Use(svcs.Metrics.Middleware())
		router.GET("/metrics", gin.WrapH(svcs.Metrics.Handler()))
	}
	if cfg.RateLimit > 0 {
		router.Use(RateLimitMiddleware(cfg.RateLimit))
	}
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	payments := handlers.NewPaymentHandler(svcs.Payments, svcs.Accounts)
	shops := handlers.NewShopHandler(svcs.Shops)
	accounts := handlers.NewAccountHandler(svcs.Accounts)
	withAccessKey := AccessKeyMiddleware(cfg.AccessKey)

	v1 := router.Group("/v1")

	payment := v1.Group("/payment")
	payment.GET("/info", payments.GetInfo)
	payment.GET("/item", payments.GetItem)
	payment.POST("/account/temporary", payments.IssueTemporaryAccount)
	payment.POST("/new/open", withAccessKey, payments.OpenNew)
	payment.POST("/new/approval", payments.ApproveNew)
	payment.POST("/new/close", withAccessKey, payments.CloseNew)
	payment.POST("/cancel/open", withAccessKey, payments.OpenCancel)
	payment.POST("/cancel/approval", payments.ApproveCancel)
	payment.POST("/cancel/close", withAccessKey, payments.CloseCancel)

	shop := v1.Group("/shop")
	shop.POST("/update/create", withAccessKey, shops.CreateUpdate)
	shop.POST("/update/approval", shops.ApproveUpdate)
	shop.POST("/status/create", withAccessKey, shops.CreateStatus)
	shop.POST("/status/approval", shops.ApproveStatus)
	shop.GET("/task", shops.GetTask)
	shop.POST("/account/delegator/create", accounts.CreateDelegator)
	shop.POST("/account/delegator/save", accounts.SaveDelegator)
	shop.POST("/refund", accounts.Refund)
	shop.POST("/settlement/collect", accounts.CollectSettlement)
	shop.POST("/settlement/manager/set", accounts.SetSettlementManager)
	shop.POST("/settlement/manager/remove", accounts.RemoveSettlementManager)
	shop.GET("/settlement/manager/get/:shopId", accounts.GetSettlementManager)
	shop.GET("/settlement/client/length/:managerId", accounts.GetSettlementClientLength)
	shop.GET("/settlement/client/list/:managerId", accounts.GetSettlementClients)

	agent := v1.Group("/agent")
	agent.GET("/:kind/:account", accounts.GetAgent)
	agent.POST("/:kind", accounts.RegisterAgent)

	ledger := v1.Group("/ledger")
	ledger.POST("/withdraw_via_bridge", accounts.WithdrawViaBridge)
	ledger.POST("/deposit_via_bridge", accounts.DepositViaBridge)

	return router, nil
}
