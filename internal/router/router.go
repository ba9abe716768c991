package router

import (
	"net/http"
	"time"

	"github.com/parjanul123/MoneyManager/internal/bank"
	"github.com/parjanul123/MoneyManager/internal/btpay"
	"github.com/parjanul123/MoneyManager/internal/config"
	"github.com/parjanul123/MoneyManager/internal/handler"
	"github.com/parjanul123/MoneyManager/internal/ledger"
	"github.com/parjanul123/MoneyManager/internal/middleware"
	"github.com/parjanul123/MoneyManager/internal/realtime"
	"github.com/parjanul123/MoneyManager/internal/webhook"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Setup builds the gin engine with all routes and middleware wired.
func Setup(db *gorm.DB, cfg *config.Config) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())

	notifier := webhook.NewNotifier(cfg.Discord.WebhookURL)
	ledgerSvc := ledger.NewService(db)
	btpaySvc := btpay.NewService(db, ledgerSvc)
	importer := bank.NewImporter(db, cfg.Bank, ledgerSvc)
	channel := realtime.NewChannel(db, btpaySvc,
		time.Duration(cfg.Realtime.PushIntervalSeconds)*time.Second)

	authHandler := handler.NewAuthHandler(db, cfg, notifier)
	accountHandler := handler.NewAccountHandler(db, notifier)
	transactionHandler := handler.NewTransactionHandler(db, ledgerSvc, notifier)
	budgetHandler := handler.NewBudgetHandler(db, notifier)
	savingsHandler := handler.NewSavingsHandler(db)
	reportHandler := handler.NewReportHandler(db)
	exportHandler := handler.NewExportHandler(db)
	bankHandler := handler.NewBankHandler(db, cfg, importer, ledgerSvc)
	btpayHandler := handler.NewBTPayHandler(db, btpaySvc)
	wsHandler := handler.NewWSHandler(channel)
	logHandler := handler.NewLogHandler(db)

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.GET("/discord", authHandler.DiscordRedirect)
		auth.GET("/discord/callback", authHandler.DiscordCallback)
	}

	policy := middleware.NewSessionPolicy(cfg.Auth.SingleUseSessions, cfg.Auth.ExemptPaths)
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret, db, policy))
	protected.Use(middleware.AuditMiddleware(db))
	{
		protected.GET("/me", authHandler.Me)
		protected.POST("/auth/logout", authHandler.Logout)
		protected.POST("/auth/password", authHandler.ChangePassword)

		protected.GET("/accounts", accountHandler.List)
		protected.POST("/accounts", accountHandler.Create)
		protected.GET("/accounts/:id", accountHandler.Get)
		protected.PUT("/accounts/:id", accountHandler.Update)
		protected.DELETE("/accounts/:id", accountHandler.Delete)

		protected.GET("/transactions", transactionHandler.List)
		protected.POST("/transactions", transactionHandler.Create)
		protected.PUT("/transactions/:id", transactionHandler.Update)
		protected.DELETE("/transactions/:id", transactionHandler.Delete)
		protected.GET("/categories", transactionHandler.Categories)

		protected.GET("/budgets", budgetHandler.List)
		protected.POST("/budgets", budgetHandler.Create)
		protected.PUT("/budgets/:id", budgetHandler.Update)
		protected.DELETE("/budgets/:id", budgetHandler.Delete)

		protected.GET("/savings", savingsHandler.List)
		protected.POST("/savings", savingsHandler.Create)
		protected.PUT("/savings/:id", savingsHandler.Update)
		protected.DELETE("/savings/:id", savingsHandler.Delete)

		protected.GET("/reports/summary", reportHandler.Summary)
		protected.GET("/reports/categories", reportHandler.Categories)

		protected.GET("/export/csv", exportHandler.CSV)
		protected.GET("/export/xlsx", exportHandler.XLSX)

		protected.GET("/bank/connections", bankHandler.ListConnections)
		protected.POST("/bank/connections", bankHandler.CreateConnection)
		protected.DELETE("/bank/connections/:id", bankHandler.DeleteConnection)
		protected.POST("/bank/sync", bankHandler.Sync)
		protected.GET("/bank/transactions/pending", bankHandler.ListPending)
		protected.GET("/bank/transactions/synced", bankHandler.ListSynced)
		protected.POST("/bank/transactions/:id/accept", bankHandler.Accept)
		protected.POST("/bank/transactions/:id/ignore", bankHandler.Ignore)

		protected.GET("/btpay/live/transactions", btpayHandler.LiveTransactions)
		protected.GET("/btpay/live/stats", btpayHandler.Stats)
		protected.GET("/btpay/live/pending", btpayHandler.Pending)
		protected.GET("/btpay/live/dashboard", btpayHandler.Dashboard)
		protected.GET("/btpay/live/hourly", btpayHandler.Hourly)
		protected.GET("/btpay/live/categories", btpayHandler.CategoryList)
		protected.POST("/btpay/auto-categorize", btpayHandler.AutoCategorize)
		protected.GET("/btpay/merchants/:name", btpayHandler.MerchantDetail)
		protected.GET("/btpay/stream", btpayHandler.Stream)
		protected.GET("/btpay/ws", wsHandler.Connect)

		protected.GET("/logs", logHandler.List)
	}

	return engine
}
