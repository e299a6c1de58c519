package api

import (
	"github.com/gin-gonic/gin"

	"inphora/cache"
	"inphora/config"
	"inphora/models"
	"inphora/service"
)

// Services bundles everything the HTTP layer depends on
type Services struct {
	Auth           service.AuthService
	Clients        service.ClientService
	Products       service.LoanProductService
	Loans          service.LoanService
	Disbursements  service.DisbursementService
	Reconciliation service.ReconciliationService
	Registration   service.RegistrationService
	Reports        service.ReportService
	Notifications  service.NotificationService
	Store          cache.Store
}

// SetupRouter builds the gin engine with all routes and middleware
func SetupRouter(cfg *config.Config, deps Services) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	registerValidators()
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	auth := newAuthHandler(deps.Auth)
	clients := newClientHandler(deps.Clients)
	products := newProductHandler(deps.Products)
	loans := newLoanHandler(deps.Loans)
	disbursements := newDisbursementHandler(deps.Disbursements)
	webhooks := newWebhookHandler(deps.Disbursements, deps.Reconciliation)
	registrations := newRegistrationHandler(deps.Registration)
	reports := newReportHandler(deps.Reports)
	notifications := newNotificationHandler(deps.Notifications)

	api := r.Group("/api/v1")

	// Public surface: login, self-service registration, gateway webhooks
	api.POST("/auth/login", auth.Login)
	api.POST("/registrations",
		RateLimit(deps.Store, cfg.RegistrationRateLimit),
		registrations.Submit)

	// The gateway retries on non-200; webhook handlers always acknowledge
	webhookGroup := api.Group("/webhooks/mpesa")
	webhookGroup.POST("/c2b/confirmation", webhooks.C2BConfirmation)
	webhookGroup.POST("/b2c/result", webhooks.B2CResult)
	webhookGroup.POST("/b2c/timeout", webhooks.B2CTimeout)
	webhookGroup.POST("/stk/callback", webhooks.STKCallback)

	// Everything below requires a valid session
	protected := api.Group("")
	protected.Use(Auth(deps.Auth))

	protected.POST("/auth/logout", auth.Logout)
	protected.GET("/auth/me", auth.Me)
	protected.POST("/users", RequireRole(models.RoleAdmin), auth.CreateUser)

	protected.GET("/clients", RequireRole(models.RoleViewer), clients.List)
	protected.GET("/clients/:id", RequireRole(models.RoleViewer), clients.Get)
	protected.PUT("/clients/:id", RequireRole(models.RoleLoanOfficer), clients.Update)
	protected.GET("/clients/:id/loans", RequireRole(models.RoleViewer), clients.Loans)

	protected.GET("/products", RequireRole(models.RoleViewer), products.List)
	protected.GET("/products/:id", RequireRole(models.RoleViewer), products.Get)
	protected.POST("/products", RequireRole(models.RoleAdmin), products.Create)
	protected.PUT("/products/:id", RequireRole(models.RoleAdmin), products.Update)

	protected.POST("/loans", RequireRole(models.RoleLoanOfficer), loans.Create)
	protected.GET("/loans", RequireRole(models.RoleViewer), loans.List)
	protected.GET("/loans/:id", RequireRole(models.RoleViewer), loans.Get)
	protected.POST("/loans/:id/approve", RequireRole(models.RoleManager), loans.Approve)
	protected.POST("/loans/:id/reject", RequireRole(models.RoleManager), loans.Reject)
	protected.POST("/loans/:id/repayments", RequireRole(models.RoleLoanOfficer), loans.RecordRepayment)
	protected.POST("/loans/:id/disburse", RequireRole(models.RoleManager), disbursements.Initiate)

	protected.GET("/payments/unmatched", RequireRole(models.RoleLoanOfficer), webhooks.ListUnmatched)
	protected.POST("/payments/:id/reconcile", RequireRole(models.RoleLoanOfficer), webhooks.ManualReconcile)
	protected.POST("/payments/:id/invalidate", RequireRole(models.RoleLoanOfficer), webhooks.Invalidate)

	protected.POST("/registrations/:id/fee-prompt", RequireRole(models.RoleLoanOfficer), registrations.RequestFeePrompt)
	protected.POST("/registrations/:id/approve", RequireRole(models.RoleLoanOfficer), registrations.Approve)
	protected.POST("/registrations/:id/reject", RequireRole(models.RoleLoanOfficer), registrations.Reject)

	protected.GET("/reports/portfolio", RequireRole(models.RoleManager), reports.Portfolio)
	protected.GET("/reports/arrears", RequireRole(models.RoleManager), reports.Arrears)

	protected.GET("/notifications", notifications.List)
	protected.POST("/notifications/:id/read", notifications.MarkRead)

	return r
}
