// Package server assembles the fiber application: services, handlers and
// the route table.
package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/config"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/handlers"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/identity"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/metrics"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/middleware"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/models"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/realtime"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/services/admin"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/services/order"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/services/topup"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/services/verification"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/services/voucher"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/services/wallet"
)

type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	Provider identity.Provider
	Hub      *realtime.Hub
	Notifier realtime.Notifier

	// RequestLog turns on fiber's access log.
	RequestLog bool
}

// Services are shared between the HTTP layer and the scheduled jobs.
type Services struct {
	Ledger        *wallet.Ledger
	Orders        *order.Service
	TopUps        *topup.Service
	Verifications *verification.Service
	Vouchers      *voucher.Service
	Admin         *admin.Service
}

func NewServices(gdb *gorm.DB, notifier realtime.Notifier) *Services {
	ledger := wallet.NewLedger()
	return &Services{
		Ledger:        ledger,
		Orders:        order.NewService(gdb, ledger, notifier),
		TopUps:        topup.NewService(gdb, ledger, notifier),
		Verifications: verification.NewService(gdb, notifier),
		Vouchers:      voucher.NewService(gdb, ledger, notifier),
		Admin:         admin.NewService(gdb, ledger, notifier),
	}
}

func New(d Deps, svc *Services) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(recover.New())
	if d.RequestLog {
		app.Use(fiberlogger.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     d.Config.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: true,
	}))

	authH := &handlers.AuthHandler{
		DB:       d.DB,
		Provider: d.Provider,
		Expires:  d.Config.JWTExpiresMin,
		Secure:   strings.HasPrefix(d.Config.FrontendBaseURL, "https://"),
	}
	googleH := &handlers.GoogleOAuthHandler{
		Auth:            authH,
		GoogleClientID:  d.Config.GoogleClientID,
		GoogleSecret:    d.Config.GoogleSecret,
		GoogleRedirect:  d.Config.GoogleRedirect,
		FrontendBaseURL: d.Config.FrontendBaseURL,
	}
	profileH := &handlers.ProfileHandler{DB: d.DB}
	catalogH := handlers.NewCatalogHandler(d.DB)
	orderH := handlers.NewOrderHandler(svc.Orders)
	walletH := &handlers.WalletHandler{DB: d.DB, Ledger: svc.Ledger, TopUps: svc.TopUps}
	verificationH := &handlers.VerificationHandler{Verifications: svc.Verifications}
	voucherH := &handlers.VoucherHandler{Vouchers: svc.Vouchers}
	adminH := &handlers.AdminHandler{Admin: svc.Admin}
	chatH := handlers.NewChatHandler(d.DB, d.Notifier)
	dashboardH := handlers.NewMitraDashboardHandler(d.DB)
	notifH := &handlers.NotificationHandler{Hub: d.Hub, Provider: d.Provider}

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	app.Get("/ws/notifications", notifH.Upgrade, notifH.Serve())

	api := app.Group("/api")

	// public
	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Post("/auth/logout", authH.Logout)
	api.Get("/auth/google/start", googleH.GoogleStart)
	api.Get("/auth/google/callback", googleH.GoogleCallback)
	api.Get("/services", catalogH.GetServices)
	api.Get("/banners", catalogH.GetBanners)
	api.Get("/vouchers", voucherH.List)

	admins := middleware.RequireRoles(models.RoleAdmin)
	mitras := middleware.RequireRoles(models.RoleMitra)
	mitrasOrAdmins := middleware.RequireRoles(models.RoleMitra, models.RoleAdmin)

	protected := api.Group("/", middleware.Authenticate(d.Provider))

	protected.Get("/me", authH.Me)

	protected.Get("/profile/:id", profileH.Get)
	protected.Post("/profile", admins, profileH.Create)
	protected.Put("/profile/:id", profileH.Update)

	protected.Post("/banners", admins, catalogH.CreateBanner)
	protected.Put("/banners/:id", admins, catalogH.UpdateBanner)

	protected.Get("/orders", orderH.List)
	protected.Get("/orders/:id", orderH.Get)
	protected.Post("/orders", middleware.RequireRoles(models.RoleUser), orderH.Create)
	protected.Put("/orders/:id", orderH.Update)
	protected.Post("/orders/:id/accept", mitrasOrAdmins, orderH.Accept)
	protected.Post("/orders/:id/start", mitrasOrAdmins, orderH.Start)
	protected.Post("/orders/:id/complete", mitrasOrAdmins, orderH.Complete)
	protected.Post("/orders/:id/rate", orderH.Rate)
	protected.Post("/orders/:id/cancel", orderH.Cancel)

	protected.Get("/balance/:userId", walletH.Balance)
	protected.Get("/balance-transactions/:userId", walletH.Transactions)
	protected.Post("/topup", walletH.CreateTopUp)
	protected.Get("/topup-requests", admins, walletH.ListTopUps)
	protected.Post("/topup-requests/:id/approve", admins, walletH.ApproveTopUp)
	protected.Post("/topup-requests/:id/reject", admins, walletH.RejectTopUp)

	protected.Get("/mitra-verifications", admins, verificationH.List)
	protected.Post("/mitra-verifications", mitras, verificationH.Submit)
	protected.Post("/mitra-verifications/:id/approve", admins, verificationH.Approve)
	protected.Post("/mitra-verifications/:id/reject", admins, verificationH.Reject)

	protected.Post("/vouchers/:id/use", voucherH.Use)

	protected.Get("/mitra/dashboard", mitras, dashboardH.GetDashboardStats)
	protected.Get("/mitra/earnings", mitras, dashboardH.GetEarnings)
	protected.Post("/mitra/:id/toggle-status", admins, adminH.ToggleMitraStatus)

	protected.Get("/admin/stats", admins, adminH.Stats)
	protected.Post("/admin/transfer-balance", admins, adminH.Transfer)

	protected.Get("/chat/:orderId", chatH.GetMessages)
	protected.Post("/chat", chatH.SendMessage)

	return app
}
