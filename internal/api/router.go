package api

import (
	"context"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/projectsphere/identity-api/internal/api/handler"
	"github.com/projectsphere/identity-api/internal/api/middleware"
	"github.com/projectsphere/identity-api/internal/core/domain"
	"github.com/projectsphere/identity-api/internal/core/ports"
	"github.com/projectsphere/identity-api/internal/core/service"
	mongorepo "github.com/projectsphere/identity-api/internal/infrastructure/db/mongo"
	redisinfra "github.com/projectsphere/identity-api/internal/infrastructure/db/redis"
	"github.com/projectsphere/identity-api/internal/pkg/config"
	"github.com/projectsphere/identity-api/pkg/logger"
)

// NewRouter builds the Echo instance with every route registered: the public
// auth surface, the authenticated session routes, and the admin surface
// guarded by permission middleware.
func NewRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, notifier ports.Notifier) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	log := logger.Get()

	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("identity"))

	// --- Dependencies ---
	credRepo := mongorepo.NewCredentialRepository(db)
	permRepo := mongorepo.NewPermissionRepository(db)
	throttle := redisinfra.NewOTPThrottle(rdb, cfg.Auth.OTPResendCooldown)

	issuer := service.NewTokenIssuer(cfg.Auth.AccessTokenSecret, cfg.Auth.RefreshTokenSecret, cfg.Auth.RefreshTokenTTL)

	authService := service.NewAuthService(credRepo, issuer, service.AuthPolicy{
		AccessTokenTTL:     cfg.Auth.AccessTokenTTL,
		RememberMeTokenTTL: cfg.Auth.RememberMeTokenTTL,
		LoginAttemptLimit:  cfg.Auth.LoginAttemptLimit,
	}, log)
	resetService := service.NewResetService(credRepo, issuer, notifier, throttle, service.ResetPolicy{
		OTPLength:         cfg.Auth.OTPLength,
		OTPTTL:            cfg.Auth.OTPTTL,
		ResetWindow:       cfg.Auth.ResetWindow,
		ForgotTokenTTL:    cfg.Auth.ForgotTokenTTL,
		PasswordMinLength: cfg.Auth.PasswordMinLength,
	}, log)
	accountService := service.NewAccountService(credRepo, issuer, notifier, cfg.Auth.InviteTokenTTL, log)
	permissionService := service.NewPermissionService(credRepo, permRepo, log)

	authHandler := handler.NewAuthHandler(authService, resetService)
	accountHandler := handler.NewAccountHandler(accountService)
	permissionHandler := handler.NewPermissionHandler(permissionService)

	authenticated := middleware.Auth(issuer)
	fresh := middleware.Fresh(credRepo)

	// --- Public auth routes ---
	auth := e.Group("/auth")
	auth.POST("/signup", authHandler.Signup)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/forgot-password", authHandler.ForgotPassword)
	auth.POST("/resend-otp", authHandler.ResendOTP)
	auth.POST("/verify-otp", authHandler.VerifyOTP)
	auth.POST("/reset-password", authHandler.ResetPassword)

	// Logout needs a valid access token but not a fresh credential: a stale
	// session must still be able to log itself out.
	auth.POST("/logout", authHandler.Logout, authenticated)

	// --- Admin surface ---
	accounts := e.Group("/accounts", authenticated, fresh)
	accounts.POST("", accountHandler.Provision, middleware.Permit(domain.PermissionManageUsers))
	accounts.GET("/:id", accountHandler.Get, middleware.Permit(domain.PermissionManageUsers))
	accounts.DELETE("/:id", accountHandler.Delete, middleware.Permit(domain.PermissionManageUsers))
	accounts.PATCH("/:id/status", accountHandler.ChangeStatus, middleware.Permit(domain.PermissionManageUsers))
	accounts.POST("/:id/unlock", accountHandler.Unlock, middleware.Permit(domain.PermissionManageUsers))

	permissions := accounts.Group("/:id/permissions", middleware.Permit(domain.PermissionManagePermissions))
	permissions.POST("/grant", permissionHandler.Grant)
	permissions.POST("/restrict", permissionHandler.Restrict)
	permissions.POST("/revoke", permissionHandler.Revoke)

	// --- Observability ---
	e.GET("/metrics", echoprometheus.NewHandler())

	healthHandler := handler.NewHealthHandler(map[string]handler.Pinger{
		"mongodb": handler.PingFunc(func(ctx context.Context) error {
			return db.Client().Ping(ctx, nil)
		}),
		"redis": handler.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}),
	})
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthHandler.Readiness)

	return e
}
