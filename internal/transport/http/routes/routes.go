package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/infra/config"
	"github.com/arklim/autodoc-access/internal/transport/http/handlers"
	"github.com/arklim/autodoc-access/internal/transport/http/middleware"
	"github.com/arklim/autodoc-access/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Accounts     *usecase.AccountService
	Invitations  *usecase.InvitationService
	Catalog      *usecase.CatalogService
	LLMResponses *usecase.LLMResponseService
	Authorizer   middleware.APIKeyAuthorizer
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	HTTPMetrics *middleware.HTTPMetrics
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName(deps.Config)))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.App.CORSOrigins))
	r.Use(deps.HTTPMetrics.Handler())

	healthHandler := handlers.NewHealthHandler()
	if deps.Database != nil {
		healthHandler.WithCheck("database", deps.Database.Ping)
	}
	if deps.Cache != nil {
		healthHandler.WithCheck("redis", deps.Cache.HealthCheck)
	}

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	services := deps.Services
	read := domain.RequirePermission(domain.ResourceOrganization, domain.ActionRead)
	write := domain.RequirePermission(domain.ResourceOrganization, domain.ActionWrite)
	remove := domain.RequirePermission(domain.ResourceOrganization, domain.ActionDelete)

	autodoc := r.Group("/autodoc")
	{
		if services.Accounts != nil {
			accessHandler := handlers.NewAccessHandler(services.Accounts)
			autodoc.POST("/register", withLimit(deps, "register_ip", deps.Config.RateLimit.RegisterMaxAttempts, middleware.ClientIPIdentifier(), accessHandler.Register)...)
			autodoc.POST("/login", withLimit(deps, "login_ip", deps.Config.RateLimit.LoginMaxAttempts, middleware.ClientIPIdentifier(), accessHandler.Login)...)
		}

		if services.Invitations != nil && services.Authorizer != nil {
			invitationHandler := handlers.NewInvitationHandler(services.Invitations)
			inviteAuth := middleware.RequireAPIKey(services.Authorizer, "invite", services.Invitations.InvitePermission())
			autodoc.POST("/invite", withLimit(deps, "invite_key", deps.Config.RateLimit.InviteMaxAttempts, middleware.APIKeyIdentifier(), inviteAuth, invitationHandler.Invite)...)
			autodoc.GET("/accept-invite", invitationHandler.AcceptForm)
			autodoc.POST("/accept-invite", withLimit(deps, "accept_ip", deps.Config.RateLimit.AcceptMaxAttempts, middleware.ClientIPIdentifier(), invitationHandler.Accept)...)
		}

		if services.Catalog != nil && services.Authorizer != nil {
			catalogHandler := handlers.NewCatalogHandler(services.Catalog)
			autodoc.GET("/members", middleware.RequireAPIKey(services.Authorizer, "members", read), catalogHandler.Members)
			autodoc.GET("/endpoints", middleware.RequireAPIKey(services.Authorizer, "endpoints", read), catalogHandler.Endpoints)
			autodoc.POST("/endpoints", middleware.RequireAPIKey(services.Authorizer, "register_endpoint", write), catalogHandler.RegisterEndpoint)
			autodoc.POST("/endpoints/:id/description", middleware.RequireAPIKey(services.Authorizer, "description", write), catalogHandler.UpdateDescription)
		}
	}

	if services.LLMResponses != nil && services.Authorizer != nil {
		llmHandler := handlers.NewLLMResponseHandler(services.LLMResponses)
		llm := r.Group("/llm-responses")
		llm.GET("", middleware.RequireAPIKey(services.Authorizer, "llm_responses_list", read), llmHandler.List)
		llm.POST("", middleware.RequireAPIKey(services.Authorizer, "llm_responses_create", write), llmHandler.Create)
		llm.GET("/:id", middleware.RequireAPIKey(services.Authorizer, "llm_responses_get", read), llmHandler.Get)
		llm.PATCH("/:id", middleware.RequireAPIKey(services.Authorizer, "llm_responses_update", write), llmHandler.Update)
		llm.DELETE("/:id", middleware.RequireAPIKey(services.Authorizer, "llm_responses_delete", remove), llmHandler.Delete)
	}

	handlers.RegisterSwagger(r)

	return r
}

// withLimit prepends a sliding-window rule to chain when rate limiting is configured for it.
func withLimit(deps Dependencies, name string, limit int, identifier middleware.IdentifierFunc, chain ...gin.HandlerFunc) []gin.HandlerFunc {
	if deps.RateLimiter == nil || !deps.Config.RateLimit.Enabled || limit <= 0 {
		return chain
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: identifier,
	}
	return append([]gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}, chain...)
}

func serviceName(cfg *config.AppConfig) string {
	if cfg.Telemetry.ServiceName != "" {
		return cfg.Telemetry.ServiceName
	}
	if cfg.App.Name != "" {
		return cfg.App.Name
	}
	return "autodoc-access"
}
