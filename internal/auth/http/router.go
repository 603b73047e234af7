package http

import (
	"log/slog"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/aussiebroadwan/triage/api/auth" // Swagger docs
	"github.com/aussiebroadwan/triage/internal/auth/domain"
	"github.com/aussiebroadwan/triage/internal/auth/gate"
	"github.com/aussiebroadwan/triage/internal/auth/service"
	"github.com/aussiebroadwan/triage/internal/auth/store"
	"github.com/aussiebroadwan/triage/pkg/httpx"
	"github.com/aussiebroadwan/triage/pkg/ratelimit"
	"github.com/aussiebroadwan/triage/pkg/slogx"
)

// Rate limit operation names, the first half of every limiter key.
const (
	OpLogin          = "login"
	OpRegister       = "register"
	OpRefresh        = "refresh"
	OpChangePassword = "change_password"
	OpResetRequest   = "password_reset"
	OpResetConfirm   = "password_reset_confirm"
	OpVerifyEmail    = "verify_email"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	Gate    *gate.Gate
	Limiter ratelimit.Limiter
	Rules   ratelimit.Rules

	// ClientKey identifies anonymous callers for rate limiting. Defaults to
	// the connection's remote address.
	ClientKey httpx.KeyExtractor

	// Redis is pinged by /readyz when set.
	Redis goredis.UniversalClient

	AuthService *service.AuthService
	UserService *service.UserService
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		Rules:        ratelimit.DefaultRules(),
		ClientKey:    httpx.RemoteIPKeyExtractor,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerUsers()
	r.registerRoles()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Triage Authentication Service API
//	@version		0.1.0
//	@description	Account, token and permission management for the triage incident coordination platform.
//	@description
//	@description				Tokens are HMAC-signed JWTs carrying a type claim (access, refresh, reset, verify).
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/triage
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// limitByClient throttles an anonymous endpoint per client address.
func (r *Router) limitByClient(op string, rule ratelimit.Rule) httpx.Middleware {
	return httpx.RateLimit(r.Limiter, op, rule, r.ClientKey)
}

// limitByUser throttles an authenticated endpoint per user. It must run
// after RequireAuth.
func (r *Router) limitByUser(op string, rule ratelimit.Rule) httpx.Middleware {
	return httpx.RateLimit(r.Limiter, op, rule, httpx.UserIDKeyExtractor)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{AuthService: r.AuthService}
	authn := httpx.RequireAuth(r.Gate)

	// Public endpoints, each with its own budget per client address
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister), r.limitByClient(OpRegister, r.Rules.Register)))
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin), r.limitByClient(OpLogin, r.Rules.Login)))
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh), r.limitByClient(OpRefresh, r.Rules.Refresh)))
	r.Mux.Handle("POST /v1/auth/password-reset/request",
		httpx.Chain(http.HandlerFunc(h.HandlePasswordResetRequest), r.limitByClient(OpResetRequest, r.Rules.Reset)))
	r.Mux.Handle("POST /v1/auth/password-reset/confirm",
		httpx.Chain(http.HandlerFunc(h.HandlePasswordResetConfirm), r.limitByClient(OpResetConfirm, r.Rules.Reset)))
	r.Mux.Handle("POST /v1/auth/verify-email",
		httpx.Chain(http.HandlerFunc(h.HandleVerifyEmail), r.limitByClient(OpVerifyEmail, r.Rules.Verify)))
	r.Mux.HandleFunc("POST /v1/auth/password/validate", h.HandleValidatePassword)

	// Authenticated endpoints
	r.Mux.Handle("POST /v1/auth/logout", httpx.Chain(http.HandlerFunc(h.HandleLogout), authn))
	r.Mux.Handle("GET /v1/auth/me", httpx.Chain(http.HandlerFunc(h.HandleMe), authn))

	// Password changes verify the current password, so they share the login threshold
	r.Mux.Handle("POST /v1/auth/change-password",
		httpx.Chain(http.HandlerFunc(h.HandleChangePassword),
			authn,
			r.limitByUser(OpChangePassword, r.Rules.Login),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UsersHandler{UserService: r.UserService}
	authn := httpx.RequireAuth(r.Gate)

	r.Mux.Handle("GET /v1/users",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			authn,
			httpx.RequirePermission(r.Gate, domain.PermUsersRead),
		),
	)
	r.Mux.Handle("GET /v1/users/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			authn,
			httpx.RequireSelfOr(r.Gate, "id", domain.PermUsersRead),
		),
	)
	r.Mux.Handle("PATCH /v1/users/{id}/role",
		httpx.Chain(http.HandlerFunc(h.HandleUpdateRole),
			authn,
			httpx.RequirePermission(r.Gate, domain.PermUsersManage),
		),
	)
	r.Mux.Handle("PATCH /v1/users/{id}/active",
		httpx.Chain(http.HandlerFunc(h.HandleUpdateActive),
			authn,
			httpx.RequirePermission(r.Gate, domain.PermUsersManage),
		),
	)
	r.Mux.Handle("DELETE /v1/users/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleDelete),
			authn,
			httpx.RequirePermission(r.Gate, domain.PermUsersDelete),
		),
	)
}

func (r *Router) registerRoles() {
	h := &RolesHandler{UserService: r.UserService}
	r.Mux.Handle("GET /v1/roles", httpx.Chain(h, httpx.RequireAuth(r.Gate)))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.Redis))
}
