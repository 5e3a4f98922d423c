package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/nobcorp/nobids/internal/ids/service"
	"github.com/nobcorp/nobids/internal/ids/store"
	"github.com/nobcorp/nobids/pkg/httpx"
	"github.com/nobcorp/nobids/pkg/jwtx"
	"github.com/nobcorp/nobids/pkg/slogx"

	_ "github.com/nobcorp/nobids/api/ids" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	issuer       string
	algorithm    string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store              store.Store
	TokenService       *service.TokenService
	UserService        *service.UserService
	RegistryService    *service.RegistryService
	SessionService     *service.SessionService
	AuthorizeService   *service.AuthorizeService
	BootstrapService   *service.BootstrapService
	KeyRotationService *service.KeyRotationService
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	issuer, algorithm, buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		issuer:       issuer,
		algorithm:    algorithm,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerOAuth2()
	r.registerWellKnown()
	r.registerUserinfo()
	r.registerSessions()
	r.registerMFA()
	r.registerAdmin()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			nobids Identity Server API
//	@version		0.1.0
//	@description	OAuth2 and OpenID Connect provider: authorization code flow with PKCE,
//	@description	refresh token rotation with reuse detection, client credentials, token
//	@description	revocation (RFC 7009) and introspection (RFC 7662).
//	@description
//	@description				Access tokens are JWTs verifiable against the JWKS endpoint.
//
//	@contact.name				nobcorp
//	@contact.url				https://github.com/nobcorp/nobids
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

func (r *Router) registerOAuth2() {
	authorizeHandler := &AuthorizeHandler{
		AuthorizeService: r.AuthorizeService,
		Logger:           r.logger,
	}

	// GET /authorize - lenient limit, it mostly hands out login challenges
	r.Mux.Handle("GET /v1/oauth2/authorize",
		httpx.Chain(http.HandlerFunc(authorizeHandler.HandleGet),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// POST /authorize carries credentials, so limit by IP + username to slow
	// brute force without letting one attacker lock a whole NAT out
	r.Mux.Handle("POST /v1/oauth2/authorize",
		httpx.Chain(http.HandlerFunc(authorizeHandler.HandlePost),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "username"),
		),
	)

	tokenHandler := &TokenHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/oauth2/token",
		httpx.Chain(tokenHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	revokeHandler := &RevokeHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/oauth2/revoke",
		httpx.Chain(revokeHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// Introspection (RFC 7662) authenticates the calling client itself, so
	// it sits behind the IP limiter rather than the bearer middleware
	introspectHandler := &IntrospectHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/oauth2/introspect",
		httpx.Chain(introspectHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerWellKnown() {
	r.Mux.Handle("GET /.well-known/openid-configuration",
		httpx.Chain(DiscoveryHandler(r.issuer, r.algorithm),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerUserinfo() {
	h := &UserinfoHandler{UserService: r.UserService}

	secured := httpx.Chain(h,
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireAnyScope("openid"),
		httpx.RateLimitBySubject(httpx.LenientLimit),
	)

	r.Mux.Handle("GET /v1/userinfo", secured)
}

func (r *Router) registerSessions() {
	h := &LogoutHandler{SessionService: r.SessionService}

	// Logout is driven by the browser session cookie, no bearer token needed
	r.Mux.Handle("POST /v1/logout",
		httpx.Chain(h,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerMFA() {
	h := &MFAHandler{UserService: r.UserService}

	// Strict limit on activation to stop TOTP code brute force
	r.Mux.Handle("POST /v1/mfa/totp/enroll",
		httpx.Chain(http.HandlerFunc(h.HandleEnroll),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitBySubject(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/mfa/totp/activate",
		httpx.Chain(http.HandlerFunc(h.HandleActivate),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitBySubject(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("DELETE /v1/mfa/totp",
		httpx.Chain(http.HandlerFunc(h.HandleDisable),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitBySubject(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("PUT /v1/me/password",
		httpx.Chain(http.HandlerFunc(h.HandleChangePassword),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitBySubject(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerAdmin() {
	bootstrapHandler := &BootstrapHandler{BootstrapService: r.BootstrapService}
	r.Mux.Handle("POST /v1/admin/bootstrap",
		httpx.Chain(bootstrapHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	clientsHandler := &ClientsHandler{RegistryService: r.RegistryService}
	r.Mux.Handle("POST /v1/admin/clients", r.secureAdmin(http.HandlerFunc(clientsHandler.HandleCreate)))
	r.Mux.Handle("GET /v1/admin/clients", r.secureAdmin(http.HandlerFunc(clientsHandler.HandleList)))
	r.Mux.Handle("PUT /v1/admin/clients/{id}/scopes", r.secureAdmin(http.HandlerFunc(clientsHandler.HandleUpdateScopes)))
	r.Mux.Handle("DELETE /v1/admin/clients/{id}", r.secureAdmin(http.HandlerFunc(clientsHandler.HandleDelete)))

	resourcesHandler := &ResourcesHandler{RegistryService: r.RegistryService}
	r.Mux.Handle("POST /v1/admin/resources", r.secureAdmin(http.HandlerFunc(resourcesHandler.HandleCreate)))
	r.Mux.Handle("GET /v1/admin/resources", r.secureAdmin(http.HandlerFunc(resourcesHandler.HandleList)))

	keysHandler := &KeyRotationHandler{KeyRotationService: r.KeyRotationService}
	r.Mux.Handle("POST /v1/admin/keys/rotate", r.secureAdmin(http.HandlerFunc(keysHandler.HandleRotate)))
	r.Mux.Handle("GET /v1/admin/keys", r.secureAdmin(http.HandlerFunc(keysHandler.HandleList)))
	r.Mux.Handle("POST /v1/admin/keys/{kid}/retire", r.secureAdmin(http.HandlerFunc(keysHandler.HandleRetire)))
}

// secureAdmin wraps h with bearer authentication and the admin scope check.
func (r *Router) secureAdmin(h http.Handler) http.Handler {
	return httpx.Chain(h,
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireAnyScope("ids.admin"),
		httpx.RateLimitBySubject(httpx.ModerateLimit),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
