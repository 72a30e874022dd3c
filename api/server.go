package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"medrota-iam/api/handlers"
	"medrota-iam/config"
	"medrota-iam/core/identity"
	"medrota-iam/core/jobs"
	"medrota-iam/core/store"
	"medrota-iam/core/utils"
)

// Server wires the HTTP surface over the authentication service.
type Server struct {
	cfg          *config.AppConfig
	auth         *identity.Authenticator
	worker       *jobs.Worker
	logger       *utils.Logger
	activity     *sessionActivity
	loginLimiter *requestLimiter

	router chi.Router
	http   *http.Server
}

type ServerDeps struct {
	Config     *config.AppConfig
	Auth       *identity.Authenticator
	Identities store.IdentitiesStore
	Audit      store.AuditStore
	Worker     *jobs.Worker
	Logger     *utils.Logger
}

func NewServer(deps ServerDeps) *Server {
	capacity := deps.Config.Security.LoginRateCapacity
	if capacity <= 0 {
		capacity = 10
	}
	refill := deps.Config.Security.LoginRateRefill
	if refill <= 0 {
		refill = time.Minute
	}
	s := &Server{
		cfg:          deps.Config,
		auth:         deps.Auth,
		worker:       deps.Worker,
		logger:       deps.Logger,
		activity:     newSessionActivity(),
		loginLimiter: newLimiter(capacity, refill),
	}
	handlers.SetTrustedProxies(deps.Config.Security.TrustedProxies)
	s.router = s.buildRouter(deps)
	return s
}

func (s *Server) buildRouter(deps ServerDeps) chi.Router {
	authH := handlers.NewAuthHandler(deps.Auth, deps.Logger)
	accountH := handlers.NewAccountHandler(deps.Auth, deps.Logger)
	mfaH := handlers.NewMFAHandler(deps.Auth, deps.Logger)
	adminH := handlers.NewAdminHandler(deps.Auth, deps.Identities, deps.Audit, deps.Logger)

	r := chi.NewRouter()
	r.Use(s.securityHeadersMiddleware)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.rateLimitMiddleware(authH.Login))
		r.Post("/auth/refresh", authH.Refresh)
		r.Post("/auth/logout", authH.Logout)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Route("/me", func(r chi.Router) {
				r.Get("/", accountH.Me)
				r.Get("/permissions", accountH.Permissions)
				r.Post("/password", accountH.ChangePassword)
				r.Get("/sessions", accountH.Sessions)
				r.Delete("/sessions/{id}", accountH.RevokeSession)

				r.Route("/mfa", func(r chi.Router) {
					r.Get("/devices", mfaH.Devices)
					r.Post("/devices", mfaH.Enroll)
					r.Post("/devices/{id}/verify", mfaH.VerifyDevice)
					r.Delete("/devices/{id}", mfaH.RemoveDevice)
					r.Post("/recovery-codes", mfaH.RegenerateRecoveryCodes)
				})
			})

			r.Route("/identities", func(r chi.Router) {
				r.Get("/", adminH.ListIdentities)
				r.Post("/", adminH.CreateIdentity)
				r.Put("/{id}/roles", adminH.SetRoles)
				r.Put("/{id}/overrides", adminH.SetOverrides)
				r.Put("/{id}/active", adminH.SetActive)
				r.Post("/{id}/unlock", adminH.Unlock)
				r.Delete("/{id}/sessions", adminH.RevokeSessions)
			})

			r.Get("/audit", adminH.AuditLog)
		})
	})
	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// submit runs fn on the background worker when one is attached, inline
// otherwise.
func (s *Server) submit(fn func(ctx context.Context) error) {
	if s.worker != nil {
		s.worker.Submit("session.touch", fn)
		return
	}
	if err := fn(context.Background()); err != nil && s.logger != nil {
		s.logger.Warnf("session touch: %v", err)
	}
}

func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Printf("listening on %s", s.cfg.ListenAddr)
	if s.cfg.TLSEnabled {
		return s.http.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
	}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
