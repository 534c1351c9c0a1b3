package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"github.com/rs/cors"

	"github.com/digkill/CapCalWeb/internal/auth"
	"github.com/digkill/CapCalWeb/internal/dashboard"
	"github.com/digkill/CapCalWeb/internal/deeplink"
	"github.com/digkill/CapCalWeb/internal/metrics"
	"github.com/digkill/CapCalWeb/internal/models"
	"github.com/digkill/CapCalWeb/internal/promoter"
	"github.com/digkill/CapCalWeb/internal/session"
)

type Config struct {
	Addr               string
	AppID              string
	CSRFKey            string
	SecureCookies      bool
	CORSAllowedOrigins []string
	MetricsEnabled     bool

	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Only set it when a proxy in front of the server overwrites
	// those headers; otherwise any visitor can pick their own address.
	TrustProxyHeaders bool
}

type UsageLoader interface {
	Load(ctx context.Context, rng dashboard.Range) (*dashboard.View, error)
	ArchiveEnabled() bool
	Archive(ctx context.Context, rng dashboard.Range) (string, error)
}

type PromoterService interface {
	Normalize(q promoter.Query) promoter.Query
	List(ctx context.Context, q promoter.Query) (*models.PromoterPage, error)
	Create(ctx context.Context, f promoter.Form) (*models.Promoter, error)
	GenerateCode() (string, error)
	PromoLink(code string) string
}

type ContactService interface {
	Submit(ctx context.Context, clientKey string, msg models.ContactMessage) error
}

type Authenticator interface {
	Mode() string
	Authenticate(ctx context.Context, creds models.Credentials) (*auth.Identity, error)
}

// Deps are the collaborators the server routes to. Metrics may be nil.
type Deps struct {
	Sessions    *session.Manager
	Auth        Authenticator
	Dashboard   UsageLoader
	Promoters   PromoterService
	Contact     ContactService
	DeepLinks   *deeplink.Router
	Attribution deeplink.Recorder
	Metrics     *metrics.Metrics
}

type Server struct {
	cfg    Config
	deps   Deps
	log    *slog.Logger
	router *chi.Mux
	now    func() time.Time
}

func NewServer(cfg Config, deps Deps, log *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		log:    log,
		router: chi.NewRouter(),
		now:    time.Now,
	}
	s.routes()
	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	if s.cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	var observer deeplink.Observer
	if s.deps.Metrics != nil {
		observer = s.deps.Metrics
	}
	r.Use(deeplink.Middleware(s.deps.DeepLinks, s.deps.Attribution, observer, s.log))
	r.Use(s.deps.Sessions.Load)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.cfg.MetricsEnabled && s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics.Handler())
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	protect := s.csrfProtect()
	r.Group(func(pages chi.Router) {
		pages.Use(protect)
		pages.Get("/", s.handleHome)
		pages.Post("/contact", s.handleContact)
		pages.Get("/login", s.handleLoginPage)
		pages.Post("/login", s.handleLogin)
		pages.Post("/logout", s.handleLogout)
		if s.cfg.AppID != "" {
			pages.Get("/"+s.cfg.AppID, s.handleHome)
			pages.Get("/"+s.cfg.AppID+"/*", s.handleHome)
		}

		pages.Group(func(guarded chi.Router) {
			guarded.Use(s.requireSession)
			guarded.Get("/dashboard", s.handleDashboard)
			guarded.Post("/dashboard/archive", s.handleArchive)
			guarded.Get("/promoters", s.handlePromoters)
			guarded.Post("/promoters", s.handleCreatePromoter)
		})
	})
	r.NotFound(protect(http.HandlerFunc(s.handleNotFound)).ServeHTTP)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(cors.New(cors.Options{
			AllowedOrigins:   s.cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: true,
		}).Handler)
		api.Use(requireJSON)
		api.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			s.writeError(w, http.StatusNotFound, "not found")
		})

		api.Get("/session", s.apiSession)
		api.Post("/login", s.apiLogin)
		api.Post("/logout", s.apiLogout)
		api.Post("/contact", s.apiContact)
		api.Group(func(guarded chi.Router) {
			guarded.Use(s.requireAPISession)
			guarded.Get("/usage", s.apiUsage)
			guarded.Get("/promoters", s.apiListPromoters)
			guarded.Post("/promoters", s.apiCreatePromoter)
			guarded.Get("/promoters/code", s.apiPromoterCode)
		})
	})
}

// csrfProtect guards HTML forms. Without a key the check is off, which is
// only meant for local runs and tests.
func (s *Server) csrfProtect() func(http.Handler) http.Handler {
	if s.cfg.CSRFKey == "" {
		s.log.Warn("CSRF protection disabled: CSRF_KEY is empty")
		return func(next http.Handler) http.Handler { return next }
	}
	return csrf.Protect([]byte(s.cfg.CSRFKey),
		csrf.FieldName(csrfFieldName),
		csrf.Path("/"),
		csrf.Secure(s.cfg.SecureCookies),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(s.handleCSRFFailure)),
	)
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("web shutdown error", "err", err)
		}
	}()

	s.log.Info("web server listening", "addr", s.cfg.Addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web listen: %w", err)
	}
	return nil
}
