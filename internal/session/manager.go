package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/digkill/CapCalWeb/internal/models"
)

type Options struct {
	CookieName string
	MaxAge     time.Duration
	Secure     bool
}

// Manager ties the session cookie to a Store and exposes the session to
// handlers through the request context.
type Manager struct {
	store Store
	opts  Options
	log   *slog.Logger
}

func NewManager(store Store, opts Options, log *slog.Logger) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = "capcal_session"
	}
	return &Manager{store: store, opts: opts, log: log}
}

type contextKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *models.Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext never returns nil; a missing session reads as logged out.
func FromContext(ctx context.Context) *models.Session {
	if s, ok := ctx.Value(contextKey{}).(*models.Session); ok && s != nil {
		return s
	}
	return &models.Session{}
}

func IsAuthenticated(ctx context.Context) bool {
	return FromContext(ctx).IsAuthenticated
}

// Load resolves the session cookie once per request. Store failures are
// logged and the request continues as anonymous.
func (m *Manager) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var current *models.Session
		if cookie, err := r.Cookie(m.opts.CookieName); err == nil && cookie.Value != "" {
			s, err := m.store.Get(r.Context(), cookie.Value)
			if err != nil {
				m.log.Error("load session", "err", err)
			}
			current = s
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), current)))
	})
}

// Login stores a fresh authenticated session and sets its cookie. Any previous
// session bound to the request is discarded.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, name, email, token string) (*models.Session, error) {
	if previous := FromContext(r.Context()); previous.ID != "" {
		if err := m.store.Clear(r.Context(), previous.ID); err != nil {
			m.log.Warn("discard previous session", "err", err)
		}
	}

	now := time.Now().UTC()
	s := &models.Session{
		ID:              uuid.NewString(),
		IsAuthenticated: true,
		UserName:        name,
		UserEmail:       email,
		AuthToken:       token,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := m.store.Set(r.Context(), s); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	http.SetCookie(w, m.cookie(s.ID, int(m.opts.MaxAge/time.Second)))
	return s, nil
}

// Logout clears the stored session and expires the cookie.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	id := FromContext(r.Context()).ID
	if id == "" {
		if cookie, err := r.Cookie(m.opts.CookieName); err == nil {
			id = cookie.Value
		}
	}
	http.SetCookie(w, m.cookie("", -1))
	if id == "" {
		return nil
	}
	if err := m.store.Clear(r.Context(), id); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
