package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/digkill/CapCalWeb/internal/models"
	"github.com/digkill/CapCalWeb/pkg/logger"
)

func newManager(store Store) *Manager {
	return NewManager(store, Options{CookieName: "sid", MaxAge: time.Hour}, logger.Discard())
}

func TestMemoryStoreLastWriteWins(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	store := NewMemoryStore()

	got, err := store.Get(ctx, "missing")
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.IsNil)

	c.Assert(store.Set(ctx, &models.Session{ID: "a", UserName: "first"}), qt.IsNil)
	c.Assert(store.Set(ctx, &models.Session{ID: "a", UserName: "second"}), qt.IsNil)
	got, err = store.Get(ctx, "a")
	c.Assert(err, qt.IsNil)
	c.Assert(got.UserName, qt.Equals, "second")
	c.Assert(got.CreatedAt.IsZero(), qt.IsFalse)

	c.Assert(store.Clear(ctx, "a"), qt.IsNil)
	c.Assert(store.Len(), qt.Equals, 0)
}

func TestFromContextDefaultsToLoggedOut(t *testing.T) {
	c := qt.New(t)
	s := FromContext(context.Background())
	c.Assert(s, qt.IsNotNil)
	c.Assert(s.IsAuthenticated, qt.IsFalse)
	c.Assert(IsAuthenticated(WithSession(context.Background(), nil)), qt.IsFalse)
	c.Assert(IsAuthenticated(WithSession(context.Background(), &models.Session{IsAuthenticated: true})), qt.IsTrue)
}

// roundTrip runs req through Load and returns the session the handler saw.
func roundTrip(m *Manager, req *http.Request) *models.Session {
	var seen *models.Session
	h := m.Load(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), req)
	return seen
}

func TestLoginThenLoad(t *testing.T) {
	c := qt.New(t)
	store := NewMemoryStore()
	m := newManager(store)

	w := httptest.NewRecorder()
	s, err := m.Login(w, httptest.NewRequest(http.MethodPost, "/login", nil), "jane", "jane@example.com", "tok")
	c.Assert(err, qt.IsNil)

	cookies := w.Result().Cookies()
	c.Assert(cookies, qt.HasLen, 1)
	c.Assert(cookies[0].Name, qt.Equals, "sid")
	c.Assert(cookies[0].Value, qt.Equals, s.ID)
	c.Assert(cookies[0].HttpOnly, qt.IsTrue)
	c.Assert(cookies[0].MaxAge, qt.Equals, 3600)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(cookies[0])
	seen := roundTrip(m, req)
	c.Assert(seen.IsAuthenticated, qt.IsTrue)
	c.Assert(seen.UserName, qt.Equals, "jane")
	c.Assert(seen.UserEmail, qt.Equals, "jane@example.com")
	c.Assert(seen.AuthToken, qt.Equals, "tok")
}

func TestLoginReplacesPreviousSession(t *testing.T) {
	c := qt.New(t)
	store := NewMemoryStore()
	m := newManager(store)

	first, err := m.Login(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/login", nil), "a", "a@example.com", "")
	c.Assert(err, qt.IsNil)

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req = req.WithContext(WithSession(req.Context(), first))
	second, err := m.Login(httptest.NewRecorder(), req, "b", "b@example.com", "")
	c.Assert(err, qt.IsNil)
	c.Assert(second.ID, qt.Not(qt.Equals), first.ID)
	c.Assert(store.Len(), qt.Equals, 1)
}

func TestLogoutClearsSessionAndCookie(t *testing.T) {
	c := qt.New(t)
	store := NewMemoryStore()
	m := newManager(store)

	login := httptest.NewRecorder()
	_, err := m.Login(login, httptest.NewRequest(http.MethodPost, "/login", nil), "jane", "jane@example.com", "tok")
	c.Assert(err, qt.IsNil)
	cookie := login.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	c.Assert(m.Logout(w, req), qt.IsNil)
	c.Assert(store.Len(), qt.Equals, 0)

	expired := w.Result().Cookies()
	c.Assert(expired, qt.HasLen, 1)
	c.Assert(expired[0].MaxAge < 0, qt.IsTrue)
	c.Assert(expired[0].Value, qt.Equals, "")

	after := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	after.AddCookie(cookie)
	seen := roundTrip(m, after)
	c.Assert(seen.IsAuthenticated, qt.IsFalse)
	c.Assert(seen.UserName, qt.Equals, "")
	c.Assert(seen.UserEmail, qt.Equals, "")
	c.Assert(seen.AuthToken, qt.Equals, "")
}

type brokenStore struct{ MemoryStore }

func (b *brokenStore) Get(context.Context, string) (*models.Session, error) {
	return nil, errors.New("db down")
}

func TestLoadTreatsStoreFailureAsAnonymous(t *testing.T) {
	c := qt.New(t)
	m := newManager(&brokenStore{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "abc"})
	c.Assert(roundTrip(m, req).IsAuthenticated, qt.IsFalse)
}
