package repository

import (
	"context"
	"os"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"

	"github.com/digkill/CapCalWeb/internal/database"
	"github.com/digkill/CapCalWeb/internal/models"
)

// newTestRepository connects to the database named by MYSQL_TEST_DSN and
// skips the test when it is unset.
func newTestRepository(c *qt.C) *SessionRepository {
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		c.Skip("MYSQL_TEST_DSN not set")
	}
	ctx := context.Background()
	db, err := database.Connect(ctx, dsn)
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { db.Close() })
	c.Assert(database.Migrate(ctx, db), qt.IsNil)
	return NewSessionRepository(db)
}

func TestSessionRepositoryGetMissing(t *testing.T) {
	c := qt.New(t)
	repo := newTestRepository(c)

	got, err := repo.Get(context.Background(), uuid.NewString())
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.IsNil)
}

func TestSessionRepositorySetOverwrites(t *testing.T) {
	c := qt.New(t)
	repo := newTestRepository(c)
	ctx := context.Background()
	id := uuid.NewString()
	c.Cleanup(func() { _ = repo.Clear(context.Background(), id) })

	c.Assert(repo.Set(ctx, &models.Session{ID: id}), qt.IsNil)
	got, err := repo.Get(ctx, id)
	c.Assert(err, qt.IsNil)
	c.Assert(got.IsAuthenticated, qt.IsFalse)
	c.Assert(got.AuthToken, qt.Equals, "")

	err = repo.Set(ctx, &models.Session{ID: id, IsAuthenticated: true, UserName: "jane", UserEmail: "jane@example.com", AuthToken: "token"})
	c.Assert(err, qt.IsNil)
	got, err = repo.Get(ctx, id)
	c.Assert(err, qt.IsNil)
	c.Assert(got.ID, qt.Equals, id)
	c.Assert(got.IsAuthenticated, qt.IsTrue)
	c.Assert(got.UserName, qt.Equals, "jane")
	c.Assert(got.UserEmail, qt.Equals, "jane@example.com")
	c.Assert(got.AuthToken, qt.Equals, "token")
	c.Assert(got.CreatedAt.IsZero(), qt.IsFalse)
}

func TestSessionRepositoryClear(t *testing.T) {
	c := qt.New(t)
	repo := newTestRepository(c)
	ctx := context.Background()
	id := uuid.NewString()

	c.Assert(repo.Set(ctx, &models.Session{ID: id, IsAuthenticated: true, UserName: "jane"}), qt.IsNil)
	c.Assert(repo.Clear(ctx, id), qt.IsNil)
	got, err := repo.Get(ctx, id)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.IsNil)

	// Clearing an unknown session is not an error.
	c.Assert(repo.Clear(ctx, id), qt.IsNil)
}
