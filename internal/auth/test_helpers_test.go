package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/backend-bookstore/internal/db"
)

type fakeQueries struct {
	mu           sync.Mutex
	usersByEmail map[string]db.User
	usersByID    map[uuid.UUID]db.User
}

func newFakeQueries() *fakeQueries {
	return &fakeQueries{
		usersByEmail: make(map[string]db.User),
		usersByID:    make(map[uuid.UUID]db.User),
	}
}

func (f *fakeQueries) CreateUser(_ context.Context, arg db.CreateUserParams) (db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.usersByEmail[arg.Email]; exists {
		return db.User{}, &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
	}
	now := time.Now().UTC()
	u := db.User{
		ID:           uuid.New(),
		Name:         arg.Name,
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		Role:         arg.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.usersByEmail[u.Email] = u
	f.usersByID[u.ID] = u
	return u, nil
}

func (f *fakeQueries) GetUserByEmail(_ context.Context, email string) (db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.usersByEmail[email]
	if !ok {
		return db.User{}, db.ErrNotFound
	}
	return u, nil
}

func (f *fakeQueries) GetUserByID(_ context.Context, id uuid.UUID) (db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.usersByID[id]
	if !ok {
		return db.User{}, db.ErrNotFound
	}
	return u, nil
}

func (f *fakeQueries) promote(email, role string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.usersByEmail[email]
	u.Role = role
	f.usersByEmail[email] = u
	f.usersByID[u.ID] = u
}

func newTestService(t *testing.T) (*Service, *fakeQueries) {
	t.Helper()
	queries := newFakeQueries()
	svc, err := NewService(Config{
		Queries:        queries,
		Secret:         "super-secret-key",
		AccessTokenTTL: time.Hour,
		Issuer:         "backend-bookstore",
		Audience:       "bookstore-web",
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, queries
}
