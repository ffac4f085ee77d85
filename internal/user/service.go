package user

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-bookstore/internal/auth"
	"github.com/noah-isme/backend-bookstore/internal/common"
	"github.com/noah-isme/backend-bookstore/internal/db"
)

// Querier is the subset of db.Queries used for account administration.
type Querier interface {
	ListUsers(ctx context.Context, role string, limit, offset int32) ([]db.User, error)
	CountUsers(ctx context.Context, role string) (int64, error)
	UpdateUserRole(ctx context.Context, id uuid.UUID, role string) (db.User, error)
}

// Service lists accounts and changes roles for administrators.
type Service struct {
	Q Querier
}

// ValidRole reports whether role is assignable.
func ValidRole(role string) bool {
	return role == common.RoleCustomer || role == common.RoleAdmin
}

// List returns users, optionally filtered by role.
func (s *Service) List(ctx context.Context, role string, page, perPage int) ([]auth.User, common.Pagination, error) {
	if role != "" && !ValidRole(role) {
		return nil, common.Pagination{}, common.BadRequest("unknown role filter", nil)
	}
	total, err := s.Q.CountUsers(ctx, role)
	if err != nil {
		return nil, common.Pagination{}, err
	}
	rows, err := s.Q.ListUsers(ctx, role, int32(perPage), common.Offset(page, perPage))
	if err != nil {
		return nil, common.Pagination{}, err
	}
	out := make([]auth.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, auth.NewUser(row))
	}
	return out, common.NewPagination(page, perPage, total), nil
}

// UpdateRole changes target's role. Admins cannot change their own role so a
// store always keeps the admin performing the change.
func (s *Service) UpdateRole(ctx context.Context, actor, target uuid.UUID, role string) (auth.User, error) {
	if !ValidRole(role) {
		return auth.User{}, common.BadRequest("role must be customer or admin", nil)
	}
	if actor == target {
		return auth.User{}, common.NewAppError("SELF_ROLE_CHANGE", "admins cannot change their own role", http.StatusConflict, nil)
	}
	row, err := s.Q.UpdateUserRole(ctx, target, role)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return auth.User{}, common.NotFound("user not found")
		}
		return auth.User{}, err
	}
	return auth.NewUser(row), nil
}
