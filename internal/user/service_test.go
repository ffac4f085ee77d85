package user

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bookstore/internal/common"
	"github.com/noah-isme/backend-bookstore/internal/db"
)

type stubQueries struct {
	users []db.User
}

func (s *stubQueries) ListUsers(_ context.Context, role string, limit, offset int32) ([]db.User, error) {
	var out []db.User
	for _, u := range s.users {
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	if int(offset) >= len(out) {
		return nil, nil
	}
	end := int(offset + limit)
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (s *stubQueries) CountUsers(_ context.Context, role string) (int64, error) {
	var n int64
	for _, u := range s.users {
		if role == "" || u.Role == role {
			n++
		}
	}
	return n, nil
}

func (s *stubQueries) UpdateUserRole(_ context.Context, id uuid.UUID, role string) (db.User, error) {
	for i, u := range s.users {
		if u.ID == id {
			s.users[i].Role = role
			return s.users[i], nil
		}
	}
	return db.User{}, db.ErrNotFound
}

func seed() *stubQueries {
	q := &stubQueries{}
	for i, role := range []string{"admin", "customer", "customer", "customer"} {
		q.users = append(q.users, db.User{ID: uuid.New(), Name: string(rune('A' + i)), Role: role})
	}
	return q
}

func TestListFiltersAndPages(t *testing.T) {
	svc := &Service{Q: seed()}
	users, p, err := svc.List(context.Background(), common.RoleCustomer, 2, 2)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.EqualValues(t, 3, p.TotalItems)
	require.Equal(t, 2, p.TotalPages)

	_, _, err = svc.List(context.Background(), "root", 1, 20)
	require.Error(t, err)
}

func TestUpdateRole(t *testing.T) {
	q := seed()
	svc := &Service{Q: q}
	admin, target := q.users[0].ID, q.users[1].ID

	u, err := svc.UpdateRole(context.Background(), admin, target, common.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, common.RoleAdmin, u.Role)

	_, err = svc.UpdateRole(context.Background(), admin, admin, common.RoleCustomer)
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "SELF_ROLE_CHANGE", appErr.Code)

	_, err = svc.UpdateRole(context.Background(), admin, uuid.New(), common.RoleAdmin)
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "NOT_FOUND", appErr.Code)
}
