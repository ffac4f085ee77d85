package db

import (
	"context"

	"github.com/google/uuid"
)

const userColumns = `id, name, email, password_hash, role, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

const createUser = `INSERT INTO users (name, email, password_hash, role)
VALUES ($1, $2, $3, $4)
RETURNING ` + userColumns

type CreateUserParams struct {
	Name         string
	Email        string
	PasswordHash string
	Role         string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, createUser, arg.Name, arg.Email, arg.PasswordHash, arg.Role))
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = lower($1)`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
	return u, notFound(err)
}

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	u, err := scanUser(q.db.QueryRow(ctx, getUserByID, id))
	return u, notFound(err)
}

const listUsers = `SELECT ` + userColumns + ` FROM users
WHERE ($1::text = '' OR role = $1)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

func (q *Queries) ListUsers(ctx context.Context, role string, limit, offset int32) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsers, role, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

const countUsers = `SELECT count(*) FROM users WHERE ($1::text = '' OR role = $1)`

func (q *Queries) CountUsers(ctx context.Context, role string) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countUsers, role).Scan(&n)
	return n, err
}

const updateUserRole = `UPDATE users SET role = $2, updated_at = now()
WHERE id = $1
RETURNING ` + userColumns

func (q *Queries) UpdateUserRole(ctx context.Context, id uuid.UUID, role string) (User, error) {
	u, err := scanUser(q.db.QueryRow(ctx, updateUserRole, id, role))
	return u, notFound(err)
}
