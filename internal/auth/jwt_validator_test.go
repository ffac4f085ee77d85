package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bookstore/internal/common"
)

func bookstoreToken(t *testing.T, now time.Time, edit func(b *jwt.Builder) *jwt.Builder) jwt.Token {
	t.Helper()
	b := jwt.NewBuilder().
		Issuer("backend-bookstore").
		Audience([]string{"bookstore-web"}).
		Subject(uuid.NewString()).
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(15 * time.Minute)).
		Claim(roleClaim, common.RoleCustomer)
	if edit != nil {
		b = edit(b)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	return tok
}

func TestTokenValidator(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	validator := TokenValidator{
		Issuer:    "backend-bookstore",
		Audience:  "bookstore-web",
		ClockSkew: time.Second,
		Algorithm: jwa.HS256,
	}

	tests := []struct {
		name    string
		edit    func(b *jwt.Builder) *jwt.Builder
		alg     jwa.SignatureAlgorithm
		wantErr bool
	}{
		{name: "customer token", alg: jwa.HS256},
		{
			name: "admin token",
			edit: func(b *jwt.Builder) *jwt.Builder { return b.Claim(roleClaim, common.RoleAdmin) },
			alg:  jwa.HS256,
		},
		{
			name:    "foreign issuer",
			edit:    func(b *jwt.Builder) *jwt.Builder { return b.Issuer("someone-else") },
			alg:     jwa.HS256,
			wantErr: true,
		},
		{
			name:    "other audience",
			edit:    func(b *jwt.Builder) *jwt.Builder { return b.Audience([]string{"admin-console"}) },
			alg:     jwa.HS256,
			wantErr: true,
		},
		{
			name: "expired",
			edit: func(b *jwt.Builder) *jwt.Builder {
				return b.IssuedAt(now.Add(-time.Hour)).NotBefore(now.Add(-time.Hour)).Expiration(now.Add(-time.Minute))
			},
			alg:     jwa.HS256,
			wantErr: true,
		},
		{
			name:    "not yet valid",
			edit:    func(b *jwt.Builder) *jwt.Builder { return b.NotBefore(now.Add(5 * time.Minute)) },
			alg:     jwa.HS256,
			wantErr: true,
		},
		{name: "algorithm swap", alg: jwa.RS256, wantErr: true},
		{name: "missing algorithm", alg: "", wantErr: true},
		{
			name:    "numeric role",
			edit:    func(b *jwt.Builder) *jwt.Builder { return b.Claim(roleClaim, 42) },
			alg:     jwa.HS256,
			wantErr: true,
		},
		{
			name:    "empty role",
			edit:    func(b *jwt.Builder) *jwt.Builder { return b.Claim(roleClaim, "") },
			alg:     jwa.HS256,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.Validate(bookstoreToken(t, now, tc.edit), tc.alg, now)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTokenValidatorWithinSkew(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	tok := bookstoreToken(t, now, func(b *jwt.Builder) *jwt.Builder {
		return b.Expiration(now.Add(-500 * time.Millisecond))
	})
	require.NoError(t, TokenValidator{ClockSkew: time.Second}.Validate(tok, jwa.HS256, now))
	require.Error(t, TokenValidator{}.Validate(tok, jwa.HS256, now))
}

func TestTokenValidatorMissingRole(t *testing.T) {
	now := time.Now()
	tok, err := jwt.NewBuilder().Subject(uuid.NewString()).IssuedAt(now).Expiration(now.Add(time.Minute)).Build()
	require.NoError(t, err)
	require.Error(t, TokenValidator{}.Validate(tok, jwa.HS256, now))
	require.Error(t, TokenValidator{}.Validate(nil, jwa.HS256, now))
}
