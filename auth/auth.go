// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role constants
const (
	RoleSuperAdmin = "SUPER_ADMIN"
	RoleAdmin      = "ADMIN"
	RoleSupervisor = "SUPERVISEUR"
	RoleAgent      = "AGENT"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownRole  = errors.New("unknown role")
)

// Identity is the authenticated caller together with its geographic assignment.
// Supervisors carry a WardID, agents a CenterID.
type Identity struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	WardID   string `json:"ward_id,omitempty"`
	CenterID string `json:"center_id,omitempty"`
}

// IsAdmin reports whether the identity may validate or reject.
func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin || id.Role == RoleSuperAdmin
}

// HasRole reports whether the identity holds one of roles.
func (id Identity) HasRole(roles ...string) bool {
	return slices.Contains(roles, id.Role)
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleAdmin, RoleSupervisor, RoleAgent:
		return true
	}
	return false
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// NewID creates a random UUID string for database records
func NewID() string {
	return uuid.NewString()
}

// Claims is the JWT payload issued by the identity service.
type Claims struct {
	jwt.RegisteredClaims
	Role     string `json:"role"`
	WardID   string `json:"ward_id,omitempty"`
	CenterID string `json:"center_id,omitempty"`
}

// IssueToken signs an HS256 token for id, valid for ttl.
// Production tokens come from the OTP login flow; this is used by tests and tooling.
func IssueToken(id Identity, secret []byte, issuer string, ttl time.Duration) (string, error) {
	if !ValidRole(id.Role) {
		return "", ErrUnknownRole
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:     id.Role,
		WardID:   id.WardID,
		CenterID: id.CenterID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies an HS256 token and returns the identity it carries.
func ParseToken(tokenString string, secret []byte, issuer string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrMissingToken
	}

	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithLeeway(30 * time.Second),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	if !ValidRole(claims.Role) {
		return Identity{}, ErrUnknownRole
	}

	return Identity{
		UserID:   claims.Subject,
		Role:     claims.Role,
		WardID:   claims.WardID,
		CenterID: claims.CenterID,
	}, nil
}
