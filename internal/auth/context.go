package auth

import (
	"context"

	"github.com/ukydev/fleet-manager/internal/errs"
	"github.com/ukydev/fleet-manager/internal/models"
)

type contextKey string

const claimsKey contextKey = "claims"

// WithClaims returns a copy of ctx carrying the caller's token claims.
func WithClaims(ctx context.Context, claims *models.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the claims stored by WithClaims.
func ClaimsFromContext(ctx context.Context) (*models.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*models.Claims)
	return claims, ok && claims != nil
}

// CurrentUserID resolves the authenticated user of ctx. Writes that must be
// attributed call it first and fail with errs.ErrUnauthenticated without one.
func CurrentUserID(ctx context.Context) (string, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims.UserID == "" {
		return "", errs.ErrUnauthenticated
	}
	return claims.UserID, nil
}
