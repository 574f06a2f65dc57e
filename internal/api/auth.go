package api

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt"
)

type contextKey string

const userIdKey contextKey = "user-id"

// UserId returns the authenticated user id stored by authMiddleware.
func UserId(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIdKey).(string)
	return id, ok
}

func WithUserId(ctx context.Context, userId string) context.Context {
	return context.WithValue(ctx, userIdKey, userId)
}

// extractUserIdFromToken validates the session token and returns the
// "user-id" claim.
func extractUserIdFromToken(tokenString string, signingKey []byte) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return signingKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	userId, ok := claims["user-id"].(string)
	if !ok || userId == "" {
		return "", fmt.Errorf("token missing user-id claim")
	}

	return userId, nil
}
