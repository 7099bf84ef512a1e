package domain

import (
	"log/slog"

	"github.com/golang-jwt/jwt/v5"
)

// tokenAttrs returns log attributes read from an unverified JWT. Tokens that
// are not JWTs (opaque or encrypted formats) produce no attributes.
func tokenAttrs(token string) []any {
	claims := jwt.MapClaims{}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return nil
	}

	var attrs []any
	if alg, ok := parsed.Header["alg"].(string); ok && alg != "" {
		attrs = append(attrs, slog.String("alg", alg))
	}
	if kid, ok := parsed.Header["kid"].(string); ok && kid != "" {
		attrs = append(attrs, slog.String("kid", kid))
	}
	if jti, ok := claims["jti"].(string); ok && jti != "" {
		attrs = append(attrs, slog.String("jti", jti))
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		attrs = append(attrs, slog.String("sub", sub))
	}
	return attrs
}
