package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/buytime/backend/internal/api/handler"
)

const clockLeeway = 30 * time.Second

// AuthConfig selects the verification key. PublicKeyPEM takes precedence and
// enables RS256; otherwise Secret enables HS256.
type AuthConfig struct {
	PublicKeyPEM string
	Secret       string
	// Issuer, when set, must match the token's iss claim.
	Issuer string
}

// Auth validates the bearer JWT and injects its subject, the caller's
// external identity, into the context.
func Auth(cfg AuthConfig) (echo.MiddlewareFunc, error) {
	key, method, err := verificationKey(cfg)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method}),
		jwt.WithLeeway(clockLeeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			var claims jwt.RegisteredClaims
			tkn, err := parser.ParseWithClaims(parts[1], &claims, func(*jwt.Token) (any, error) {
				return key, nil
			})
			if err != nil || !tkn.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token missing subject")
			}

			c.Set(handler.ContextKeyExternalID, claims.Subject)
			return next(c)
		}
	}, nil
}

func verificationKey(cfg AuthConfig) (any, string, error) {
	if cfg.PublicKeyPEM != "" {
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, "", fmt.Errorf("parse auth public key: %w", err)
		}
		return pub, jwt.SigningMethodRS256.Alg(), nil
	}
	if cfg.Secret != "" {
		return []byte(cfg.Secret), jwt.SigningMethodHS256.Alg(), nil
	}
	return nil, "", errors.New("auth: no verification key configured")
}
