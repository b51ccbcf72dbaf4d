// Package auth issues and verifies the HS256 bearer tokens that guard the consumer API.
package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const contextKey = "user"

var (
	ErrMissingSecret = errors.New("jwt secret is required")
	ErrMissingClaims = errors.New("missing token claims")
)

// GenerateToken signs a token for subject that expires after ttl.
func GenerateToken(subject, secret string, ttl time.Duration) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, errors.New("subject is required")
	}
	if strings.TrimSpace(secret) == "" {
		return "", time.Time{}, ErrMissingSecret
	}
	if ttl <= 0 {
		return "", time.Time{}, errors.New("ttl must be positive")
	}
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// JWTMiddleware rejects requests without a valid bearer token unless skipper returns true.
func JWTMiddleware(secret string, skipper middleware.Skipper) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(secret),
		SigningMethod: jwt.SigningMethodHS256.Alg(),
		ContextKey:    contextKey,
		TokenLookup:   "header:Authorization:Bearer ",
		Skipper:       skipper,
		NewClaimsFunc: func(echo.Context) jwt.Claims {
			return jwt.MapClaims{}
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing token")
		},
	})
}

// SubjectFromContext returns the "sub" claim of the token validated for this request.
func SubjectFromContext(c echo.Context) (string, error) {
	token, ok := c.Get(contextKey).(*jwt.Token)
	if !ok || token == nil {
		return "", echo.NewHTTPError(http.StatusUnauthorized, ErrMissingClaims.Error())
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "token subject missing")
	}
	return sub, nil
}
