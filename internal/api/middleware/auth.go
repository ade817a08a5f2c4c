package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "domainhub.io/hubd/internal/pkg/errors"
)

// Claims defines the token claims the hub cares about. The principal is
// the subject; username is a display fallback.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// TokenConfig holds token signing configuration.
type TokenConfig struct {
	SigningKey []byte
	Issuer     string
	ExpiresIn  time.Duration
}

// GenerateToken creates a signed token for the given principal.
func GenerateToken(cfg TokenConfig, principal string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(cfg.ExpiresIn)

	claims := Claims{
		Username: principal,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   principal,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(cfg.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// Auth returns a Gin middleware that resolves the acting principal. With a
// signing key set it validates Bearer tokens; with a dev header name set it
// accepts the plain header instead. The principal string is opaque to the
// rest of the system.
func Auth(signingKey []byte, devHeader string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if devHeader != "" {
			if principal := strings.TrimSpace(c.GetHeader(devHeader)); principal != "" {
				install(c, principal)
				c.Next()
				return
			}
		}

		if len(signingKey) == 0 {
			abortUnauthorized(c, apperrors.CodeAuthFailed, "no authentication configured for this request")
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, apperrors.CodeAuthFailed, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c, apperrors.CodeAuthFailed, "invalid authorization header format")
			return
		}

		token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return signingKey, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "token expired"
			}
			abortUnauthorized(c, apperrors.CodeTokenInvalid, msg)
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok || !token.Valid {
			abortUnauthorized(c, apperrors.CodeTokenInvalid, "invalid token claims")
			return
		}

		principal := claims.Subject
		if principal == "" {
			principal = claims.Username
		}
		if principal == "" {
			abortUnauthorized(c, apperrors.CodeTokenInvalid, "token carries no subject")
			return
		}

		install(c, principal)
		c.Next()
	}
}

func install(c *gin.Context, principal string) {
	c.Set(string(ctxKeyPrincipal), principal)
	c.Request = c.Request.WithContext(SetPrincipal(c.Request.Context(), principal))
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    code,
		"message": message,
	})
}
