package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// IdentityKey is where the externally authenticated identity is stored
const IdentityKey = "identity"

// NewIdentityMiddleware reads the identity injected by the auth proxy in
// front of the app. When secret is set the header must carry an HS256 JWT
// and the identity is its subject.
//
// The request is never aborted here. An unknown token has to answer the
// same with or without an identity, so the handlers decide.
func NewIdentityMiddleware(header, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(header))
		if raw == "" {
			c.Next()
			return
		}

		if secret == "" {
			c.Set(IdentityKey, raw)
			c.Next()
			return
		}

		subject, err := subjectFromJWT(raw, secret)
		if err != nil {
			zap.L().Warn("Rejected identity header",
				zap.String("request_id", c.GetString("requestID")),
				zap.Error(err))
			c.Next()
			return
		}

		c.Set(IdentityKey, subject)
		c.Next()
	}
}

func subjectFromJWT(raw, secret string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}

		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("failed to parse identity token, %w", err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}

	if sub == "" {
		return "", fmt.Errorf("identity token has no subject")
	}

	return sub, nil
}
