// server/auth/auth.go
package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/ViniZap4/lumi-notes/domain"
)

const Header = "X-Lumi-Token"

// Checker verifies the shared access token. A bcrypt hash takes precedence
// over the plain password.
type Checker struct {
	password []byte
	hash     []byte
}

func NewChecker(password, hash string) *Checker {
	if hash == "" && password == "" {
		password = "dev"
	}
	return &Checker{password: []byte(password), hash: []byte(hash)}
}

func (c *Checker) Valid(token string) bool {
	if token == "" {
		return false
	}
	if len(c.hash) > 0 {
		return bcrypt.CompareHashAndPassword(c.hash, []byte(token)) == nil
	}
	return subtle.ConstantTimeCompare(c.password, []byte(token)) == 1
}

// Middleware rejects requests without a valid token in the X-Lumi-Token
// header or, for websocket upgrades, the token query parameter.
func (c *Checker) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		token := strings.TrimSpace(ctx.Get(Header))
		if token == "" {
			token = ctx.Query("token")
		}
		if !c.Valid(token) {
			return domain.ErrUnauthorized
		}
		return ctx.Next()
	}
}

// HashPassword returns a bcrypt hash suitable for LUMI_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
