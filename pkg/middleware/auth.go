// Package middleware holds Fiber middleware shared by the HTTP routes.
package middleware

import (
	"errors"

	"github.com/coletivobank/coletivo/pkg/config"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
)

// JwtProtected rejects requests without a valid HS256 bearer token and
// stores the parsed token under the "user" local.
func JwtProtected(cfg *config.Jwt) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{
			JWTAlg: jwtware.HS256,
			Key:    []byte(cfg.Secret),
		},
		ContextKey:   "user",
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	status := fiber.StatusUnauthorized
	title := "Invalid or expired JWT"
	if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
		status = fiber.StatusBadRequest
		title = "Missing or malformed JWT"
	}
	return c.Status(status).JSON(fiber.Map{
		"type":     "about:blank",
		"title":    title,
		"status":   status,
		"detail":   err.Error(),
		"instance": c.OriginalURL(),
	}, "application/problem+json")
}
