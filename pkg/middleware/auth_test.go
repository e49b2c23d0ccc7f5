package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coletivobank/coletivo/pkg/config"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func protectedApp(secret string) *fiber.App {
	app := fiber.New()
	app.Use(JwtProtected(&config.Jwt{Secret: secret}))
	app.Get("/", func(c *fiber.Ctx) error {
		token := c.Locals("user").(*jwt.Token)
		claims := token.Claims.(jwt.MapClaims)
		return c.SendString(claims["user_id"].(string))
	})
	return app
}

func sign(t *testing.T, secret string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "0b8f5a52-3f0e-4a4e-9c55-0c1f7f3f2d11",
		"exp":     exp.Unix(),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestJwtProtected(t *testing.T) {
	app := protectedApp("secret")

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", fiber.StatusBadRequest},
		{"wrong key", "Bearer " + sign(t, "other", time.Now().Add(time.Hour)), fiber.StatusUnauthorized},
		{"expired", "Bearer " + sign(t, "secret", time.Now().Add(-time.Minute)), fiber.StatusUnauthorized},
		{"valid", "Bearer " + sign(t, "secret", time.Now().Add(time.Hour)), fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close() //nolint:errcheck
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestJwtError_Invalid(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		return jwtError(c, jwtware.ErrJWTMissingOrMalformed)
	})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
}
