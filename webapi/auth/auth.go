package auth

import (
	authsvc "github.com/coletivobank/coletivo/pkg/service/auth"
	"github.com/coletivobank/coletivo/webapi/common"
	"github.com/gofiber/fiber/v2"
)

// Routes registers the public authentication endpoints.
//
//   - POST /auth/register : create a user
//   - POST /auth/login    : exchange credentials for a JWT
func Routes(app *fiber.App, authSvc *authsvc.Service) {
	app.Post("/auth/register", Register(authSvc))
	app.Post("/auth/login", Login(authSvc))
}

// Register creates a user with a unique username and email.
func Register(authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[RegisterInput](c)
		if input == nil {
			return err // error response already written
		}
		u, err := authSvc.Register(c.Context(), input.Username, input.Email, input.Password, input.Names)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to register", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "User registered", u)
	}
}

// Login handles user authentication and returns a JWT token.
func Login(authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[LoginInput](c)
		if input == nil {
			return err // error response already written
		}
		u, err := authSvc.Login(c.Context(), input.Identity, input.Password)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid identity or password", err)
		}
		token, err := authSvc.GenerateToken(c.Context(), u)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Internal Server Error", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Success login", fiber.Map{"token": token})
	}
}
