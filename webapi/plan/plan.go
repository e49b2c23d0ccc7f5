// Package plan serves repayment schedule previews.
package plan

import (
	"strings"

	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/config"
	"github.com/coletivobank/coletivo/pkg/middleware"
	"github.com/coletivobank/coletivo/pkg/money"
	previewsvc "github.com/coletivobank/coletivo/pkg/service/preview"
	"github.com/coletivobank/coletivo/webapi/common"
	"github.com/gofiber/fiber/v2"
)

// PreviewRequest is a total and the plan to spread it over. Currency
// defaults to the configured one.
type PreviewRequest struct {
	Amount   string          `json:"amount" validate:"required,numeric"`
	Currency string          `json:"currency" validate:"omitempty,len=3"`
	Plan     accounting.Plan `json:"plan"`
}

// Routes registers POST /payment-plans/preview.
func Routes(app *fiber.App, previewSvc *previewsvc.Service, cfg *config.App) {
	app.Post("/payment-plans/preview", middleware.JwtProtected(cfg.Auth.Jwt), Preview(previewSvc, money.Code(cfg.Currency)))
}

// Preview computes a schedule without storing anything.
func Preview(previewSvc *previewsvc.Service, fallback money.Code) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[PreviewRequest](c)
		if input == nil {
			return err // error response already written
		}
		code := fallback
		if input.Currency != "" {
			code = money.Code(strings.ToUpper(input.Currency))
		}
		total, err := money.Parse(input.Amount, code)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid amount", err)
		}
		p, err := previewSvc.Plan(total, input.Plan)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid payment plan", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Payment plan computed", p)
	}
}
