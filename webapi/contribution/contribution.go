package contribution

import (
	"github.com/coletivobank/coletivo/pkg/config"
	"github.com/coletivobank/coletivo/pkg/domain/contribution"
	"github.com/coletivobank/coletivo/pkg/middleware"
	authsvc "github.com/coletivobank/coletivo/pkg/service/auth"
	contributionsvc "github.com/coletivobank/coletivo/pkg/service/contribution"
	fundsvc "github.com/coletivobank/coletivo/pkg/service/fund"
	"github.com/coletivobank/coletivo/webapi/common"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Routes registers the contribution ledger endpoints.
//
//   - POST /funds/:id/contributions               : contribute to the fund
//   - GET  /funds/:id/contributions?account_id=   : list, newest first
func Routes(
	app *fiber.App,
	contributionSvc *contributionsvc.Service,
	fundSvc *fundsvc.Service,
	authSvc *authsvc.Service,
	cfg *config.App,
) {
	protected := middleware.JwtProtected(cfg.Auth.Jwt)
	app.Post("/funds/:id/contributions", protected, Contribute(contributionSvc, fundSvc, authSvc))
	app.Get("/funds/:id/contributions", protected, List(contributionSvc, authSvc))
}

// Contribute records a contribution by the caller.
func Contribute(
	contributionSvc *contributionsvc.Service,
	fundSvc *fundsvc.Service,
	authSvc *authsvc.Service,
) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := common.CurrentUserID(c, authSvc)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		fundID, err := common.ParamUUID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid fund ID", err)
		}
		input, err := common.BindAndValidate[ContributeRequest](c)
		if input == nil {
			return err // error response already written
		}
		amount, err := common.ParseFundAmount(c, fundSvc, userID, fundID, input.Amount)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid amount", err)
		}
		ct, err := contributionSvc.Contribute(c.Context(), userID, fundID, amount, input.Note)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to contribute", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Contribution recorded", ct)
	}
}

func List(contributionSvc *contributionsvc.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := common.CurrentUserID(c, authSvc)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		fundID, err := common.ParamUUID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid fund ID", err)
		}
		var accountID *uuid.UUID
		if raw := c.Query("account_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return common.ProblemDetailsJSON(c, "Invalid account ID", err, "account_id must be a valid UUID", fiber.StatusBadRequest)
			}
			accountID = &id
		}
		list, err := contributionSvc.List(c.Context(), userID, fundID, accountID)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list contributions", err)
		}
		if list == nil {
			list = []*contribution.Contribution{}
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Contributions fetched", list)
	}
}
