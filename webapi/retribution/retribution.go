package retribution

import (
	"github.com/coletivobank/coletivo/pkg/config"
	domainretribution "github.com/coletivobank/coletivo/pkg/domain/retribution"
	"github.com/coletivobank/coletivo/pkg/middleware"
	authsvc "github.com/coletivobank/coletivo/pkg/service/auth"
	fundsvc "github.com/coletivobank/coletivo/pkg/service/fund"
	retributionsvc "github.com/coletivobank/coletivo/pkg/service/retribution"
	"github.com/coletivobank/coletivo/webapi/common"
	"github.com/gofiber/fiber/v2"
)

// Routes registers the repayment endpoints.
//
//   - POST /funds/:id/capital-requests/:rid/retributions : repay and distribute
//   - GET  /funds/:id/capital-requests/:rid/retributions : repayments so far
func Routes(
	app *fiber.App,
	retributionSvc *retributionsvc.Service,
	fundSvc *fundsvc.Service,
	authSvc *authsvc.Service,
	cfg *config.App,
) {
	protected := middleware.JwtProtected(cfg.Auth.Jwt)
	app.Post("/funds/:id/capital-requests/:rid/retributions", protected, Repay(retributionSvc, fundSvc, authSvc))
	app.Get("/funds/:id/capital-requests/:rid/retributions", protected, List(retributionSvc, authSvc))
}

// Repay applies a repayment and spreads it as capacity over the other
// members.
func Repay(
	retributionSvc *retributionsvc.Service,
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
		requestID, err := common.ParamUUID(c, "rid")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid request ID", err)
		}
		input, err := common.BindAndValidate[RepayRequest](c)
		if input == nil {
			return err // error response already written
		}
		amount, err := common.ParseFundAmount(c, fundSvc, userID, fundID, input.Amount)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid amount", err)
		}
		res, err := retributionSvc.Repay(c.Context(), userID, fundID, requestID, amount)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to repay", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Retribution distributed", RepayResponse{
			Retribution: res.Retribution,
			Request:     common.ToRequestResponse(res.Request),
		})
	}
}

func List(retributionSvc *retributionsvc.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := common.CurrentUserID(c, authSvc)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		fundID, err := common.ParamUUID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid fund ID", err)
		}
		requestID, err := common.ParamUUID(c, "rid")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid request ID", err)
		}
		list, err := retributionSvc.List(c.Context(), userID, fundID, requestID)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list retributions", err)
		}
		if list == nil {
			list = []*domainretribution.Retribution{}
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Retributions fetched", list)
	}
}
