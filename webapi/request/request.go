package request

import (
	"github.com/coletivobank/coletivo/pkg/config"
	"github.com/coletivobank/coletivo/pkg/domain"
	domainrequest "github.com/coletivobank/coletivo/pkg/domain/request"
	"github.com/coletivobank/coletivo/pkg/middleware"
	authsvc "github.com/coletivobank/coletivo/pkg/service/auth"
	fundsvc "github.com/coletivobank/coletivo/pkg/service/fund"
	requestsvc "github.com/coletivobank/coletivo/pkg/service/request"
	"github.com/coletivobank/coletivo/webapi/common"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// IdempotencyKeyHeader deduplicates retried submissions per fund and caller.
const IdempotencyKeyHeader = "Idempotency-Key"

// Routes registers the capital request endpoints.
//
//   - GET  /funds/:id/eligibility                      : what the caller may request
//   - POST /funds/:id/capital-requests                 : submit (Idempotency-Key header)
//   - GET  /funds/:id/capital-requests?status=         : list, newest first
//   - GET  /funds/:id/capital-requests/:rid            : one request with its votes
//   - POST /funds/:id/capital-requests/:rid/votes      : vote
//   - POST /funds/:id/capital-requests/:rid/cancel     : withdraw a pending request
func Routes(
	app *fiber.App,
	requestSvc *requestsvc.Service,
	fundSvc *fundsvc.Service,
	authSvc *authsvc.Service,
	cfg *config.App,
) {
	protected := middleware.JwtProtected(cfg.Auth.Jwt)
	app.Get("/funds/:id/eligibility", protected, Eligibility(requestSvc, authSvc))
	app.Post("/funds/:id/capital-requests", protected, Submit(requestSvc, fundSvc, authSvc))
	app.Get("/funds/:id/capital-requests", protected, List(requestSvc, authSvc))
	app.Get("/funds/:id/capital-requests/:rid", protected, Get(requestSvc, authSvc))
	app.Post("/funds/:id/capital-requests/:rid/votes", protected, Vote(requestSvc, authSvc))
	app.Post("/funds/:id/capital-requests/:rid/cancel", protected, Cancel(requestSvc, authSvc))
}

func Eligibility(requestSvc *requestsvc.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := common.CurrentUserID(c, authSvc)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		fundID, err := common.ParamUUID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid fund ID", err)
		}
		e, err := requestSvc.Eligibility(c.Context(), userID, fundID)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to compute eligibility", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Eligibility computed", common.ToEligibilityResponse(e))
	}
}

// Submit records a capital request and reserves its amount. A replay with
// the same Idempotency-Key answers 200 with the original request.
func Submit(
	requestSvc *requestsvc.Service,
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
		input, err := common.BindAndValidate[SubmitRequest](c)
		if input == nil {
			return err // error response already written
		}
		amount, err := common.ParseFundAmount(c, fundSvc, userID, fundID, input.Amount)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid amount", err)
		}
		// Header values alias fasthttp's request buffer; the key outlives
		// the request once it is stored.
		key := utils.CopyString(c.Get(IdempotencyKeyHeader))
		if len(key) > 255 {
			return common.ProblemDetailsJSON(c, "Invalid idempotency key", domain.Validationf("%s is too long", IdempotencyKeyHeader))
		}
		cr, created, err := requestSvc.Submit(c.Context(), userID, fundID, requestsvc.SubmitInput{
			Amount:         amount,
			Reason:         input.Reason,
			Plan:           input.Plan,
			IdempotencyKey: key,
		})
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to submit capital request", err)
		}
		if !created {
			return common.SuccessResponseJSON(c, fiber.StatusOK, "Capital request already submitted", common.ToRequestResponse(cr))
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Capital request submitted", common.ToRequestResponse(cr))
	}
}

func List(requestSvc *requestsvc.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := common.CurrentUserID(c, authSvc)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		fundID, err := common.ParamUUID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid fund ID", err)
		}
		status := domainrequest.Status(c.Query("status"))
		list, err := requestSvc.List(c.Context(), userID, fundID, status)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list capital requests", err)
		}
		out := make([]common.RequestResponse, 0, len(list))
		for _, cr := range list {
			out = append(out, common.ToRequestResponse(cr))
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Capital requests fetched", out)
	}
}

func Get(requestSvc *requestsvc.Service, authSvc *authsvc.Service) fiber.Handler {
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
		d, err := requestSvc.Get(c.Context(), userID, fundID, requestID)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to fetch capital request", err)
		}
		out := common.ToRequestResponse(d.Request)
		out.Votes = d.Votes
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Capital request fetched", out)
	}
}

// Vote casts the caller's vote and reports the tally. The request is
// decided as soon as the outcome cannot change.
func Vote(requestSvc *requestsvc.Service, authSvc *authsvc.Service) fiber.Handler {
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
		input, err := common.BindAndValidate[VoteRequest](c)
		if input == nil {
			return err // error response already written
		}
		res, err := requestSvc.Vote(c.Context(), userID, fundID, requestID, *input.Approve, input.Reason)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to vote", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Vote recorded", VoteResponse{
			Request:    common.ToRequestResponse(res.Request),
			Outcome:    res.Outcome,
			Approvals:  res.Approvals,
			Rejections: res.Rejections,
			Electorate: res.Electorate,
			Threshold:  res.Threshold,
		})
	}
}

func Cancel(requestSvc *requestsvc.Service, authSvc *authsvc.Service) fiber.Handler {
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
		cr, err := requestSvc.Cancel(c.Context(), userID, fundID, requestID)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to cancel capital request", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Capital request cancelled", common.ToRequestResponse(cr))
	}
}
