// Package draft serves the step-by-step wizards backed by server-side
// drafts.
package draft

import (
	"encoding/json"

	"github.com/coletivobank/coletivo/pkg/config"
	"github.com/coletivobank/coletivo/pkg/domain/contribution"
	domaindraft "github.com/coletivobank/coletivo/pkg/domain/draft"
	"github.com/coletivobank/coletivo/pkg/middleware"
	authsvc "github.com/coletivobank/coletivo/pkg/service/auth"
	draftsvc "github.com/coletivobank/coletivo/pkg/service/draft"
	"github.com/coletivobank/coletivo/webapi/common"
	"github.com/gofiber/fiber/v2"
)

// StartRequest opens a draft of one kind.
type StartRequest struct {
	Kind    domaindraft.Kind `json:"kind" validate:"required,oneof=fund contribution capital_request"`
	Payload json.RawMessage  `json:"payload"`
}

// UpdateRequest saves the wizard's progress.
type UpdateRequest struct {
	Payload json.RawMessage `json:"payload" validate:"required"`
	Step    int             `json:"step" validate:"min=0"`
}

// CommitResponse carries whatever the commit created.
type CommitResponse struct {
	Kind         domaindraft.Kind          `json:"kind"`
	Fund         *common.FundResponse      `json:"fund,omitempty"`
	Contribution *contribution.Contribution `json:"contribution,omitempty"`
	Request      *common.RequestResponse   `json:"request,omitempty"`
}

// Routes registers the draft endpoints.
//
//   - POST   /drafts            : start a draft
//   - GET    /drafts/:id        : resume it
//   - PATCH  /drafts/:id        : save progress
//   - DELETE /drafts/:id        : discard it
//   - POST   /drafts/:id/commit : turn it into a fund, contribution or request
func Routes(app *fiber.App, draftSvc *draftsvc.Service, authSvc *authsvc.Service, cfg *config.App) {
	protected := middleware.JwtProtected(cfg.Auth.Jwt)
	app.Post("/drafts", protected, Start(draftSvc, authSvc))
	app.Get("/drafts/:id", protected, Get(draftSvc, authSvc))
	app.Patch("/drafts/:id", protected, Update(draftSvc, authSvc))
	app.Delete("/drafts/:id", protected, Discard(draftSvc, authSvc))
	app.Post("/drafts/:id/commit", protected, Commit(draftSvc, authSvc))
}

func Start(draftSvc *draftsvc.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := common.CurrentUserID(c, authSvc)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		input, err := common.BindAndValidate[StartRequest](c)
		if input == nil {
			return err // error response already written
		}
		d, err := draftSvc.Start(c.Context(), userID, input.Kind, input.Payload)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to start draft", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Draft started", d)
	}
}

func Get(draftSvc *draftsvc.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := common.CurrentUserID(c, authSvc)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		id, err := common.ParamUUID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid draft ID", err)
		}
		d, err := draftSvc.Get(c.Context(), userID, id)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to fetch draft", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Draft fetched", d)
	}
}

func Update(draftSvc *draftsvc.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := common.CurrentUserID(c, authSvc)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		id, err := common.ParamUUID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid draft ID", err)
		}
		input, err := common.BindAndValidate[UpdateRequest](c)
		if input == nil {
			return err // error response already written
		}
		d, err := draftSvc.Update(c.Context(), userID, id, input.Payload, input.Step)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to save draft", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Draft saved", d)
	}
}

func Discard(draftSvc *draftsvc.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := common.CurrentUserID(c, authSvc)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		id, err := common.ParamUUID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid draft ID", err)
		}
		if err := draftSvc.Discard(c.Context(), userID, id); err != nil {
			return common.ProblemDetailsJSON(c, "Failed to discard draft", err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// Commit runs the operation the draft describes. A failed commit keeps the
// draft so the wizard can fix it.
func Commit(draftSvc *draftsvc.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := common.CurrentUserID(c, authSvc)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		id, err := common.ParamUUID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid draft ID", err)
		}
		res, err := draftSvc.Commit(c.Context(), userID, id)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to commit draft", err)
		}
		out := CommitResponse{Kind: res.Kind}
		switch {
		case res.Fund != nil:
			f := common.ToFundResponse(res.Fund)
			out.Fund = &f
		case res.Contribution != nil:
			out.Contribution = res.Contribution
		case res.Request != nil:
			r := common.ToRequestResponse(res.Request)
			out.Request = &r
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Draft committed", out)
	}
}
