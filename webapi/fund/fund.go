package fund

import (
	"strings"

	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/config"
	"github.com/coletivobank/coletivo/pkg/domain"
	domainfund "github.com/coletivobank/coletivo/pkg/domain/fund"
	"github.com/coletivobank/coletivo/pkg/middleware"
	"github.com/coletivobank/coletivo/pkg/money"
	authsvc "github.com/coletivobank/coletivo/pkg/service/auth"
	fundsvc "github.com/coletivobank/coletivo/pkg/service/fund"
	"github.com/coletivobank/coletivo/webapi/common"
	"github.com/gofiber/fiber/v2"
)

// Routes registers the fund, membership and settings endpoints. All of
// them require a JWT.
//
//   - POST /funds                              : open a fund, the caller becomes admin
//   - GET  /funds                              : funds the caller belongs to
//   - GET  /funds/:id                          : one fund
//   - POST /funds/:id/members                  : add a member (admin)
//   - GET  /funds/:id/members                  : members with their eligibility
//   - POST /funds/:id/contribution-rates       : change the rate (admin)
//   - POST /funds/:id/distribution-settings    : change the distribution (admin)
//   - POST /funds/:id/governance-settings      : change the approval rule (admin)
//   - GET  /funds/:id/history?field=           : settings history
func Routes(app *fiber.App, fundSvc *fundsvc.Service, authSvc *authsvc.Service, cfg *config.App) {
	protected := middleware.JwtProtected(cfg.Auth.Jwt)
	app.Post("/funds", protected, CreateFund(fundSvc, authSvc))
	app.Get("/funds", protected, ListFunds(fundSvc, authSvc))
	app.Get("/funds/:id", protected, GetFund(fundSvc, authSvc))
	app.Post("/funds/:id/members", protected, AddMember(fundSvc, authSvc))
	app.Get("/funds/:id/members", protected, ListMembers(fundSvc, authSvc))
	app.Post("/funds/:id/contribution-rates", protected, SetContributionRate(fundSvc, authSvc))
	app.Post("/funds/:id/distribution-settings", protected, SetDistribution(fundSvc, authSvc))
	app.Post("/funds/:id/governance-settings", protected, SetGovernance(fundSvc, authSvc))
	app.Get("/funds/:id/history", protected, History(fundSvc, authSvc))
}

func parseRate(percent string) (*accounting.Rate, error) {
	if percent == "" {
		return nil, nil
	}
	rate, err := accounting.ParseRate(percent)
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

// CreateFund opens a fund owned by the caller.
func CreateFund(fundSvc *fundsvc.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := common.CurrentUserID(c, authSvc)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		input, err := common.BindAndValidate[CreateFundRequest](c)
		if input == nil {
			return err // error response already written
		}
		rate, err := parseRate(input.ContributionRatePercent)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid contribution rate", err)
		}
		f, err := fundSvc.Create(c.Context(), userID, fundsvc.CreateInput{
			Name:             input.Name,
			Objective:        input.Objective,
			Currency:         money.Code(strings.ToUpper(input.Currency)),
			ContributionRate: rate,
			Distribution:     input.Distribution,
			Governance:       input.Governance,
		})
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to create fund", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Fund created", common.ToFundResponse(f))
	}
}

// ListFunds returns every fund the caller is a member of.
func ListFunds(fundSvc *fundsvc.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := common.CurrentUserID(c, authSvc)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		funds, err := fundSvc.ListMine(c.Context(), userID)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list funds", err)
		}
		out := make([]common.FundResponse, 0, len(funds))
		for _, f := range funds {
			out = append(out, common.ToFundResponse(f))
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Funds fetched", out)
	}
}

func GetFund(fundSvc *fundsvc.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := common.CurrentUserID(c, authSvc)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		fundID, err := common.ParamUUID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid fund ID", err)
		}
		f, err := fundSvc.Get(c.Context(), userID, fundID)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to fetch fund", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Fund fetched", common.ToFundResponse(f))
	}
}

func AddMember(fundSvc *fundsvc.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := common.CurrentUserID(c, authSvc)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		fundID, err := common.ParamUUID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid fund ID", err)
		}
		input, err := common.BindAndValidate[AddMemberRequest](c)
		if input == nil {
			return err // error response already written
		}
		m, err := fundSvc.AddMember(c.Context(), userID, fundID, input.Identity, input.IsAdmin)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to add member", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Member added", common.ToMemberResponse(m, nil))
	}
}

// ListMembers returns the members with what each may request right now.
func ListMembers(fundSvc *fundsvc.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := common.CurrentUserID(c, authSvc)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		fundID, err := common.ParamUUID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid fund ID", err)
		}
		standings, err := fundSvc.ListMembers(c.Context(), userID, fundID)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list members", err)
		}
		out := make([]common.MemberResponse, 0, len(standings))
		for _, s := range standings {
			out = append(out, common.ToMemberResponse(s.Member, &s.Eligibility))
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Members fetched", out)
	}
}

func SetContributionRate(fundSvc *fundsvc.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := common.CurrentUserID(c, authSvc)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		fundID, err := common.ParamUUID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid fund ID", err)
		}
		input, err := common.BindAndValidate[ContributionRateRequest](c)
		if input == nil {
			return err // error response already written
		}
		rate, err := parseRate(input.Percent)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid contribution rate", err)
		}
		f, err := fundSvc.SetContributionRate(c.Context(), userID, fundID, *rate)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to change contribution rate", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Contribution rate changed", common.ToFundResponse(f))
	}
}

func SetDistribution(fundSvc *fundsvc.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := common.CurrentUserID(c, authSvc)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		fundID, err := common.ParamUUID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid fund ID", err)
		}
		input, err := common.BindAndValidate[DistributionRequest](c)
		if input == nil {
			return err // error response already written
		}
		setting := accounting.DistributionSetting{Type: input.Type, ZeroStake: input.ZeroStake}
		if setting.ZeroStake == "" {
			setting.ZeroStake = accounting.ZeroStakeFallbackEqual
		}
		f, err := fundSvc.SetDistribution(c.Context(), userID, fundID, setting)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to change distribution", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Distribution changed", common.ToFundResponse(f))
	}
}

func SetGovernance(fundSvc *fundsvc.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := common.CurrentUserID(c, authSvc)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		fundID, err := common.ParamUUID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid fund ID", err)
		}
		input, err := common.BindAndValidate[GovernanceRequest](c)
		if input == nil {
			return err // error response already written
		}
		f, err := fundSvc.SetGovernance(c.Context(), userID, fundID, accounting.GovernanceSetting{
			QuorumPercentage: input.QuorumPercentage,
			Unanimous:        input.Unanimous,
			VotersScope:      input.VotersScope,
		})
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to change governance", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Governance changed", common.ToFundResponse(f))
	}
}

// History lists settings changes oldest first, optionally for one field.
func History(fundSvc *fundsvc.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := common.CurrentUserID(c, authSvc)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		fundID, err := common.ParamUUID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid fund ID", err)
		}
		field := domainfund.SettingField(c.Query("field"))
		switch field {
		case "", domainfund.FieldContributionRate, domainfund.FieldDistribution, domainfund.FieldGovernance:
		default:
			return common.ProblemDetailsJSON(c, "Invalid field", domain.Validationf("unknown setting %q", field))
		}
		changes, err := fundSvc.History(c.Context(), userID, fundID, field)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to fetch history", err)
		}
		if changes == nil {
			changes = []domainfund.SettingChange{}
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "History fetched", changes)
	}
}
