// Package webapi assembles the HTTP API. Handlers live in sub-packages per
// resource:
//   - auth: registration and login
//   - fund: funds, members, settings and their history
//   - contribution: the contribution ledger
//   - request: eligibility, capital requests and voting
//   - retribution: repayments and their distribution
//   - plan: repayment schedule previews
//   - draft: wizard drafts
package webapi

import (
	"errors"
	"time"

	"github.com/coletivobank/coletivo/infra/metrics"
	"github.com/coletivobank/coletivo/pkg/app"
	authweb "github.com/coletivobank/coletivo/webapi/auth"
	"github.com/coletivobank/coletivo/webapi/common"
	contributionweb "github.com/coletivobank/coletivo/webapi/contribution"
	draftweb "github.com/coletivobank/coletivo/webapi/draft"
	fundweb "github.com/coletivobank/coletivo/webapi/fund"
	planweb "github.com/coletivobank/coletivo/webapi/plan"
	requestweb "github.com/coletivobank/coletivo/webapi/request"
	retributionweb "github.com/coletivobank/coletivo/webapi/retribution"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/utils"
)

// SetupApp Initialize Fiber with custom configuration
func SetupApp(a *app.App) *fiber.App {
	cfg := a.Config

	fiberCfg := fiber.Config{
		AppName: "ColetivoBank",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return common.ProblemDetailsJSON(c, "Internal Server Error", err)
		},
	}
	// c.IP() honours the proxy header only when the peer is a trusted proxy.
	if cfg.Server != nil && cfg.Server.ProxyHeader != "" {
		fiberCfg.ProxyHeader = cfg.Server.ProxyHeader
		fiberCfg.EnableTrustedProxyCheck = true
		fiberCfg.EnableIPValidation = true
		fiberCfg.TrustedProxies = cfg.Server.TrustedProxies
	}
	fiberApp := fiber.New(fiberCfg)

	fiberApp.Use(recover.New())
	if a.Deps.Metrics != nil {
		fiberApp.Use(observe(a.Deps.Metrics))
		fiberApp.Get("/metrics", adaptor.HTTPHandler(a.Deps.Metrics.Handler()))
	}

	// Keys are stored in the limiter's map, so they must not alias the
	// request buffer.
	fiberApp.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimit.MaxRequests,
		Expiration: cfg.RateLimit.Window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return utils.CopyString(c.IP())
		},
		LimitReached: func(c *fiber.Ctx) error {
			return common.ProblemDetailsJSON(
				c,
				"Too Many Requests",
				errors.New("rate limit exceeded"),
				fiber.StatusTooManyRequests,
			)
		},
	}))
	if cfg.Env != "test" {
		fiberApp.Use(logger.New())
	}

	// Health check endpoint
	fiberApp.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("ColetivoBank API is running!")
	})

	authweb.Routes(fiberApp, a.AuthService)
	fundweb.Routes(fiberApp, a.FundService, a.AuthService, cfg)
	contributionweb.Routes(fiberApp, a.ContributionService, a.FundService, a.AuthService, cfg)
	requestweb.Routes(fiberApp, a.RequestService, a.FundService, a.AuthService, cfg)
	retributionweb.Routes(fiberApp, a.RetributionService, a.FundService, a.AuthService, cfg)
	planweb.Routes(fiberApp, a.PreviewService, cfg)
	draftweb.Routes(fiberApp, a.DraftService, a.AuthService, cfg)
	return fiberApp
}

// observe records every request under its route pattern so ids do not
// explode the label space.
func observe(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			status = common.ErrorToStatusCode(err)
		}
		m.ObserveHTTP(c.Method(), c.Route().Path, status, time.Since(start))
		return err
	}
}
