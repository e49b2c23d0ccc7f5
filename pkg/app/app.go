package app

import (
	"errors"
	"log/slog"

	"github.com/coletivobank/coletivo/infra/metrics"
	"github.com/coletivobank/coletivo/pkg/cache"
	"github.com/coletivobank/coletivo/pkg/config"
	"github.com/coletivobank/coletivo/pkg/eventbus"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/coletivobank/coletivo/pkg/repository"
	"github.com/coletivobank/coletivo/pkg/service/auth"
	"github.com/coletivobank/coletivo/pkg/service/contribution"
	"github.com/coletivobank/coletivo/pkg/service/draft"
	"github.com/coletivobank/coletivo/pkg/service/fund"
	"github.com/coletivobank/coletivo/pkg/service/preview"
	"github.com/coletivobank/coletivo/pkg/service/request"
	"github.com/coletivobank/coletivo/pkg/service/retribution"
)

// Deps contains the infrastructure the services are built on.
type Deps struct {
	Uow      repository.UnitOfWork
	EventBus eventbus.Bus
	Drafts   cache.DraftStore
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	// Closers release connections in reverse order of opening.
	Closers []func() error
}

// Close runs every closer and joins their errors.
func (d *Deps) Close() error {
	var errs []error
	for i := len(d.Closers) - 1; i >= 0; i-- {
		if err := d.Closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type App struct {
	Deps                *Deps
	Config              *config.App
	AuthService         *auth.Service
	FundService         *fund.Service
	ContributionService *contribution.Service
	RequestService      *request.Service
	RetributionService  *retribution.Service
	DraftService        *draft.Service
	PreviewService      *preview.Service
}

func New(deps *Deps, cfg *config.App) *App {
	app := &App{
		Deps:   deps,
		Config: cfg,
	}
	app.setupEventBus()

	logger := deps.Logger
	app.AuthService = auth.NewWithJWT(deps.Uow, cfg.Auth.Jwt, logger)
	app.FundService = fund.New(
		deps.Uow,
		deps.EventBus,
		logger,
		fund.WithDefaultCurrency(money.Code(cfg.Currency)),
	)
	app.ContributionService = contribution.New(deps.Uow, deps.EventBus, logger)
	app.RequestService = request.New(deps.Uow, deps.EventBus, logger)
	app.RetributionService = retribution.New(deps.Uow, deps.EventBus, logger)
	app.PreviewService = preview.New(logger)
	app.DraftService = draft.New(
		deps.Drafts,
		cfg.Draft.TTL,
		app.FundService,
		app.ContributionService,
		app.RequestService,
		logger,
	)
	return app
}
