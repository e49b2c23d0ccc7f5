// Package fund provides fund management: creation, membership and the
// versioned settings admins control.
package fund

import (
	"context"
	"log/slog"
	"time"

	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/domain/events"
	"github.com/coletivobank/coletivo/pkg/domain/fund"
	"github.com/coletivobank/coletivo/pkg/domain/user"
	"github.com/coletivobank/coletivo/pkg/eventbus"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/coletivobank/coletivo/pkg/repository"
	"github.com/coletivobank/coletivo/pkg/service/access"
	"github.com/coletivobank/coletivo/pkg/utils"
	"github.com/google/uuid"
)

// Service provides business logic for funds and their members.
type Service struct {
	uow      repository.UnitOfWork
	bus      eventbus.Bus
	logger   *slog.Logger
	currency money.Code
}

// Option configures a Service.
type Option func(*Service)

// WithDefaultCurrency sets the currency of funds created without one.
func WithDefaultCurrency(code money.Code) Option {
	return func(s *Service) { s.currency = code }
}

// New creates a fund Service.
func New(
	uow repository.UnitOfWork,
	bus eventbus.Bus,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{uow: uow, bus: bus, logger: logger, currency: money.DefaultCode}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput describes a new fund. Nil settings take the defaults.
type CreateInput struct {
	Name             string
	Objective        string
	Currency         money.Code
	ContributionRate *accounting.Rate
	Distribution     *accounting.DistributionSetting
	Governance       *accounting.GovernanceSetting
}

// Standing is a member together with what they may request right now.
type Standing struct {
	Member      *fund.Member
	Eligibility accounting.Eligibility
}

// Create opens a fund. The creator becomes its first admin.
func (s *Service) Create(
	ctx context.Context,
	creator uuid.UUID,
	in CreateInput,
) (f *fund.Fund, err error) {
	log := s.logger.With("context", "CreateFund", "account_id", creator)
	log.Debug("CreateFund called", "name", in.Name)

	settings := fund.DefaultSettings()
	if in.ContributionRate != nil {
		settings.ContributionRate = *in.ContributionRate
	}
	if in.Distribution != nil {
		settings.Distribution = *in.Distribution
		if settings.Distribution.ZeroStake == "" {
			settings.Distribution.ZeroStake = accounting.ZeroStakeFallbackEqual
		}
	}
	if in.Governance != nil {
		settings.Governance = *in.Governance
	}
	code := in.Currency
	if code == "" {
		code = s.currency
	}
	f, err = fund.New().
		WithName(in.Name).
		WithObjective(in.Objective).
		WithCurrency(code).
		WithSettings(settings).
		WithCreatedBy(creator).
		Build()
	if err != nil {
		log.Error("CreateFund failed", "error", err)
		return nil, err
	}

	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		users, err := uow.UserRepository()
		if err != nil {
			return err
		}
		if _, err := users.Get(ctx, creator); err != nil {
			return err
		}
		funds, err := uow.FundRepository()
		if err != nil {
			return err
		}
		members, err := uow.MemberRepository()
		if err != nil {
			return err
		}
		if err := funds.Create(ctx, f); err != nil {
			return err
		}
		return members.Create(ctx, fund.NewMember(f.ID, creator, true, f.Currency(), f.CreatedAt))
	})
	if err != nil {
		log.Error("CreateFund failed", "error", err)
		return nil, err
	}
	log.Info("CreateFund successful", "fund_id", f.ID)
	return f, nil
}

// Get returns a fund the caller belongs to.
func (s *Service) Get(ctx context.Context, actor, fundID uuid.UUID) (f *fund.Fund, err error) {
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		members, err := uow.MemberRepository()
		if err != nil {
			return err
		}
		if _, err := access.Member(ctx, members, fundID, actor, false); err != nil {
			return err
		}
		funds, err := uow.FundRepository()
		if err != nil {
			return err
		}
		f, err = funds.Get(ctx, fundID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ListMine returns the caller's funds, newest first.
func (s *Service) ListMine(ctx context.Context, actor uuid.UUID) (list []*fund.Fund, err error) {
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		funds, err := uow.FundRepository()
		if err != nil {
			return err
		}
		list, err = funds.ListByMember(ctx, actor)
		return err
	})
	return list, err
}

// AddMember lets an admin add a registered user to the fund. identity is
// an account id, an email or a username.
func (s *Service) AddMember(
	ctx context.Context,
	actor, fundID uuid.UUID,
	identity string,
	isAdmin bool,
) (m *fund.Member, err error) {
	log := s.logger.With("context", "AddMember", "fund_id", fundID, "account_id", actor)
	log.Debug("AddMember called", "identity", identity)
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		members, err := uow.MemberRepository()
		if err != nil {
			return err
		}
		if _, err := access.Admin(ctx, members, fundID, actor); err != nil {
			return err
		}
		funds, err := uow.FundRepository()
		if err != nil {
			return err
		}
		f, err := funds.Get(ctx, fundID)
		if err != nil {
			return err
		}
		users, err := uow.UserRepository()
		if err != nil {
			return err
		}
		u, err := lookupUser(ctx, users, identity)
		if err != nil {
			return err
		}
		m = fund.NewMember(fundID, u.ID, isAdmin, f.Currency(), time.Now().UTC())
		return members.Create(ctx, m)
	})
	if err != nil {
		log.Error("AddMember failed", "error", err)
		return nil, err
	}
	log.Info("AddMember successful", "member_id", m.AccountID)
	return m, nil
}

func lookupUser(ctx context.Context, users repository.UserRepository, identity string) (*user.User, error) {
	if id, err := uuid.Parse(identity); err == nil {
		return users.Get(ctx, id)
	}
	if utils.IsEmail(identity) {
		return users.GetByEmail(ctx, identity)
	}
	if identity == "" {
		return nil, domain.Validationf("member identity is required")
	}
	return users.GetByUsername(ctx, identity)
}

// ListMembers returns every member with current eligibility, ordered by
// account id.
func (s *Service) ListMembers(ctx context.Context, actor, fundID uuid.UUID) (out []Standing, err error) {
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		members, err := uow.MemberRepository()
		if err != nil {
			return err
		}
		if _, err := access.Member(ctx, members, fundID, actor, false); err != nil {
			return err
		}
		funds, err := uow.FundRepository()
		if err != nil {
			return err
		}
		f, err := funds.Get(ctx, fundID)
		if err != nil {
			return err
		}
		list, err := members.ListByFund(ctx, fundID)
		if err != nil {
			return err
		}
		out = make([]Standing, 0, len(list))
		for _, m := range list {
			e, err := f.EligibilityOf(m)
			if err != nil {
				return err
			}
			out = append(out, Standing{Member: m, Eligibility: e})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetContributionRate changes the fund's contribution rate.
func (s *Service) SetContributionRate(
	ctx context.Context,
	actor, fundID uuid.UUID,
	rate accounting.Rate,
) (*fund.Fund, error) {
	return s.changeSetting(ctx, actor, fundID, fund.FieldContributionRate,
		func(f *fund.Fund, now time.Time) (fund.SettingChange, error) {
			return f.SetContributionRate(rate, actor, now), nil
		})
}

// SetDistribution changes how retributions are split.
func (s *Service) SetDistribution(
	ctx context.Context,
	actor, fundID uuid.UUID,
	setting accounting.DistributionSetting,
) (*fund.Fund, error) {
	return s.changeSetting(ctx, actor, fundID, fund.FieldDistribution,
		func(f *fund.Fund, now time.Time) (fund.SettingChange, error) {
			return f.SetDistribution(setting, actor, now)
		})
}

// SetGovernance changes the approval rule for new votes.
func (s *Service) SetGovernance(
	ctx context.Context,
	actor, fundID uuid.UUID,
	setting accounting.GovernanceSetting,
) (*fund.Fund, error) {
	return s.changeSetting(ctx, actor, fundID, fund.FieldGovernance,
		func(f *fund.Fund, now time.Time) (fund.SettingChange, error) {
			return f.SetGovernance(setting, actor, now)
		})
}

// changeSetting applies one admin change and appends its history entry in
// the same transaction.
func (s *Service) changeSetting(
	ctx context.Context,
	actor, fundID uuid.UUID,
	field fund.SettingField,
	apply func(*fund.Fund, time.Time) (fund.SettingChange, error),
) (f *fund.Fund, err error) {
	log := s.logger.With("context", "ChangeSetting", "fund_id", fundID, "account_id", actor, "field", field)
	log.Debug("ChangeSetting called")
	var change fund.SettingChange
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		funds, err := uow.FundRepository()
		if err != nil {
			return err
		}
		f, err = funds.GetForUpdate(ctx, fundID)
		if err != nil {
			return err
		}
		members, err := uow.MemberRepository()
		if err != nil {
			return err
		}
		if _, err := access.Admin(ctx, members, fundID, actor); err != nil {
			return err
		}
		change, err = apply(f, time.Now().UTC())
		if err != nil {
			return err
		}
		if err := funds.Update(ctx, f); err != nil {
			return err
		}
		changes, err := uow.SettingChangeRepository()
		if err != nil {
			return err
		}
		return changes.Append(ctx, change)
	})
	if err != nil {
		log.Error("ChangeSetting failed", "error", err)
		return nil, err
	}
	eventbus.EmitAll(ctx, s.bus, log, events.NewFundSettingChanged(
		fundID, actor, string(change.Field), change.OldValue, change.NewValue,
	))
	log.Info("ChangeSetting successful", "old", change.OldValue, "new", change.NewValue)
	return f, nil
}

// History returns the settings history oldest first. An empty field lists
// every setting.
func (s *Service) History(
	ctx context.Context,
	actor, fundID uuid.UUID,
	field fund.SettingField,
) (list []fund.SettingChange, err error) {
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		members, err := uow.MemberRepository()
		if err != nil {
			return err
		}
		if _, err := access.Member(ctx, members, fundID, actor, false); err != nil {
			return err
		}
		changes, err := uow.SettingChangeRepository()
		if err != nil {
			return err
		}
		list, err = changes.ListByFund(ctx, fundID, field)
		return err
	})
	return list, err
}
