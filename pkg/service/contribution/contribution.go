// Package contribution records members' payments into their funds.
package contribution

import (
	"context"
	"log/slog"
	"time"

	"github.com/coletivobank/coletivo/pkg/domain/contribution"
	"github.com/coletivobank/coletivo/pkg/domain/events"
	"github.com/coletivobank/coletivo/pkg/eventbus"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/coletivobank/coletivo/pkg/repository"
	"github.com/coletivobank/coletivo/pkg/service/access"
	"github.com/google/uuid"
)

type Service struct {
	uow    repository.UnitOfWork
	bus    eventbus.Bus
	logger *slog.Logger
}

func New(uow repository.UnitOfWork, bus eventbus.Bus, logger *slog.Logger) *Service {
	return &Service{uow: uow, bus: bus, logger: logger}
}

// Contribute credits amount to the fund and the caller's lifetime total.
// Fund and member rows stay locked until the ledger entry is written, so
// concurrent contributions and requests always see each other.
func (s *Service) Contribute(
	ctx context.Context,
	actor, fundID uuid.UUID,
	amount money.Money,
	note string,
) (c *contribution.Contribution, err error) {
	log := s.logger.With("context", "Contribute", "fund_id", fundID, "account_id", actor)
	log.Debug("Contribute called", "amount", amount)
	var balance money.Money
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		funds, err := uow.FundRepository()
		if err != nil {
			return err
		}
		members, err := uow.MemberRepository()
		if err != nil {
			return err
		}
		contributions, err := uow.ContributionRepository()
		if err != nil {
			return err
		}

		f, err := funds.GetForUpdate(ctx, fundID)
		if err != nil {
			return err
		}
		m, err := access.Member(ctx, members, fundID, actor, true)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		c, err = contribution.New(fundID, actor, amount, note, now)
		if err != nil {
			return err
		}
		if err := f.Credit(amount); err != nil {
			return err
		}
		if err := m.Contribute(amount); err != nil {
			return err
		}
		f.UpdatedAt = now
		if err := contributions.Create(ctx, c); err != nil {
			return err
		}
		if err := members.Update(ctx, m); err != nil {
			return err
		}
		balance = f.Balance
		return funds.Update(ctx, f)
	})
	if err != nil {
		log.Error("Contribute failed", "error", err)
		return nil, err
	}
	eventbus.EmitAll(ctx, s.bus, log, events.NewContributionRecorded(fundID, actor, c.ID, c.Amount, balance))
	log.Info("Contribute successful", "contribution_id", c.ID, "fund_balance", balance)
	return c, nil
}

// List returns the fund's contributions newest first, optionally only
// those of accountID.
func (s *Service) List(
	ctx context.Context,
	actor, fundID uuid.UUID,
	accountID *uuid.UUID,
) (list []*contribution.Contribution, err error) {
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		members, err := uow.MemberRepository()
		if err != nil {
			return err
		}
		if _, err := access.Member(ctx, members, fundID, actor, false); err != nil {
			return err
		}
		contributions, err := uow.ContributionRepository()
		if err != nil {
			return err
		}
		list, err = contributions.ListByFund(ctx, fundID, accountID)
		return err
	})
	return list, err
}
