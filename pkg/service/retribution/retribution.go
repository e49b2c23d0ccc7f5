// Package retribution applies repayments on approved capital requests and
// shares them out as capacity to the other members.
package retribution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/domain/events"
	"github.com/coletivobank/coletivo/pkg/domain/fund"
	"github.com/coletivobank/coletivo/pkg/domain/request"
	"github.com/coletivobank/coletivo/pkg/domain/retribution"
	"github.com/coletivobank/coletivo/pkg/eventbus"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/coletivobank/coletivo/pkg/repository"
	"github.com/coletivobank/coletivo/pkg/service/access"
	"github.com/google/uuid"
)

// Service provides business logic for retributions: recording repayments
// and sharing them among the fund's members.
type Service struct {
	uow    repository.UnitOfWork
	bus    eventbus.Bus
	logger *slog.Logger
}

// New creates a retribution Service.
func New(uow repository.UnitOfWork, bus eventbus.Bus, logger *slog.Logger) *Service {
	return &Service{uow: uow, bus: bus, logger: logger}
}

// Result is a recorded retribution and the request it paid into.
type Result struct {
	Retribution *retribution.Retribution
	Request     *request.CapitalRequest
}

// Beneficiaries are the members a payer's retribution is shared with: all
// the others, or the payer alone in a one-member fund.
func Beneficiaries(members []*fund.Member, payer uuid.UUID) []*fund.Member {
	out := make([]*fund.Member, 0, len(members))
	for _, m := range members {
		if m.AccountID != payer {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return members
	}
	return out
}

// Repay pays amount into an approved request of the caller. The fund, every
// member and the request stay locked while the balance is credited and the
// shares are granted, so a distribution is never seen half applied.
func (s *Service) Repay(
	ctx context.Context,
	actor, fundID, requestID uuid.UUID,
	amount money.Money,
) (res *Result, err error) {
	log := s.logger.With("context", "Repay", "fund_id", fundID, "account_id", actor, "request_id", requestID)
	log.Debug("Repay called", "amount", amount)
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		funds, err := uow.FundRepository()
		if err != nil {
			return err
		}
		members, err := uow.MemberRepository()
		if err != nil {
			return err
		}
		requests, err := uow.RequestRepository()
		if err != nil {
			return err
		}
		retributions, err := uow.RetributionRepository()
		if err != nil {
			return err
		}

		f, err := funds.GetForUpdate(ctx, fundID)
		if err != nil {
			return err
		}
		list, err := members.ListByFundForUpdate(ctx, fundID)
		if err != nil {
			return err
		}
		payer, err := access.Find(list, actor)
		if err != nil {
			return err
		}
		cr, err := requests.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if cr.FundID != fundID {
			return fmt.Errorf("%w: capital request %s", domain.ErrNotFound, requestID)
		}
		if cr.AccountID != actor {
			return fmt.Errorf("%w: only the requester repays a request", domain.ErrForbidden)
		}

		now := time.Now().UTC()
		if err := cr.Repay(amount, now); err != nil {
			return err
		}
		if err := f.Credit(amount); err != nil {
			return err
		}
		if err := payer.Repay(amount); err != nil {
			return err
		}

		beneficiaries := Beneficiaries(list, actor)
		stakes := make([]accounting.Stake, len(beneficiaries))
		for i, m := range beneficiaries {
			stakes[i] = m.Stake()
		}
		setting := f.Settings.Distribution
		shares, err := accounting.Distribute(amount, setting, stakes)
		if err != nil {
			return err
		}
		for i, share := range shares {
			if err := beneficiaries[i].GrantCredit(share.Amount); err != nil {
				return err
			}
		}
		ret, err := retribution.New(fundID, cr.ID, actor, amount, setting.Type, shares, now)
		if err != nil {
			return err
		}

		// payer is in list, so one pass writes every changed row.
		for _, m := range list {
			if err := members.Update(ctx, m); err != nil {
				return err
			}
		}
		if err := requests.Update(ctx, cr); err != nil {
			return err
		}
		if err := retributions.Create(ctx, ret); err != nil {
			return err
		}
		f.UpdatedAt = now
		if err := funds.Update(ctx, f); err != nil {
			return err
		}
		res = &Result{Retribution: ret, Request: cr}
		return nil
	})
	if err != nil {
		log.Error("Repay failed", "error", err)
		return nil, err
	}
	ret := res.Retribution
	evs := []eventbus.Event{events.NewRetributionDistributed(
		fundID, actor, ret.ID, ret.RequestID, ret.Amount, ret.Distribution, ret.Shares,
	)}
	if res.Request.Status == request.StatusSettled {
		evs = append(evs, events.NewCapitalRequestDecided(fundID, actor, res.Request.ID, string(request.StatusSettled), ""))
	}
	eventbus.EmitAll(ctx, s.bus, log, evs...)
	log.Info("Repay successful", "retribution_id", ret.ID, "outstanding", res.Request.Outstanding)
	return res, nil
}

// List returns the retributions paid into one request of the fund.
func (s *Service) List(
	ctx context.Context,
	actor, fundID, requestID uuid.UUID,
) (list []*retribution.Retribution, err error) {
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		members, err := uow.MemberRepository()
		if err != nil {
			return err
		}
		if _, err := access.Member(ctx, members, fundID, actor, false); err != nil {
			return err
		}
		requests, err := uow.RequestRepository()
		if err != nil {
			return err
		}
		cr, err := requests.Get(ctx, requestID)
		if err != nil {
			return err
		}
		if cr.FundID != fundID {
			return fmt.Errorf("%w: capital request %s", domain.ErrNotFound, requestID)
		}
		retributions, err := uow.RetributionRepository()
		if err != nil {
			return err
		}
		list, err = retributions.ListByRequest(ctx, requestID)
		return err
	})
	return list, err
}
