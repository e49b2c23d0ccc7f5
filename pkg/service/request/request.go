// Package request runs the capital request lifecycle: eligibility,
// submission with a reservation, voting and cancellation.
package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/domain/events"
	"github.com/coletivobank/coletivo/pkg/domain/fund"
	"github.com/coletivobank/coletivo/pkg/domain/request"
	"github.com/coletivobank/coletivo/pkg/eventbus"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/coletivobank/coletivo/pkg/repository"
	"github.com/coletivobank/coletivo/pkg/service/access"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Service provides business logic for capital requests.
type Service struct {
	uow      repository.UnitOfWork
	bus      eventbus.Bus
	logger   *slog.Logger
	inflight singleflight.Group
}

// New creates a request Service.
func New(uow repository.UnitOfWork, bus eventbus.Bus, logger *slog.Logger) *Service {
	return &Service{uow: uow, bus: bus, logger: logger}
}

// SubmitInput is a capital request as the member sends it.
type SubmitInput struct {
	Amount         money.Money
	Reason         string
	Plan           accounting.Plan
	IdempotencyKey string
}

// Detail is a request with the votes cast on it.
type Detail struct {
	Request *request.CapitalRequest
	Votes   []*request.Vote
}

// Result is the state of a request after a vote.
type Result struct {
	Request    *request.CapitalRequest
	Outcome    accounting.Outcome
	Approvals  int
	Rejections int
	Electorate int
	Threshold  int
}

type submitted struct {
	request *request.CapitalRequest
	created bool
}

// Eligibility is how much the caller may request from the fund right now.
func (s *Service) Eligibility(ctx context.Context, actor, fundID uuid.UUID) (e accounting.Eligibility, err error) {
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		members, err := uow.MemberRepository()
		if err != nil {
			return err
		}
		m, err := access.Member(ctx, members, fundID, actor, false)
		if err != nil {
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
		e, err = f.EligibilityOf(m)
		return err
	})
	return e, err
}

// Submit opens a request for voting and reserves its amount. With an
// idempotency key, repeating the call returns the request the first call
// made and created is false.
func (s *Service) Submit(
	ctx context.Context,
	actor, fundID uuid.UUID,
	in SubmitInput,
) (cr *request.CapitalRequest, created bool, err error) {
	if in.IdempotencyKey == "" {
		return s.submit(ctx, actor, fundID, in)
	}
	key := fundID.String() + "/" + actor.String() + "/" + in.IdempotencyKey
	v, err, _ := s.inflight.Do(key, func() (any, error) {
		cr, created, err := s.submit(ctx, actor, fundID, in)
		return submitted{request: cr, created: created}, err
	})
	if err != nil {
		return nil, false, err
	}
	res := v.(submitted)
	return res.request, res.created, nil
}

func (s *Service) submit(
	ctx context.Context,
	actor, fundID uuid.UUID,
	in SubmitInput,
) (cr *request.CapitalRequest, created bool, err error) {
	log := s.logger.With("context", "SubmitRequest", "fund_id", fundID, "account_id", actor)
	log.Debug("SubmitRequest called", "amount", in.Amount, "idempotency_key", in.IdempotencyKey)

	if in.IdempotencyKey != "" {
		existing, err := s.byIdempotencyKey(ctx, fundID, actor, in)
		if err == nil {
			log.Info("SubmitRequest replayed", "request_id", existing.ID)
			return existing, false, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, false, err
		}
	}

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

		f, err := funds.GetForUpdate(ctx, fundID)
		if err != nil {
			return err
		}
		m, err := access.Member(ctx, members, fundID, actor, true)
		if err != nil {
			return err
		}
		e, err := f.EligibilityOf(m)
		if err != nil {
			return err
		}
		if err := accounting.CheckRequest(in.Amount, e); err != nil {
			return err
		}
		now := time.Now().UTC()
		cr, err = request.New(fundID, actor, in.Amount, in.Reason, in.Plan, now)
		if err != nil {
			return err
		}
		cr.IdempotencyKey = in.IdempotencyKey
		if err := cr.Submit(now); err != nil {
			return err
		}
		if err := f.Reserve(cr.Amount); err != nil {
			return err
		}
		if err := m.Reserve(cr.Amount); err != nil {
			return err
		}
		f.UpdatedAt = now
		if err := requests.Create(ctx, cr); err != nil {
			return err
		}
		if err := members.Update(ctx, m); err != nil {
			return err
		}
		return funds.Update(ctx, f)
	})
	if err != nil {
		// Another process won the race for the same key.
		if in.IdempotencyKey != "" && errors.Is(err, domain.ErrAlreadyExists) {
			if existing, lookupErr := s.byIdempotencyKey(ctx, fundID, actor, in); lookupErr == nil {
				return existing, false, nil
			}
		}
		log.Error("SubmitRequest failed", "error", err)
		return nil, false, err
	}
	eventbus.EmitAll(ctx, s.bus, log, events.NewCapitalRequestSubmitted(fundID, actor, cr.ID, cr.Amount))
	log.Info("SubmitRequest successful", "request_id", cr.ID)
	return cr, true, nil
}

// byIdempotencyKey returns the request already made under in's key, or
// ErrAlreadyExists when the key was used for a different request.
func (s *Service) byIdempotencyKey(
	ctx context.Context,
	fundID, actor uuid.UUID,
	in SubmitInput,
) (cr *request.CapitalRequest, err error) {
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		requests, err := uow.RequestRepository()
		if err != nil {
			return err
		}
		cr, err = requests.GetByIdempotencyKey(ctx, fundID, actor, in.IdempotencyKey)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !cr.Amount.Equals(in.Amount) {
		return nil, fmt.Errorf("%w: idempotency key %q was used for a request of %s",
			domain.ErrAlreadyExists, in.IdempotencyKey, cr.Amount)
	}
	return cr, nil
}

// Electorate lists who may vote on a request by requester. The requester
// only votes when nobody else is eligible.
func Electorate(members []*fund.Member, g accounting.GovernanceSetting, requester uuid.UUID) []uuid.UUID {
	var eligible, others []uuid.UUID
	for _, m := range members {
		if g.VotersScope == accounting.VotersAdminsOnly && !m.IsAdmin {
			continue
		}
		eligible = append(eligible, m.AccountID)
		if m.AccountID != requester {
			others = append(others, m.AccountID)
		}
	}
	if len(others) == 0 {
		return eligible
	}
	return others
}

// Vote records the caller's vote and decides the request once the result
// can no longer change. Approval disburses the amount and turns the
// reservation into debt; rejection releases the reservation.
func (s *Service) Vote(
	ctx context.Context,
	actor, fundID, requestID uuid.UUID,
	approve bool,
	reason string,
) (res *Result, err error) {
	log := s.logger.With("context", "Vote", "fund_id", fundID, "account_id", actor, "request_id", requestID)
	log.Debug("Vote called", "approve", approve)
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
		votes, err := uow.VoteRepository()
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
		if _, err := access.Find(list, actor); err != nil {
			return err
		}
		cr, err := requestInFund(ctx, requests, fundID, requestID)
		if err != nil {
			return err
		}
		if !cr.IsOpen() {
			return fmt.Errorf("%w: request %s is %s and no longer takes votes",
				domain.ErrInvalidTransition, cr.ID, cr.Status)
		}
		gov := f.Settings.Governance
		electorate := Electorate(list, gov, cr.AccountID)
		if len(electorate) == 0 {
			return domain.Configurationf("fund %s has no eligible voters", fundID)
		}
		if !slices.Contains(electorate, actor) {
			return fmt.Errorf("%w: %s is not eligible to vote on this request", domain.ErrForbidden, actor)
		}

		now := time.Now().UTC()
		v, err := request.NewVote(cr.ID, actor, approve, reason, now)
		if err != nil {
			return err
		}
		if err := votes.Create(ctx, v); err != nil {
			return err
		}
		cast, err := votes.ListByRequest(ctx, cr.ID)
		if err != nil {
			return err
		}
		// Votes from members who left the electorate after a scope change
		// no longer count.
		cast = slices.DeleteFunc(cast, func(v *request.Vote) bool {
			return !slices.Contains(electorate, v.VoterID)
		})
		approvals, rejections := request.Count(cast)
		threshold, err := accounting.Threshold(len(electorate), gov)
		if err != nil {
			return err
		}
		outcome, err := accounting.Tally(len(electorate), approvals, rejections, gov)
		if err != nil {
			return err
		}
		res = &Result{
			Request:    cr,
			Outcome:    outcome,
			Approvals:  approvals,
			Rejections: rejections,
			Electorate: len(electorate),
			Threshold:  threshold,
		}
		if outcome == accounting.OutcomePending {
			return nil
		}

		requester, err := access.Find(list, cr.AccountID)
		if err != nil {
			return err
		}
		switch outcome {
		case accounting.OutcomeApproved:
			if err := cr.Approve(now); err != nil {
				return err
			}
			if err := f.Disburse(cr.Amount); err != nil {
				return err
			}
			if err := requester.Borrow(cr.Amount); err != nil {
				return err
			}
		case accounting.OutcomeRejected:
			if err := cr.Reject(rejectionReason(cast, v), now); err != nil {
				return err
			}
			if err := f.Release(cr.Amount); err != nil {
				return err
			}
			if err := requester.Release(cr.Amount); err != nil {
				return err
			}
		}
		f.UpdatedAt = now
		if err := requests.Update(ctx, cr); err != nil {
			return err
		}
		if err := members.Update(ctx, requester); err != nil {
			return err
		}
		return funds.Update(ctx, f)
	})
	if err != nil {
		log.Error("Vote failed", "error", err)
		return nil, err
	}
	if res.Outcome != accounting.OutcomePending {
		eventbus.EmitAll(ctx, s.bus, log, events.NewCapitalRequestDecided(
			fundID, res.Request.AccountID, res.Request.ID, string(res.Request.Status), res.Request.RejectionReason,
		))
	}
	log.Info("Vote successful", "outcome", res.Outcome, "approvals", res.Approvals, "rejections", res.Rejections)
	return res, nil
}

// rejectionReason is the reason of the vote that decided the rejection.
func rejectionReason(cast []*request.Vote, decisive *request.Vote) string {
	if !decisive.Approve {
		return decisive.Reason
	}
	for i := len(cast) - 1; i >= 0; i-- {
		if !cast[i].Approve {
			return cast[i].Reason
		}
	}
	return "approval threshold can no longer be reached"
}

// Cancel withdraws the caller's own pending request and frees its
// reservation.
func (s *Service) Cancel(
	ctx context.Context,
	actor, fundID, requestID uuid.UUID,
) (cr *request.CapitalRequest, err error) {
	log := s.logger.With("context", "CancelRequest", "fund_id", fundID, "account_id", actor, "request_id", requestID)
	log.Debug("CancelRequest called")
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

		f, err := funds.GetForUpdate(ctx, fundID)
		if err != nil {
			return err
		}
		m, err := access.Member(ctx, members, fundID, actor, true)
		if err != nil {
			return err
		}
		cr, err = requestInFund(ctx, requests, fundID, requestID)
		if err != nil {
			return err
		}
		reserved := cr.Status == request.StatusPending
		now := time.Now().UTC()
		if err := cr.Cancel(actor, now); err != nil {
			return err
		}
		if reserved {
			if err := f.Release(cr.Amount); err != nil {
				return err
			}
			if err := m.Release(cr.Amount); err != nil {
				return err
			}
			f.UpdatedAt = now
			if err := members.Update(ctx, m); err != nil {
				return err
			}
			if err := funds.Update(ctx, f); err != nil {
				return err
			}
		}
		return requests.Update(ctx, cr)
	})
	if err != nil {
		log.Error("CancelRequest failed", "error", err)
		return nil, err
	}
	eventbus.EmitAll(ctx, s.bus, log, events.NewCapitalRequestDecided(
		fundID, actor, cr.ID, string(cr.Status), "",
	))
	log.Info("CancelRequest successful")
	return cr, nil
}

// Get returns one request of the fund with its votes.
func (s *Service) Get(ctx context.Context, actor, fundID, requestID uuid.UUID) (d *Detail, err error) {
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
		votes, err := uow.VoteRepository()
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
		cast, err := votes.ListByRequest(ctx, requestID)
		if err != nil {
			return err
		}
		d = &Detail{Request: cr, Votes: cast}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// List returns the fund's requests newest first. An empty status lists all.
func (s *Service) List(
	ctx context.Context,
	actor, fundID uuid.UUID,
	status request.Status,
) (list []*request.CapitalRequest, err error) {
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
		list, err = requests.ListByFund(ctx, fundID, status)
		return err
	})
	return list, err
}

func requestInFund(
	ctx context.Context,
	requests repository.RequestRepository,
	fundID, requestID uuid.UUID,
) (*request.CapitalRequest, error) {
	cr, err := requests.GetForUpdate(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if cr.FundID != fundID {
		return nil, fmt.Errorf("%w: capital request %s", domain.ErrNotFound, requestID)
	}
	return cr, nil
}
