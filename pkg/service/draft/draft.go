// Package draft keeps multi-step wizard state on the server and turns a
// finished draft into a fund, a contribution or a capital request.
package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/cache"
	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/domain/contribution"
	"github.com/coletivobank/coletivo/pkg/domain/draft"
	"github.com/coletivobank/coletivo/pkg/domain/fund"
	"github.com/coletivobank/coletivo/pkg/domain/request"
	"github.com/coletivobank/coletivo/pkg/money"
	fundsvc "github.com/coletivobank/coletivo/pkg/service/fund"
	requestsvc "github.com/coletivobank/coletivo/pkg/service/request"
	"github.com/google/uuid"
)

// Funds is the part of the fund service a commit needs.
type Funds interface {
	Create(ctx context.Context, creator uuid.UUID, in fundsvc.CreateInput) (*fund.Fund, error)
	Get(ctx context.Context, actor, fundID uuid.UUID) (*fund.Fund, error)
}

// Contributions records a committed contribution draft.
type Contributions interface {
	Contribute(ctx context.Context, actor, fundID uuid.UUID, amount money.Money, note string) (*contribution.Contribution, error)
}

// Requests submits a committed capital request draft.
type Requests interface {
	Submit(ctx context.Context, actor, fundID uuid.UUID, in requestsvc.SubmitInput) (*request.CapitalRequest, bool, error)
}

type Service struct {
	store         cache.DraftStore
	ttl           time.Duration
	funds         Funds
	contributions Contributions
	requests      Requests
	logger        *slog.Logger
}

func New(
	store cache.DraftStore,
	ttl time.Duration,
	funds Funds,
	contributions Contributions,
	requests Requests,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:         store,
		ttl:           ttl,
		funds:         funds,
		contributions: contributions,
		requests:      requests,
		logger:        logger,
	}
}

// Committed is what a commit produced. Exactly one field is set.
type Committed struct {
	Kind         draft.Kind
	Fund         *fund.Fund
	Contribution *contribution.Contribution
	Request      *request.CapitalRequest
}

// Start opens a draft owned by actor.
func (s *Service) Start(
	ctx context.Context,
	actor uuid.UUID,
	kind draft.Kind,
	payload json.RawMessage,
) (*draft.Draft, error) {
	d, err := draft.New(kind, actor, payload, s.ttl, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Debug("draft started", "draft_id", d.ID, "kind", kind, "account_id", actor)
	return d, nil
}

// Get returns one of actor's drafts. Other owners' drafts do not exist as
// far as actor can tell.
func (s *Service) Get(ctx context.Context, actor, id uuid.UUID) (*draft.Draft, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.OwnerID != actor {
		return nil, fmt.Errorf("%w: draft %s", domain.ErrNotFound, id)
	}
	return d, nil
}

// Update replaces the payload, moves to step and extends the expiry.
func (s *Service) Update(
	ctx context.Context,
	actor, id uuid.UUID,
	payload json.RawMessage,
	step int,
) (*draft.Draft, error) {
	d, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := d.Update(payload, step, s.ttl, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Discard drops the draft.
func (s *Service) Discard(ctx context.Context, actor, id uuid.UUID) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// Commit hands the payload to the owning service and deletes the draft.
// The draft is claimed before the payload is applied, so concurrent commits
// apply it once; a failed commit puts the draft back. Committing a capital
// request twice submits it once: the draft id is the idempotency key.
func (s *Service) Commit(ctx context.Context, actor, id uuid.UUID) (c *Committed, err error) {
	log := s.logger.With("context", "CommitDraft", "draft_id", id, "account_id", actor)
	log.Debug("CommitDraft called")
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	d, err := s.store.Take(ctx, id)
	if err != nil {
		log.Warn("draft claimed by another commit", "error", err)
		return nil, err
	}
	c = &Committed{Kind: d.Kind}
	switch d.Kind {
	case draft.KindFund:
		c.Fund, err = s.commitFund(ctx, actor, d)
	case draft.KindContribution:
		c.Contribution, err = s.commitContribution(ctx, actor, d)
	case draft.KindCapitalRequest:
		c.Request, err = s.commitRequest(ctx, actor, d)
	default:
		err = domain.Validationf("unknown draft kind %q", d.Kind)
	}
	if err != nil {
		log.Error("CommitDraft failed", "kind", d.Kind, "error", err)
		if rerr := s.store.Set(context.WithoutCancel(ctx), d); rerr != nil {
			log.Error("draft restore after failed commit failed", "error", rerr)
		}
		return nil, err
	}
	log.Info("CommitDraft successful", "kind", d.Kind)
	return c, nil
}

func (s *Service) commitFund(ctx context.Context, actor uuid.UUID, d *draft.Draft) (*fund.Fund, error) {
	var p draft.FundPayload
	if err := d.Decode(&p); err != nil {
		return nil, err
	}
	in := fundsvc.CreateInput{
		Name:         p.Name,
		Objective:    p.Objective,
		Currency:     money.Code(strings.ToUpper(p.Currency)),
		Distribution: p.Distribution,
		Governance:   p.Governance,
	}
	if p.ContributionRatePercent != "" {
		rate, err := accounting.ParseRate(p.ContributionRatePercent)
		if err != nil {
			return nil, err
		}
		in.ContributionRate = &rate
	}
	return s.funds.Create(ctx, actor, in)
}

func (s *Service) commitContribution(ctx context.Context, actor uuid.UUID, d *draft.Draft) (*contribution.Contribution, error) {
	var p draft.ContributionPayload
	if err := d.Decode(&p); err != nil {
		return nil, err
	}
	amount, err := s.amountIn(ctx, actor, p.FundID, p.Amount)
	if err != nil {
		return nil, err
	}
	return s.contributions.Contribute(ctx, actor, p.FundID, amount, p.Note)
}

func (s *Service) commitRequest(ctx context.Context, actor uuid.UUID, d *draft.Draft) (*request.CapitalRequest, error) {
	var p draft.CapitalRequestPayload
	if err := d.Decode(&p); err != nil {
		return nil, err
	}
	amount, err := s.amountIn(ctx, actor, p.FundID, p.Amount)
	if err != nil {
		return nil, err
	}
	cr, _, err := s.requests.Submit(ctx, actor, p.FundID, requestsvc.SubmitInput{
		Amount:         amount,
		Reason:         p.Reason,
		Plan:           p.Plan,
		IdempotencyKey: "draft:" + d.ID.String(),
	})
	return cr, err
}

// amountIn parses a decimal amount in the fund's currency.
func (s *Service) amountIn(ctx context.Context, actor, fundID uuid.UUID, amount string) (money.Money, error) {
	f, err := s.funds.Get(ctx, actor, fundID)
	if err != nil {
		return money.Money{}, err
	}
	m, err := money.Parse(amount, f.Currency())
	if err != nil {
		return money.Money{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	return m, nil
}
