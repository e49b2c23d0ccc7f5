// Package preview computes repayment schedules for display. A preview
// carries no authority: requests recompute their schedule on submission.
package preview

import (
	"log/slog"
	"time"

	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/money"
)

type Service struct {
	logger *slog.Logger
	now    func() time.Time
}

func New(logger *slog.Logger) *Service {
	return &Service{logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Preview is a computed schedule. Remaining is only non-zero for a custom
// plan whose installments do not cover the total yet.
type Preview struct {
	Total        money.Money              `json:"total"`
	Installments []accounting.Installment `json:"installments"`
	Remaining    money.Money              `json:"remaining"`
	Complete     bool                     `json:"complete"`
}

// Plan previews plan for total. Custom plans may be partial so a wizard
// can show what is left to schedule.
func (s *Service) Plan(total money.Money, plan accounting.Plan) (*Preview, error) {
	log := s.logger.With("context", "PreviewPlan", "mode", plan.Mode)
	today := s.now()
	if plan.Mode != accounting.PlanCustom {
		items, err := plan.Schedule(total, today)
		if err != nil {
			log.Debug("PreviewPlan rejected", "error", err)
			return nil, err
		}
		return &Preview{Total: total, Installments: items, Remaining: money.Zero(total.Currency()), Complete: true}, nil
	}

	b, err := accounting.NewCustomPlanBuilder(total, today)
	if err != nil {
		return nil, err
	}
	for _, it := range plan.Custom {
		if err := b.Add(it); err != nil {
			log.Debug("PreviewPlan rejected", "error", err)
			return nil, err
		}
	}
	p := &Preview{Total: total, Installments: []accounting.Installment{}, Remaining: b.Remaining()}
	if p.Remaining.IsZero() && len(plan.Custom) > 0 {
		items, err := b.Finalize()
		if err != nil {
			return nil, err
		}
		p.Installments = items
		p.Complete = true
	}
	return p, nil
}
