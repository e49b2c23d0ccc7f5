package app

import (
	"context"
	"log/slog"

	"github.com/coletivobank/coletivo/pkg/domain/events"
	"github.com/coletivobank/coletivo/pkg/eventbus"
)

// setupEventBus registers the process-wide event handlers.
func (a *App) setupEventBus() {
	bus := a.Deps.EventBus
	if bus == nil {
		return
	}
	if a.Deps.Metrics != nil {
		a.Deps.Metrics.Subscribe(bus)
	}
	for eventType := range events.EventTypes {
		bus.Register(eventType, activityLog(a.Deps.Logger))
	}
}

// activityLog writes one line per domain event so fund activity can be
// followed from the logs.
func activityLog(logger *slog.Logger) eventbus.HandlerFunc {
	log := logger.With("handler", "activity")
	return func(_ context.Context, e eventbus.Event) error {
		attrs := []any{"event", e.Type()}
		switch ev := e.(type) {
		case *events.ContributionRecorded:
			attrs = append(attrs, "fund_id", ev.FundID, "account_id", ev.AccountID, "amount", ev.Amount.String())
		case *events.CapitalRequestSubmitted:
			attrs = append(attrs, "fund_id", ev.FundID, "request_id", ev.RequestID, "amount", ev.Amount.String())
		case *events.CapitalRequestDecided:
			attrs = append(attrs, "fund_id", ev.FundID, "request_id", ev.RequestID, "status", ev.Status)
		case *events.RetributionDistributed:
			attrs = append(attrs, "fund_id", ev.FundID, "request_id", ev.RequestID, "amount", ev.Amount.String())
		case *events.FundSettingChanged:
			attrs = append(attrs, "fund_id", ev.FundID, "field", ev.Field, "new_value", ev.NewValue)
		}
		log.Info("domain event", attrs...)
		return nil
	}
}
