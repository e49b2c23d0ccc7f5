package metrics

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	infraeventbus "github.com/coletivobank/coletivo/infra/eventbus"
	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/domain/events"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeCountsFlowEvents(t *testing.T) {
	m := New()
	bus := infraeventbus.NewWithMemory(slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.Subscribe(bus)
	ctx := context.Background()
	fundID, acct := uuid.New(), uuid.New()

	brl := money.FromSmallestUnit(12000, money.BRL)
	require.NoError(t, bus.Emit(ctx, events.NewContributionRecorded(fundID, acct, uuid.New(), brl, brl)))
	require.NoError(t, bus.Emit(ctx, events.NewCapitalRequestSubmitted(fundID, acct, uuid.New(), brl)))
	require.NoError(t, bus.Emit(ctx, events.NewCapitalRequestDecided(fundID, acct, uuid.New(), "approved", "")))
	require.NoError(t, bus.Emit(ctx, events.NewRetributionDistributed(fundID, acct, uuid.New(), uuid.New(),
		money.FromSmallestUnit(500, money.BRL), accounting.DistributionEqual, nil)))

	assert.Equal(t, 12000.0, testutil.ToFloat64(m.ContributedAmount.WithLabelValues("BRL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsSubmitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsDecided.WithLabelValues("approved")))
	assert.Equal(t, 500.0, testutil.ToFloat64(m.RetributedAmount.WithLabelValues("BRL", "equal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("ContributionRecorded")))
}

func TestHandlerExposesHTTPMetrics(t *testing.T) {
	m := New()
	m.ObserveHTTP("GET", "/funds/:id", 200, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `coletivo_http_requests_total{method="GET",route="/funds/:id",status="200"} 1`), body)
	assert.Contains(t, body, "coletivo_http_request_duration_seconds_bucket")
	assert.Contains(t, body, "go_goroutines")
}
