// Package testutils wires the services over the in-memory unit of work and
// offers HTTP helpers for tests.
package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	infracache "github.com/coletivobank/coletivo/infra/cache"
	infraeventbus "github.com/coletivobank/coletivo/infra/eventbus"
	"github.com/coletivobank/coletivo/infra/metrics"
	"github.com/coletivobank/coletivo/infra/repository/memory"
	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/app"
	"github.com/coletivobank/coletivo/pkg/config"
	"github.com/coletivobank/coletivo/pkg/domain/fund"
	"github.com/coletivobank/coletivo/pkg/domain/user"
	"github.com/coletivobank/coletivo/pkg/money"
	contributionsvc "github.com/coletivobank/coletivo/pkg/service/contribution"
	fundsvc "github.com/coletivobank/coletivo/pkg/service/fund"
	requestsvc "github.com/coletivobank/coletivo/pkg/service/request"
	retributionsvc "github.com/coletivobank/coletivo/pkg/service/retribution"
	"github.com/coletivobank/coletivo/pkg/utils"
	"github.com/coletivobank/coletivo/webapi"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// Quiet silences the default logger and makes password hashing cheap. Call
// it from TestMain.
func Quiet() {
	utils.BcryptCost = bcrypt.MinCost
	slog.SetDefault(Logger())
}

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// BRL is cents in reais.
func BRL(cents int64) money.Money {
	return money.FromSmallestUnit(cents, money.BRL)
}

// MonthlyPlan is n monthly installments starting next month.
func MonthlyPlan(n int) accounting.Plan {
	return accounting.Plan{
		Mode:      accounting.PlanAutomatic,
		StartDate: time.Now().UTC().AddDate(0, 1, 0),
		Count:     n,
		Interval:  accounting.IntervalMonthly,
	}
}

// Env is a full service stack over one in-memory store.
type Env struct {
	t             testing.TB
	UoW           *memory.UoW
	Bus           *infraeventbus.MemoryEventBus
	Funds         *fundsvc.Service
	Contributions *contributionsvc.Service
	Requests      *requestsvc.Service
	Retributions  *retributionsvc.Service
}

// NewEnv builds an Env.
func NewEnv(t testing.TB) *Env {
	t.Helper()
	logger := Logger()
	uow := memory.NewUoW()
	bus := infraeventbus.NewWithMemory(logger)
	return &Env{
		t:             t,
		UoW:           uow,
		Bus:           bus,
		Funds:         fundsvc.New(uow, bus, logger),
		Contributions: contributionsvc.New(uow, bus, logger),
		Requests:      requestsvc.New(uow, bus, logger),
		Retributions:  retributionsvc.New(uow, bus, logger),
	}
}

// User stores a user without hashing a password.
func (e *Env) User(username string) *user.User {
	e.t.Helper()
	now := time.Now().UTC()
	u := &user.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@coletivo.com.br",
		PasswordHash: "-",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	users, err := e.UoW.UserRepository()
	require.NoError(e.t, err)
	require.NoError(e.t, users.Create(context.Background(), u))
	return u
}

// Fund creates a fund owned by admin with the given rate and adds members.
func (e *Env) Fund(admin *user.User, ratePercent int64, members ...*user.User) *fund.Fund {
	e.t.Helper()
	rate := accounting.MustRateFromPercent(ratePercent)
	f, err := e.Funds.Create(context.Background(), admin.ID, fundsvc.CreateInput{
		Name:             "Fundo de " + admin.Username,
		ContributionRate: &rate,
	})
	require.NoError(e.t, err)
	for _, m := range members {
		_, err := e.Funds.AddMember(context.Background(), admin.ID, f.ID, m.ID.String(), false)
		require.NoError(e.t, err)
	}
	return f
}

// Contribute records a contribution of cents.
func (e *Env) Contribute(f *fund.Fund, u *user.User, cents int64) {
	e.t.Helper()
	_, err := e.Contributions.Contribute(context.Background(), u.ID, f.ID, BRL(cents), "")
	require.NoError(e.t, err)
}

// Member reads a membership straight from the store.
func (e *Env) Member(f *fund.Fund, u *user.User) *fund.Member {
	e.t.Helper()
	members, err := e.UoW.MemberRepository()
	require.NoError(e.t, err)
	m, err := members.Get(context.Background(), f.ID, u.ID)
	require.NoError(e.t, err)
	return m
}

// Reload reads a fund straight from the store.
func (e *Env) Reload(f *fund.Fund) *fund.Fund {
	e.t.Helper()
	funds, err := e.UoW.FundRepository()
	require.NoError(e.t, err)
	got, err := funds.Get(context.Background(), f.ID)
	require.NoError(e.t, err)
	return got
}

// Config is an application config over the memory store with a limiter
// that tests do not trip.
func Config() *config.App {
	return &config.App{
		Env:       "test",
		Currency:  "BRL",
		Server:    &config.Server{Scheme: "http", Host: "localhost", Port: 3000},
		Log:       &config.Log{Format: "text"},
		DB:        &config.DB{Driver: "memory"},
		Auth:      &config.Auth{Jwt: &config.Jwt{Secret: "test-secret", Expiry: time.Hour}},
		Redis:     &config.Redis{KeyPrefix: "coletivo-test"},
		RateLimit: &config.RateLimit{MaxRequests: 10000, Window: time.Second},
		Draft:     &config.Draft{TTL: time.Hour},
	}
}

// App serves the whole HTTP API over the Env's store and bus, so tests can
// mix API calls with direct service calls and store reads.
func (e *Env) App(cfg *config.App) *fiber.App {
	e.t.Helper()
	if cfg == nil {
		cfg = Config()
	}
	drafts := infracache.NewMemoryDraftStore(time.Minute)
	e.t.Cleanup(drafts.Close)
	a := app.New(&app.Deps{
		Uow:      e.UoW,
		EventBus: e.Bus,
		Drafts:   drafts,
		Metrics:  metrics.New(),
		Logger:   Logger(),
	}, cfg)
	return webapi.SetupApp(a)
}

// Envelope is the success body of the API.
type Envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// MakeRequest runs one request against app.
func MakeRequest(app *fiber.App, method, path, body, token string, headers ...string) *http.Response {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		panic(err)
	}
	return resp
}

// Decode reads a success envelope and unmarshals its data into v.
func Decode(t testing.TB, resp *http.Response, v any) Envelope {
	t.Helper()
	defer resp.Body.Close()
	var env Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	if v != nil {
		require.NoError(t, json.Unmarshal(env.Data, v))
	}
	return env
}

// RegisterAndLogin signs a user up through the API and returns a token.
func RegisterAndLogin(t testing.TB, app *fiber.App, username string) (token string, id uuid.UUID) {
	t.Helper()
	body := `{"username":"` + username + `","email":"` + username + `@coletivo.com.br","password":"senha-forte"}`
	resp := MakeRequest(app, http.MethodPost, "/auth/register", body, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var u struct {
		ID uuid.UUID `json:"id"`
	}
	Decode(t, resp, &u)

	resp = MakeRequest(app, http.MethodPost, "/auth/login", `{"identity":"`+username+`","password":"senha-forte"}`, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Token string `json:"token"`
	}
	Decode(t, resp, &out)
	require.NotEmpty(t, out.Token)
	return out.Token, u.ID
}
