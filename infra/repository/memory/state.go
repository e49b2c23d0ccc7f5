package memory

import (
	"maps"
	"slices"

	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/pkg/domain/contribution"
	"github.com/coletivobank/coletivo/pkg/domain/fund"
	"github.com/coletivobank/coletivo/pkg/domain/request"
	"github.com/coletivobank/coletivo/pkg/domain/retribution"
	"github.com/coletivobank/coletivo/pkg/domain/user"
	"github.com/google/uuid"
)

type memberKey struct{ fund, account uuid.UUID }

type voteKey struct{ request, voter uuid.UUID }

type idempotencyKey struct {
	fund, account uuid.UUID
	key           string
}

// state holds values, never pointers handed out to callers, so a clone is
// isolated from the transaction it was taken from.
type state struct {
	users          map[uuid.UUID]user.User
	funds          map[uuid.UUID]fund.Fund
	members        map[memberKey]fund.Member
	contributions  []contribution.Contribution
	settingChanges []fund.SettingChange
	requests       map[uuid.UUID]request.CapitalRequest
	idempotency    map[idempotencyKey]uuid.UUID
	votes          map[voteKey]request.Vote
	retributions   []retribution.Retribution
}

func newState() *state {
	return &state{
		users:       map[uuid.UUID]user.User{},
		funds:       map[uuid.UUID]fund.Fund{},
		members:     map[memberKey]fund.Member{},
		requests:    map[uuid.UUID]request.CapitalRequest{},
		idempotency: map[idempotencyKey]uuid.UUID{},
		votes:       map[voteKey]request.Vote{},
	}
}

func (s *state) clone() *state {
	return &state{
		users:          maps.Clone(s.users),
		funds:          maps.Clone(s.funds),
		members:        maps.Clone(s.members),
		contributions:  slices.Clone(s.contributions),
		settingChanges: slices.Clone(s.settingChanges),
		requests:       maps.Clone(s.requests),
		idempotency:    maps.Clone(s.idempotency),
		votes:          maps.Clone(s.votes),
		retributions:   slices.Clone(s.retributions),
	}
}

// copyRequest detaches the slices and pointers of r from the stored value.
func copyRequest(r request.CapitalRequest) request.CapitalRequest {
	r.Installments = slices.Clone(r.Installments)
	r.Plan.Custom = slices.Clone(r.Plan.Custom)
	if r.DecidedAt != nil {
		t := *r.DecidedAt
		r.DecidedAt = &t
	}
	return r
}

func copyRetribution(r retribution.Retribution) retribution.Retribution {
	r.Shares = slices.Clone(r.Shares)
	if r.Shares == nil {
		r.Shares = []accounting.Share{}
	}
	return r
}
