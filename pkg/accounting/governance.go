package accounting

import (
	"github.com/coletivobank/coletivo/pkg/domain"
)

// VotersScope selects which members may vote on fund decisions.
type VotersScope string

const (
	VotersAllMembers VotersScope = "all_members"
	VotersAdminsOnly VotersScope = "admins_only"
)

// GovernanceSetting is the approval rule for capital requests.
type GovernanceSetting struct {
	// QuorumPercentage is the share of the electorate (1-100) whose approval
	// is needed. Ignored when Unanimous is set.
	QuorumPercentage int         `json:"quorum_percentage"`
	Unanimous        bool        `json:"unanimous"`
	VotersScope      VotersScope `json:"voters_scope"`
}

// DefaultGovernanceSetting is applied to new funds.
var DefaultGovernanceSetting = GovernanceSetting{
	QuorumPercentage: 51,
	VotersScope:      VotersAllMembers,
}

// Validate checks the quorum range and scope.
func (g GovernanceSetting) Validate() error {
	if !g.Unanimous && (g.QuorumPercentage < 1 || g.QuorumPercentage > 100) {
		return domain.Validationf("quorum percentage must be between 1 and 100, got %d", g.QuorumPercentage)
	}
	switch g.VotersScope {
	case VotersAllMembers, VotersAdminsOnly:
		return nil
	default:
		return domain.Validationf("unknown voters scope %q", g.VotersScope)
	}
}

// Threshold is the number of approvals needed out of electorate voters.
func Threshold(electorate int, g GovernanceSetting) (int, error) {
	if err := g.Validate(); err != nil {
		return 0, err
	}
	if electorate < 1 {
		return 0, domain.Validationf("a decision needs at least one eligible voter")
	}
	if g.Unanimous {
		return electorate, nil
	}
	need := (electorate*g.QuorumPercentage + 99) / 100
	if need < 1 {
		need = 1
	}
	return need, nil
}

// Outcome is the state of a tally.
type Outcome string

const (
	OutcomePending  Outcome = "pending"
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
)

// Tally settles a vote. A request is approved once approvals reach the
// threshold and rejected as soon as the remaining voters can no longer get it
// there.
func Tally(electorate, approvals, rejections int, g GovernanceSetting) (Outcome, error) {
	need, err := Threshold(electorate, g)
	if err != nil {
		return "", err
	}
	if approvals < 0 || rejections < 0 || approvals+rejections > electorate {
		return "", domain.Validationf(
			"inconsistent tally: %d approvals and %d rejections out of %d voters",
			approvals, rejections, electorate,
		)
	}
	switch {
	case approvals >= need:
		return OutcomeApproved, nil
	case electorate-rejections < need:
		return OutcomeRejected, nil
	default:
		return OutcomePending, nil
	}
}
