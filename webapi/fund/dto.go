package fund

import "github.com/coletivobank/coletivo/pkg/accounting"

// CreateFundRequest opens a fund. Unset settings take the defaults.
type CreateFundRequest struct {
	Name                    string                          `json:"name" validate:"required,max=120"`
	Objective               string                          `json:"objective" validate:"max=500"`
	Currency                string                          `json:"currency" validate:"omitempty,len=3"`
	ContributionRatePercent string                          `json:"contribution_rate_percent" validate:"omitempty,numeric"`
	Distribution            *accounting.DistributionSetting `json:"distribution"`
	Governance              *accounting.GovernanceSetting   `json:"governance"`
}

// AddMemberRequest names a registered user by id, email or username.
type AddMemberRequest struct {
	Identity string `json:"identity" validate:"required"`
	IsAdmin  bool   `json:"is_admin"`
}

// ContributionRateRequest sets the rate as a percentage, e.g. "200".
type ContributionRateRequest struct {
	Percent string `json:"percent" validate:"required,numeric"`
}

// DistributionRequest replaces the distribution setting.
type DistributionRequest struct {
	Type      accounting.DistributionType `json:"type" validate:"required"`
	ZeroStake accounting.ZeroStakePolicy  `json:"zero_stake_policy"`
}

// GovernanceRequest replaces the approval rule.
type GovernanceRequest struct {
	QuorumPercentage int                    `json:"quorum_percentage" validate:"omitempty,min=1,max=100"`
	Unanimous        bool                   `json:"unanimous"`
	VotersScope      accounting.VotersScope `json:"voters_scope" validate:"required"`
}
