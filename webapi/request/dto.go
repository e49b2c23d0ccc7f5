package request

import (
	"github.com/coletivobank/coletivo/pkg/accounting"
	"github.com/coletivobank/coletivo/webapi/common"
)

// SubmitRequest asks the fund for capital. Amount is in the fund's
// currency.
type SubmitRequest struct {
	Amount string          `json:"amount" validate:"required,numeric"`
	Reason string          `json:"reason" validate:"required,max=1000"`
	Plan   accounting.Plan `json:"plan"`
}

// VoteRequest casts the caller's vote. A rejection needs a reason.
type VoteRequest struct {
	Approve *bool  `json:"approve" validate:"required"`
	Reason  string `json:"reason" validate:"max=500"`
}

// VoteResponse is the tally after a vote.
type VoteResponse struct {
	Request    common.RequestResponse `json:"request"`
	Outcome    accounting.Outcome     `json:"outcome"`
	Approvals  int                    `json:"approvals"`
	Rejections int                    `json:"rejections"`
	Electorate int                    `json:"electorate"`
	Threshold  int                    `json:"threshold"`
}
