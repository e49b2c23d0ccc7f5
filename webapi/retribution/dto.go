package retribution

import (
	"github.com/coletivobank/coletivo/pkg/domain/retribution"
	"github.com/coletivobank/coletivo/webapi/common"
)

// RepayRequest pays part or all of what is outstanding, in the fund's
// currency.
type RepayRequest struct {
	Amount string `json:"amount" validate:"required,numeric"`
}

// RepayResponse is the distribution together with the updated request.
type RepayResponse struct {
	Retribution *retribution.Retribution `json:"retribution"`
	Request     common.RequestResponse   `json:"request"`
}
