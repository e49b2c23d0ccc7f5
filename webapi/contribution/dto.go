package contribution

// ContributeRequest credits the fund. Amount is in the fund's currency,
// e.g. "150.00".
type ContributeRequest struct {
	Amount string `json:"amount" validate:"required,numeric"`
	Note   string `json:"note" validate:"max=280"`
}
