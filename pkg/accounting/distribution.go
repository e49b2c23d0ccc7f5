package accounting

import (
	"sort"
	"strings"

	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DistributionType governs how a retribution raises members' capacity.
type DistributionType string

const (
	// DistributionProportional shares by lifetime contribution.
	DistributionProportional DistributionType = "proportional"
	// DistributionEqual shares the same amount with every member.
	DistributionEqual DistributionType = "equal"
)

// ParseDistributionType accepts the API names and the wizard's labels.
func ParseDistributionType(s string) (DistributionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "proportional", "proporcional":
		return DistributionProportional, nil
	case "equal", "igual", "igualitaria", "igualitária":
		return DistributionEqual, nil
	default:
		return "", domain.Validationf("unknown distribution type %q", s)
	}
}

// UnmarshalText accepts every label ParseDistributionType knows.
func (t *DistributionType) UnmarshalText(b []byte) error {
	v, err := ParseDistributionType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ZeroStakePolicy decides what a proportional distribution does when no
// member has contributed anything yet.
type ZeroStakePolicy string

const (
	// ZeroStakeFallbackEqual splits equally when the stake total is zero.
	ZeroStakeFallbackEqual ZeroStakePolicy = "equal"
	// ZeroStakeReject fails the distribution with ErrConfiguration.
	ZeroStakeReject ZeroStakePolicy = "reject"
)

// DistributionSetting is a fund's distribution configuration.
type DistributionSetting struct {
	Type      DistributionType `json:"type"`
	ZeroStake ZeroStakePolicy  `json:"zero_stake_policy"`
}

// DefaultDistributionSetting is applied to new funds.
var DefaultDistributionSetting = DistributionSetting{
	Type:      DistributionProportional,
	ZeroStake: ZeroStakeFallbackEqual,
}

// Validate checks the setting's enums.
func (s DistributionSetting) Validate() error {
	switch s.Type {
	case DistributionProportional, DistributionEqual:
	default:
		return domain.Validationf("unknown distribution type %q", s.Type)
	}
	switch s.ZeroStake {
	case ZeroStakeFallbackEqual, ZeroStakeReject, "":
	default:
		return domain.Validationf("unknown zero stake policy %q", s.ZeroStake)
	}
	return nil
}

// Stake is one member's weight in a distribution.
type Stake struct {
	AccountID   uuid.UUID
	Contributed money.Money
}

// Share is one member's capacity increase.
type Share struct {
	AccountID uuid.UUID   `json:"account_id"`
	Amount    money.Money `json:"amount"`
}

// Distribute splits amount across stakes according to the setting.
//
// Shares are returned in the order of stakes and always sum exactly to
// amount. Rounding remainders are assigned one smallest unit at a time using
// the largest-remainder method; ties go to the stake that comes first, so the
// caller controls determinism through the order of stakes.
func Distribute(amount money.Money, setting DistributionSetting, stakes []Stake) ([]Share, error) {
	if !amount.IsPositive() {
		return nil, domain.Validationf("retribution amount must be positive: %s", amount)
	}
	if len(stakes) == 0 {
		return nil, domain.Validationf("distribution needs at least one member")
	}
	if err := setting.Validate(); err != nil {
		return nil, err
	}
	seen := make(map[uuid.UUID]struct{}, len(stakes))
	var total int64
	for _, s := range stakes {
		if _, dup := seen[s.AccountID]; dup {
			return nil, domain.Validationf("member %s listed twice", s.AccountID)
		}
		seen[s.AccountID] = struct{}{}
		if err := mustSameCurrency(amount, s.Contributed); err != nil {
			return nil, domain.Validationf("member %s: %v", s.AccountID, err)
		}
		if s.Contributed.IsNegative() {
			return nil, domain.Validationf("member %s has a negative contribution", s.AccountID)
		}
		total = saturatingAdd(total, s.Contributed.Amount())
	}

	if setting.Type == DistributionEqual {
		return splitEqual(amount, stakes), nil
	}
	if total == 0 {
		if setting.ZeroStake == ZeroStakeReject {
			return nil, domain.Configurationf(
				"proportional distribution with zero total contributions and no fallback",
			)
		}
		return splitEqual(amount, stakes), nil
	}
	return splitProportional(amount, stakes, total), nil
}

func splitEqual(amount money.Money, stakes []Stake) []Share {
	n := int64(len(stakes))
	base, rem := amount.Amount()/n, amount.Amount()%n
	shares := make([]Share, len(stakes))
	for i, s := range stakes {
		a := base
		if int64(i) < rem {
			a++
		}
		shares[i] = Share{AccountID: s.AccountID, Amount: amount.WithAmount(a)}
	}
	return shares
}

func splitProportional(amount money.Money, stakes []Stake, total int64) []Share {
	a := decimal.NewFromInt(amount.Amount())
	t := decimal.NewFromInt(total)
	quotients := make([]int64, len(stakes))
	remainders := make([]decimal.Decimal, len(stakes))
	var assigned int64
	for i, s := range stakes {
		q, r := a.Mul(decimal.NewFromInt(s.Contributed.Amount())).QuoRem(t, 0)
		quotients[i] = q.IntPart()
		remainders[i] = r
		assigned += quotients[i]
	}

	order := make([]int, len(stakes))
	for i := range order {
		order[i] = i
	}
	// all remainders share the denominator total, so comparing numerators is exact
	sort.SliceStable(order, func(x, y int) bool {
		return remainders[order[x]].GreaterThan(remainders[order[y]])
	})
	// each remainder is below one unit, so leftover < len(stakes)
	leftover := amount.Amount() - assigned
	for k := int64(0); k < leftover; k++ {
		quotients[order[k]]++
	}

	shares := make([]Share, len(stakes))
	for i, s := range stakes {
		shares[i] = Share{AccountID: s.AccountID, Amount: amount.WithAmount(quotients[i])}
	}
	return shares
}

// SumShares adds up the shares of a distribution.
func SumShares(shares []Share) (money.Money, error) {
	if len(shares) == 0 {
		return money.Money{}, domain.Validationf("no shares")
	}
	sum := shares[0].Amount.WithAmount(0)
	for _, s := range shares {
		var err error
		if sum, err = sum.Add(s.Amount); err != nil {
			return money.Money{}, err
		}
	}
	return sum, nil
}
