package accounting

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/money"
)

// MaxInstallments bounds the length of any repayment schedule.
const MaxInstallments = 360

// Interval is the spacing between automatic installments.
type Interval string

const (
	IntervalDaily      Interval = "daily"
	IntervalWeekly     Interval = "weekly"
	IntervalMonthly    Interval = "monthly"
	IntervalBimonthly  Interval = "bimonthly"
	IntervalQuarterly  Interval = "quarterly"
	IntervalSemiannual Interval = "semiannual"
	IntervalAnnual     Interval = "annual"
)

var intervalAliases = map[string]Interval{
	"daily":      IntervalDaily,
	"diario":     IntervalDaily,
	"diário":     IntervalDaily,
	"weekly":     IntervalWeekly,
	"semanal":    IntervalWeekly,
	"monthly":    IntervalMonthly,
	"mensal":     IntervalMonthly,
	"bimonthly":  IntervalBimonthly,
	"bimestral":  IntervalBimonthly,
	"quarterly":  IntervalQuarterly,
	"trimestral": IntervalQuarterly,
	"semiannual": IntervalSemiannual,
	"biannual":   IntervalSemiannual,
	"semestral":  IntervalSemiannual,
	"annual":     IntervalAnnual,
	"yearly":     IntervalAnnual,
	"anual":      IntervalAnnual,
}

// ParseInterval maps API and wizard labels onto an Interval.
func ParseInterval(s string) (Interval, error) {
	if i, ok := intervalAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return i, nil
	}
	return "", domain.Validationf("unknown installment interval %q", s)
}

// UnmarshalText accepts every label ParseInterval knows.
func (i *Interval) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*i = ""
		return nil
	}
	v, err := ParseInterval(string(b))
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// months returns the calendar months per step, or 0 for day-based intervals.
func (i Interval) months() int {
	switch i {
	case IntervalMonthly:
		return 1
	case IntervalBimonthly:
		return 2
	case IntervalQuarterly:
		return 3
	case IntervalSemiannual:
		return 6
	case IntervalAnnual:
		return 12
	}
	return 0
}

// Advance returns start moved forward by n intervals.
//
// Month-based steps are always computed from start, and a day-of-month that
// does not exist in the target month is clamped to that month's last day:
// monthly from Jan 31 gives Feb 28 (or 29), Mar 31, Apr 30.
func (i Interval) Advance(start time.Time, n int) (time.Time, error) {
	switch i {
	case IntervalDaily:
		return start.AddDate(0, 0, n), nil
	case IntervalWeekly:
		return start.AddDate(0, 0, 7*n), nil
	}
	m := i.months()
	if m == 0 {
		return time.Time{}, domain.Validationf("unknown installment interval %q", i)
	}
	return addMonthsClamped(start, m*n), nil
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, mo, d := t.Date()
	first := time.Date(y, mo+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// DateOnly truncates t to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Installment is one dated repayment of a schedule.
type Installment struct {
	Number  int         `json:"number"`
	Amount  money.Money `json:"amount"`
	DueDate time.Time   `json:"due_date"`
}

// AutomaticPlan describes equal installments at a fixed interval.
type AutomaticPlan struct {
	Total     money.Money
	StartDate time.Time
	Count     int
	Interval  Interval
}

// Schedule lays out the plan. Every installment is floor(total / count) and
// the last one absorbs the remainder, so the amounts sum exactly to total.
func (p AutomaticPlan) Schedule() ([]Installment, error) {
	if !p.Total.IsPositive() {
		return nil, domain.Validationf("total owed must be positive: %s", p.Total)
	}
	if p.Count < 1 {
		return nil, domain.Validationf("installment count must be at least 1, got %d", p.Count)
	}
	if p.Count > MaxInstallments {
		return nil, domain.Validationf("installment count cannot exceed %d, got %d", MaxInstallments, p.Count)
	}
	if p.StartDate.IsZero() {
		return nil, domain.Validationf("start date is required")
	}
	n := int64(p.Count)
	base := p.Total.Amount() / n
	if base < 1 {
		return nil, domain.Validationf(
			"%s over %d installments is below the minimum of %s per installment",
			p.Total, p.Count, p.Total.Unit(),
		)
	}
	start := DateOnly(p.StartDate)
	out := make([]Installment, p.Count)
	for i := range out {
		due, err := p.Interval.Advance(start, i)
		if err != nil {
			return nil, err
		}
		amount := base
		if i == p.Count-1 {
			amount = p.Total.Amount() - base*(n-1)
		}
		out[i] = Installment{Number: i + 1, Amount: p.Total.WithAmount(amount), DueDate: due}
	}
	return out, nil
}

// CustomInstallment is a user-chosen installment.
type CustomInstallment struct {
	Amount  money.Money `json:"amount"`
	DueDate time.Time   `json:"due_date"`
}

// CustomSchedule validates user-chosen installments against total and today.
// Installments are numbered by due date; equal dates keep their input order.
func CustomSchedule(total money.Money, items []CustomInstallment, today time.Time) ([]Installment, error) {
	b, err := NewCustomPlanBuilder(total, today)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if err := b.Add(it); err != nil {
			return nil, err
		}
	}
	return b.Finalize()
}

// CustomPlanBuilder assembles a custom plan one installment at a time while
// tracking the balance still to be scheduled.
type CustomPlanBuilder struct {
	total     money.Money
	remaining money.Money
	today     time.Time
	items     []CustomInstallment
}

// NewCustomPlanBuilder starts a custom plan for total.
func NewCustomPlanBuilder(total money.Money, today time.Time) (*CustomPlanBuilder, error) {
	if !total.IsPositive() {
		return nil, domain.Validationf("total owed must be positive: %s", total)
	}
	return &CustomPlanBuilder{total: total, remaining: total, today: DateOnly(today)}, nil
}

// Remaining is the amount not yet assigned to an installment.
func (b *CustomPlanBuilder) Remaining() money.Money {
	return b.remaining
}

// Add appends an installment, rejecting anything that would overshoot the total.
func (b *CustomPlanBuilder) Add(it CustomInstallment) error {
	if len(b.items) >= MaxInstallments {
		return domain.Validationf("installment count cannot exceed %d", MaxInstallments)
	}
	if err := mustSameCurrency(b.total, it.Amount); err != nil {
		return domain.Validationf("installment %d: %v", len(b.items)+1, err)
	}
	if !it.Amount.IsPositive() {
		return domain.Validationf("installment %d amount must be positive", len(b.items)+1)
	}
	if it.DueDate.IsZero() {
		return domain.Validationf("installment %d needs a due date", len(b.items)+1)
	}
	due := DateOnly(it.DueDate.In(b.today.Location()))
	if due.Before(b.today) {
		return domain.Validationf("installment %d is due in the past (%s)", len(b.items)+1, due.Format(time.DateOnly))
	}
	if it.Amount.Amount() > b.remaining.Amount() {
		return domain.Validationf(
			"installment %d of %s exceeds the remaining %s",
			len(b.items)+1, it.Amount, b.remaining,
		)
	}
	b.remaining = b.remaining.WithAmount(b.remaining.Amount() - it.Amount.Amount())
	b.items = append(b.items, CustomInstallment{Amount: it.Amount, DueDate: due})
	return nil
}

// Finalize returns the schedule once the whole total has been assigned.
func (b *CustomPlanBuilder) Finalize() ([]Installment, error) {
	if len(b.items) == 0 {
		return nil, domain.Validationf("a custom plan needs at least one installment")
	}
	if !b.remaining.IsZero() {
		return nil, domain.Validationf(
			"installments sum to %s short of the total %s",
			b.remaining, b.total,
		)
	}
	items := make([]CustomInstallment, len(b.items))
	copy(items, b.items)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DueDate.Before(items[j].DueDate)
	})
	out := make([]Installment, len(items))
	for i, it := range items {
		out[i] = Installment{Number: i + 1, Amount: it.Amount, DueDate: it.DueDate}
	}
	return out, nil
}

// PlanMode selects automatic or custom installments.
type PlanMode string

const (
	PlanAutomatic PlanMode = "automatic"
	PlanCustom    PlanMode = "custom"
)

// Plan is a repayment plan as submitted with a capital request.
type Plan struct {
	Mode      PlanMode            `json:"mode"`
	StartDate time.Time           `json:"start_date,omitempty"`
	Count     int                 `json:"installment_count,omitempty"`
	Interval  Interval            `json:"interval,omitempty"`
	Custom    []CustomInstallment `json:"installments,omitempty"`
}

// Schedule produces the concrete installments of the plan for total.
// The automatic start date, like every custom date, may not be in the past.
func (p Plan) Schedule(total money.Money, today time.Time) ([]Installment, error) {
	switch p.Mode {
	case PlanAutomatic:
		if p.StartDate.IsZero() {
			return nil, domain.Validationf("start date is required")
		}
		start := DateOnly(p.StartDate.In(today.Location()))
		if start.Before(DateOnly(today)) {
			return nil, domain.Validationf("start date %s is in the past", start.Format(time.DateOnly))
		}
		return AutomaticPlan{Total: total, StartDate: start, Count: p.Count, Interval: p.Interval}.Schedule()
	case PlanCustom:
		return CustomSchedule(total, p.Custom, today)
	default:
		return nil, domain.Validationf("unknown payment plan mode %q", p.Mode)
	}
}

type dateJSON struct {
	Amount  money.Money `json:"amount"`
	DueDate string      `json:"due_date"`
}

type planJSON struct {
	Mode      PlanMode   `json:"mode"`
	StartDate string     `json:"start_date,omitempty"`
	Count     int        `json:"installment_count,omitempty"`
	Interval  Interval   `json:"interval,omitempty"`
	Custom    []dateJSON `json:"installments,omitempty"`
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

// ParseDate reads a YYYY-MM-DD date, or a full RFC 3339 timestamp, as a
// calendar date in UTC.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, domain.Validationf("invalid date %q, want YYYY-MM-DD", s)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

// MarshalJSON writes dates as YYYY-MM-DD.
func (p Plan) MarshalJSON() ([]byte, error) {
	out := planJSON{Mode: p.Mode, StartDate: formatDate(p.StartDate), Count: p.Count, Interval: p.Interval}
	for _, c := range p.Custom {
		out.Custom = append(out.Custom, dateJSON{Amount: c.Amount, DueDate: formatDate(c.DueDate)})
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads dates written by MarshalJSON or as RFC 3339.
func (p *Plan) UnmarshalJSON(b []byte) error {
	var in planJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	start, err := ParseDate(in.StartDate)
	if err != nil {
		return err
	}
	*p = Plan{Mode: in.Mode, StartDate: start, Count: in.Count, Interval: in.Interval}
	for _, c := range in.Custom {
		due, err := ParseDate(c.DueDate)
		if err != nil {
			return err
		}
		p.Custom = append(p.Custom, CustomInstallment{Amount: c.Amount, DueDate: due})
	}
	return nil
}

// MarshalJSON writes the due date as YYYY-MM-DD.
func (i Installment) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Number  int         `json:"number"`
		Amount  money.Money `json:"amount"`
		DueDate string      `json:"due_date"`
	}{i.Number, i.Amount, formatDate(i.DueDate)})
}

// SumInstallments adds up installment amounts.
func SumInstallments(items []Installment) (money.Money, error) {
	if len(items) == 0 {
		return money.Money{}, domain.Validationf("no installments")
	}
	sum := items[0].Amount.WithAmount(0)
	for _, it := range items {
		var err error
		if sum, err = sum.Add(it.Amount); err != nil {
			return money.Money{}, err
		}
	}
	return sum, nil
}
