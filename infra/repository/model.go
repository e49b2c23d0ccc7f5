package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User represents a user record in the database.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username     string    `gorm:"uniqueIndex;not null;size:50"`
	Email        string    `gorm:"uniqueIndex;not null;size:255"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	Names        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Fund is a fund row with its current settings inlined.
type Fund struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Name             string          `gorm:"not null;size:120"`
	Objective        string          `gorm:"type:text"`
	Currency         string          `gorm:"type:varchar(3);not null;default:'BRL'"`
	Balance          int64           `gorm:"not null"`
	Reserved         int64           `gorm:"not null"`
	ContributionRate decimal.Decimal `gorm:"type:DECIMAL(10,4);not null"`
	DistributionType string          `gorm:"type:varchar(16);not null"`
	ZeroStakePolicy  string          `gorm:"type:varchar(16);not null"`
	QuorumPercentage int             `gorm:"not null"`
	Unanimous        bool            `gorm:"not null"`
	VotersScope      string          `gorm:"type:varchar(16);not null"`
	CreatedBy        uuid.UUID       `gorm:"type:uuid;not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (Fund) TableName() string { return "funds" }

// FundMember is a membership row and the member's running ledger.
type FundMember struct {
	FundID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	AccountID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	IsAdmin          bool      `gorm:"not null"`
	Currency         string    `gorm:"type:varchar(3);not null"`
	TotalContributed int64     `gorm:"not null"`
	CapacityCredit   int64     `gorm:"not null"`
	Reserved         int64     `gorm:"not null"`
	Outstanding      int64     `gorm:"not null"`
	JoinedAt         time.Time `gorm:"not null"`
}

func (FundMember) TableName() string { return "fund_members" }

// Contribution is an immutable ledger row.
type Contribution struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	FundID    uuid.UUID `gorm:"type:uuid;not null;index"`
	AccountID uuid.UUID `gorm:"type:uuid;not null"`
	Amount    int64     `gorm:"not null"`
	Currency  string    `gorm:"type:varchar(3);not null"`
	Note      string    `gorm:"type:text"`
	CreatedAt time.Time
}

func (Contribution) TableName() string { return "contributions" }

// FundSettingChange is an append-only settings history row.
type FundSettingChange struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	FundID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Field     string    `gorm:"type:varchar(32);not null"`
	OldValue  string    `gorm:"type:text"`
	NewValue  string    `gorm:"type:text"`
	ChangedBy uuid.UUID `gorm:"type:uuid;not null"`
	ChangedAt time.Time `gorm:"not null"`
}

func (FundSettingChange) TableName() string { return "fund_setting_changes" }

// CapitalRequest is a request row; the plan is kept as submitted in JSON.
type CapitalRequest struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	FundID          uuid.UUID `gorm:"type:uuid;not null;index"`
	AccountID       uuid.UUID `gorm:"type:uuid;not null"`
	Amount          int64     `gorm:"not null"`
	Outstanding     int64     `gorm:"not null"`
	Currency        string    `gorm:"type:varchar(3);not null"`
	Status          string    `gorm:"type:varchar(16);not null"`
	Reason          string    `gorm:"type:text;not null"`
	RejectionReason string    `gorm:"type:text"`
	Plan            string    `gorm:"type:jsonb;not null"`
	IdempotencyKey  *string   `gorm:"size:255"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DecidedAt       *time.Time
}

func (CapitalRequest) TableName() string { return "capital_requests" }

// Installment is one scheduled repayment of a request.
type Installment struct {
	RequestID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Number    int       `gorm:"primaryKey"`
	Amount    int64     `gorm:"not null"`
	Paid      int64     `gorm:"not null"`
	DueDate   time.Time `gorm:"type:date;not null"`
}

func (Installment) TableName() string { return "installments" }

// RequestVote is one voter's decision.
type RequestVote struct {
	RequestID uuid.UUID `gorm:"type:uuid;primaryKey"`
	VoterID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Approve   bool      `gorm:"not null"`
	Reason    string    `gorm:"type:text"`
	CreatedAt time.Time
}

func (RequestVote) TableName() string { return "request_votes" }

// Retribution is a repayment row.
type Retribution struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	FundID       uuid.UUID `gorm:"type:uuid;not null"`
	RequestID    uuid.UUID `gorm:"type:uuid;not null;index"`
	PayerID      uuid.UUID `gorm:"type:uuid;not null"`
	Amount       int64     `gorm:"not null"`
	Currency     string    `gorm:"type:varchar(3);not null"`
	Distribution string    `gorm:"type:varchar(16);not null"`
	CreatedAt    time.Time
	Shares       []RetributionShare `gorm:"foreignKey:RetributionID"`
}

func (Retribution) TableName() string { return "retributions" }

// RetributionShare is one member's capacity increase from a retribution.
type RetributionShare struct {
	RetributionID uuid.UUID `gorm:"type:uuid;primaryKey"`
	AccountID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	Position      int       `gorm:"not null"`
	Amount        int64     `gorm:"not null"`
}

func (RetributionShare) TableName() string { return "retribution_shares" }
