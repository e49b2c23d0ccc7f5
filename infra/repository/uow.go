package repository

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/repository"
	"gorm.io/gorm"
)

// DefaultMaxRetries bounds how often a conflicting transaction is replayed.
const DefaultMaxRetries = 5

// UoW provides transaction boundary and repository access in one abstraction.
type UoW struct {
	db           *gorm.DB
	tx           *gorm.DB
	repoRegistry map[reflect.Type]func(*gorm.DB) any
	maxRetries   int
	newBackOff   func() backoff.BackOff
	logger       *slog.Logger
}

// Option configures a UoW.
type Option func(*UoW)

// WithMaxRetries sets how many times a conflicting transaction is retried.
func WithMaxRetries(n int) Option {
	return func(u *UoW) { u.maxRetries = n }
}

// WithBackOff replaces the retry schedule.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(u *UoW) { u.newBackOff = f }
}

// WithLogger sets the logger used to report retries.
func WithLogger(l *slog.Logger) Option {
	return func(u *UoW) { u.logger = l }
}

// NewUoW creates a new UoW for the given *gorm.DB.
func NewUoW(db *gorm.DB, opts ...Option) *UoW {
	u := &UoW{
		db: db,
		repoRegistry: map[reflect.Type]func(*gorm.DB) any{
			repository.TypeOf[repository.UserRepository]():          func(db *gorm.DB) any { return NewUserRepository(db) },
			repository.TypeOf[repository.FundRepository]():          func(db *gorm.DB) any { return NewFundRepository(db) },
			repository.TypeOf[repository.MemberRepository]():        func(db *gorm.DB) any { return NewMemberRepository(db) },
			repository.TypeOf[repository.ContributionRepository]():  func(db *gorm.DB) any { return NewContributionRepository(db) },
			repository.TypeOf[repository.SettingChangeRepository](): func(db *gorm.DB) any { return NewSettingChangeRepository(db) },
			repository.TypeOf[repository.RequestRepository]():       func(db *gorm.DB) any { return NewRequestRepository(db) },
			repository.TypeOf[repository.VoteRepository]():          func(db *gorm.DB) any { return NewVoteRepository(db) },
			repository.TypeOf[repository.RetributionRepository]():   func(db *gorm.DB) any { return NewRetributionRepository(db) },
		},
		maxRetries: DefaultMaxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 10 * time.Millisecond
			b.MaxInterval = 500 * time.Millisecond
			return b
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Do runs fn in a transaction, replaying it on serialization failures and
// deadlocks. Nested calls on a transaction-bound UoW run in a savepoint and
// are not retried on their own.
func (u *UoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	if u.tx != nil {
		return u.tx.Transaction(func(tx *gorm.DB) error {
			return fn(u.bind(tx))
		})
	}

	attempt := 0
	op := func() error {
		attempt++
		err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(u.bind(tx))
		})
		if err == nil {
			return nil
		}
		if IsRetryable(err) {
			u.logger.Warn("transaction conflict, retrying", "attempt", attempt, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(u.newBackOff(), uint64(u.maxRetries)), ctx)
	err := backoff.Retry(op, policy)
	if err != nil && IsRetryable(err) {
		return fmt.Errorf("%w: gave up after %d attempts: %v", domain.ErrConcurrencyConflict, attempt, err)
	}
	return err
}

func (u *UoW) bind(tx *gorm.DB) *UoW {
	return &UoW{
		db:           u.db,
		tx:           tx,
		repoRegistry: u.repoRegistry,
		maxRetries:   u.maxRetries,
		newBackOff:   u.newBackOff,
		logger:       u.logger,
	}
}

func (u *UoW) session() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

// GetRepository returns a repository bound to the current transaction, or to
// the plain connection outside Do.
func (u *UoW) GetRepository(repoType reflect.Type) (any, error) {
	constructor, ok := u.repoRegistry[repoType]
	if !ok {
		return nil, fmt.Errorf("unsupported repository type: %v", repoType)
	}
	return constructor(u.session()), nil
}

func (u *UoW) UserRepository() (repository.UserRepository, error) {
	return repository.Get[repository.UserRepository](u)
}

func (u *UoW) FundRepository() (repository.FundRepository, error) {
	return repository.Get[repository.FundRepository](u)
}

func (u *UoW) MemberRepository() (repository.MemberRepository, error) {
	return repository.Get[repository.MemberRepository](u)
}

func (u *UoW) ContributionRepository() (repository.ContributionRepository, error) {
	return repository.Get[repository.ContributionRepository](u)
}

func (u *UoW) SettingChangeRepository() (repository.SettingChangeRepository, error) {
	return repository.Get[repository.SettingChangeRepository](u)
}

func (u *UoW) RequestRepository() (repository.RequestRepository, error) {
	return repository.Get[repository.RequestRepository](u)
}

func (u *UoW) VoteRepository() (repository.VoteRepository, error) {
	return repository.Get[repository.VoteRepository](u)
}

func (u *UoW) RetributionRepository() (repository.RetributionRepository, error) {
	return repository.Get[repository.RetributionRepository](u)
}

var _ repository.UnitOfWork = (*UoW)(nil)
