// Package memory is an in-process implementation of repository.UnitOfWork.
// It is used by tests and by the server when DATABASE_DRIVER=memory.
//
// Do runs one transaction at a time. Each transaction works on a copy of the
// store that replaces the committed state only when fn succeeds, so a failed
// transaction leaves no trace.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/coletivobank/coletivo/pkg/repository"
)

// UoW is the in-memory unit of work.
type UoW struct {
	mu    *sync.Mutex
	root  **state
	tx    *state
	repos map[reflect.Type]func(view) any
}

// view resolves the state a repository call works on. Outside a
// transaction every call takes the store lock for its duration.
type view struct {
	tx  *state
	uow *UoW
}

func (v view) open() (*state, func()) {
	if v.tx != nil {
		return v.tx, func() {}
	}
	v.uow.mu.Lock()
	return *v.uow.root, v.uow.mu.Unlock
}

// NewUoW returns an empty store.
func NewUoW() *UoW {
	s := newState()
	return &UoW{
		mu:   &sync.Mutex{},
		root: &s,
		repos: map[reflect.Type]func(view) any{
			repository.TypeOf[repository.UserRepository]():          func(v view) any { return &userRepo{v} },
			repository.TypeOf[repository.FundRepository]():          func(v view) any { return &fundRepo{v} },
			repository.TypeOf[repository.MemberRepository]():        func(v view) any { return &memberRepo{v} },
			repository.TypeOf[repository.ContributionRepository]():  func(v view) any { return &contributionRepo{v} },
			repository.TypeOf[repository.SettingChangeRepository](): func(v view) any { return &settingChangeRepo{v} },
			repository.TypeOf[repository.RequestRepository]():       func(v view) any { return &requestRepo{v} },
			repository.TypeOf[repository.VoteRepository]():          func(v view) any { return &voteRepo{v} },
			repository.TypeOf[repository.RetributionRepository]():   func(v view) any { return &retributionRepo{v} },
		},
	}
}

// Do runs fn against a private copy of the store and commits it on success.
// A nested Do works on a copy of the enclosing transaction.
func (u *UoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.tx != nil {
		work := u.tx.clone()
		if err := fn(u.bind(work)); err != nil {
			return err
		}
		*u.tx = *work
		return nil
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	work := (*u.root).clone()
	if err := fn(u.bind(work)); err != nil {
		return err
	}
	*u.root = work
	return nil
}

func (u *UoW) bind(s *state) *UoW {
	return &UoW{mu: u.mu, root: u.root, tx: s, repos: u.repos}
}

// GetRepository returns a repository over the current transaction. Outside
// Do each call is its own transaction; such repositories must not be used
// from inside a Do callback.
func (u *UoW) GetRepository(repoType reflect.Type) (any, error) {
	constructor, ok := u.repos[repoType]
	if !ok {
		return nil, fmt.Errorf("unsupported repository type: %v", repoType)
	}
	return constructor(view{tx: u.tx, uow: u}), nil
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
