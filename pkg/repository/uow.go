package repository

import (
	"context"
	"reflect"
)

// UnitOfWork defines the contract for transactional work and type-safe
// repository access.
//
// Do runs fn inside one database transaction. Repositories obtained from the
// UnitOfWork passed to fn are bound to that transaction; the transaction is
// rolled back if fn returns an error. Transactions that fail on a
// serialization conflict or deadlock are retried from the start, so fn must
// not have side effects outside the transaction. When retries are exhausted
// Do returns domain.ErrConcurrencyConflict.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(uow UnitOfWork) error) error

	// GetRepository returns a repository of the requested interface type.
	//   repoAny, err := uow.GetRepository(reflect.TypeOf((*FundRepository)(nil)).Elem())
	GetRepository(repoType reflect.Type) (any, error)

	UserRepository() (UserRepository, error)
	FundRepository() (FundRepository, error)
	MemberRepository() (MemberRepository, error)
	ContributionRepository() (ContributionRepository, error)
	SettingChangeRepository() (SettingChangeRepository, error)
	RequestRepository() (RequestRepository, error)
	VoteRepository() (VoteRepository, error)
	RetributionRepository() (RetributionRepository, error)
}

// TypeOf returns the reflect.Type of the repository interface T.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Get fetches the repository interface T from uow.
func Get[T any](uow UnitOfWork) (T, error) {
	var zero T
	repoAny, err := uow.GetRepository(TypeOf[T]())
	if err != nil {
		return zero, err
	}
	repo, ok := repoAny.(T)
	if !ok {
		return zero, &WrongRepositoryError{Want: TypeOf[T](), Got: reflect.TypeOf(repoAny)}
	}
	return repo, nil
}

// WrongRepositoryError reports a registry entry of the wrong type.
type WrongRepositoryError struct {
	Want, Got reflect.Type
}

func (e *WrongRepositoryError) Error() string {
	got := "nil"
	if e.Got != nil {
		got = e.Got.String()
	}
	return "repository registry returned " + got + " for " + e.Want.String()
}
