package repository

import (
	"errors"

	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres SQLSTATE codes the repositories react to.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// MapGormErrorToDomain converts GORM and Postgres errors to domain errors.
// Conflicts that a retry can resolve are returned unchanged so the unit of
// work can still recognise them.
func MapGormErrorToDomain(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.ErrAlreadyExists
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return domain.ErrAlreadyExists
	}
	return err
}

// WrapError wraps a GORM operation and maps its error.
//
//	err := WrapError(func() error {
//	    return r.db.WithContext(ctx).Create(model).Error
//	})
func WrapError(op func() error) error {
	return MapGormErrorToDomain(op())
}

// IsRetryable reports a serialization failure or deadlock anywhere in err.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}
