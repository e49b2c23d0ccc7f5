// Package access holds the membership checks shared by the fund services.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/domain/fund"
	"github.com/coletivobank/coletivo/pkg/repository"
	"github.com/google/uuid"
)

// Member returns the caller's membership. Non-members get ErrForbidden so a
// fund's existence is only visible to the people in it.
func Member(
	ctx context.Context,
	members repository.MemberRepository,
	fundID, accountID uuid.UUID,
	forUpdate bool,
) (*fund.Member, error) {
	get := members.Get
	if forUpdate {
		get = members.GetForUpdate
	}
	m, err := get(ctx, fundID, accountID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s is not a member of fund %s", domain.ErrForbidden, accountID, fundID)
	}
	return m, err
}

// Admin is Member restricted to fund admins.
func Admin(
	ctx context.Context,
	members repository.MemberRepository,
	fundID, accountID uuid.UUID,
) (*fund.Member, error) {
	m, err := Member(ctx, members, fundID, accountID, false)
	if err != nil {
		return nil, err
	}
	if !m.IsAdmin {
		return nil, fmt.Errorf("%w: only fund admins can do this", domain.ErrForbidden)
	}
	return m, nil
}

// Find picks accountID out of a locked member list.
func Find(members []*fund.Member, accountID uuid.UUID) (*fund.Member, error) {
	for _, m := range members {
		if m.AccountID == accountID {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s is not a member of this fund", domain.ErrForbidden, accountID)
}
