// Package cache defines the short-lived stores the services keep outside the
// transactional database.
package cache

import (
	"context"

	"github.com/coletivobank/coletivo/pkg/domain/draft"
	"github.com/google/uuid"
)

// DraftStore keeps wizard drafts until they expire. Get returns
// domain.ErrNotFound for unknown and expired drafts alike.
type DraftStore interface {
	Get(ctx context.Context, id uuid.UUID) (*draft.Draft, error)
	// Set stores d until d.ExpiresAt.
	Set(ctx context.Context, d *draft.Draft) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Take removes the draft and returns it. Of concurrent callers exactly
	// one gets the draft; the others get domain.ErrNotFound.
	Take(ctx context.Context, id uuid.UUID) (*draft.Draft, error)
}
