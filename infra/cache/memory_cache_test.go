package cache

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/domain/draft"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDraft(t *testing.T, ttl time.Duration) *draft.Draft {
	t.Helper()
	d, err := draft.New(draft.KindContribution, uuid.New(), json.RawMessage(`{"amount":"120.00"}`), ttl, time.Now())
	require.NoError(t, err)
	return d
}

func TestMemoryDraftStore_SetGetDelete(t *testing.T) {
	store := NewMemoryDraftStore(time.Minute)
	defer store.Close()
	ctx := context.Background()
	d := newDraft(t, time.Hour)

	require.NoError(t, store.Set(ctx, d))
	got, err := store.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.OwnerID, got.OwnerID)
	assert.JSONEq(t, `{"amount":"120.00"}`, string(got.Payload))

	got.Payload[2] = 'X'
	again, err := store.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"120.00"}`, string(again.Payload), "stored payload is not aliased")

	require.NoError(t, store.Delete(ctx, d.ID))
	_, err = store.Get(ctx, d.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryDraftStore_TakeOnce(t *testing.T) {
	store := NewMemoryDraftStore(time.Minute)
	defer store.Close()
	ctx := context.Background()
	d := newDraft(t, time.Hour)
	require.NoError(t, store.Set(ctx, d))

	const callers = 16
	var wg sync.WaitGroup
	var taken atomic.Int32
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := store.Take(ctx, d.ID)
			if err == nil {
				assert.Equal(t, d.ID, got.ID)
				taken.Add(1)
				return
			}
			assert.ErrorIs(t, err, domain.ErrNotFound)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), taken.Load())

	_, err := store.Get(ctx, d.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryDraftStore_Expiry(t *testing.T) {
	store := NewMemoryDraftStore(10 * time.Millisecond)
	defer store.Close()
	ctx := context.Background()
	d := newDraft(t, time.Hour)
	require.NoError(t, store.Set(ctx, d))

	store.mu.Lock()
	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	store.mu.Unlock()

	_, err := store.Get(ctx, d.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Eventually(t, func() bool {
		store.mu.RLock()
		defer store.mu.RUnlock()
		return len(store.drafts) == 0
	}, time.Second, 10*time.Millisecond, "sweeper removes expired drafts")
}
