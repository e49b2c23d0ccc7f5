package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coletivobank/coletivo/pkg/cache"
	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/domain/draft"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisDraftStore implements cache.DraftStore on Redis, letting Redis expire
// keys at the draft's deadline.
type RedisDraftStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisDraftStore stores drafts under "<prefix>:draft:<id>".
func NewRedisDraftStore(client *redis.Client, prefix string, logger *slog.Logger) *RedisDraftStore {
	return &RedisDraftStore{client: client, prefix: prefix, logger: logger}
}

func (r *RedisDraftStore) key(id uuid.UUID) string {
	return r.prefix + ":draft:" + id.String()
}

func (r *RedisDraftStore) Get(ctx context.Context, id uuid.UUID) (*draft.Draft, error) {
	return r.decode(id, r.client.Get(ctx, r.key(id)), "get")
}

// Take relies on GETDEL, so only one caller reads the value.
func (r *RedisDraftStore) Take(ctx context.Context, id uuid.UUID) (*draft.Draft, error) {
	return r.decode(id, r.client.GetDel(ctx, r.key(id)), "take")
}

func (r *RedisDraftStore) decode(id uuid.UUID, cmd *redis.StringCmd, op string) (*draft.Draft, error) {
	val, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		r.logger.Debug("Redis draft miss", "draft_id", id, "op", op)
		return nil, fmt.Errorf("%w: draft %s", domain.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Redis draft "+op+" error", "draft_id", id, "error", err)
		return nil, err
	}
	var d draft.Draft
	if err := json.Unmarshal(val, &d); err != nil {
		r.logger.Error("Redis draft unmarshal error", "draft_id", id, "error", err)
		return nil, err
	}
	return &d, nil
}

func (r *RedisDraftStore) Set(ctx context.Context, d *draft.Draft) error {
	ttl := time.Until(d.ExpiresAt)
	if ttl <= 0 {
		return r.Delete(ctx, d.ID)
	}
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(d.ID), data, ttl).Err(); err != nil {
		r.logger.Error("Redis draft set error", "draft_id", d.ID, "error", err)
		return err
	}
	r.logger.Debug("Redis draft set", "draft_id", d.ID, "ttl", ttl)
	return nil
}

func (r *RedisDraftStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		r.logger.Error("Redis draft delete error", "draft_id", id, "error", err)
		return err
	}
	return nil
}

var _ cache.DraftStore = (*RedisDraftStore)(nil)
