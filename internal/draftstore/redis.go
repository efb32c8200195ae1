package draftstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rushrental/carbooking/config"
	"github.com/rushrental/carbooking/internal/domain"
)

// compareAndDeleteScript checks the stored draft's stage and deletes the key
// in a single server-side step, so two concurrent confirms cannot both
// consume the same draft.
var compareAndDeleteScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
	return 0
end
local draft = cjson.decode(raw)
if draft.stage ~= ARGV[1] then
	return 0
end
redis.call('DEL', KEYS[1])
return 1
`)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(cfg config.RedisConfig) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
	}
}

func (s *RedisStore) Put(ctx context.Context, draft *domain.DraftBooking) error {
	payload, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	ttl := time.Until(draft.ExpiresAt)
	if ttl <= 0 {
		return domain.ErrDraftNotFound
	}
	return s.client.Set(ctx, draftKey(draft.ID), payload, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, draftID string) (*domain.DraftBooking, error) {
	data, err := s.client.Get(ctx, draftKey(draftID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrDraftNotFound
		}
		return nil, err
	}

	var draft domain.DraftBooking
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

func (s *RedisStore) Delete(ctx context.Context, draftID string) error {
	return s.client.Del(ctx, draftKey(draftID)).Err()
}

func (s *RedisStore) CompareAndDelete(ctx context.Context, draftID string, expected domain.DraftStage) (bool, error) {
	res, err := compareAndDeleteScript.Run(ctx, s.client, []string{draftKey(draftID)}, string(expected)).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// SweepExpired is a no-op for redis: keys carry their TTL and expire on the
// server.
func (s *RedisStore) SweepExpired(ctx context.Context) (int, error) {
	return 0, nil
}

func draftKey(draftID string) string {
	return "draft:" + draftID
}

var _ Store = (*RedisStore)(nil)
