package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"PolyLedger/internal/period"
)

// RedisStore keeps period results in Redis as JSON blobs. Retention is
// deliberately much longer than the freshness TTL: an expired-but-
// present entry is still serveable as stale, so entries only leave
// Redis when the wallet goes cold.
type RedisStore struct {
	rdb       *redis.Client
	retention time.Duration
}

// DefaultRetention is how long an entry survives without refresh.
const DefaultRetention = 7 * 24 * time.Hour

func NewRedisStore(rdb *redis.Client, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisStore{rdb: rdb, retention: retention}
}

func (s *RedisStore) Get(ctx context.Context, wallet string, p period.Period) (*Entry, error) {
	data, err := s.rdb.Get(ctx, resultKey(wallet, p)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s/%s: %w", wallet, p, err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		// A corrupt blob is a miss, not a read failure.
		return nil, nil
	}
	return &e, nil
}

// PutAll writes the batch in one transactional pipeline so a reader
// sees either the old snapshot or the new one for every period.
func (s *RedisStore) PutAll(ctx context.Context, entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}
	payloads := make(map[string][]byte, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("cache marshal %s/%s: %w", e.Wallet, e.Period, err)
		}
		payloads[resultKey(e.Wallet, e.Period)] = data
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, data := range payloads {
			pipe.Set(ctx, key, data, s.retention)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache put batch: %w", err)
	}
	return nil
}
