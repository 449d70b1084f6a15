package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	KeyPrefix  = "pool_report:"
	LatestKey  = "pool_report:latest"
	DefaultTTL = 24 * time.Hour
)

// ErrNotFound is returned by Load for an unknown or expired run.
var ErrNotFound = errors.New("report not found")

// RedisStore keeps reports in Redis under pool_report:<run id>, optionally encrypted.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	sealer *sealer
}

func NewRedisStore(client *redis.Client, ttl time.Duration, encryptionKey []byte) (*RedisStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s, err := newSealer(encryptionKey)
	if err != nil {
		return nil, err
	}
	return &RedisStore{client: client, ttl: ttl, sealer: s}, nil
}

func (rs *RedisStore) encode(r *Report) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return rs.sealer.seal(data)
}

func (rs *RedisStore) decode(data []byte) (*Report, error) {
	plain, err := rs.sealer.open(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(plain, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &r, nil
}

// Save stores r and points the latest marker at it.
func (rs *RedisStore) Save(ctx context.Context, r *Report) error {
	data, err := rs.encode(r)
	if err != nil {
		return err
	}

	pipe := rs.client.TxPipeline()
	pipe.Set(ctx, KeyPrefix+r.RunID, data, rs.ttl)
	pipe.Set(ctx, LatestKey, r.RunID, rs.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store report in Redis: %w", err)
	}
	return nil
}

func (rs *RedisStore) Load(ctx context.Context, runID string) (*Report, error) {
	data, err := rs.client.Get(ctx, KeyPrefix+runID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch report from Redis: %w", err)
	}
	return rs.decode(data)
}

// Latest loads the most recently saved report.
func (rs *RedisStore) Latest(ctx context.Context) (*Report, error) {
	runID, err := rs.client.Get(ctx, LatestKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest run id from Redis: %w", err)
	}
	return rs.Load(ctx, runID)
}
