package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/walletkit/txsign/pkg/persistence"
	"go.uber.org/zap"
)

const (
	keyPrefixAttempt     = "txsign:attempt:"
	keySetAttempts       = "txsign:attempts:index"
	keySchemaVersion     = "txsign:metadata:schema_version"
	currentSchemaVersion = "attempts-v1"

	operationTimeout = 5 * time.Second
)

// RedisPersistence journals attempts in Redis so several wallet processes can
// share one audit trail. Redis has no prefix iteration, so attempt ids are
// tracked in an index set.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

var _ persistence.IAttemptPersistence = (*RedisPersistence)(nil)

type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address  string
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is prepended to every key, e.g. "wallet-a:" yields
	// "wallet-a:txsign:attempt:<id>"
	KeyPrefix string
}

func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis attempt journal opened", "address", cfg.Address, "db", cfg.DB, "keyPrefix", cfg.KeyPrefix)
	return rp, nil
}

func (r *RedisPersistence) prefixKey(key string) string {
	return r.keyPrefix + key
}

func (r *RedisPersistence) attemptKey(id string) string {
	return r.prefixKey(keyPrefixAttempt + id)
}

func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existing, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if existing != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existing, currentSchemaVersion)
	}
	return nil
}

func (r *RedisPersistence) SaveAttempt(record *persistence.AttemptRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil AttemptRecord")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	data, err := persistence.MarshalAttemptRecord(record)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.attemptKey(record.ID), data, 0)
	pipe.SAdd(ctx, r.prefixKey(keySetAttempts), record.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save attempt %s: %w", record.ID, err)
	}
	return nil
}

func (r *RedisPersistence) LoadAttempt(id string) (*persistence.AttemptRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.attemptKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt %s: %w", id, err)
	}

	return persistence.UnmarshalAttemptRecord(data)
}

func (r *RedisPersistence) ListAttempts() ([]*persistence.AttemptRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	indexKey := r.prefixKey(keySetAttempts)
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list attempt ids: %w", err)
	}

	records := make([]*persistence.AttemptRecord, 0, len(ids))
	if len(ids) == 0 {
		return records, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.attemptKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attempts: %w", err)
	}

	for i, val := range values {
		if val == nil {
			// stale index entry
			r.client.SRem(ctx, indexKey, ids[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for AttemptRecord", "key", keys[i])
			continue
		}

		record, err := persistence.UnmarshalAttemptRecord([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal AttemptRecord, skipping", "key", keys[i], "error", err)
			continue
		}
		records = append(records, record)
	}

	persistence.SortAttempts(records)
	return records, nil
}

func (r *RedisPersistence) DeleteAttempt(id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.attemptKey(id))
	pipe.SRem(ctx, r.prefixKey(keySetAttempts), id)
	_, err := pipe.Exec(ctx)
	return err
}

// Close is idempotent
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis attempt journal closed")
	return nil
}

func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if err == redis.Nil {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}
	return nil
}
