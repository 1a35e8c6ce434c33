// Package journal opens the attempt journal selected by configuration.
package journal

import (
	"fmt"

	"github.com/walletkit/txsign/pkg/config"
	"github.com/walletkit/txsign/pkg/persistence"
	"github.com/walletkit/txsign/pkg/persistence/badger"
	"github.com/walletkit/txsign/pkg/persistence/memory"
	"github.com/walletkit/txsign/pkg/persistence/redis"
	"go.uber.org/zap"
)

// Open returns the journal backend named by cfg.Type
func Open(cfg config.PersistenceConfig, logger *zap.Logger) (persistence.IAttemptPersistence, error) {
	switch cfg.Type {
	case config.PersistenceTypeMemory, "":
		logger.Sugar().Warnw("Using in-memory attempt journal, history is lost on exit")
		return memory.NewMemoryPersistence(), nil
	case config.PersistenceTypeBadger:
		return badger.NewBadgerPersistence(cfg.BadgerPath, logger)
	case config.PersistenceTypeRedis:
		return redis.NewRedisPersistence(&redis.RedisConfig{
			Address:   cfg.RedisAddress,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", cfg.Type)
	}
}
