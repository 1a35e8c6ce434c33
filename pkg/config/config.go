package config

import (
	"fmt"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for the signing engine and CLI
const (
	EnvTxSignLedgerTimeout    = "TXSIGN_LEDGER_TIMEOUT"
	EnvTxSignApduChunkRate    = "TXSIGN_APDU_CHUNK_RATE"
	EnvTxSignPersistenceType  = "TXSIGN_PERSISTENCE_TYPE"
	EnvTxSignBadgerPath       = "TXSIGN_BADGER_PATH"
	EnvTxSignRedisAddress     = "TXSIGN_REDIS_ADDRESS"
	EnvTxSignRedisPassword    = "TXSIGN_REDIS_PASSWORD"
	EnvTxSignRedisDB          = "TXSIGN_REDIS_DB"
	EnvTxSignRedisKeyPrefix   = "TXSIGN_REDIS_KEY_PREFIX"
	EnvTxSignMnemonic         = "TXSIGN_MNEMONIC"
	EnvTxSignVerbose          = "TXSIGN_VERBOSE"
	EnvTxSignMetricsNamespace = "TXSIGN_METRICS_NAMESPACE"
)

const (
	// DefaultLedgerTimeout bounds a whole hardware round trip: scan, connect,
	// on-device approval and signature delivery.
	DefaultLedgerTimeout = 10 * time.Second

	// DefaultApduChunkRate is the number of APDU chunks per second written to
	// the device. BLE peripherals drop writes that arrive faster than this.
	DefaultApduChunkRate = 50.0

	DefaultMetricsNamespace = "txsign"
)

type PersistenceType string

func (p PersistenceType) String() string {
	return string(p)
}

const (
	PersistenceTypeMemory PersistenceType = "memory"
	PersistenceTypeBadger PersistenceType = "badger"
	PersistenceTypeRedis  PersistenceType = "redis"
)

var supportedPersistenceTypes = []string{
	PersistenceTypeMemory.String(),
	PersistenceTypeBadger.String(),
	PersistenceTypeRedis.String(),
}

// ParsePersistenceType converts a user supplied value into a PersistenceType
func ParsePersistenceType(value string) (PersistenceType, error) {
	switch PersistenceType(strings.ToLower(strings.TrimSpace(value))) {
	case PersistenceTypeMemory:
		return PersistenceTypeMemory, nil
	case PersistenceTypeBadger:
		return PersistenceTypeBadger, nil
	case PersistenceTypeRedis:
		return PersistenceTypeRedis, nil
	default:
		return "", fmt.Errorf("unsupported persistence type %q. Supported: %s",
			value, strings.Join(supportedPersistenceTypes, ", "))
	}
}

// PersistenceConfig selects where signing attempts are journaled
type PersistenceConfig struct {
	Type PersistenceType `json:"type" yaml:"type"`

	// Badger
	BadgerPath string `json:"badgerPath" yaml:"badgerPath"`

	// Redis
	RedisAddress   string `json:"redisAddress" yaml:"redisAddress"`
	RedisPassword  string `json:"redisPassword" yaml:"redisPassword"`
	RedisDB        int    `json:"redisDb" yaml:"redisDb"`
	RedisKeyPrefix string `json:"redisKeyPrefix" yaml:"redisKeyPrefix"`
}

// SigningConfig represents the complete configuration of the signing engine
type SigningConfig struct {
	// Hardware signing
	LedgerTimeout time.Duration `json:"ledgerTimeout" yaml:"ledgerTimeout"`
	ApduChunkRate float64       `json:"apduChunkRate" yaml:"apduChunkRate"`

	// Attempt journal
	Persistence PersistenceConfig `json:"persistence" yaml:"persistence"`

	// Metrics
	MetricsNamespace string `json:"metricsNamespace" yaml:"metricsNamespace"`

	// Operational settings
	Debug bool `json:"debug" yaml:"debug"`
}

// NewDefaultSigningConfig returns a configuration with every default applied
func NewDefaultSigningConfig() *SigningConfig {
	return &SigningConfig{
		LedgerTimeout:    DefaultLedgerTimeout,
		ApduChunkRate:    DefaultApduChunkRate,
		MetricsNamespace: DefaultMetricsNamespace,
		Persistence: PersistenceConfig{
			Type: PersistenceTypeMemory,
		},
	}
}

// Validate validates the signing configuration
func (c *SigningConfig) Validate() error {
	var allErrors field.ErrorList

	if c.LedgerTimeout <= 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("ledgerTimeout"), c.LedgerTimeout.String(), "must be positive"))
	}
	if c.ApduChunkRate <= 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("apduChunkRate"), c.ApduChunkRate, "must be positive"))
	}
	if c.MetricsNamespace == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("metricsNamespace"), "metricsNamespace is required"))
	}

	allErrors = append(allErrors, c.Persistence.validate(field.NewPath("persistence"))...)

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

func (p *PersistenceConfig) validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList

	switch p.Type {
	case PersistenceTypeMemory:
	case PersistenceTypeBadger:
		if p.BadgerPath == "" {
			allErrors = append(allErrors, field.Required(path.Child("badgerPath"), "badgerPath is required for badger persistence"))
		}
	case PersistenceTypeRedis:
		if p.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(path.Child("redisAddress"), "redisAddress is required for redis persistence"))
		}
		if p.RedisDB < 0 || p.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(path.Child("redisDb"), p.RedisDB, "must be between 0-15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(path.Child("type"), p.Type, supportedPersistenceTypes))
	}

	return allErrors
}
