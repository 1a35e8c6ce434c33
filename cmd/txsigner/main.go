package main

import (
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	algotypes "github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/walletkit/txsign/pkg/config"
	"github.com/walletkit/txsign/pkg/keystore"
	"github.com/walletkit/txsign/pkg/ledgerOperation"
	"github.com/walletkit/txsign/pkg/logger"
	"github.com/walletkit/txsign/pkg/metrics"
	"github.com/walletkit/txsign/pkg/persistence"
	"github.com/walletkit/txsign/pkg/persistence/journal"
	"github.com/walletkit/txsign/pkg/signingCoordinator"
	"github.com/walletkit/txsign/pkg/transactionSigner"
	"github.com/walletkit/txsign/pkg/types"
)

func main() {
	app := &cli.App{
		Name:  "txsigner",
		Usage: "Sign Algorand transactions and inspect the signing journal",
		Description: `A command line front end for the transaction signing engine.

This tool can:
- Sign a msgpack encoded transaction with a key derived from a mnemonic
- Sign for rekeyed accounts by naming the account's own address
- List past signing attempts recorded in the journal`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable debug logging",
				EnvVars: []string{config.EnvTxSignVerbose},
			},
			&cli.StringFlag{
				Name:    "persistence-type",
				Usage:   "Attempt journal backend: memory, badger or redis",
				Value:   config.PersistenceTypeMemory.String(),
				EnvVars: []string{config.EnvTxSignPersistenceType},
			},
			&cli.StringFlag{
				Name:    "badger-path",
				Usage:   "Directory of the badger journal",
				EnvVars: []string{config.EnvTxSignBadgerPath},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis server address (host:port)",
				EnvVars: []string{config.EnvTxSignRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvTxSignRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number (0-15)",
				EnvVars: []string{config.EnvTxSignRedisDB},
			},
			&cli.StringFlag{
				Name:    "redis-key-prefix",
				Usage:   "Prefix prepended to every redis key",
				EnvVars: []string{config.EnvTxSignRedisKeyPrefix},
			},
			&cli.StringFlag{
				Name:    "metrics-namespace",
				Usage:   "Prometheus namespace of the signing metrics",
				Value:   config.DefaultMetricsNamespace,
				EnvVars: []string{config.EnvTxSignMetricsNamespace},
			},
			&cli.DurationFlag{
				Name:    "ledger-timeout",
				Usage:   "Upper bound on a hardware signing round trip",
				Value:   config.DefaultLedgerTimeout,
				EnvVars: []string{config.EnvTxSignLedgerTimeout},
			},
			&cli.Float64Flag{
				Name:    "apdu-chunk-rate",
				Usage:   "APDU chunks written to a hardware device per second",
				Value:   config.DefaultApduChunkRate,
				EnvVars: []string{config.EnvTxSignApduChunkRate},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "sign",
				Usage: "Sign a msgpack encoded transaction",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "mnemonic",
						Usage:    "25 word mnemonic of the signing key",
						Required: true,
						EnvVars:  []string{config.EnvTxSignMnemonic},
					},
					&cli.StringFlag{
						Name:     "in",
						Usage:    "Path to the unsigned transaction",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "address",
						Usage: "Account address when it has been rekeyed to the mnemonic's key",
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "Output file for the signed transaction (default: print base64)",
					},
				},
				Action: signCommand,
			},
			{
				Name:   "history",
				Usage:  "List signing attempts recorded in the journal",
				Action: historyCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func parseSigningConfig(c *cli.Context) (*config.SigningConfig, error) {
	persistenceType, err := config.ParsePersistenceType(c.String("persistence-type"))
	if err != nil {
		return nil, err
	}

	cfg := config.NewDefaultSigningConfig()
	cfg.LedgerTimeout = c.Duration("ledger-timeout")
	cfg.ApduChunkRate = c.Float64("apdu-chunk-rate")
	cfg.MetricsNamespace = c.String("metrics-namespace")
	cfg.Debug = c.Bool("verbose")
	cfg.Persistence = config.PersistenceConfig{
		Type:           persistenceType,
		BadgerPath:     c.String("badger-path"),
		RedisAddress:   c.String("redis-address"),
		RedisPassword:  c.String("redis-password"),
		RedisDB:        c.Int("redis-db"),
		RedisKeyPrefix: c.String("redis-key-prefix"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newCoordinator wires a coordinator from configuration. transport may be nil,
// hardware accounts then fail with a transport error.
func newCoordinator(
	cfg *config.SigningConfig,
	keyStore keystore.IKeyStore,
	journalStore persistence.IAttemptPersistence,
	transport ledgerOperation.ITransport,
	registerer prometheus.Registerer,
	l *zap.Logger,
) (*signingCoordinator.Coordinator, error) {
	signingMetrics, err := metrics.NewSigningMetrics(cfg.MetricsNamespace, registerer)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	var factory ledgerOperation.Factory
	if transport != nil {
		limiter := rate.NewLimiter(rate.Limit(cfg.ApduChunkRate), 1)
		factory = ledgerOperation.NewFactory(transport, limiter, l)
	}

	return signingCoordinator.NewCoordinator(&signingCoordinator.Config{
		LedgerTimeout: cfg.LedgerTimeout,
		Journal:       journalStore,
		Metrics:       signingMetrics,
		Logger:        l,
	}, keyStore, transactionSigner.NewAlgorandSDK(), factory), nil
}

// accountFromMnemonic returns the signing account and its private key. A
// non-empty address different from the key's address yields a rekeyed account.
func accountFromMnemonic(phrase string, address string) (*types.Account, []byte, error) {
	privateKey, err := mnemonic.ToPrivateKey(phrase)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid mnemonic: %w", err)
	}
	signer, err := crypto.AccountFromPrivateKey(privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to derive account: %w", err)
	}

	account := &types.Account{Address: signer.Address.String()}
	if address != "" && address != account.Address {
		if _, err := algotypes.DecodeAddress(address); err != nil {
			return nil, nil, fmt.Errorf("invalid address %q: %w", address, err)
		}
		account.AuthAddress = account.Address
		account.Address = address
	}
	return account, privateKey, nil
}

// awaitOutcome reads events until the terminal one or until the deadline
func awaitOutcome(events <-chan types.SigningEvent, deadline time.Duration, l *zap.Logger) (types.SigningEvent, error) {
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return types.SigningEvent{}, fmt.Errorf("event stream closed before the attempt finished")
			}
			l.Sugar().Debugw("Signing event", "kind", ev.Kind.String(), "attempt_id", ev.AttemptID)
			if ev.Kind == types.SigningEventHardwareApprovalRequested {
				fmt.Printf("Confirm the transaction on %s\n", ev.DeviceName)
			}
			if ev.IsTerminal() {
				return ev, nil
			}
		case <-timer.C:
			return types.SigningEvent{}, fmt.Errorf("no outcome after %s", deadline)
		}
	}
}

func signCommand(c *cli.Context) error {
	cfg, err := parseSigningConfig(c)
	if err != nil {
		return err
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	unsigned, err := os.ReadFile(c.String("in"))
	if err != nil {
		return fmt.Errorf("failed to read transaction: %w", err)
	}

	account, privateKey, err := accountFromMnemonic(c.String("mnemonic"), c.String("address"))
	if err != nil {
		return err
	}
	keyStore := keystore.NewKeyStore()
	keyStore.AddPrivateKey(account.SignerAddress(), privateKey)
	keystore.Zero(privateKey)

	journalStore, err := journal.Open(cfg.Persistence, l)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer func() { _ = journalStore.Close() }()

	coordinator, err := newCoordinator(cfg, keyStore, journalStore, nil, prometheus.DefaultRegisterer, l)
	if err != nil {
		return err
	}
	defer coordinator.Close()

	attemptID, err := coordinator.SignTransaction(unsigned, account)
	if err != nil {
		return fmt.Errorf("failed to start signing: %w", err)
	}
	l.Sugar().Infow("Signing attempt started",
		"attempt_id", attemptID,
		"address", account.Address,
		"signer", account.SignerAddress())

	ev, err := awaitOutcome(coordinator.Events(), cfg.LedgerTimeout+time.Second, l)
	if err != nil {
		return err
	}
	if ev.Kind != types.SigningEventSigned {
		if ev.Err != nil {
			return fmt.Errorf("signing %s: %s", ev.Kind.String(), ev.Err.Detail())
		}
		return fmt.Errorf("signing %s", ev.Kind.String())
	}

	if out := c.String("out"); out != "" {
		if err := os.WriteFile(out, ev.SignedTransaction, 0644); err != nil {
			return fmt.Errorf("failed to write signed transaction: %w", err)
		}
		fmt.Printf("✅ Signed transaction written to %s\n", out)
		return nil
	}
	fmt.Println(base64.StdEncoding.EncodeToString(ev.SignedTransaction))
	return nil
}

func historyCommand(c *cli.Context) error {
	cfg, err := parseSigningConfig(c)
	if err != nil {
		return err
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	journalStore, err := journal.Open(cfg.Persistence, l)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer func() { _ = journalStore.Close() }()

	attempts, err := journalStore.ListAttempts()
	if err != nil {
		return fmt.Errorf("failed to list attempts: %w", err)
	}
	if len(attempts) == 0 {
		fmt.Println("No signing attempts recorded")
		return nil
	}
	for _, a := range attempts {
		fmt.Println(formatAttempt(a))
	}
	return nil
}

func formatAttempt(a *persistence.AttemptRecord) string {
	path := "local"
	if a.Hardware {
		path = "ledger"
	}
	line := fmt.Sprintf("%s  %s  %-9s  %-6s  %s",
		time.UnixMilli(a.StartedAt).UTC().Format(time.RFC3339),
		a.ID, a.Outcome, path, a.Address)
	if a.Outcome.IsFinal() {
		line += fmt.Sprintf("  %s", a.Duration())
	}
	if a.ErrorDetail != "" {
		line += fmt.Sprintf("  (%s: %s)", a.ErrorKind, a.ErrorDetail)
	}
	return line
}
