package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/starmatch/internal/batcher"
	"github.com/roach88/starmatch/internal/config"
	"github.com/roach88/starmatch/internal/engine"
	"github.com/roach88/starmatch/internal/ledger"
	"github.com/roach88/starmatch/internal/levels"
	"github.com/roach88/starmatch/internal/progress"
	"github.com/roach88/starmatch/internal/store"
)

// app is the wired component graph one command runs against.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	catalog *levels.Catalog
	store   *store.Store
	local   *progress.Store
	engine  *engine.Engine
}

// loadConfig resolves defaults < file < environment < flags.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.DBPath != "" {
		cfg.DBPath = o.DBPath
	}
	if o.Player != "" {
		cfg.PlayerID = o.Player
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

func loadCatalog(cfg config.Config) (*levels.Catalog, error) {
	if cfg.CatalogPath == "" {
		return levels.Default(), nil
	}
	cat, err := levels.LoadFile(cfg.CatalogPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load level catalog", err)
	}
	return cat, nil
}

// openApp builds the full graph over the configured database. The caller
// must Close the result.
func (o *RootOptions) openApp(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := cfg.Logger(logOut, o.Verbose)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid logging config", err)
	}
	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	var ledgerOpts []store.DevLedgerOption
	if cfg.RequireSignature {
		ledgerOpts = append(ledgerOpts, store.WithSignatureRequired())
	}
	dev := st.Ledger(cat, ledgerOpts...)

	b, err := newBatcher(ctx, cfg, cat, dev, st, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	local := progress.NewStore(st, cat, logger)
	reader := ledger.NewReader(dev, cat,
		ledger.WithConcurrency(cfg.ReadConcurrency),
		ledger.WithReaderLogger(logger),
	)
	eng := engine.New(local, reader, b, cat,
		engine.WithPlayer(cfg.PlayerID),
		engine.WithLogger(logger),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		catalog: cat,
		store:   st,
		local:   local,
		engine:  eng,
	}, nil
}

// newBatcher writes to l and logs to st, resuming the operation log's
// sequence.
func newBatcher(ctx context.Context, cfg config.Config, cat *levels.Catalog, l ledger.Ledger, st *store.Store, logger *slog.Logger) (*batcher.Batcher, error) {
	clock, err := batcher.ResumeClock(ctx, st)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read operation log", err)
	}

	opts := []batcher.Option{
		batcher.WithBatchCap(cfg.BatchCap),
		batcher.WithCapabilities(ledger.StaticCapability{PaymasterURL: cfg.PaymasterURL}),
		batcher.WithRecorder(st),
		batcher.WithClock(clock),
		batcher.WithLogger(logger),
	}
	if cfg.SignerKey != "" {
		signer, err := ledger.KeySignerFromHex(cfg.SignerKey)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid signer key", err)
		}
		opts = append(opts, batcher.WithSigner(signer))
	}

	return batcher.New(l, cat, opts...), nil
}

// Close releases the database.
func (a *app) Close() error {
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
