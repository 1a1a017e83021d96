package commands

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fmcsa-backend/internal/chrono"
	"fmcsa-backend/internal/db"
	"fmcsa-backend/internal/orchestrator"
	"fmcsa-backend/internal/scrapers/fmcsa"
	"fmcsa-backend/internal/search"
	"fmcsa-backend/internal/shard"
	"fmcsa-backend/internal/store"
	"fmcsa-backend/internal/telemetry"
	"fmcsa-backend/lib/configutil"
	configlibsql "fmcsa-backend/lib/configutil/libsql"
)

type StoreConfig struct {
	MaxAttempts     int `json:"max_attempts"`
	RetryIntervalMs int `json:"retry_interval_ms"`
}

type WatchConfig struct {
	IntervalMinutes int      `json:"interval_minutes"`
	DotNumbers      []string `json:"dot_numbers"`
}

type Config struct {
	Shards shard.Config `json:"shards"`
	// Shard is the shard scrapes are written to, "fmcsa" when empty.
	Shard   string              `json:"shard"`
	Lookup  configlibsql.Struct `json:"lookup"`
	Search  configlibsql.Struct `json:"search"`
	Fetch   fmcsa.Config        `json:"fetch"`
	Store   StoreConfig         `json:"store"`
	Watch   WatchConfig         `json:"watch"`
	Workers int                 `json:"workers"`
}

// env is everything a command needs, built from the config.
type env struct {
	cfg      Config
	tel      telemetry.API
	lookup   shard.SQLLookup
	registry *shard.Registry
	indexer  search.SQLIndexer
	closers  []func() error
}

func (e *env) storeOptions() store.Options {
	return store.Options{
		Indexer:       e.indexer,
		MaxAttempts:   e.cfg.Store.MaxAttempts,
		RetryInterval: time.Duration(e.cfg.Store.RetryIntervalMs) * time.Millisecond,
	}
}

func (e *env) session(ctx context.Context) (*shard.Session, error) {
	return e.registry.Open(ctx, e.cfg.Shard)
}

func (e *env) orchestrator() (*orchestrator.Orchestrator, *fmcsa.Client, error) {
	client, err := fmcsa.NewClient(e.cfg.Fetch, e.tel)
	if err != nil {
		return nil, nil, err
	}
	o := orchestrator.New(client, e.registry, e.tel, orchestrator.Options{
		Shard: e.cfg.Shard,
		Store: e.storeOptions(),
	})
	return o, client, nil
}

func (e *env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	return errors.Join(errs...)
}

func openProvisioned(ctx context.Context, source configlibsql.Struct, schema string) (*sql.DB, error) {
	database, err := source.OpenDB()
	if err != nil {
		return nil, err
	}
	_, err = database.ExecContext(ctx, schema)
	if err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := configutil.ReadConfig[Config](*configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Shard == "" {
		cfg.Shard = "fmcsa"
	}
	if cfg.Lookup.File == "" && cfg.Lookup.Url == "" {
		cfg.Lookup.File = "<dev_state>/lookup.db"
	}
	if cfg.Search.File == "" && cfg.Search.Url == "" {
		cfg.Search.File = "<dev_state>/search.db"
	}

	e := &env{cfg: cfg, tel: telemetry.SlogAPI{}}
	clock := chrono.NewStandardTime()

	lookupDB, err := openProvisioned(ctx, cfg.Lookup, db.LookupSchema)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, lookupDB.Close)
	e.lookup = shard.NewSQLLookup(db.New(lookupDB), clock)

	searchDB, err := openProvisioned(ctx, cfg.Search, db.SearchSchema)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.closers = append(e.closers, searchDB.Close)
	e.indexer = search.NewSQLIndexer(db.New(searchDB), clock)

	e.registry = shard.NewRegistry(cfg.Shards, e.lookup, e.tel)
	e.closers = append(e.closers, e.registry.Close)
	return e, nil
}
