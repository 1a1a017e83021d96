package shard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"fmcsa-backend/internal/assert"
	"fmcsa-backend/internal/db"
	"fmcsa-backend/internal/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("fmcsa.internal.shard")

const (
	report_open_shard   = "registry.open"
	report_create_shard = "registry.create"
	report_close        = "registry.close"
)

// Registry resolves shard names into sessions. It is built once at process
// start and handed to whatever needs storage, the pools it opens are shared
// by every session of the same shard.
type Registry struct {
	config Config
	lookup Lookup
	tel    telemetry.API

	mutex sync.Mutex
	pools map[string]*sql.DB
}

func NewRegistry(config Config, lookup Lookup, tel telemetry.API) *Registry {
	assert.NotNil(lookup)
	assert.NotNil(tel)
	return &Registry{
		config: config,
		lookup: lookup,
		tel:    tel,
		pools:  map[string]*sql.DB{},
	}
}

func (r *Registry) pool(desc Descriptor) (*sql.DB, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := desc.Database + "/" + desc.Schema
	if pool, ok := r.pools[key]; ok {
		return pool, nil
	}

	database, err := r.config.database(desc.Database)
	if err != nil {
		return nil, err
	}
	source, err := database.source(desc.Schema)
	if err != nil {
		return nil, err
	}
	pool, err := source.OpenDB()
	if err != nil {
		return nil, err
	}
	r.pools[key] = pool
	return pool, nil
}

// Open resolves a shard and pins one connection of its pool to a new session.
// The caller owns the session and must close it.
func (r *Registry) Open(ctx context.Context, name string) (*Session, error) {
	ctx, span := tracer.Start(ctx, "Open", trace.WithAttributes(attribute.String("shard", name)))
	defer span.End()

	desc, err := r.lookup.Resolve(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to resolve shard")
		return nil, err
	}
	pool, err := r.pool(desc)
	if err != nil {
		r.tel.ReportBroken(report_open_shard, err, desc.Name, desc.Database, desc.Schema)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open shard database")
		return nil, err
	}
	conn, err := pool.Conn(ctx)
	if err != nil {
		r.tel.ReportBroken(report_open_shard, err, desc.Name, desc.Database, desc.Schema)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to acquire connection")
		return nil, err
	}
	return newSession(desc, conn), nil
}

// Create registers a new shard and provisions its report tables. A name that
// is already registered fails with ErrShardExists and nothing is touched.
func (r *Registry) Create(ctx context.Context, name string) (Descriptor, error) {
	ctx, span := tracer.Start(ctx, "Create", trace.WithAttributes(attribute.String("shard", name)))
	defer span.End()

	err := validateName(name)
	if err != nil {
		return Descriptor{}, err
	}
	database, err := r.config.createTarget()
	if err != nil {
		return Descriptor{}, err
	}
	desc := Descriptor{
		Name:     name,
		Database: database.Name,
		Schema:   r.config.SchemaPrefix + name,
	}

	err = r.lookup.Register(ctx, desc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to register shard")
		return Descriptor{}, err
	}

	err = r.provision(ctx, desc)
	if err != nil {
		r.tel.ReportBroken(report_create_shard, err, desc.Name, desc.Database, desc.Schema)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to provision shard")
		if unregErr := r.lookup.Unregister(ctx, name); unregErr != nil {
			r.tel.ReportBroken(report_create_shard, fmt.Errorf("unregister: %w", unregErr), name)
		}
		return Descriptor{}, err
	}

	r.tel.ReportDebug("created shard", desc.Name, desc.Database, desc.Schema)
	return desc, nil
}

func (r *Registry) provision(ctx context.Context, desc Descriptor) error {
	pool, err := r.pool(desc)
	if err != nil {
		return err
	}
	_, err = pool.ExecContext(ctx, db.Schema)
	return err
}

func (r *Registry) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var errs []error
	for key, pool := range r.pools {
		if err := pool.Close(); err != nil {
			r.tel.ReportWarning(report_close, err, key)
			errs = append(errs, err)
		}
		delete(r.pools, key)
	}
	return errors.Join(errs...)
}
