package shard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"fmcsa-backend/internal/chrono"
	"fmcsa-backend/internal/db"
)

var (
	ErrShardNotFound = errors.New("shard not found")
	ErrShardExists   = errors.New("shard already exists")
)

// Descriptor says where a shard physically lives: which configured database
// and which schema inside it.
type Descriptor struct {
	Name     string
	Database string
	Schema   string
}

// Lookup maps logical shard names to descriptors.
type Lookup interface {
	// Resolve fails with ErrShardNotFound for unregistered names.
	Resolve(ctx context.Context, name string) (Descriptor, error)
	// Register fails with ErrShardExists when the name is taken, it never overwrites.
	Register(ctx context.Context, desc Descriptor) error
	Unregister(ctx context.Context, name string) error
}

// SQLLookup keeps the mapping in the shard_lookup table of a control database,
// the primary key on the name makes Register atomic across processes.
type SQLLookup struct {
	qry   *db.Queries
	clock chrono.TimeAPI
}

func NewSQLLookup(qry *db.Queries, clock chrono.TimeAPI) SQLLookup {
	return SQLLookup{qry: qry, clock: clock}
}

func (l SQLLookup) Resolve(ctx context.Context, name string) (Descriptor, error) {
	row, err := l.qry.GetShardLookup(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrShardNotFound, name)
	}
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{Name: row.Name, Database: row.DbName, Schema: row.SchemaName}, nil
}

func (l SQLLookup) Register(ctx context.Context, desc Descriptor) error {
	err := l.qry.CreateShardLookup(ctx, db.ShardLookup{
		Name:       desc.Name,
		DbName:     desc.Database,
		SchemaName: desc.Schema,
		CreatedAt:  l.clock.Now().Unix(),
	})
	if db.IsConstraintViolation(err) {
		return fmt.Errorf("%w: %s", ErrShardExists, desc.Name)
	}
	return err
}

func (l SQLLookup) Unregister(ctx context.Context, name string) error {
	return l.qry.DeleteShardLookup(ctx, name)
}

func (l SQLLookup) List(ctx context.Context) ([]Descriptor, error) {
	rows, err := l.qry.ListShardLookups(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Descriptor, len(rows))
	for i, row := range rows {
		out[i] = Descriptor{Name: row.Name, Database: row.DbName, Schema: row.SchemaName}
	}
	return out, nil
}

// StaticLookup is an in-process mapping, mostly for tests and single process setups.
type StaticLookup struct {
	mutex  sync.Mutex
	shards map[string]Descriptor
}

func NewStaticLookup(shards ...Descriptor) *StaticLookup {
	l := &StaticLookup{shards: map[string]Descriptor{}}
	for _, d := range shards {
		l.shards[d.Name] = d
	}
	return l
}

func (l *StaticLookup) Resolve(ctx context.Context, name string) (Descriptor, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	desc, ok := l.shards[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrShardNotFound, name)
	}
	return desc, nil
}

func (l *StaticLookup) Register(ctx context.Context, desc Descriptor) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if _, exists := l.shards[desc.Name]; exists {
		return fmt.Errorf("%w: %s", ErrShardExists, desc.Name)
	}
	l.shards[desc.Name] = desc
	return nil
}

func (l *StaticLookup) Unregister(ctx context.Context, name string) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	delete(l.shards, name)
	return nil
}
