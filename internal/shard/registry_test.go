package shard

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fmcsa-backend/internal/chrono"
	"fmcsa-backend/internal/db"
	"fmcsa-backend/internal/telemetry"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func newTestRegistry(t *testing.T, lookup Lookup) *Registry {
	t.Helper()
	config := Config{
		Databases: []Database{
			{Name: "local", Dir: filepath.Join(t.TempDir(), "shards")},
		},
		CreateShardsOn: "local",
		SchemaPrefix:   "fmcsa_",
	}
	registry := NewRegistry(config, lookup, telemetry.NewRecordingAPI())
	t.Cleanup(func() {
		require.NoError(t, registry.Close())
	})
	return registry
}

func newSQLLookup(t *testing.T) SQLLookup {
	t.Helper()
	control, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "control.db"))
	require.NoError(t, err)
	t.Cleanup(func() { control.Close() })
	_, err = control.Exec(db.LookupSchema)
	require.NoError(t, err)
	return NewSQLLookup(db.New(control), chrono.NewStandardTime())
}

func TestCreateThenOpen(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	lookups := map[string]Lookup{
		"sql":    newSQLLookup(t),
		"static": NewStaticLookup(),
	}
	for name, lookup := range lookups {
		t.Run(name, func(t *testing.T) {
			registry := newTestRegistry(t, lookup)

			_, err := registry.Open(ctx, "fmcsa")
			require.ErrorIs(t, err, ErrShardNotFound)

			desc, err := registry.Create(ctx, "fmcsa")
			require.NoError(t, err)
			require.Equal(t, Descriptor{Name: "fmcsa", Database: "local", Schema: "fmcsa_fmcsa"}, desc)

			_, err = registry.Create(ctx, "fmcsa")
			require.ErrorIs(t, err, ErrShardExists)

			session, err := registry.Open(ctx, "fmcsa")
			require.NoError(t, err)
			defer session.Close()
			require.Equal(t, desc, session.Shard())

			count, err := session.Queries().CountReportRows(ctx, "safer", "123456")
			require.NoError(t, err)
			require.EqualValues(t, 0, count)
		})
	}
}

func TestShardsAreIsolated(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	registry := newTestRegistry(t, NewStaticLookup())
	_, err := registry.Create(ctx, "east")
	require.NoError(t, err)
	_, err = registry.Create(ctx, "west")
	require.NoError(t, err)

	east, err := registry.Open(ctx, "east")
	require.NoError(t, err)
	defer east.Close()
	west, err := registry.Open(ctx, "west")
	require.NoError(t, err)
	defer west.Close()

	err = east.Queries().CreateVersionedRow(ctx, "safer", db.CreateVersionedRowParams{
		UUID:        "0190c8f0-0000-7000-8000-000000000001",
		DotNumber:   "1",
		Version:     1,
		ExtractedAt: 1,
		Body:        "{}",
	})
	require.NoError(t, err)

	count, err := east.Queries().CountReportRows(ctx, "safer", "1")
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	count, err = west.Queries().CountReportRows(ctx, "safer", "1")
	require.NoError(t, err)
	require.EqualValues(t, 0, count)
}

func TestConcurrentCreate(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	registry := newTestRegistry(t, NewStaticLookup())

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = registry.Create(ctx, "contended")
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		require.ErrorIs(t, err, ErrShardExists)
	}
	require.Equal(t, 1, created)
}

func TestCreateRejectsBadNames(t *testing.T) {
	registry := newTestRegistry(t, NewStaticLookup())
	for _, name := range []string{"", "Upper", "1abc", "has-dash", "semi;colon"} {
		_, err := registry.Create(context.Background(), name)
		require.Error(t, err, name)
	}
}

func TestCreateUnregistersOnProvisionFailure(t *testing.T) {
	lookup := NewStaticLookup()
	registry := NewRegistry(Config{
		Databases: []Database{{Name: "broken"}},
	}, lookup, telemetry.NewRecordingAPI())
	defer registry.Close()

	_, err := registry.Create(context.Background(), "fmcsa")
	require.Error(t, err)
	_, err = lookup.Resolve(context.Background(), "fmcsa")
	require.ErrorIs(t, err, ErrShardNotFound)
}
