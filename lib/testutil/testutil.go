package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"fmcsa-backend/internal/shard"
	"fmcsa-backend/internal/telemetry"
	libtelemetry "fmcsa-backend/lib/telemetry"

	_ "modernc.org/sqlite"
)

type ShardParams struct {
	Name string
	// if unspecified, the shard is called "fmcsa"
	Shard string
}

type ShardResult struct {
	Registry *shard.Registry
	Lookup   *shard.StaticLookup
	Tel      *telemetry.RecordingAPI
	Shard    string
}

// SetupShard creates a registry over a temporary directory with one
// provisioned shard. Everything is closed when the test ends.
func SetupShard(t testing.TB, params ShardParams) ShardResult {
	t.Helper()
	cleanup := libtelemetry.SetupForTesting(t, fmt.Sprintf("test:%s", params.Name))
	t.Cleanup(cleanup)

	name := params.Shard
	if name == "" {
		name = "fmcsa"
	}

	tel := telemetry.NewRecordingAPI()
	lookup := shard.NewStaticLookup()
	registry := shard.NewRegistry(shard.Config{
		Databases: []shard.Database{
			{Name: "local", Dir: filepath.Join(t.TempDir(), "shards")},
		},
	}, lookup, tel)
	t.Cleanup(func() {
		err := registry.Close()
		if err != nil {
			t.Error(err)
		}
	})

	_, err := registry.Create(context.Background(), name)
	if err != nil {
		t.Fatal(err)
	}
	return ShardResult{
		Registry: registry,
		Lookup:   lookup,
		Tel:      tel,
		Shard:    name,
	}
}

// OpenSession opens a session on the shard that is closed when the test ends.
func (r ShardResult) OpenSession(t testing.TB) *shard.Session {
	t.Helper()
	session, err := r.Registry.Open(context.Background(), r.Shard)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		session.Close()
	})
	return session
}
