package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"fmcsa-backend/internal/db"
	"fmcsa-backend/internal/record"
	"fmcsa-backend/internal/search"
	"fmcsa-backend/lib/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var extractedAt = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func safer(t *testing.T, dot string, raw record.Raw) record.Record {
	t.Helper()
	rec, err := record.Safer.Apply(dot, raw, extractedAt)
	require.NoError(t, err)
	return rec
}

func testOptions() Options {
	return Options{RetryInterval: time.Millisecond}
}

func setup(t *testing.T) (testutil.ShardResult, *VersionStore) {
	t.Helper()
	res := testutil.SetupShard(t, testutil.ShardParams{Name: "store"})
	return res, NewVersionStore(res.OpenSession(t), res.Tel, testOptions())
}

func TestVersionsAreGapFree(t *testing.T) {
	_, store := setup(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		res, err := store.AddVersioned(ctx, safer(t, "123456", record.Raw{
			"legal_name":     "Acme Trucking",
			"nbr_power_unit": fmt.Sprint(i * 10),
		}))
		require.NoError(t, err)
		require.Equal(t, Committed, res.Outcome)
		require.EqualValues(t, i, res.Record.Version)
	}

	latest, ok, err := store.LatestVersionNumber(ctx, record.ReportSafer, "123456")
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 5, latest)

	history, err := store.History(ctx, record.ReportSafer, "123456")
	require.NoError(t, err)
	require.Len(t, history, 5)
	for i, rec := range history {
		require.EqualValues(t, i+1, rec.Version)
		require.Equal(t, int64((i+1)*10), rec.Get("nbr_power_unit"))
	}

	// other dot numbers have their own sequence
	res, err := store.AddVersioned(ctx, safer(t, "654321", record.Raw{"legal_name": "Other"}))
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Record.Version)
}

func TestEquivalentSnapshotsAreSkipped(t *testing.T) {
	_, store := setup(t)
	ctx := context.Background()

	a := safer(t, "123456", record.Raw{"legal_name": "Acme Trucking", "telephone": "555-0100"})
	res, err := store.AddVersioned(ctx, a)
	require.NoError(t, err)
	require.Equal(t, Committed, res.Outcome)
	require.EqualValues(t, 1, res.Record.Version)

	b := safer(t, "123456", record.Raw{"legal_name": "Acme Trucking", "telephone": "(555) 0100"})
	res, err = store.AddVersioned(ctx, b)
	require.NoError(t, err)
	require.Equal(t, Skipped, res.Outcome)
	require.EqualValues(t, 1, res.Record.Version)
	require.Equal(t, a.UUID, res.Record.UUID)

	latest, _, err := store.LatestVersionNumber(ctx, record.ReportSafer, "123456")
	require.NoError(t, err)
	require.EqualValues(t, 1, latest)

	c := safer(t, "123456", record.Raw{"legal_name": "Acme Trucking LLC", "telephone": "555-0100"})
	res, err = store.AddVersioned(ctx, c)
	require.NoError(t, err)
	require.Equal(t, Committed, res.Outcome)
	require.EqualValues(t, 2, res.Record.Version)

	stored, err := store.LatestRecord(ctx, record.ReportSafer, "123456")
	require.NoError(t, err)
	require.Equal(t, c.UUID, stored.UUID)
	require.Equal(t, "Acme Trucking LLC", stored.Get("legal_name"))
}

func TestAddVersionedIsIdempotent(t *testing.T) {
	res, store := setup(t)
	ctx := context.Background()

	candidate := safer(t, "123456", record.Raw{"legal_name": "Acme Trucking"})
	first, err := store.AddVersioned(ctx, candidate)
	require.NoError(t, err)
	second, err := store.AddVersioned(ctx, candidate)
	require.NoError(t, err)

	require.Equal(t, Committed, first.Outcome)
	require.Equal(t, Skipped, second.Outcome)

	count, err := res.OpenSession(t).Queries().CountReportRows(ctx, "safer", "123456")
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestLatestOfUnknownSubject(t *testing.T) {
	_, store := setup(t)
	ctx := context.Background()

	_, ok, err := store.LatestVersionNumber(ctx, record.ReportLicense, "1")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = store.LatestRecord(ctx, record.ReportLicense, "1")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.LatestRecord(ctx, "nope", "1")
	require.ErrorIs(t, err, ErrUnknownReport)
	_, _, err = store.LatestVersionNumber(ctx, record.ReportRevocation, "1")
	require.Error(t, err)
}

func insertCompetitor(ctx context.Context, tx *db.Queries, dot string, version int64) error {
	return tx.CreateVersionedRow(ctx, "safer", db.CreateVersionedRowParams{
		UUID:        uuid.Must(uuid.NewV7()).String(),
		DotNumber:   dot,
		Version:     version,
		ExtractedAt: extractedAt.UnixMilli(),
		Body:        `{"legal_name":"Competitor"}`,
	})
}

func TestConflictIsRetried(t *testing.T) {
	res, store := setup(t)
	ctx := context.Background()

	var attempts []int
	store.beforeInsert = func(ctx context.Context, tx *db.Queries, attempt int) error {
		attempts = append(attempts, attempt)
		if attempt == 1 {
			// another writer got version 1 between our read and our write
			return insertCompetitor(ctx, tx, "123456", 1)
		}
		return nil
	}

	out, err := store.AddVersioned(ctx, safer(t, "123456", record.Raw{"legal_name": "Acme Trucking"}))
	require.NoError(t, err)
	require.Equal(t, Committed, out.Outcome)
	require.EqualValues(t, 1, out.Record.Version)
	require.Equal(t, []int{1, 2}, attempts)
	require.Len(t, res.Tel.Reports("warning", report_add_versioned), 1)

	history, err := store.History(ctx, record.ReportSafer, "123456")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "Acme Trucking", history[0].Get("legal_name"))
}

func TestConflictBudgetIsBounded(t *testing.T) {
	res, store := setup(t)
	ctx := context.Background()

	attempts := 0
	store.beforeInsert = func(ctx context.Context, tx *db.Queries, attempt int) error {
		attempts = attempt
		return insertCompetitor(ctx, tx, "123456", 1)
	}

	_, err := store.AddVersioned(ctx, safer(t, "123456", record.Raw{"legal_name": "Acme Trucking"}))
	require.ErrorIs(t, err, ErrVersionConflict)
	require.Equal(t, 3, attempts)
	require.Len(t, res.Tel.Reports("broken", report_add_versioned), 1)

	_, ok, err := store.LatestVersionNumber(ctx, record.ReportSafer, "123456")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOtherErrorsAreNotRetried(t *testing.T) {
	_, store := setup(t)

	boom := errors.New("boom")
	attempts := 0
	store.beforeInsert = func(ctx context.Context, tx *db.Queries, attempt int) error {
		attempts = attempt
		return boom
	}

	_, err := store.AddVersioned(context.Background(), safer(t, "123456", record.Raw{"legal_name": "Acme"}))
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrVersionConflict)
	require.Equal(t, 1, attempts)
}

func TestSessionsSeeEachOthersWrites(t *testing.T) {
	res := testutil.SetupShard(t, testutil.ShardParams{Name: "store"})
	ctx := context.Background()

	first := NewVersionStore(res.OpenSession(t), res.Tel, testOptions())
	second := NewVersionStore(res.OpenSession(t), res.Tel, testOptions())

	_, err := first.AddVersioned(ctx, safer(t, "123456", record.Raw{"legal_name": "Acme Trucking"}))
	require.NoError(t, err)
	out, err := second.AddVersioned(ctx, safer(t, "123456", record.Raw{"legal_name": "Acme Trucking LLC"}))
	require.NoError(t, err)
	require.EqualValues(t, 2, out.Record.Version)

	latest, _, err := first.LatestVersionNumber(ctx, record.ReportSafer, "123456")
	require.NoError(t, err)
	require.EqualValues(t, 2, latest)
}

func TestEqualityCanBeReplaced(t *testing.T) {
	res := testutil.SetupShard(t, testutil.ShardParams{Name: "store"})
	ctx := context.Background()

	store := NewVersionStore(res.OpenSession(t), res.Tel, Options{
		Equality: map[string]record.EqualFunc{
			record.ReportSafer: func(a, b record.Record) bool { return true },
		},
	})
	_, err := store.AddVersioned(ctx, safer(t, "1", record.Raw{"legal_name": "A"}))
	require.NoError(t, err)
	out, err := store.AddVersioned(ctx, safer(t, "1", record.Raw{"legal_name": "B"}))
	require.NoError(t, err)
	require.Equal(t, Skipped, out.Outcome)
}

func TestRejectsBadCandidates(t *testing.T) {
	_, store := setup(t)
	ctx := context.Background()

	appendOnly, err := record.Revocation.Apply("1", record.Raw{"auth_type": "COMMON"}, extractedAt)
	require.NoError(t, err)
	_, err = store.AddVersioned(ctx, appendOnly)
	require.Error(t, err)

	versioned := safer(t, "1", record.Raw{"legal_name": "A"}).WithVersion(4)
	_, err = store.AddVersioned(ctx, versioned)
	require.Error(t, err)

	_, err = store.AddVersioned(ctx, record.Record{ReportType: record.ReportSafer, SubjectKey: "1"})
	require.Error(t, err)
}

type fakeIndexer struct {
	mutex   sync.Mutex
	indexed []string
	deleted []string
	fail    bool
}

func (f *fakeIndexer) Index(ctx context.Context, rec record.Record) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.fail {
		return errors.New("index is down")
	}
	f.indexed = append(f.indexed, search.DocID(rec))
	return nil
}

func (f *fakeIndexer) Delete(ctx context.Context, reportType, docID string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.fail {
		return errors.New("index is down")
	}
	f.deleted = append(f.deleted, docID)
	return nil
}

func TestIndexKeepsLatestVersion(t *testing.T) {
	res := testutil.SetupShard(t, testutil.ShardParams{Name: "store"})
	ctx := context.Background()

	indexer := &fakeIndexer{}
	store := NewVersionStore(res.OpenSession(t), res.Tel, Options{Indexer: indexer})

	v1, err := store.AddVersioned(ctx, safer(t, "1", record.Raw{"legal_name": "A"}))
	require.NoError(t, err)
	_, err = store.AddVersioned(ctx, safer(t, "1", record.Raw{"legal_name": "A"}))
	require.NoError(t, err)
	v2, err := store.AddVersioned(ctx, safer(t, "1", record.Raw{"legal_name": "B"}))
	require.NoError(t, err)

	require.Equal(t, []string{search.DocID(v1.Record), search.DocID(v2.Record)}, indexer.indexed)
	require.Equal(t, []string{search.DocID(v1.Record)}, indexer.deleted)
}

func TestIndexFailureKeepsCommit(t *testing.T) {
	res := testutil.SetupShard(t, testutil.ShardParams{Name: "store"})
	ctx := context.Background()

	store := NewVersionStore(res.OpenSession(t), res.Tel, Options{Indexer: &fakeIndexer{fail: true}})
	out, err := store.AddVersioned(ctx, safer(t, "1", record.Raw{"legal_name": "A"}))
	require.NoError(t, err)
	require.Equal(t, Committed, out.Outcome)
	require.Len(t, res.Tel.Reports("warning", report_search_index), 1)

	_, ok, err := store.LatestVersionNumber(ctx, record.ReportSafer, "1")
	require.NoError(t, err)
	require.True(t, ok)
}
