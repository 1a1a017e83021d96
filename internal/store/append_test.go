package store

import (
	"context"
	"testing"

	"fmcsa-backend/internal/record"
	"fmcsa-backend/lib/testutil"

	"github.com/stretchr/testify/require"
)

func insurance(t *testing.T, policy, dateTo, carrier string) record.Record {
	t.Helper()
	rec, err := record.InsuranceHistory.Apply("123456", record.Raw{
		"form_name":      "91X",
		"insurance_type": "BIPD/Primary",
		"carrier":        carrier,
		"policy_name":    policy,
		"coverage_from":  "$0",
		"coverage_to":    "$750,000",
		"date_to":        dateTo,
	}, extractedAt)
	require.NoError(t, err)
	return rec
}

func TestAppendDeduplicatesOnNaturalKey(t *testing.T) {
	res := testutil.SetupShard(t, testutil.ShardParams{Name: "append"})
	ctx := context.Background()
	indexer := &fakeIndexer{}
	store := NewAppendStore(res.OpenSession(t), res.Tel, Options{Indexer: indexer})

	out, err := store.Add(ctx, insurance(t, "POL-1", "01/01/2023", "Big Insurer"))
	require.NoError(t, err)
	require.Equal(t, Committed, out.Outcome)
	require.EqualValues(t, 0, out.Record.Version)

	// same policy and end date, the rest of the row doesn't matter
	out, err = store.Add(ctx, insurance(t, "POL-1", "01/01/2023", "Renamed Insurer"))
	require.NoError(t, err)
	require.Equal(t, Duplicate, out.Outcome)

	count, err := store.Count(ctx, record.ReportInsuranceHistory, "123456")
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	out, err = store.Add(ctx, insurance(t, "POL-1", "01/01/2024", "Big Insurer"))
	require.NoError(t, err)
	require.Equal(t, Committed, out.Outcome)

	count, err = store.Count(ctx, record.ReportInsuranceHistory, "123456")
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.Len(t, indexer.indexed, 2)

	listed, err := store.List(ctx, record.ReportInsuranceHistory, "123456")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, "2023-01-01", listed[0].Get("date_to"))
	require.Equal(t, "2024-01-01", listed[1].Get("date_to"))
	require.Equal(t, "Big Insurer", listed[0].Get("carrier"))
}

func TestAppendMissingKeysStillCollide(t *testing.T) {
	res := testutil.SetupShard(t, testutil.ShardParams{Name: "append"})
	ctx := context.Background()
	store := NewAppendStore(res.OpenSession(t), res.Tel, Options{})

	build := func() record.Record {
		rec, err := record.Revocation.Apply("123456", record.Raw{
			"auth_type": "COMMON",
			"reason":    "INSURANCE",
		}, extractedAt)
		require.NoError(t, err)
		return rec
	}

	out, err := store.Add(ctx, build())
	require.NoError(t, err)
	require.Equal(t, Committed, out.Outcome)
	out, err = store.Add(ctx, build())
	require.NoError(t, err)
	require.Equal(t, Duplicate, out.Outcome)
}

func TestAppendRejectsVersionedReports(t *testing.T) {
	res := testutil.SetupShard(t, testutil.ShardParams{Name: "append"})
	store := NewAppendStore(res.OpenSession(t), res.Tel, Options{})

	_, err := store.Add(context.Background(), safer(t, "1", record.Raw{"legal_name": "A"}))
	require.Error(t, err)
	_, err = store.List(context.Background(), record.ReportSafer, "1")
	require.Error(t, err)
}

func TestOutcomeString(t *testing.T) {
	require.Equal(t, "committed", Committed.String())
	require.Equal(t, "skipped", Skipped.String())
	require.Equal(t, "duplicate", Duplicate.String())
	require.Equal(t, "Outcome(0)", Outcome(0).String())
}
