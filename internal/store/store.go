package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fmcsa-backend/internal/db"
	"fmcsa-backend/internal/record"
	"fmcsa-backend/internal/search"
	"fmcsa-backend/internal/telemetry"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("fmcsa.internal.store")

const (
	report_db_query      = "db.query"
	report_add_versioned = "version-store.add-versioned"
	report_add_append    = "append-store.add"
	report_search_index  = "search.index"
	report_decode_record = "record.decode"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned once the retry budget is spent and the
	// version a record was assigned keeps getting taken by someone else.
	ErrVersionConflict = errors.New("version conflict")
	ErrUnknownReport   = errors.New("unknown report type")
)

// Outcome is what happened to a candidate record.
type Outcome int

const (
	Committed Outcome = iota + 1
	// Skipped means the candidate was equivalent to the latest stored version.
	Skipped
	// Duplicate means an append-only record with the same natural key already exists.
	Duplicate
)

func (o Outcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case Skipped:
		return "skipped"
	case Duplicate:
		return "duplicate"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

type Result struct {
	Outcome Outcome
	// Record is the stored record: the new version when committed, the
	// latest stored version when skipped, the candidate when duplicate.
	Record record.Record
}

// Session is the storage a store runs against, usually a *shard.Session.
type Session interface {
	Queries() *db.Queries
	MakeTx() db.MakeTx
}

type Options struct {
	// Indexer receives committed records, NopIndexer when nil.
	Indexer search.Indexer
	// Equality replaces the equivalence of a report type, keyed by report name.
	Equality map[string]record.EqualFunc
	// MaxAttempts bounds how many times a write is attempted when it loses a
	// race with another writer, 3 when zero.
	MaxAttempts int
	// RetryInterval is the first wait between attempts, 50ms when zero.
	RetryInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.Indexer == nil {
		o.Indexer = search.NopIndexer{}
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 50 * time.Millisecond
	}
	return o
}

func (o Options) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.RetryInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(o.MaxAttempts-1)), ctx)
}

func lookupSchema(reportType string, versioned bool) (record.Schema, error) {
	schema, ok := record.Lookup(reportType)
	if !ok {
		return record.Schema{}, fmt.Errorf("%w: %s", ErrUnknownReport, reportType)
	}
	if schema.Versioned != versioned {
		if versioned {
			return record.Schema{}, fmt.Errorf("%s is an append-only report", reportType)
		}
		return record.Schema{}, fmt.Errorf("%s is a versioned report", reportType)
	}
	return schema, nil
}

func checkCandidate(schema record.Schema, candidate record.Record) error {
	if candidate.ReportType != schema.Name {
		return fmt.Errorf("candidate is a %s record, not %s", candidate.ReportType, schema.Name)
	}
	if candidate.Version != 0 {
		return fmt.Errorf("candidate %s already has a version", candidate)
	}
	if candidate.UUID == uuid.Nil {
		return fmt.Errorf("candidate %s has no uuid", candidate)
	}
	_, err := record.NormalizeSubjectKey(candidate.SubjectKey)
	return err
}

func decodeRow(schema record.Schema, row db.ReportRow) (record.Record, error) {
	id, err := uuid.Parse(row.UUID)
	if err != nil {
		return record.Record{}, fmt.Errorf("row uuid: %w", err)
	}
	return schema.Decode(
		id,
		row.DotNumber,
		row.Version.Int64,
		time.UnixMilli(row.ExtractedAt),
		[]byte(row.Body),
	)
}

func decodeRows(schema record.Schema, rows []db.ReportRow) ([]record.Record, error) {
	out := make([]record.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := decodeRow(schema, row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// retryable marks storage errors that go away when the whole operation is
// attempted again: a competing writer took our key, or held the lock.
func retryable(err error) bool {
	return db.IsConstraintViolation(err) || db.IsBusy(err)
}

func index(ctx context.Context, tel telemetry.API, indexer search.Indexer, rec record.Record) {
	err := indexer.Index(ctx, rec)
	if err != nil {
		tel.ReportWarning(report_search_index, err, rec.String())
	}
}
