package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fmcsa-backend/internal/assert"
	"fmcsa-backend/internal/db"
	"fmcsa-backend/internal/record"
	"fmcsa-backend/internal/search"
	"fmcsa-backend/internal/telemetry"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// VersionStore keeps, per dot number and versioned report type, the gap free
// history 1..N of materially different snapshots.
//
// Every read goes to the database, nothing is cached: other runs may be
// writing to the same shard at the same time.
type VersionStore struct {
	qry    *db.Queries
	makeTx db.MakeTx
	tel    telemetry.API
	opts   Options

	// beforeInsert runs inside the write transaction right before the new
	// version is inserted.
	beforeInsert func(ctx context.Context, tx *db.Queries, attempt int) error
}

func NewVersionStore(session Session, tel telemetry.API, opts Options) *VersionStore {
	assert.NotNil(session)
	assert.NotNil(tel)
	return &VersionStore{
		qry:    session.Queries(),
		makeTx: session.MakeTx(),
		tel:    tel,
		opts:   opts.withDefaults(),
	}
}

func (s *VersionStore) equal(schema record.Schema) record.EqualFunc {
	if eq, ok := s.opts.Equality[schema.Name]; ok && eq != nil {
		return eq
	}
	return schema.Equivalence.Equal
}

// LatestVersionNumber returns the highest stored version, false when the dot
// number has no record of this type.
func (s *VersionStore) LatestVersionNumber(ctx context.Context, reportType, subjectKey string) (int64, bool, error) {
	schema, err := lookupSchema(reportType, true)
	if err != nil {
		return 0, false, err
	}
	version, err := s.qry.GetLatestVersion(ctx, schema.Table, subjectKey)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetLatestVersion", schema.Table, subjectKey)
		return 0, false, err
	}
	return version.Int64, version.Valid, nil
}

// LatestRecord fails with ErrNotFound when nothing is stored yet.
func (s *VersionStore) LatestRecord(ctx context.Context, reportType, subjectKey string) (record.Record, error) {
	schema, err := lookupSchema(reportType, true)
	if err != nil {
		return record.Record{}, err
	}
	return s.latest(ctx, s.qry, schema, subjectKey)
}

func (s *VersionStore) latest(ctx context.Context, qry *db.Queries, schema record.Schema, subjectKey string) (record.Record, error) {
	version, err := qry.GetLatestVersion(ctx, schema.Table, subjectKey)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetLatestVersion", schema.Table, subjectKey)
		return record.Record{}, err
	}
	if !version.Valid {
		return record.Record{}, fmt.Errorf("%w: %s %s", ErrNotFound, schema.Name, subjectKey)
	}

	row, err := qry.GetVersion(ctx, schema.Table, db.GetVersionParams{
		DotNumber: subjectKey,
		Version:   version.Int64,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return record.Record{}, fmt.Errorf("%w: %s %s", ErrNotFound, schema.Name, subjectKey)
	}
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetVersion", schema.Table, subjectKey, version.Int64)
		return record.Record{}, err
	}
	rec, err := decodeRow(schema, row)
	if err != nil {
		s.tel.ReportBroken(report_decode_record, err, schema.Table, row.UUID)
		return record.Record{}, err
	}
	return rec, nil
}

// History returns every stored version in order.
func (s *VersionStore) History(ctx context.Context, reportType, subjectKey string) ([]record.Record, error) {
	schema, err := lookupSchema(reportType, true)
	if err != nil {
		return nil, err
	}
	rows, err := s.qry.GetReportRows(ctx, schema.Table, true, subjectKey)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetReportRows", schema.Table, subjectKey)
		return nil, err
	}
	out, err := decodeRows(schema, rows)
	if err != nil {
		s.tel.ReportBroken(report_decode_record, err, schema.Table, subjectKey)
		return nil, err
	}
	return out, nil
}

type addResult struct {
	Result
	previous record.Record
}

// AddVersioned stores candidate as the next version unless it is equivalent
// to the latest stored one. Losing the race for a version number to another
// writer retries the whole read, compare and write, once the retry budget
// is spent it fails with ErrVersionConflict.
func (s *VersionStore) AddVersioned(ctx context.Context, candidate record.Record) (Result, error) {
	ctx, span := tracer.Start(ctx, "AddVersioned", trace.WithAttributes(
		attribute.String("report_type", candidate.ReportType),
		attribute.String("dot_number", candidate.SubjectKey),
	))
	defer span.End()

	schema, err := lookupSchema(candidate.ReportType, true)
	if err != nil {
		return Result{}, err
	}
	err = checkCandidate(schema, candidate)
	if err != nil {
		return Result{}, err
	}
	equal := s.equal(schema)

	attempt := 0
	res, err := backoff.RetryNotifyWithData(
		func() (addResult, error) {
			attempt++
			res, err := s.tryAdd(ctx, schema, equal, candidate, attempt)
			if err == nil || retryable(err) {
				return res, err
			}
			return res, backoff.Permanent(err)
		},
		s.opts.backoff(ctx),
		func(err error, wait time.Duration) {
			s.tel.ReportWarning(report_add_versioned, fmt.Errorf("retrying after conflict: %w", err), candidate.String(), attempt, wait)
		},
	)
	if err != nil {
		if retryable(err) {
			err = fmt.Errorf("%w: %s after %d attempts: %v", ErrVersionConflict, candidate, attempt, err)
		}
		s.tel.ReportBroken(report_add_versioned, err, candidate.String())
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to add version")
		return Result{}, err
	}

	span.SetAttributes(
		attribute.String("outcome", res.Outcome.String()),
		attribute.Int64("version", res.Record.Version),
		attribute.Int("attempts", attempt),
	)
	if res.Outcome == Committed {
		index(ctx, s.tel, s.opts.Indexer, res.Record)
		if res.previous.Version > 0 {
			err := s.opts.Indexer.Delete(ctx, schema.Name, search.DocID(res.previous))
			if err != nil {
				s.tel.ReportWarning(report_search_index, err, res.previous.String())
			}
		}
	}
	return res.Result, nil
}

func (s *VersionStore) tryAdd(
	ctx context.Context,
	schema record.Schema,
	equal record.EqualFunc,
	candidate record.Record,
	attempt int,
) (addResult, error) {
	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		return addResult{}, err
	}
	defer discard()

	var next int64 = 1
	previous, err := s.latest(ctx, tx, schema, candidate.SubjectKey)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return addResult{}, err
	default:
		if equal(previous, candidate) {
			return addResult{Result: Result{Outcome: Skipped, Record: previous}}, nil
		}
		next = previous.Version + 1
		s.tel.ReportDebug(
			"new version",
			candidate.String(),
			next,
			cmp.Diff(previous.Fields.Map(), candidate.Fields.Map()),
		)
	}

	if s.beforeInsert != nil {
		err = s.beforeInsert(ctx, tx, attempt)
		if err != nil {
			return addResult{}, err
		}
	}

	stored := candidate.WithVersion(next)
	body, err := stored.Body()
	if err != nil {
		return addResult{}, err
	}
	err = tx.CreateVersionedRow(ctx, schema.Table, db.CreateVersionedRowParams{
		UUID:        stored.UUID.String(),
		DotNumber:   stored.SubjectKey,
		Version:     stored.Version,
		ExtractedAt: stored.ExtractedAt.UnixMilli(),
		Body:        string(body),
	})
	if err != nil {
		return addResult{}, fmt.Errorf("insert %s: %w", stored, err)
	}
	err = commit()
	if err != nil {
		return addResult{}, fmt.Errorf("commit %s: %w", stored, err)
	}
	return addResult{
		Result:   Result{Outcome: Committed, Record: stored},
		previous: previous,
	}, nil
}
