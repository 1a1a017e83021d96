package store

import (
	"context"
	"fmt"
	"time"

	"fmcsa-backend/internal/assert"
	"fmcsa-backend/internal/db"
	"fmcsa-backend/internal/record"
	"fmcsa-backend/internal/telemetry"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AppendStore keeps event-log style reports. Every record is stored as is,
// the natural key constraint of the table rejects repeats.
type AppendStore struct {
	qry    *db.Queries
	makeTx db.MakeTx
	tel    telemetry.API
	opts   Options
}

func NewAppendStore(session Session, tel telemetry.API, opts Options) *AppendStore {
	assert.NotNil(session)
	assert.NotNil(tel)
	return &AppendStore{
		qry:    session.Queries(),
		makeTx: session.MakeTx(),
		tel:    tel,
		opts:   opts.withDefaults(),
	}
}

// Add returns Duplicate when a record with the same natural key exists. A
// duplicate is an expected outcome and not an error, there is no version
// number to recompute so it is never retried. Only lock contention is.
func (s *AppendStore) Add(ctx context.Context, candidate record.Record) (Result, error) {
	ctx, span := tracer.Start(ctx, "Add", trace.WithAttributes(
		attribute.String("report_type", candidate.ReportType),
		attribute.String("dot_number", candidate.SubjectKey),
	))
	defer span.End()

	schema, err := lookupSchema(candidate.ReportType, false)
	if err != nil {
		return Result{}, err
	}
	err = checkCandidate(schema, candidate)
	if err != nil {
		return Result{}, err
	}

	attempt := 0
	res, err := backoff.RetryNotifyWithData(
		func() (Result, error) {
			attempt++
			res, err := s.tryAdd(ctx, schema, candidate)
			if err == nil || db.IsBusy(err) {
				return res, err
			}
			return res, backoff.Permanent(err)
		},
		s.opts.backoff(ctx),
		func(err error, wait time.Duration) {
			s.tel.ReportWarning(report_add_append, fmt.Errorf("retrying after lock contention: %w", err), candidate.String(), attempt, wait)
		},
	)
	if err != nil {
		s.tel.ReportBroken(report_add_append, err, candidate.String())
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to append record")
		return Result{}, err
	}

	span.SetAttributes(attribute.String("outcome", res.Outcome.String()))
	if res.Outcome == Committed {
		index(ctx, s.tel, s.opts.Indexer, res.Record)
	}
	return res, nil
}

func (s *AppendStore) tryAdd(ctx context.Context, schema record.Schema, candidate record.Record) (Result, error) {
	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		return Result{}, err
	}
	defer discard()

	body, err := candidate.Body()
	if err != nil {
		return Result{}, err
	}
	values := schema.NaturalKeyValues(candidate)
	keys := make([]db.KeyColumn, len(values))
	for i, v := range values {
		keys[i] = db.KeyColumn{Name: schema.NaturalKey[i], Value: v}
	}

	err = tx.CreateAppendRow(ctx, schema.Table, db.CreateAppendRowParams{
		UUID:        candidate.UUID.String(),
		DotNumber:   candidate.SubjectKey,
		Keys:        keys,
		ExtractedAt: candidate.ExtractedAt.UnixMilli(),
		Body:        string(body),
	})
	if db.IsConstraintViolation(err) {
		s.tel.ReportDebug("duplicate record", candidate.String(), values)
		return Result{Outcome: Duplicate, Record: candidate}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("insert %s: %w", candidate, err)
	}

	err = commit()
	if db.IsConstraintViolation(err) {
		return Result{Outcome: Duplicate, Record: candidate}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("commit %s: %w", candidate, err)
	}
	return Result{Outcome: Committed, Record: candidate}, nil
}

// List returns every stored record of an append-only report in insertion order.
func (s *AppendStore) List(ctx context.Context, reportType, subjectKey string) ([]record.Record, error) {
	schema, err := lookupSchema(reportType, false)
	if err != nil {
		return nil, err
	}
	rows, err := s.qry.GetReportRows(ctx, schema.Table, false, subjectKey)
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

func (s *AppendStore) Count(ctx context.Context, reportType, subjectKey string) (int64, error) {
	schema, err := lookupSchema(reportType, false)
	if err != nil {
		return 0, err
	}
	count, err := s.qry.CountReportRows(ctx, schema.Table, subjectKey)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "CountReportRows", schema.Table, subjectKey)
	}
	return count, err
}
