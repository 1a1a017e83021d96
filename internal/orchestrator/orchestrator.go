package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"fmcsa-backend/internal/assert"
	"fmcsa-backend/internal/chrono"
	"fmcsa-backend/internal/record"
	"fmcsa-backend/internal/scrapers/fmcsa"
	"fmcsa-backend/internal/shard"
	"fmcsa-backend/internal/store"
	"fmcsa-backend/internal/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("fmcsa.internal.orchestrator")

const (
	report_run         = "orchestrator.run"
	report_run_report  = "orchestrator.run-report"
	report_run_skipped = "orchestrator.run-skipped"
)

// ErrNoSaferRecord is returned for every other report of a carrier that has
// no stored safer snapshot.
var ErrNoSaferRecord = fmt.Errorf("%w: no safer record stored", fmcsa.ErrRecordNotFound)

// Extractor fetches one page for a carrier and turns it into raw rows.
type Extractor interface {
	Extract(ctx context.Context, page, subjectKey string) ([]record.Raw, error)
}

// Opener hands out one shard session per run, usually a *shard.Registry.
type Opener interface {
	Open(ctx context.Context, name string) (*shard.Session, error)
}

type Options struct {
	// Shard is the name of the shard every run writes to.
	Shard string
	// Reports are processed in order, record.Reports when empty. The safer
	// report must come first for the other reports to be collected.
	Reports []record.Schema
	Store   store.Options
	Clock   chrono.TimeAPI
}

type Orchestrator struct {
	extractor Extractor
	opener    Opener
	opts      Options
	tel       telemetry.API
}

func New(extractor Extractor, opener Opener, tel telemetry.API, opts Options) *Orchestrator {
	assert.NotNil(extractor)
	assert.NotNil(opener)
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.Shard)

	if len(opts.Reports) == 0 {
		opts.Reports = record.Reports
	}
	if opts.Clock == nil {
		opts.Clock = chrono.StandardTime{}
	}
	return &Orchestrator{
		extractor: extractor,
		opener:    opener,
		opts:      opts,
		tel:       telemetry.NewScopedAPI("orchestrator", tel),
	}
}

// expected reports whether a report failed for a reason that is part of
// normal operation: the carrier simply has nothing on that page.
func expected(err error) bool {
	return errors.Is(err, fmcsa.ErrNoDataAvailable) ||
		errors.Is(err, fmcsa.ErrRecordNotFound) ||
		errors.Is(err, fmcsa.ErrInactiveRecord)
}

// Run collects every report for one carrier. Each report commits on its own,
// a failing report is recorded in the summary and never stops the others.
// The returned error is only set when the run could not start at all.
func (o *Orchestrator) Run(ctx context.Context, subjectKey string) (Summary, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	dotNumber, err := record.NormalizeSubjectKey(subjectKey)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Summary{SubjectKey: subjectKey}, err
	}
	span.SetAttributes(attribute.String("dot_number", dotNumber))

	session, err := o.opener.Open(ctx, o.opts.Shard)
	if err != nil {
		o.tel.ReportBroken(report_run, err, o.opts.Shard)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Summary{SubjectKey: dotNumber}, err
	}
	defer session.Close()

	versions := store.NewVersionStore(session, o.tel, o.opts.Store)
	appends := store.NewAppendStore(session, o.tel, o.opts.Store)

	summary := Summary{SubjectKey: dotNumber}
	haveSafer := false
	for _, schema := range o.opts.Reports {
		var result ReportResult
		if schema.Name != record.ReportSafer && !haveSafer {
			haveSafer, err = o.hasSafer(ctx, versions, dotNumber)
			if err != nil {
				result = ReportResult{Report: schema.Name, Errors: []error{err}}
				summary.Reports = append(summary.Reports, result)
				continue
			}
		}
		if schema.Name != record.ReportSafer && !haveSafer {
			result = ReportResult{Report: schema.Name, Errors: []error{ErrNoSaferRecord}}
		} else {
			result = o.runReport(ctx, versions, appends, schema, dotNumber)
		}
		o.log(dotNumber, result)
		summary.Reports = append(summary.Reports, result)
	}

	if err := summary.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return summary, nil
}

func (o *Orchestrator) hasSafer(ctx context.Context, versions *store.VersionStore, dotNumber string) (bool, error) {
	_, ok, err := versions.LatestVersionNumber(ctx, record.ReportSafer, dotNumber)
	return ok, err
}

func (o *Orchestrator) log(dotNumber string, result ReportResult) {
	for _, err := range result.Errors {
		var invalid *record.InvalidFieldError
		switch {
		case expected(err):
			o.tel.ReportDebug(report_run_skipped, result.Report, dotNumber, err.Error())
		case errors.Is(err, fmcsa.ErrFetchTimeout), errors.As(err, &invalid):
			o.tel.ReportWarning(report_run_report, result.Report, dotNumber, err)
		default:
			o.tel.ReportBroken(report_run_report, result.Report, dotNumber, err)
		}
	}
}

func (o *Orchestrator) runReport(
	ctx context.Context,
	versions *store.VersionStore,
	appends *store.AppendStore,
	schema record.Schema,
	dotNumber string,
) (result ReportResult) {
	ctx, span := tracer.Start(ctx, "runReport", trace.WithAttributes(
		attribute.String("report", schema.Name),
	))
	defer func() {
		span.SetAttributes(
			attribute.Int("committed", result.Committed),
			attribute.Int("skipped", result.Skipped),
			attribute.Int("duplicate", result.Duplicate),
		)
		if err := result.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	result.Report = schema.Name
	rows, err := o.extractor.Extract(ctx, schema.Name, dotNumber)
	if err != nil {
		result.Errors = append(result.Errors, err)
		return result
	}
	extractedAt := o.opts.Clock.Now()

	if schema.Versioned {
		if len(rows) != 1 {
			result.Errors = append(result.Errors, fmt.Errorf("%s: expected one row, got %d", schema.Name, len(rows)))
			return result
		}
		candidate, err := schema.Apply(dotNumber, rows[0], extractedAt)
		if err != nil {
			result.Errors = append(result.Errors, err)
			return result
		}
		res, err := versions.AddVersioned(ctx, candidate)
		if err != nil {
			result.Errors = append(result.Errors, err)
			return result
		}
		result.count(res)
		return result
	}

	// every row of an append-only report is its own record
	for _, row := range rows {
		candidate, err := schema.Apply(dotNumber, row, extractedAt)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		res, err := appends.Add(ctx, candidate)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		result.count(res)
	}
	return result
}

// RunAll runs every subject key with at most `workers` runs in flight, each
// run owns its own session. Summaries come back in the order of the keys.
func (o *Orchestrator) RunAll(ctx context.Context, subjectKeys []string, workers int) []Summary {
	if workers < 1 {
		workers = 1
	}
	summaries := make([]Summary, len(subjectKeys))

	var group errgroup.Group
	group.SetLimit(workers)
	for i, key := range subjectKeys {
		i, key := i, key
		group.Go(func() error {
			summary, err := o.Run(ctx, key)
			if err != nil {
				summary.Failure = err
			}
			summaries[i] = summary
			return nil
		})
	}
	_ = group.Wait()
	return summaries
}
