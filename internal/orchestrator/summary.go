package orchestrator

import (
	"errors"
	"fmt"

	"fmcsa-backend/internal/store"
)

// ReportResult is what one report produced during a run.
type ReportResult struct {
	Report    string
	Committed int
	Skipped   int
	Duplicate int
	// Version is the version committed or kept for versioned reports.
	Version int64
	Errors  []error
}

func (r *ReportResult) count(res store.Result) {
	switch res.Outcome {
	case store.Committed:
		r.Committed++
	case store.Skipped:
		r.Skipped++
	case store.Duplicate:
		r.Duplicate++
	}
	if res.Record.Version > 0 {
		r.Version = res.Record.Version
	}
}

// Err joins the failures of the report, expected absences excluded.
func (r ReportResult) Err() error {
	var errs []error
	for _, err := range r.Errors {
		if expected(err) {
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", r.Report, err))
	}
	return errors.Join(errs...)
}

// Absent reports whether the report was skipped because the carrier has
// nothing to collect for it.
func (r ReportResult) Absent() bool {
	for _, err := range r.Errors {
		if expected(err) {
			return true
		}
	}
	return false
}

type Summary struct {
	SubjectKey string
	Reports    []ReportResult
	// Failure is set by RunAll when the run could not start.
	Failure error
}

func (s Summary) Report(name string) (ReportResult, bool) {
	for _, r := range s.Reports {
		if r.Report == name {
			return r, true
		}
	}
	return ReportResult{}, false
}

// Err joins every unexpected failure of the run.
func (s Summary) Err() error {
	errs := []error{s.Failure}
	for _, r := range s.Reports {
		errs = append(errs, r.Err())
	}
	return errors.Join(errs...)
}
