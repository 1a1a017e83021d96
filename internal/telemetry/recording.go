package telemetry

import (
	"strings"
	"sync"
)

// Report is a single call made against a RecordingAPI.
type Report struct {
	Level  string
	ID     string
	Params []any
	Count  int64
}

// RecordingAPI keeps every report in memory, it is meant to be used in tests
// to assert that a component reported (or did not report) something.
type RecordingAPI struct {
	mutex   sync.Mutex
	reports []Report
}

func NewRecordingAPI() *RecordingAPI {
	return &RecordingAPI{}
}

func (r *RecordingAPI) push(report Report) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.reports = append(r.reports, report)
}

func (r *RecordingAPI) ReportBroken(id string, params ...any) {
	r.push(Report{Level: "broken", ID: id, Params: params})
}

func (r *RecordingAPI) ReportWarning(id string, params ...any) {
	r.push(Report{Level: "warning", ID: id, Params: params})
}

func (r *RecordingAPI) ReportDebug(msg string, params ...any) {
	r.push(Report{Level: "debug", ID: msg, Params: params})
}

func (r *RecordingAPI) ReportCount(id string, count int64) {
	r.push(Report{Level: "count", ID: id, Count: count})
}

// Reports returns every report whose level matches and whose id ends with `suffix`,
// an empty suffix matches everything.
func (r *RecordingAPI) Reports(level, suffix string) []Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var out []Report
	for _, report := range r.reports {
		if report.Level != level {
			continue
		}
		if !strings.HasSuffix(report.ID, suffix) {
			continue
		}
		out = append(out, report)
	}
	return out
}
