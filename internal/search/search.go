package search

import (
	"context"
	"encoding/json"
	"time"

	"fmcsa-backend/internal/assert"
	"fmcsa-backend/internal/chrono"
	"fmcsa-backend/internal/db"
	"fmcsa-backend/internal/record"
)

// Indexer is the search side effect of committed records. Stores call it only
// after a commit succeeded and never roll back because of it.
type Indexer interface {
	Index(ctx context.Context, rec record.Record) error
	Delete(ctx context.Context, reportType, docID string) error
}

// DocID is the document id of a record, its uuid.
func DocID(rec record.Record) string {
	return rec.UUID.String()
}

type document struct {
	ReportType  string        `json:"report_type"`
	DotNumber   string        `json:"dot_number"`
	Version     int64         `json:"version,omitempty"`
	ExtractedAt string        `json:"extracted_at"`
	Fields      record.Fields `json:"fields"`
}

// SQLIndexer keeps documents in the search_document table of a dedicated
// database, one row per record.
type SQLIndexer struct {
	qry   *db.Queries
	clock chrono.TimeAPI
}

func NewSQLIndexer(qry *db.Queries, clock chrono.TimeAPI) SQLIndexer {
	assert.NotNil(qry)
	assert.NotNil(clock)
	return SQLIndexer{qry: qry, clock: clock}
}

func (i SQLIndexer) Index(ctx context.Context, rec record.Record) error {
	body, err := json.Marshal(document{
		ReportType:  rec.ReportType,
		DotNumber:   rec.SubjectKey,
		Version:     rec.Version,
		ExtractedAt: rec.ExtractedAt.Format(time.RFC3339),
		Fields:      rec.Fields,
	})
	if err != nil {
		return err
	}
	return i.qry.UpsertSearchDocument(ctx, db.SearchDocument{
		ReportType: rec.ReportType,
		DocID:      DocID(rec),
		DotNumber:  rec.SubjectKey,
		Body:       string(body),
		IndexedAt:  i.clock.Now().Unix(),
	})
}

func (i SQLIndexer) Delete(ctx context.Context, reportType, docID string) error {
	return i.qry.DeleteSearchDocument(ctx, db.DeleteSearchDocumentParams{
		ReportType: reportType,
		DocID:      docID,
	})
}

// Documents lists the indexed documents of a dot number.
func (i SQLIndexer) Documents(ctx context.Context, dotNumber string) ([]db.SearchDocument, error) {
	return i.qry.GetSearchDocuments(ctx, dotNumber)
}

// NopIndexer drops everything.
type NopIndexer struct{}

func (NopIndexer) Index(context.Context, record.Record) error { return nil }

func (NopIndexer) Delete(context.Context, string, string) error { return nil }
