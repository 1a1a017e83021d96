package db

import (
	"context"
)

type SearchDocument struct {
	ReportType string
	DocID      string
	DotNumber  string
	Body       string
	IndexedAt  int64
}

func (q *Queries) UpsertSearchDocument(ctx context.Context, arg SearchDocument) error {
	_, err := q.db.ExecContext(
		ctx,
		`insert into search_document (report_type, doc_id, dot_number, body, indexed_at)
values (?, ?, ?, ?, ?)
on conflict (report_type, doc_id) do update set
    dot_number = excluded.dot_number,
    body = excluded.body,
    indexed_at = excluded.indexed_at`,
		arg.ReportType,
		arg.DocID,
		arg.DotNumber,
		arg.Body,
		arg.IndexedAt,
	)
	return err
}

type DeleteSearchDocumentParams struct {
	ReportType string
	DocID      string
}

func (q *Queries) DeleteSearchDocument(ctx context.Context, arg DeleteSearchDocumentParams) error {
	_, err := q.db.ExecContext(
		ctx,
		"delete from search_document where report_type = ? and doc_id = ?",
		arg.ReportType,
		arg.DocID,
	)
	return err
}

func (q *Queries) GetSearchDocuments(ctx context.Context, dotNumber string) ([]SearchDocument, error) {
	rows, err := q.db.QueryContext(
		ctx,
		"select report_type, doc_id, dot_number, body, indexed_at from search_document where dot_number = ? order by report_type, doc_id",
		dotNumber,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []SearchDocument
	for rows.Next() {
		var i SearchDocument
		if err := rows.Scan(&i.ReportType, &i.DocID, &i.DotNumber, &i.Body, &i.IndexedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
