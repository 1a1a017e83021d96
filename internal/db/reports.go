package db

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// table and column names cannot be bound as parameters, so every
// identifier spliced into a statement must look like this.
var identifier = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func checkIdent(names ...string) error {
	for _, n := range names {
		if !identifier.MatchString(n) {
			return fmt.Errorf("invalid sql identifier %q", n)
		}
	}
	return nil
}

type ReportRow struct {
	UUID        string
	DotNumber   string
	Version     sql.NullInt64
	ExtractedAt int64
	Body        string
}

// KeyColumn is a natural key column of an append-only report table.
type KeyColumn struct {
	Name  string
	Value string
}

func (q *Queries) GetLatestVersion(ctx context.Context, table, dotNumber string) (sql.NullInt64, error) {
	if err := checkIdent(table); err != nil {
		return sql.NullInt64{}, err
	}
	row := q.db.QueryRowContext(
		ctx,
		fmt.Sprintf("select max(version) from %s where dot_number = ?", table),
		dotNumber,
	)
	var version sql.NullInt64
	err := row.Scan(&version)
	return version, err
}

type GetVersionParams struct {
	DotNumber string
	Version   int64
}

func (q *Queries) GetVersion(ctx context.Context, table string, arg GetVersionParams) (ReportRow, error) {
	if err := checkIdent(table); err != nil {
		return ReportRow{}, err
	}
	row := q.db.QueryRowContext(
		ctx,
		fmt.Sprintf(
			"select uuid, dot_number, version, extracted_at, body from %s where dot_number = ? and version = ?",
			table,
		),
		arg.DotNumber,
		arg.Version,
	)
	var i ReportRow
	err := row.Scan(&i.UUID, &i.DotNumber, &i.Version, &i.ExtractedAt, &i.Body)
	return i, err
}

// GetReportRows returns every row stored for a dot number, versioned tables are
// ordered by version, append-only tables by uuid (which is time-sortable).
func (q *Queries) GetReportRows(ctx context.Context, table string, versioned bool, dotNumber string) ([]ReportRow, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf(
		"select uuid, dot_number, null, extracted_at, body from %s where dot_number = ? order by uuid asc",
		table,
	)
	if versioned {
		stmt = fmt.Sprintf(
			"select uuid, dot_number, version, extracted_at, body from %s where dot_number = ? order by version asc",
			table,
		)
	}
	rows, err := q.db.QueryContext(ctx, stmt, dotNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ReportRow
	for rows.Next() {
		var i ReportRow
		if err := rows.Scan(&i.UUID, &i.DotNumber, &i.Version, &i.ExtractedAt, &i.Body); err != nil {
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

func (q *Queries) CountReportRows(ctx context.Context, table, dotNumber string) (int64, error) {
	if err := checkIdent(table); err != nil {
		return 0, err
	}
	row := q.db.QueryRowContext(
		ctx,
		fmt.Sprintf("select count(*) from %s where dot_number = ?", table),
		dotNumber,
	)
	var count int64
	err := row.Scan(&count)
	return count, err
}

func (q *Queries) HasDotNumber(ctx context.Context, table, dotNumber string) (bool, error) {
	if err := checkIdent(table); err != nil {
		return false, err
	}
	row := q.db.QueryRowContext(
		ctx,
		fmt.Sprintf("select exists (select 1 from %s where dot_number = ?)", table),
		dotNumber,
	)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

type CreateVersionedRowParams struct {
	UUID        string
	DotNumber   string
	Version     int64
	ExtractedAt int64
	Body        string
}

func (q *Queries) CreateVersionedRow(ctx context.Context, table string, arg CreateVersionedRowParams) error {
	if err := checkIdent(table); err != nil {
		return err
	}
	_, err := q.db.ExecContext(
		ctx,
		fmt.Sprintf(
			"insert into %s (uuid, dot_number, version, extracted_at, body) values (?, ?, ?, ?, ?)",
			table,
		),
		arg.UUID,
		arg.DotNumber,
		arg.Version,
		arg.ExtractedAt,
		arg.Body,
	)
	return err
}

type CreateAppendRowParams struct {
	UUID        string
	DotNumber   string
	Keys        []KeyColumn
	ExtractedAt int64
	Body        string
}

func (q *Queries) CreateAppendRow(ctx context.Context, table string, arg CreateAppendRowParams) error {
	if err := checkIdent(table); err != nil {
		return err
	}

	columns := []string{"uuid", "dot_number"}
	values := []any{arg.UUID, arg.DotNumber}
	for _, k := range arg.Keys {
		if err := checkIdent(k.Name); err != nil {
			return err
		}
		columns = append(columns, k.Name)
		values = append(values, k.Value)
	}
	columns = append(columns, "extracted_at", "body")
	values = append(values, arg.ExtractedAt, arg.Body)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	_, err := q.db.ExecContext(
		ctx,
		fmt.Sprintf(
			"insert into %s (%s) values (%s)",
			table,
			strings.Join(columns, ", "),
			placeholders,
		),
		values...,
	)
	return err
}
