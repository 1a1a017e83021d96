package db

import (
	"context"
)

type ShardLookup struct {
	Name       string
	DbName     string
	SchemaName string
	CreatedAt  int64
}

func (q *Queries) GetShardLookup(ctx context.Context, name string) (ShardLookup, error) {
	row := q.db.QueryRowContext(
		ctx,
		"select name, db_name, schema_name, created_at from shard_lookup where name = ?",
		name,
	)
	var i ShardLookup
	err := row.Scan(&i.Name, &i.DbName, &i.SchemaName, &i.CreatedAt)
	return i, err
}

func (q *Queries) ListShardLookups(ctx context.Context) ([]ShardLookup, error) {
	rows, err := q.db.QueryContext(ctx, "select name, db_name, schema_name, created_at from shard_lookup order by name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ShardLookup
	for rows.Next() {
		var i ShardLookup
		if err := rows.Scan(&i.Name, &i.DbName, &i.SchemaName, &i.CreatedAt); err != nil {
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

func (q *Queries) CreateShardLookup(ctx context.Context, arg ShardLookup) error {
	_, err := q.db.ExecContext(
		ctx,
		"insert into shard_lookup (name, db_name, schema_name, created_at) values (?, ?, ?, ?)",
		arg.Name,
		arg.DbName,
		arg.SchemaName,
		arg.CreatedAt,
	)
	return err
}

func (q *Queries) DeleteShardLookup(ctx context.Context, name string) error {
	_, err := q.db.ExecContext(ctx, "delete from shard_lookup where name = ?", name)
	return err
}
