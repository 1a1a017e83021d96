package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	devenv "fmcsa-backend/dev/env"
	"fmcsa-backend/internal/db"
)

func createDb(filename, schema string) error {
	path, err := devenv.ResolvePath(filepath.Join("<dev_state>", filename))
	if err != nil {
		return err
	}

	_, err = os.Stat(path)
	if err == nil {
		fmt.Println("database already created at", path)
		return nil
	}

	fmt.Println("creating database at", path)
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer database.Close()
	_, err = database.Exec(schema)
	return err
}

// CreateControlDBs creates the shard lookup and search index databases, the
// shards themselves are created by `fmcsa setup`.
func CreateControlDBs() error {
	err := createDb("lookup.db", db.LookupSchema)
	if err != nil {
		return err
	}
	return createDb("search.db", db.SearchSchema)
}

const localConfig = `{
  shards: {
    databases: [{ name: "local", dir: "<dev_state>/shards" }],
    create_shards_on: "local",
  },
  shard: "fmcsa",
  lookup: { file: "<dev_state>/lookup.db" },
  search: { file: "<dev_state>/search.db" },
  fetch: { requests_per_second: 1, retries: 2 },
  watch: { interval_minutes: 60, dot_numbers: [] },
}
`

// WriteLocalConfig writes config.local.json5 unless one exists, it overrides
// the checked in config.json5.
func WriteLocalConfig() error {
	_, err := os.Stat("config.local.json5")
	if err == nil {
		slog.Info("config.local.json5 already exists")
		return nil
	}
	return os.WriteFile("config.local.json5", []byte(localConfig), 0644)
}

func PrintNextSteps() {
	slog.Info("run `go run ./cmd/fmcsa setup` to create the default shard, then `go run ./cmd/fmcsa scrape <dot_number>`.")
}
