package configlibsql

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenFileDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "shard.db")
	db, err := Struct{File: path}.OpenDB()
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("create table t (x integer)")
	require.NoError(t, err)

	var mode string
	require.NoError(t, db.QueryRow("pragma journal_mode").Scan(&mode))
	require.Equal(t, "wal", mode)

	var timeout int
	require.NoError(t, db.QueryRow("pragma busy_timeout").Scan(&timeout))
	require.Equal(t, 5000, timeout)
}

func TestOpenRequiresLocation(t *testing.T) {
	_, err := Struct{}.OpenDB()
	require.Error(t, err)
}
