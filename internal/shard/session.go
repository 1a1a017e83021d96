package shard

import (
	"database/sql"

	"fmcsa-backend/internal/db"
)

// Session is one pinned connection to one shard. Every statement issued
// through it (and every transaction it makes) sees only that shard's tables.
// A session belongs to a single run and is not safe for concurrent use.
type Session struct {
	desc    Descriptor
	conn    *sql.Conn
	queries *db.Queries
	makeTx  db.MakeTx
}

func newSession(desc Descriptor, conn *sql.Conn) *Session {
	return &Session{
		desc:    desc,
		conn:    conn,
		queries: db.New(conn),
		makeTx:  db.NewMakeTx(conn),
	}
}

func (s *Session) Shard() Descriptor {
	return s.desc
}

func (s *Session) Queries() *db.Queries {
	return s.queries
}

func (s *Session) MakeTx() db.MakeTx {
	return s.makeTx
}

// Close hands the connection back to the shard's pool.
func (s *Session) Close() error {
	return s.conn.Close()
}
