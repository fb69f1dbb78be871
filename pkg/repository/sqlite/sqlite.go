package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/domain/interfaces"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound  = interfaces.ErrNotFound
	ErrDuplicate = interfaces.ErrDuplicate
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	source        TEXT    NOT NULL,
	content       TEXT    NOT NULL,
	content_hash  TEXT    NOT NULL UNIQUE,
	url           TEXT    NOT NULL DEFAULT '',
	metadata      TEXT    NOT NULL DEFAULT '{}',
	collected_at  INTEGER NOT NULL,
	processed     INTEGER NOT NULL DEFAULT 0,
	incident_type TEXT    NOT NULL DEFAULT '',
	severity      TEXT    NOT NULL DEFAULT '',
	confidence    REAL    NOT NULL DEFAULT 0,
	entities      TEXT    NOT NULL DEFAULT '{}',
	locations     TEXT    NOT NULL DEFAULT '[]',
	latitude      REAL,
	longitude     REAL,
	risk_score    REAL    NOT NULL DEFAULT 0,
	embedding     BLOB,
	cluster_id    INTEGER,
	enriched_at   INTEGER,
	failure_count INTEGER NOT NULL DEFAULT 0,
	flagged       INTEGER NOT NULL DEFAULT 0,
	last_error    TEXT    NOT NULL DEFAULT '',
	country       TEXT    NOT NULL DEFAULT '',
	state         TEXT    NOT NULL DEFAULT '',
	summary       TEXT    NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_records_processed ON records(processed, flagged, id);
CREATE INDEX IF NOT EXISTS idx_records_cluster ON records(cluster_id, id);
CREATE INDEX IF NOT EXISTS idx_records_risk ON records(processed, risk_score DESC, id);

CREATE TABLE IF NOT EXISTS alerts (
	id          TEXT    PRIMARY KEY,
	created_at  INTEGER NOT NULL,
	rule        TEXT    NOT NULL,
	severity    TEXT    NOT NULL DEFAULT '',
	reason      TEXT    NOT NULL DEFAULT '',
	record_ids  TEXT    NOT NULL DEFAULT '[]',
	cluster_id  INTEGER,
	dedup_key   TEXT    NOT NULL UNIQUE
);

CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at DESC, id DESC);
`

// addedColumns were introduced after the first schema; files created earlier
// get them through migrate
var addedColumns = []struct{ name, ddl string }{
	{"country", `ALTER TABLE records ADD COLUMN country TEXT NOT NULL DEFAULT ''`},
	{"state", `ALTER TABLE records ADD COLUMN state TEXT NOT NULL DEFAULT ''`},
	{"summary", `ALTER TABLE records ADD COLUMN summary TEXT NOT NULL DEFAULT ''`},
}

// SQLite is a single-file repository backend for local runs
type SQLite struct {
	db     *sql.DB
	record *recordRepository
	alert  *alertRepository
}

var _ interfaces.Repository = &SQLite{}

// New opens (or creates) the database file at path and applies the schema
func New(ctx context.Context, path string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to connect to sqlite database", goerr.V("path", path))
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to initialize schema", goerr.V("path", path))
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to migrate schema", goerr.V("path", path))
	}

	return &SQLite{
		db:     db,
		record: &recordRepository{db: db},
		alert:  &alertRepository{db: db},
	}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `SELECT name FROM pragma_table_info('records')`)
	if err != nil {
		return goerr.Wrap(err, "failed to read records columns")
	}
	existing := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return goerr.Wrap(err, "failed to scan column name")
		}
		existing[name] = true
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return goerr.Wrap(err, "failed to iterate columns")
	}

	for _, col := range addedColumns {
		if existing[col.name] {
			continue
		}
		if _, err := db.ExecContext(ctx, col.ddl); err != nil {
			return goerr.Wrap(err, "failed to add column", goerr.V("column", col.name))
		}
	}
	return nil
}

func (s *SQLite) Record() interfaces.RecordRepository {
	return s.record
}

func (s *SQLite) Alert() interfaces.AlertRepository {
	return s.alert
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
