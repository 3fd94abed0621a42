// Package store is the embedded SQLite task ledger and artifact store.
// It owns the schema, the trigger-maintained FTS5 search index, and the
// process-wide write serialization described by the orchestrator's
// contract: every mutation goes through Store's single mutex.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // pure-Go driver, no cgo

	"github.com/nook-dev/nook/internal/apperrors"
)

// TaskType enumerates the five task families tracked by the ledger.
type TaskType string

const (
	TaskOCR      TaskType = "OCR"
	TaskEmbed    TaskType = "EMBED"
	TaskEmbedLLM TaskType = "EMBED_LLM"
	TaskLLM      TaskType = "LLM"
	TaskDelete   TaskType = "DELETE"
)

// Status enumerates the three persisted task states.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusDone    Status = "DONE"
	StatusFailed  Status = "FAILED"
)

// Store wraps a single *sql.DB. All public methods serialize through mu:
// modernc.org/sqlite plus WAL mode allows concurrent readers, but one
// process-wide mutex around the connection keeps writer discipline
// simple and trigger execution atomic with its statement.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
	lock *flock.Flock

	logger *slog.Logger
}

// Open opens (creating if necessary) the store at dbPath, enables WAL
// mode, acquires an exclusive file lock enforcing the single-writer-
// process invariant, creates the schema and triggers, and kicks off a
// one-shot integrity sweep in the background.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, apperrors.New(apperrors.StoreError, "store", "failed to create data directory", err)
		}
	}

	var lock *flock.Flock
	if dbPath != ":memory:" {
		lock = flock.New(dbPath + ".lock")
		locked, err := lock.TryLock()
		if err != nil {
			return nil, apperrors.New(apperrors.StoreError, "store", "failed to acquire store lock", err)
		}
		if !locked {
			return nil, apperrors.New(apperrors.StoreError, "store", "store is already open by another process", nil)
		}
	}

	dsn := dbPath
	if dbPath == ":memory:" {
		dsn = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		if lock != nil {
			_ = lock.Unlock()
		}
		return nil, apperrors.New(apperrors.StoreError, "store", "failed to open database", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = OFF",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			if lock != nil {
				_ = lock.Unlock()
			}
			return nil, apperrors.New(apperrors.StoreError, "store", "failed to set pragma: "+p, err)
		}
	}

	s := &Store{db: db, path: dbPath, lock: lock, logger: logger}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		if lock != nil {
			_ = lock.Unlock()
		}
		return nil, err
	}

	go s.runIntegritySweep(ctx)

	return s, nil
}

// Close releases the database handle and the single-writer file lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Close()
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
	return err
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tasks (
	path        TEXT NOT NULL,
	task_type   TEXT NOT NULL,
	status      TEXT NOT NULL,
	file_mtime  REAL NOT NULL DEFAULT 0,
	updated_at  REAL NOT NULL DEFAULT (strftime('%s','now')),
	PRIMARY KEY (path, task_type)
);

CREATE TABLE IF NOT EXISTS ocr_results (
	path        TEXT PRIMARY KEY,
	text_content TEXT NOT NULL,
	model_name  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS embeddings (
	path        TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	text_content TEXT NOT NULL,
	vector      BLOB NOT NULL,
	model_name  TEXT NOT NULL,
	PRIMARY KEY (path, chunk_index)
);
CREATE INDEX IF NOT EXISTS idx_embeddings_model ON embeddings(model_name);

CREATE TABLE IF NOT EXISTS llm_analysis (
	path         TEXT PRIMARY KEY,
	response_text TEXT NOT NULL,
	model_name   TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS search_index USING fts5(
	path UNINDEXED,
	content,
	source UNINDEXED,
	tokenize = 'unicode61'
);
`

// Trigger names are reused by the drop/restore dance in RemovePathsBulk and
// ResetService, so they are declared once here.
const (
	trgEmbedInsert = "trg_embeddings_ai"
	trgEmbedDelete = "trg_embeddings_ad"
	trgOCRInsert   = "trg_ocr_ai"
	trgOCRDelete   = "trg_ocr_ad"
)

// triggerDDL keeps search_index in lockstep with the artifact tables using
// embeddings.rowid, or the negated ocr_results.rowid, as the search_index
// row's own rowid, so each artifact row maps to exactly one shadow row
// regardless of how many chunks a path has and the two tables' rowids never
// collide.
func triggerDDL() string {
	return fmt.Sprintf(`
CREATE TRIGGER IF NOT EXISTS %s AFTER INSERT ON embeddings BEGIN
	INSERT INTO search_index(rowid, path, content, source)
	VALUES (new.rowid, new.path, new.path || ' ' || new.text_content, CASE WHEN new.chunk_index < 0 THEN 'llm' ELSE 'embed' END);
END;

CREATE TRIGGER IF NOT EXISTS %s AFTER DELETE ON embeddings BEGIN
	DELETE FROM search_index WHERE rowid = old.rowid;
END;

CREATE TRIGGER IF NOT EXISTS %s AFTER INSERT ON ocr_results BEGIN
	INSERT INTO search_index(rowid, path, content, source) VALUES (-new.rowid, new.path, new.path || ' ' || new.text_content, 'ocr');
END;

CREATE TRIGGER IF NOT EXISTS %s AFTER DELETE ON ocr_results BEGIN
	DELETE FROM search_index WHERE rowid = -old.rowid;
END;
`, trgEmbedInsert, trgEmbedDelete, trgOCRInsert, trgOCRDelete)
}

func (s *Store) initSchema() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return apperrors.New(apperrors.StoreError, "store", "failed to create schema", err)
	}
	if _, err := s.db.Exec(triggerDDL()); err != nil {
		return apperrors.New(apperrors.StoreError, "store", "failed to create triggers", err)
	}
	return nil
}

// dropDeleteTriggers and restoreDeleteTriggers bracket bulk administrative
// deletes so SQLite doesn't pay per-row trigger cost; callers MUST restore
// triggers in a deferred path even on error, or live artifact rows stop
// shadowing into search_index.
func (s *Store) dropDeleteTriggers(tx *sql.Tx) error {
	for _, name := range []string{trgEmbedDelete, trgOCRDelete} {
		if _, err := tx.Exec("DROP TRIGGER IF EXISTS " + name); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) restoreDeleteTriggers(tx *sql.Tx) error {
	ddl := triggerDDL()
	_, err := tx.Exec(ddl)
	return err
}
