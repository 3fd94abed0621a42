package store

import (
	"context"

	"github.com/nook-dev/nook/internal/apperrors"
)

// UpsertTask inserts or updates the (path, task_type) row. Status is
// always overwritten; file_mtime is overwritten only when mtime > 0,
// preserving a previously recorded positive mtime against a later
// zero-valued update (invariant 5).
func (s *Store) UpsertTask(ctx context.Context, path string, taskType TaskType, status Status, mtime float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const q = `
INSERT INTO tasks (path, task_type, status, file_mtime, updated_at)
VALUES (?, ?, ?, ?, strftime('%s','now'))
ON CONFLICT (path, task_type) DO UPDATE SET
	status = excluded.status,
	file_mtime = CASE WHEN excluded.file_mtime > 0 THEN excluded.file_mtime ELSE tasks.file_mtime END,
	updated_at = excluded.updated_at
`
	if _, err := s.db.ExecContext(ctx, q, path, string(taskType), string(status), mtime); err != nil {
		return apperrors.New(apperrors.StoreError, "store", "upsert_task failed", err)
	}
	return nil
}

// MarkCompleted sets status=DONE for (path, task_type); a no-op if the row
// is absent.
func (s *Store) MarkCompleted(ctx context.Context, path string, taskType TaskType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const q = `UPDATE tasks SET status = ?, updated_at = strftime('%s','now') WHERE path = ? AND task_type = ?`
	if _, err := s.db.ExecContext(ctx, q, string(StatusDone), path, string(taskType)); err != nil {
		return apperrors.New(apperrors.StoreError, "store", "mark_completed failed", err)
	}
	return nil
}

// MarkFailed sets status=FAILED for (path, task_type).
func (s *Store) MarkFailed(ctx context.Context, path string, taskType TaskType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const q = `UPDATE tasks SET status = ?, updated_at = strftime('%s','now') WHERE path = ? AND task_type = ?`
	if _, err := s.db.ExecContext(ctx, q, string(StatusFailed), path, taskType); err != nil {
		return apperrors.New(apperrors.StoreError, "store", "mark_failed failed", err)
	}
	return nil
}

// RemovePathsBulk deletes every task and artifact row referencing any of
// paths, and their search-index shadow rows, in a single transaction. The
// delete-side triggers are dropped for the duration (bulk speed) and
// restored in a deferred path that always runs, even on error.
func (s *Store) RemovePathsBulk(ctx context.Context, paths []string) (err error) {
	if len(paths) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.New(apperrors.StoreError, "store", "remove_paths_bulk: begin tx failed", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if dropErr := s.dropDeleteTriggers(tx); dropErr != nil {
		return apperrors.New(apperrors.StoreError, "store", "remove_paths_bulk: drop triggers failed", dropErr)
	}
	// Triggers are dropped; restoring must happen regardless of outcome.
	// On the success path they are restored inside the tx before Commit.
	defer func() {
		if committed {
			return
		}
		if restoreErr := s.restoreDeleteTriggers(tx); restoreErr != nil && err == nil {
			err = apperrors.New(apperrors.StoreError, "store", "remove_paths_bulk: restore triggers failed", restoreErr)
		}
	}()

	placeholders, args := inClause(paths)

	for _, stmt := range []string{
		"DELETE FROM search_index WHERE path IN (" + placeholders + ")",
		"DELETE FROM embeddings WHERE path IN (" + placeholders + ")",
		"DELETE FROM ocr_results WHERE path IN (" + placeholders + ")",
		"DELETE FROM llm_analysis WHERE path IN (" + placeholders + ")",
		"DELETE FROM tasks WHERE path IN (" + placeholders + ")",
	} {
		if _, execErr := tx.ExecContext(ctx, stmt, args...); execErr != nil {
			return apperrors.New(apperrors.StoreError, "store", "remove_paths_bulk: delete failed", execErr)
		}
	}

	if restoreErr := s.restoreDeleteTriggers(tx); restoreErr != nil {
		return apperrors.New(apperrors.StoreError, "store", "remove_paths_bulk: restore triggers failed", restoreErr)
	}
	if commitErr := tx.Commit(); commitErr != nil {
		return apperrors.New(apperrors.StoreError, "store", "remove_paths_bulk: commit failed", commitErr)
	}
	committed = true
	return nil
}

// ListPending returns every (path, task_type) whose status is PENDING.
func (s *Store) ListPending(ctx context.Context) ([]TaskKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT path, task_type FROM tasks WHERE status = ?`, string(StatusPending))
	if err != nil {
		return nil, apperrors.New(apperrors.StoreError, "store", "list_pending failed", err)
	}
	defer func() { _ = rows.Close() }()

	var out []TaskKey
	for rows.Next() {
		var k TaskKey
		var tt string
		if err := rows.Scan(&k.Path, &tt); err != nil {
			return nil, apperrors.New(apperrors.StoreError, "store", "list_pending scan failed", err)
		}
		k.TaskType = TaskType(tt)
		out = append(out, k)
	}
	return out, rows.Err()
}

// ListFileStates returns the maximum recorded file_mtime per path across
// all of that path's task rows.
func (s *Store) ListFileStates(ctx context.Context) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT path, MAX(file_mtime) FROM tasks GROUP BY path`)
	if err != nil {
		return nil, apperrors.New(apperrors.StoreError, "store", "list_file_states failed", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]float64)
	for rows.Next() {
		var p string
		var m float64
		if err := rows.Scan(&p, &m); err != nil {
			return nil, apperrors.New(apperrors.StoreError, "store", "list_file_states scan failed", err)
		}
		out[p] = m
	}
	return out, rows.Err()
}

// TaskKey identifies a task row by its composite primary key.
type TaskKey struct {
	Path     string
	TaskType TaskType
}

// inClause builds a "?, ?, ..." placeholder list and the matching args
// slice for a dynamic IN (...) clause.
func inClause(paths []string) (string, []any) {
	args := make([]any, len(paths))
	ph := make([]byte, 0, len(paths)*2)
	for i, p := range paths {
		args[i] = p
		if i > 0 {
			ph = append(ph, ',', '?')
		} else {
			ph = append(ph, '?')
		}
	}
	return string(ph), args
}
