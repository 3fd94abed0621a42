package store

import (
	"context"
	"log/slog"

	"github.com/nook-dev/nook/internal/apperrors"
)

// Stats is the operator-facing snapshot: per-task-type counts by status
// plus the total number of distinct indexed paths.
type Stats struct {
	Counts     map[TaskType]map[Status]int
	TotalPaths int
}

// Stats returns DONE/PENDING/FAILED counts per task family and the total
// distinct path count across all task rows.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Stats{Counts: map[TaskType]map[Status]int{}}

	rows, err := s.db.QueryContext(ctx, `SELECT task_type, status, COUNT(*) FROM tasks GROUP BY task_type, status`)
	if err != nil {
		return out, apperrors.New(apperrors.StoreError, "store", "stats failed", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var tt, st string
		var n int
		if err := rows.Scan(&tt, &st, &n); err != nil {
			return out, apperrors.New(apperrors.StoreError, "store", "stats scan failed", err)
		}
		taskType := TaskType(tt)
		if out.Counts[taskType] == nil {
			out.Counts[taskType] = map[Status]int{}
		}
		out.Counts[taskType][Status(st)] = n
	}
	if err := rows.Err(); err != nil {
		return out, apperrors.New(apperrors.StoreError, "store", "stats iteration failed", err)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT path) FROM tasks`).Scan(&out.TotalPaths); err != nil {
		return out, apperrors.New(apperrors.StoreError, "store", "stats total_paths failed", err)
	}
	return out, nil
}

// RetryAllFailed resets every FAILED task row to PENDING, atomically.
func (s *Store) RetryAllFailed(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const q = `UPDATE tasks SET status = ?, updated_at = strftime('%s','now') WHERE status = ?`
	if _, err := s.db.ExecContext(ctx, q, string(StatusPending), string(StatusFailed)); err != nil {
		return apperrors.New(apperrors.StoreError, "store", "retry_all_failed failed", err)
	}
	return nil
}

// ServiceKey identifies which backend's rows ResetService should re-queue.
type ServiceKey string

const (
	ServiceOCR   ServiceKey = "ocr"
	ServiceEmbed ServiceKey = "embed"
	ServiceLLM   ServiceKey = "llm"
)

// ResetService re-queues all task rows for the given service to PENDING
// and deletes the artifacts that service owns, atomically. Resetting LLM
// cascades into EMBED_LLM: since the LLM summary is gone, the follow-on
// embedding of that summary is stale and is reset and deleted too.
func (s *Store) ResetService(ctx context.Context, key ServiceKey) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.New(apperrors.StoreError, "store", "reset_service: begin tx failed", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if dropErr := s.dropDeleteTriggers(tx); dropErr != nil {
		return apperrors.New(apperrors.StoreError, "store", "reset_service: drop triggers failed", dropErr)
	}
	defer func() {
		if committed {
			return
		}
		if restoreErr := s.restoreDeleteTriggers(tx); restoreErr != nil && err == nil {
			err = apperrors.New(apperrors.StoreError, "store", "reset_service: restore triggers failed", restoreErr)
		}
	}()

	switch key {
	case ServiceOCR:
		if _, execErr := tx.ExecContext(ctx, `DELETE FROM ocr_results`); execErr != nil {
			return apperrors.New(apperrors.StoreError, "store", "reset_service(ocr): delete artifacts failed", execErr)
		}
		if _, execErr := tx.ExecContext(ctx, `DELETE FROM search_index WHERE source = 'ocr'`); execErr != nil {
			return apperrors.New(apperrors.StoreError, "store", "reset_service(ocr): delete search rows failed", execErr)
		}
		if _, execErr := tx.ExecContext(ctx, `UPDATE tasks SET status = ?, updated_at = strftime('%s','now') WHERE task_type = ?`, string(StatusPending), string(TaskOCR)); execErr != nil {
			return apperrors.New(apperrors.StoreError, "store", "reset_service(ocr): requeue failed", execErr)
		}
	case ServiceEmbed:
		if _, execErr := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE chunk_index >= 0`); execErr != nil {
			return apperrors.New(apperrors.StoreError, "store", "reset_service(embed): delete artifacts failed", execErr)
		}
		if _, execErr := tx.ExecContext(ctx, `DELETE FROM search_index WHERE source = 'embed'`); execErr != nil {
			return apperrors.New(apperrors.StoreError, "store", "reset_service(embed): delete search rows failed", execErr)
		}
		if _, execErr := tx.ExecContext(ctx, `UPDATE tasks SET status = ?, updated_at = strftime('%s','now') WHERE task_type = ?`, string(StatusPending), string(TaskEmbed)); execErr != nil {
			return apperrors.New(apperrors.StoreError, "store", "reset_service(embed): requeue failed", execErr)
		}
	case ServiceLLM:
		if _, execErr := tx.ExecContext(ctx, `DELETE FROM llm_analysis`); execErr != nil {
			return apperrors.New(apperrors.StoreError, "store", "reset_service(llm): delete artifacts failed", execErr)
		}
		if _, execErr := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE chunk_index < 0`); execErr != nil {
			return apperrors.New(apperrors.StoreError, "store", "reset_service(llm): delete embed_llm embeddings failed", execErr)
		}
		if _, execErr := tx.ExecContext(ctx, `DELETE FROM search_index WHERE source = 'llm'`); execErr != nil {
			return apperrors.New(apperrors.StoreError, "store", "reset_service(llm): delete search rows failed", execErr)
		}
		if _, execErr := tx.ExecContext(ctx, `UPDATE tasks SET status = ?, updated_at = strftime('%s','now') WHERE task_type IN (?, ?)`, string(StatusPending), string(TaskLLM), string(TaskEmbedLLM)); execErr != nil {
			return apperrors.New(apperrors.StoreError, "store", "reset_service(llm): requeue failed", execErr)
		}
	}

	if restoreErr := s.restoreDeleteTriggers(tx); restoreErr != nil {
		return apperrors.New(apperrors.StoreError, "store", "reset_service: restore triggers failed", restoreErr)
	}
	if commitErr := tx.Commit(); commitErr != nil {
		return apperrors.New(apperrors.StoreError, "store", "reset_service: commit failed", commitErr)
	}
	committed = true
	return nil
}

// RunIntegritySweep triggers the same maintenance pass Open schedules in
// the background, synchronously, so a CLI diagnostic command can report
// its outcome.
func (s *Store) RunIntegritySweep(ctx context.Context) {
	s.runIntegritySweep(ctx)
}

// runIntegritySweep runs once at Open, in the background: integrity_check,
// orphan purge, zombie reset, REINDEX/VACUUM/wal_checkpoint. Any failure is
// logged; the store remains usable regardless (the sweep is advisory, not
// a precondition for serving requests).
func (s *Store) runIntegritySweep(ctx context.Context) {
	s.mu.Lock()
	var result string
	if err := s.db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		s.logger.Error("integrity_check query failed", slog.String("error", err.Error()))
	} else if result != "ok" {
		s.logger.Error("integrity_check reported corruption", slog.String("result", result))
	}
	s.mu.Unlock()

	if err := s.purgeOrphans(ctx); err != nil {
		s.logger.Error("orphan purge failed", slog.String("error", err.Error()))
	}
	if err := s.resetZombies(ctx); err != nil {
		s.logger.Error("zombie reset failed", slog.String("error", err.Error()))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `REINDEX`); err != nil {
		s.logger.Error("reindex failed", slog.String("error", err.Error()))
	}
	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		s.logger.Error("vacuum failed", slog.String("error", err.Error()))
	}
	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		s.logger.Error("wal checkpoint failed", slog.String("error", err.Error()))
	}
}

// purgeOrphans deletes artifact rows whose (path, expected task_type) is
// absent from tasks, per artifact family, with sign-of-chunk discrimination
// for embeddings.
func (s *Store) purgeOrphans(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmts := []string{
		`DELETE FROM ocr_results WHERE path NOT IN (SELECT path FROM tasks WHERE task_type = 'OCR')`,
		`DELETE FROM llm_analysis WHERE path NOT IN (SELECT path FROM tasks WHERE task_type = 'LLM')`,
		`DELETE FROM embeddings WHERE chunk_index >= 0 AND path NOT IN (SELECT path FROM tasks WHERE task_type = 'EMBED')`,
		`DELETE FROM embeddings WHERE chunk_index < 0 AND path NOT IN (SELECT path FROM tasks WHERE task_type = 'EMBED_LLM')`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return apperrors.New(apperrors.StoreError, "store", "purge_orphans failed", err)
		}
	}
	return nil
}

// resetZombies sets DONE tasks whose artifact is missing back to PENDING,
// per (task_type, artifact family) pair.
func (s *Store) resetZombies(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmts := []string{
		`UPDATE tasks SET status = 'PENDING' WHERE task_type = 'OCR' AND status = 'DONE' AND path NOT IN (SELECT path FROM ocr_results)`,
		`UPDATE tasks SET status = 'PENDING' WHERE task_type = 'LLM' AND status = 'DONE' AND path NOT IN (SELECT path FROM llm_analysis)`,
		`UPDATE tasks SET status = 'PENDING' WHERE task_type = 'EMBED' AND status = 'DONE' AND path NOT IN (SELECT path FROM embeddings WHERE chunk_index >= 0)`,
		`UPDATE tasks SET status = 'PENDING' WHERE task_type = 'EMBED_LLM' AND status = 'DONE' AND path NOT IN (SELECT path FROM embeddings WHERE chunk_index < 0)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return apperrors.New(apperrors.StoreError, "store", "reset_zombies failed", err)
		}
	}
	return nil
}
