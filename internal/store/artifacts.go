package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"math"

	"github.com/nook-dev/nook/internal/apperrors"
)

// EmbeddingRow is one row destined for the embeddings table.
type EmbeddingRow struct {
	Path       string
	ChunkIndex int
	Text       string
	Vector     []float32
	ModelName  string
}

// EncodeVector serializes a vector as little-endian 32-bit floats, the
// store's on-disk blob format.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// SaveOCR upserts the single OCR result row for path.
func (s *Store) SaveOCR(ctx context.Context, path, text, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const q = `
INSERT INTO ocr_results (path, text_content, model_name) VALUES (?, ?, ?)
ON CONFLICT (path) DO UPDATE SET text_content = excluded.text_content, model_name = excluded.model_name
`
	if _, err := s.db.ExecContext(ctx, q, path, text, model); err != nil {
		return apperrors.New(apperrors.StoreError, "store", "save_ocr failed", err)
	}
	return nil
}

// SaveLLM upserts the single LLM analysis row for path.
func (s *Store) SaveLLM(ctx context.Context, path, text, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const q = `
INSERT INTO llm_analysis (path, response_text, model_name) VALUES (?, ?, ?)
ON CONFLICT (path) DO UPDATE SET response_text = excluded.response_text, model_name = excluded.model_name
`
	if _, err := s.db.ExecContext(ctx, q, path, text, model); err != nil {
		return apperrors.New(apperrors.StoreError, "store", "save_llm failed", err)
	}
	return nil
}

// GetLLM returns the stored LLM response text for path, or ("", false) if
// none exists.
func (s *Store) GetLLM(ctx context.Context, path string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var text string
	err := s.db.QueryRowContext(ctx, `SELECT response_text FROM llm_analysis WHERE path = ?`, path).Scan(&text)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, apperrors.New(apperrors.StoreError, "store", "get_llm failed", err)
	}
	return text, true, nil
}

// SaveEmbeddings replaces every existing row of the same sign class
// (chunk_index < 0 vs >= 0) for every distinct path in rows, then inserts
// rows, atomically. Sign class is determined by the batch: if any row has
// a negative chunk_index the whole batch is treated as the LLM-summary
// class. Callers never mix sign classes in one batch.
func (s *Store) SaveEmbeddings(ctx context.Context, rows []EmbeddingRow) error {
	if len(rows) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	negative := false
	pathSet := map[string]struct{}{}
	for _, r := range rows {
		if r.ChunkIndex < 0 {
			negative = true
		}
		pathSet[r.Path] = struct{}{}
	}
	paths := make([]string, 0, len(pathSet))
	for p := range pathSet {
		paths = append(paths, p)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.New(apperrors.StoreError, "store", "save_embeddings: begin tx failed", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	placeholders, args := inClause(paths)
	var signPred string
	if negative {
		signPred = "chunk_index < 0"
	} else {
		signPred = "chunk_index >= 0"
	}
	delQuery := "DELETE FROM embeddings WHERE " + signPred + " AND path IN (" + placeholders + ")"
	if _, err := tx.ExecContext(ctx, delQuery, args...); err != nil {
		return apperrors.New(apperrors.StoreError, "store", "save_embeddings: delete failed", err)
	}

	insStmt, err := tx.PrepareContext(ctx, `INSERT INTO embeddings (path, chunk_index, text_content, vector, model_name) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return apperrors.New(apperrors.StoreError, "store", "save_embeddings: prepare insert failed", err)
	}
	defer func() { _ = insStmt.Close() }()

	for _, r := range rows {
		if _, err := insStmt.ExecContext(ctx, r.Path, r.ChunkIndex, r.Text, EncodeVector(r.Vector), r.ModelName); err != nil {
			return apperrors.New(apperrors.StoreError, "store", "save_embeddings: insert failed", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.New(apperrors.StoreError, "store", "save_embeddings: commit failed", err)
	}
	committed = true
	return nil
}

// EmbeddingsByModel returns every embedding row whose model_name matches,
// for use by the search engine's brute-force semantic stream. Cross-model
// comparison is never performed; callers must pass the exact model name
// that produced the query vector.
func (s *Store) EmbeddingsByModel(ctx context.Context, modelName string) ([]EmbeddingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT path, chunk_index, text_content, vector, model_name FROM embeddings WHERE model_name = ?`, modelName)
	if err != nil {
		return nil, apperrors.New(apperrors.StoreError, "store", "embeddings_by_model failed", err)
	}
	defer func() { _ = rows.Close() }()

	var out []EmbeddingRow
	for rows.Next() {
		var r EmbeddingRow
		var blob []byte
		if err := rows.Scan(&r.Path, &r.ChunkIndex, &r.Text, &blob, &r.ModelName); err != nil {
			return nil, apperrors.New(apperrors.StoreError, "store", "embeddings_by_model scan failed", err)
		}
		r.Vector = DecodeVector(blob)
		out = append(out, r)
	}
	return out, rows.Err()
}
