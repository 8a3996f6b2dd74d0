// Package storage persists match results.
//
// Round logs are written as one Parquet file per match. Batch runs and their
// per-task outcomes are recorded in a SQLite catalog next to the artifacts.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/hatim381/dilemme-du-prisonnier/internal/model"
)

// WriteRoundLog writes records to a Parquet file at path, creating missing
// parent directories. An empty log is rejected and no file is written. The
// file appears atomically: rows go to a temp file in the same directory
// which is renamed into place once complete.
func WriteRoundLog(path string, records []model.RoundRecord) error {
	if len(records) == 0 {
		return ErrEmptyRoundLog
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".roundlog-*.tmp")
	if err != nil {
		return fmt.Errorf("storage: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	w := parquet.NewGenericWriter[model.RoundRecord](tmp, parquet.Compression(&parquet.Snappy))
	if _, err := w.Write(records); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("storage: write rows: %w", err)
	}
	if err := w.Close(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("storage: finish parquet: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("storage: rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadRoundLog loads every record from a Parquet round log.
func ReadRoundLog(path string) ([]model.RoundRecord, error) {
	rows, err := parquet.ReadFile[model.RoundRecord](path)
	if err != nil {
		return nil, fmt.Errorf("storage: read round log: %w", err)
	}
	return rows, nil
}
