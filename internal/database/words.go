package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/snarg/transcript-editor/internal/transcript"
)

// loadWordsSQL restores the stored order, which can differ from start time
// order when words share a start time.
const loadWordsSQL = `SELECT id, word, start_time, duration FROM transcript_words ORDER BY position`

var snapshotColumns = []string{"position", "id", "word", "start_time", "duration"}

// LoadWords returns the stored snapshot in saved order. An empty table
// yields an empty slice and no error.
func (db *DB) LoadWords(ctx context.Context) ([]transcript.Word, error) {
	rows, err := db.Pool.Query(ctx, loadWordsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var words []transcript.Word
	for rows.Next() {
		var w transcript.Word
		if err := rows.Scan(&w.ID, &w.Text, &w.StartTime, &w.Duration); err != nil {
			return nil, err
		}
		words = append(words, w)
	}
	return words, rows.Err()
}

// SaveWords replaces the stored snapshot with words in one transaction.
func (db *DB) SaveWords(ctx context.Context, words []transcript.Word) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM transcript_words`); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"transcript_words"},
		snapshotColumns,
		pgx.CopyFromRows(snapshotRows(words)),
	); err != nil {
		return fmt.Errorf("copy snapshot: %w", err)
	}

	return tx.Commit(ctx)
}

// snapshotRows lays words out in snapshotColumns order with their index as
// position.
func snapshotRows(words []transcript.Word) [][]any {
	rows := make([][]any, len(words))
	for i, w := range words {
		rows[i] = []any{i, w.ID, w.Text, w.StartTime, w.Duration}
	}
	return rows
}
