// Package sqlite persists the processing history to a SQLite database. The
// in-memory queue stays authoritative for live state; this store is the
// durable audit trail of every task that reached a terminal status.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sokoine/go-docsort/core/queue"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS task_history (
	seq                INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id            TEXT NOT NULL,
	pdf_path           TEXT NOT NULL,
	filter_values      TEXT NOT NULL,
	row_index          INTEGER NOT NULL,
	status             TEXT NOT NULL,
	error_msg          TEXT NOT NULL DEFAULT '',
	original_location  TEXT NOT NULL DEFAULT '',
	processed_location TEXT NOT NULL DEFAULT '',
	original_hyperlink TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMP NOT NULL,
	finished_at        TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_task_history_task_id ON task_history(task_id);
CREATE INDEX IF NOT EXISTS idx_task_history_finished ON task_history(finished_at);
`

// TaskStore implements queue.HistoryStore on a SQLite database.
type TaskStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// Ensure TaskStore satisfies the queue's history interface.
var _ queue.HistoryStore = (*TaskStore)(nil)

// NewTaskStore prepares the history table and returns a store. A nil
// logger disables logging.
func NewTaskStore(db *sql.DB, logger *zap.Logger) (*TaskStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to create task history schema: %w", err)
	}
	return &TaskStore{db: db, logger: logger}, nil
}

// Record appends a terminal task snapshot. The same task ID may appear
// more than once when a failed task is retried; every attempt is kept.
func (s *TaskStore) Record(ctx context.Context, task queue.Task) error {
	values, err := json.Marshal(task.FilterValues)
	if err != nil {
		return fmt.Errorf("failed to encode filter values: %w", err)
	}

	const insertSQL = `
INSERT INTO task_history (
	task_id, pdf_path, filter_values, row_index, status, error_msg,
	original_location, processed_location, original_hyperlink,
	created_at, finished_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	s.logger.Debug("Recording task history",
		zap.String("task_id", task.ID),
		zap.String("status", string(task.Status)))

	_, err = s.db.ExecContext(ctx, insertSQL,
		task.ID, task.PDFPath, string(values), task.RowIndex,
		string(task.Status), task.ErrorMsg,
		task.OriginalLocation, task.ProcessedLocation, task.OriginalHyperlink,
		task.CreatedAt, task.FinishedAt,
	)
	if err != nil {
		s.logger.Error("Failed to record task history", zap.Error(err))
		return fmt.Errorf("failed to insert task history row: %w", err)
	}
	return nil
}

// List returns the most recent history entries, newest first. limit <= 0
// means no limit.
func (s *TaskStore) List(ctx context.Context, limit int) ([]queue.Task, error) {
	querySQL := `
SELECT task_id, pdf_path, filter_values, row_index, status, error_msg,
       original_location, processed_location, original_hyperlink,
       created_at, finished_at
FROM task_history ORDER BY seq DESC`
	var args []any
	if limit > 0 {
		querySQL += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query task history: %w", err)
	}
	defer rows.Close()

	var tasks []queue.Task
	for rows.Next() {
		var task queue.Task
		var values string
		var status string
		if err := rows.Scan(
			&task.ID, &task.PDFPath, &values, &task.RowIndex, &status,
			&task.ErrorMsg, &task.OriginalLocation, &task.ProcessedLocation,
			&task.OriginalHyperlink, &task.CreatedAt, &task.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task history row: %w", err)
		}
		task.Status = queue.Status(status)
		if err := json.Unmarshal([]byte(values), &task.FilterValues); err != nil {
			return nil, fmt.Errorf("failed to decode filter values for task %s: %w", task.ID, err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after scanning task history: %w", err)
	}
	return tasks, nil
}

// Purge deletes history entries finished before the cutoff and reports how
// many rows were removed.
func (s *TaskStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM task_history WHERE finished_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge task history: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	s.logger.Info("Purged task history",
		zap.Int64("removed", removed),
		zap.Time("before", before))
	return removed, nil
}
