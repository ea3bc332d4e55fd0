// ABOUTME: SQLite-backed archive of completed and observed task reconstructions.
// ABOUTME: The live store holds the working set; this archive keeps history across sessions for later review.

package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/2389-research/spyglass/trace"
)

// ArchivedTask is one row from the tasks table.
type ArchivedTask struct {
	TaskID            string
	Description       string
	Color             string
	LocallyOriginated bool
	Completed         bool
	FirstObservedAt   string
	ArchivedAt        string
	ThoughtCount      int
}

// ArchivedThought is one row from the thoughts table, with the stage records
// preserved as JSON.
type ArchivedThought struct {
	ThoughtID    string
	TaskID       string
	LanesReached []string
	CurrentStage string
	StagesJSON   string
}

// Archive persists task reconstructions to SQLite. The archive is rebuildable
// from captures and serves review queries, not the live pipeline.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens or creates the archive database at the given path.
func OpenArchive(path string) (*Archive, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS tasks (
			task_id TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			color TEXT NOT NULL,
			locally_originated INTEGER NOT NULL,
			completed INTEGER NOT NULL,
			first_observed_at TEXT NOT NULL,
			archived_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS thoughts (
			thought_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			lanes_reached TEXT NOT NULL,
			current_stage TEXT NOT NULL,
			stages TEXT NOT NULL,
			PRIMARY KEY (thought_id, task_id),
			FOREIGN KEY (task_id) REFERENCES tasks(task_id)
		);`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Archive{db: db}, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// ArchiveTask upserts one task snapshot and its thoughts. Re-archiving the
// same task replaces the earlier rows, so progress updates are safe.
func (a *Archive) ArchiveTask(snap trace.TaskSnapshot) error {
	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO tasks (task_id, description, color, locally_originated, completed, first_observed_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			description = excluded.description,
			color = excluded.color,
			locally_originated = excluded.locally_originated,
			completed = excluded.completed,
			archived_at = excluded.archived_at`,
		snap.ID, snap.Description, snap.Color,
		boolToInt(snap.LocallyOriginated), boolToInt(snap.Completed),
		snap.FirstObservedAt.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert task %s: %w", snap.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM thoughts WHERE task_id = ?`, snap.ID); err != nil {
		return fmt.Errorf("clear thoughts for %s: %w", snap.ID, err)
	}

	for _, th := range snap.Thoughts {
		lanes, err := json.Marshal(laneStrings(th.LanesReached))
		if err != nil {
			return fmt.Errorf("encode lanes for %s: %w", th.ID, err)
		}
		stages, err := json.Marshal(th.Stages)
		if err != nil {
			return fmt.Errorf("encode stages for %s: %w", th.ID, err)
		}
		_, err = tx.Exec(`
			INSERT INTO thoughts (thought_id, task_id, lanes_reached, current_stage, stages)
			VALUES (?, ?, ?, ?, ?)`,
			th.ID, snap.ID, string(lanes), th.CurrentStage, string(stages))
		if err != nil {
			return fmt.Errorf("insert thought %s: %w", th.ID, err)
		}
	}

	return tx.Commit()
}

// RecentTasks lists archived tasks newest-first, up to limit.
func (a *Archive) RecentTasks(limit int) ([]ArchivedTask, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.Query(`
		SELECT t.task_id, t.description, t.color, t.locally_originated, t.completed,
		       t.first_observed_at, t.archived_at,
		       (SELECT COUNT(*) FROM thoughts th WHERE th.task_id = t.task_id)
		FROM tasks t
		ORDER BY t.archived_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent tasks: %w", err)
	}
	defer rows.Close()

	var out []ArchivedTask
	for rows.Next() {
		var t ArchivedTask
		var local, completed int
		if err := rows.Scan(&t.TaskID, &t.Description, &t.Color, &local, &completed,
			&t.FirstObservedAt, &t.ArchivedAt, &t.ThoughtCount); err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		t.LocallyOriginated = local != 0
		t.Completed = completed != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

// TaskThoughts returns the archived thoughts of one task.
func (a *Archive) TaskThoughts(taskID string) ([]ArchivedThought, error) {
	rows, err := a.db.Query(`
		SELECT thought_id, task_id, lanes_reached, current_stage, stages
		FROM thoughts WHERE task_id = ?`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query thoughts for %s: %w", taskID, err)
	}
	defer rows.Close()

	var out []ArchivedThought
	for rows.Next() {
		var th ArchivedThought
		var lanes string
		if err := rows.Scan(&th.ThoughtID, &th.TaskID, &lanes, &th.CurrentStage, &th.StagesJSON); err != nil {
			return nil, fmt.Errorf("scan thought row: %w", err)
		}
		if err := json.Unmarshal([]byte(lanes), &th.LanesReached); err != nil {
			return nil, fmt.Errorf("decode lanes for %s: %w", th.ThoughtID, err)
		}
		out = append(out, th)
	}
	return out, rows.Err()
}

func laneStrings(lanes []trace.Lane) []string {
	out := make([]string, len(lanes))
	for i, l := range lanes {
		out[i] = string(l)
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
