package job

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// insertJobRecord creates the jobs row for a starting job.
func insertJobRecord(db *sql.DB, req Request, startedAt time.Time) (int64, error) {
	now := startedAt.Unix()
	res, err := db.Exec(`
		INSERT INTO jobs
			(root_path, recurse, include_singles, triggered_by, status,
			 time_delta_max_ms, hash_distance_max, started_at, created_at)
		VALUES (?, ?, ?, ?, 'running', ?, ?, ?, ?)`,
		req.Root, boolToInt(req.Recurse), boolToInt(req.IncludeSingles),
		req.TriggeredBy,
		req.Thresholds.TimeDeltaMax.Milliseconds(), req.Thresholds.HashDistanceMax,
		now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// flushProgress writes the live counters to the jobs row. Called at
// batch boundaries; failures are logged, never fatal.
func flushProgress(db *sql.DB, jobID int64, p *Progress, elapsed time.Duration) {
	_, err := db.Exec(`
		UPDATE jobs
		SET files_discovered = ?,
		    files_processed  = ?,
		    errors           = ?,
		    elapsed_ms       = ?
		WHERE id = ?`,
		p.FilesDiscovered.Load(),
		p.FilesProcessed.Load(),
		p.Errors.Load(),
		elapsed.Milliseconds(),
		jobID)
	if err != nil {
		slog.Warn("flush progress", "id", jobID, "error", err)
	}
}

// flushJobStatus records a pause/resume transition on the jobs row.
func flushJobStatus(db *sql.DB, jobID int64, status Status) {
	if _, err := db.Exec(`UPDATE jobs SET status = ? WHERE id = ?`, string(status), jobID); err != nil {
		slog.Warn("flush job status", "id", jobID, "error", err)
	}
}

// finaliseJobRecord writes the terminal state and counts.
func finaliseJobRecord(db *sql.DB, jobID int64, status Status, finishedAt time.Time, elapsed time.Duration, p *Progress, result *jobResult) error {
	var pairsFound, singlesFound, pairsMoved, singlesMoved, moveFailures int
	if result != nil {
		pairsFound = result.pairsFound
		singlesFound = result.singlesFound
		pairsMoved = result.report.PairsMoved
		singlesMoved = result.report.SinglesMoved
		moveFailures = len(result.report.Failures)
	}
	_, err := db.Exec(`
		UPDATE jobs
		SET status           = ?,
		    finished_at      = ?,
		    elapsed_ms       = ?,
		    files_discovered = ?,
		    files_processed  = ?,
		    errors           = ?,
		    pairs_found      = ?,
		    singles_found    = ?,
		    pairs_moved      = ?,
		    singles_moved    = ?,
		    move_failures    = ?
		WHERE id = ?`,
		string(status), finishedAt.Unix(), elapsed.Milliseconds(),
		p.FilesDiscovered.Load(), p.FilesProcessed.Load(), p.Errors.Load(),
		pairsFound, singlesFound, pairsMoved, singlesMoved, moveFailures,
		jobID)
	return err
}

// recordJobError appends a per-file error row. Best effort.
func recordJobError(db *sql.DB, jobID int64, path, stage, msg string) {
	_, err := db.Exec(`
		INSERT INTO job_errors (job_id, path, stage, error, occurred_at)
		VALUES (?, ?, ?, ?, ?)`,
		jobID, path, stage, msg, time.Now().Unix())
	if err != nil {
		slog.Warn("record job error", "id", jobID, "path", path, "error", err)
	}
}

// MarkStaleJobsFailed marks jobs still 'running' or 'paused' as failed.
// Called once at startup in case a previous process crashed mid-job.
func MarkStaleJobsFailed(db *sql.DB) error {
	res, err := db.Exec(`
		UPDATE jobs
		SET status = 'failed', finished_at = ?
		WHERE status IN ('running', 'paused')`,
		time.Now().Unix())
	if err != nil {
		return fmt.Errorf("mark stale jobs failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Warn("marked stale jobs as failed", "count", n)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
