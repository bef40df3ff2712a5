package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/tiMaxal/pairs3d/internal/job"
	"github.com/tiMaxal/pairs3d/internal/scheduler"
)

// StatusHandler serves GET /api/status: daemon health plus the active
// job, if any.
type StatusHandler struct {
	DB      *sql.DB
	Manager *job.Manager
	Sched   *scheduler.Scheduler
	Version string
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"version": h.Version,
		"status":  string(job.StatusIdle),
	}

	if snap := h.Manager.Snapshot(); snap != nil {
		resp["status"] = string(snap.Status)
		resp["job"] = map[string]interface{}{
			"id":               snap.JobID,
			"root":             snap.Root,
			"files_discovered": snap.FilesDiscovered,
			"files_processed":  snap.FilesProcessed,
			"errors":           snap.Errors,
			"elapsed_ms":       snap.Elapsed.Milliseconds(),
		}
	}

	if next := h.Sched.NextRunAt(); next != nil {
		resp["next_scheduled_run"] = next.UTC().Format(time.RFC3339)
		resp["schedule"] = h.Sched.CronExpr()
	}

	var totalJobs int
	h.DB.QueryRowContext(r.Context(), `SELECT COUNT(*) FROM jobs`).Scan(&totalJobs)
	resp["total_jobs"] = totalJobs

	writeJSON(w, http.StatusOK, resp)
}
