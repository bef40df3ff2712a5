package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tiMaxal/pairs3d/internal/config"
	"github.com/tiMaxal/pairs3d/internal/db"
	"github.com/tiMaxal/pairs3d/internal/job"
)

// JobsHandler handles job-related API endpoints.
type JobsHandler struct {
	DB      *sql.DB
	Manager *job.Manager
	Cfg     *config.Config
}

// startRequest is the POST /api/jobs body. Omitted fields fall back to
// the configured (or last persisted) defaults.
type startRequest struct {
	Root                string   `json:"root"`
	Recurse             *bool    `json:"recurse"`
	IncludeSingles      bool     `json:"include_singles"`
	TimeDeltaMaxSeconds *float64 `json:"time_delta_max_seconds"`
	HashDistanceMax     *int     `json:"hash_distance_max"`
}

// Create handles POST /api/jobs.
func (h *JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Malformed JSON body")
		return
	}

	root := req.Root
	if root == "" {
		root = h.Cfg.WatchRoot
	}
	if root == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ROOT", "No root folder given and none configured")
		return
	}

	recurse := h.Cfg.Recurse
	if req.Recurse != nil {
		recurse = *req.Recurse
	}
	thresholds := job.Thresholds{
		TimeDeltaMax:    h.Cfg.TimeDeltaMax(),
		HashDistanceMax: h.Cfg.HashDistanceMax,
	}
	if req.TimeDeltaMaxSeconds != nil && *req.TimeDeltaMaxSeconds > 0 {
		thresholds.TimeDeltaMax = time.Duration(*req.TimeDeltaMaxSeconds * float64(time.Second))
	}
	if req.HashDistanceMax != nil && *req.HashDistanceMax >= 0 {
		thresholds.HashDistanceMax = *req.HashDistanceMax
	}

	jobID, err := h.Manager.Start(context.Background(), job.Request{
		Root:           root,
		Recurse:        recurse,
		IncludeSingles: req.IncludeSingles,
		Thresholds:     thresholds,
		TriggeredBy:    "manual",
	})
	if err != nil {
		if errors.Is(err, job.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "JOB_ALREADY_RUNNING", "A job is already in progress")
			return
		}
		slog.Error("jobs: start", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start job")
		return
	}

	// Remember the user's choices for next time, like the original
	// tool's settings file. The controller itself stays unaware of
	// persistence.
	h.persistSettings(root, recurse, thresholds)

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"id":         jobID,
		"status":     "running",
		"root":       root,
		"started_at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *JobsHandler) persistSettings(root string, recurse bool, th job.Thresholds) {
	settings := map[string]string{
		db.SettingLastRoot:        root,
		db.SettingRecurse:         strconv.FormatBool(recurse),
		db.SettingTimeDeltaMaxMs:  strconv.FormatInt(th.TimeDeltaMax.Milliseconds(), 10),
		db.SettingHashDistanceMax: strconv.Itoa(th.HashDistanceMax),
	}
	for k, v := range settings {
		if err := db.SaveSetting(h.DB, k, v); err != nil {
			slog.Warn("persist setting", "key", k, "error", err)
		}
	}
}

// Current handles GET /api/jobs/current: the live progress snapshot.
func (h *JobsHandler) Current(w http.ResponseWriter, r *http.Request) {
	snap := h.Manager.Snapshot()
	if snap == nil {
		writeError(w, http.StatusNotFound, "NO_ACTIVE_JOB", "No job is currently running")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":               snap.JobID,
		"status":           string(snap.Status),
		"root":             snap.Root,
		"triggered_by":     snap.TriggeredBy,
		"started_at":       snap.StartedAt.UTC().Format(time.RFC3339),
		"files_discovered": snap.FilesDiscovered,
		"files_processed":  snap.FilesProcessed,
		"errors":           snap.Errors,
		"elapsed_ms":       snap.Elapsed.Milliseconds(),
	})
}

// Pause handles POST /api/jobs/current/pause.
func (h *JobsHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.command(w, h.Manager.Pause, "paused")
}

// Resume handles POST /api/jobs/current/resume.
func (h *JobsHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.command(w, h.Manager.Resume, "running")
}

// Cancel handles DELETE /api/jobs/current.
func (h *JobsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.command(w, h.Manager.Cancel, "cancelling")
}

func (h *JobsHandler) command(w http.ResponseWriter, fn func() error, resulting string) {
	if err := fn(); err != nil {
		switch {
		case errors.Is(err, job.ErrNoActiveJob):
			writeError(w, http.StatusNotFound, "NO_ACTIVE_JOB", "No job is currently running")
		case errors.Is(err, job.ErrInvalidState):
			writeError(w, http.StatusConflict, "INVALID_STATE", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": resulting})
}

type jobItem struct {
	ID              int64   `json:"id"`
	Root            string  `json:"root"`
	Recurse         bool    `json:"recurse"`
	IncludeSingles  bool    `json:"include_singles"`
	TriggeredBy     string  `json:"triggered_by"`
	Status          string  `json:"status"`
	TimeDeltaMaxMs  int64   `json:"time_delta_max_ms"`
	HashDistanceMax int     `json:"hash_distance_max"`
	StartedAt       string  `json:"started_at"`
	FinishedAt      *string `json:"finished_at"`
	ElapsedMs       int64   `json:"elapsed_ms"`
	FilesDiscovered int64   `json:"files_discovered"`
	FilesProcessed  int64   `json:"files_processed"`
	Errors          int64   `json:"errors"`
	PairsFound      int64   `json:"pairs_found"`
	SinglesFound    int64   `json:"singles_found"`
	PairsMoved      int64   `json:"pairs_moved"`
	SinglesMoved    int64   `json:"singles_moved"`
	MoveFailures    int64   `json:"move_failures"`
}

const jobColumns = `
	id, root_path, recurse, include_singles, triggered_by, status,
	time_delta_max_ms, hash_distance_max, started_at, finished_at,
	elapsed_ms, files_discovered, files_processed, errors,
	pairs_found, singles_found, pairs_moved, singles_moved, move_failures`

func scanJobItem(scan func(dest ...any) error) (jobItem, error) {
	var it jobItem
	var recurse, includeSingles int
	var startedAt int64
	var finishedAt sql.NullInt64
	err := scan(
		&it.ID, &it.Root, &recurse, &includeSingles, &it.TriggeredBy, &it.Status,
		&it.TimeDeltaMaxMs, &it.HashDistanceMax, &startedAt, &finishedAt,
		&it.ElapsedMs, &it.FilesDiscovered, &it.FilesProcessed, &it.Errors,
		&it.PairsFound, &it.SinglesFound, &it.PairsMoved, &it.SinglesMoved, &it.MoveFailures,
	)
	if err != nil {
		return it, err
	}
	it.Recurse = recurse != 0
	it.IncludeSingles = includeSingles != 0
	it.StartedAt = time.Unix(startedAt, 0).UTC().Format(time.RFC3339)
	if finishedAt.Valid {
		s := time.Unix(finishedAt.Int64, 0).UTC().Format(time.RFC3339)
		it.FinishedAt = &s
	}
	return it, nil
}

// List handles GET /api/jobs: history, newest first.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	rows, err := h.DB.QueryContext(r.Context(),
		`SELECT`+jobColumns+` FROM jobs ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		slog.Error("jobs list: query", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	defer rows.Close()

	items := []jobItem{}
	for rows.Next() {
		it, err := scanJobItem(rows.Scan)
		if err != nil {
			slog.Error("jobs list: scan row", "error", err)
			continue
		}
		items = append(items, it)
	}

	var total int
	h.DB.QueryRowContext(r.Context(), `SELECT COUNT(*) FROM jobs`).Scan(&total)

	writeJSON(w, http.StatusOK, ListResponse[jobItem]{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /api/jobs/:id: detail including the error list.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid job ID")
		return
	}

	row := h.DB.QueryRowContext(r.Context(), `SELECT`+jobColumns+` FROM jobs WHERE id = ?`, id)
	it, err := scanJobItem(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}

	type errItem struct {
		Path       string `json:"path"`
		Stage      string `json:"stage"`
		Error      string `json:"error"`
		OccurredAt string `json:"occurred_at"`
	}
	errorList := []errItem{}
	errRows, err := h.DB.QueryContext(r.Context(), `
		SELECT path, stage, error, occurred_at
		FROM job_errors WHERE job_id = ?
		ORDER BY occurred_at, id`, id)
	if err == nil {
		defer errRows.Close()
		for errRows.Next() {
			var e errItem
			var occAt int64
			if errRows.Scan(&e.Path, &e.Stage, &e.Error, &occAt) == nil {
				e.OccurredAt = time.Unix(occAt, 0).UTC().Format(time.RFC3339)
				errorList = append(errorList, e)
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job":        it,
		"error_list": errorList,
	})
}
