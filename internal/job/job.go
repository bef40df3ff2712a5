package job

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tiMaxal/pairs3d/internal/media"
	"github.com/tiMaxal/pairs3d/internal/organize"
	"github.com/tiMaxal/pairs3d/internal/pair"
)

// execute runs the full job: enumerate, extract in batches, match,
// organize, finalise. It owns the jobs row created by Start.
func (m *Manager) execute(ctx context.Context, a *activeJob) {
	slog.Info("job started",
		"id", a.id,
		"root", a.req.Root,
		"recurse", a.req.Recurse,
		"triggered_by", a.req.TriggeredBy,
		"time_delta_max", a.req.Thresholds.TimeDeltaMax,
		"hash_distance_max", a.req.Thresholds.HashDistanceMax)

	status, report := m.run(ctx, a)

	a.watch.pause()
	elapsed := a.watch.elapsed()
	if err := finaliseJobRecord(m.db, a.id, status, time.Now(), elapsed, a.progress, report); err != nil {
		slog.Error("finalise job record", "id", a.id, "error", err)
	}

	slog.Info("job finished",
		"id", a.id,
		"status", status,
		"files_discovered", a.progress.FilesDiscovered.Load(),
		"files_processed", a.progress.FilesProcessed.Load(),
		"errors", a.progress.Errors.Load(),
		"elapsed", elapsed)
}

// run performs the work and returns the terminal status plus the
// organize report (nil unless the job completed or was cancelled after
// some moves).
func (m *Manager) run(ctx context.Context, a *activeJob) (Status, *jobResult) {
	paths, err := media.ListImages(a.req.Root, a.req.Recurse, a.req.IncludeSingles)
	if err != nil {
		// Root-level failures are fatal to the job.
		recordJobError(m.db, a.id, a.req.Root, "enumerate", err.Error())
		a.progress.Errors.Add(1)
		return StatusFailed, nil
	}
	a.progress.FilesDiscovered.Store(int64(len(paths)))
	flushProgress(m.db, a.id, a.progress, a.watch.elapsed())

	// Extraction phase: batches so pause/cancel can be observed
	// between them. Batching affects only progress granularity; the
	// engine matches over the whole descriptor set afterwards.
	descriptors := make([]pair.Descriptor, 0, len(paths))
	for start := 0; start < len(paths); start += m.cfg.BatchSize {
		// ctx covers daemon shutdown; the gate covers user cancel.
		if ctx.Err() != nil || !a.gate.wait() {
			return StatusCancelled, nil
		}

		end := start + m.cfg.BatchSize
		if end > len(paths) {
			end = len(paths)
		}
		for _, res := range m.extractBatch(a, paths[start:end]) {
			if res.err != nil {
				// Unreadable files are recorded and skipped, never fatal.
				recordJobError(m.db, a.id, res.path, "extract", res.err.Error())
				a.progress.Errors.Add(1)
				continue
			}
			descriptors = append(descriptors, res.desc)
		}
		flushProgress(m.db, a.id, a.progress, a.watch.elapsed())
	}

	if ctx.Err() != nil || !a.gate.wait() {
		return StatusCancelled, nil
	}

	// Matching and organizing run as one final step; there is no
	// suspension point past this boundary.
	part, err := pair.Match(descriptors, a.req.Thresholds.TimeDeltaMax, a.req.Thresholds.HashDistanceMax)
	if err != nil {
		recordJobError(m.db, a.id, a.req.Root, "match", err.Error())
		return StatusFailed, nil
	}

	report, err := organize.Organize(a.req.Root, part)
	if err != nil {
		recordJobError(m.db, a.id, a.req.Root, "organize", err.Error())
		return StatusFailed, nil
	}
	for _, f := range report.Failures {
		recordJobError(m.db, a.id, f.Path, "move", f.Reason)
	}

	return StatusCompleted, &jobResult{
		pairsFound:   len(part.Pairs),
		singlesFound: len(part.Singles),
		report:       report,
	}
}

// jobResult carries the matching and organizing outcome to finalise.
type jobResult struct {
	pairsFound   int
	singlesFound int
	report       organize.Report
}

type extractResult struct {
	path string
	desc pair.Descriptor
	err  error
}

// extractBatch hashes one batch with bounded parallelism. Results keep
// slice order so descriptor order stays the enumeration order, and the
// processed counter ticks per file as hashes land. Cancellation is
// honored at batch boundaries only, never mid-file.
func (m *Manager) extractBatch(a *activeJob, batch []string) []extractResult {
	results := make([]extractResult, len(batch))
	var g errgroup.Group
	g.SetLimit(m.cfg.HashWorkers)
	for i, path := range batch {
		i, path := i, path
		g.Go(func() error {
			desc, err := media.Extract(path)
			results[i] = extractResult{path: path, desc: desc, err: err}
			a.progress.FilesProcessed.Add(1)
			return nil
		})
	}
	g.Wait() // workers never return errors; per-file failures are in results
	return results
}
