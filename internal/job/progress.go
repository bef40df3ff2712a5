package job

import "sync/atomic"

// Progress holds live counters for the running job. All fields are
// atomic so the worker goroutine can write them while HTTP handlers
// read snapshots without locks. Counters only ever increase within a
// job, so observers never see progress move backwards.
type Progress struct {
	FilesDiscovered atomic.Int64
	FilesProcessed  atomic.Int64
	Errors          atomic.Int64
}
