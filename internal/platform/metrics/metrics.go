package metrics

import (
	"sync/atomic"
	"time"
)

// Collector keeps cheap in-process counters: HTTP traffic plus the row
// outcomes of finished import batches.
type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	totalDurationMs uint64

	batchesFinished uint64
	rowsAccepted    uint64
	rowsUpdated     uint64
	rowsDuplicate   uint64
	rowsRejected    uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

func (c *Collector) RecordImport(accepted, updated, duplicates, rejected int) {
	atomic.AddUint64(&c.batchesFinished, 1)
	atomic.AddUint64(&c.rowsAccepted, uint64(accepted))
	atomic.AddUint64(&c.rowsUpdated, uint64(updated))
	atomic.AddUint64(&c.rowsDuplicate, uint64(duplicates))
	atomic.AddUint64(&c.rowsRejected, uint64(rejected))
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	return map[string]any{
		"requestsTotal":       total,
		"errorsTotal":         atomic.LoadUint64(&c.errorRequests),
		"avgDurationMs":       avg,
		"importBatchesTotal":  atomic.LoadUint64(&c.batchesFinished),
		"importRowsAccepted":  atomic.LoadUint64(&c.rowsAccepted),
		"importRowsUpdated":   atomic.LoadUint64(&c.rowsUpdated),
		"importRowsDuplicate": atomic.LoadUint64(&c.rowsDuplicate),
		"importRowsRejected":  atomic.LoadUint64(&c.rowsRejected),
	}
}
