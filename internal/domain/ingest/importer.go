package ingest

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"transparencia/internal/domain/registry"
)

// Options tune one importer for all the batches it runs.
type Options struct {
	// Workers bounds how many rows resolve and upsert concurrently.
	Workers int
	// ErrorRateThreshold aborts the batch once rejected/processed
	// crosses it.
	ErrorRateThreshold float64
	// ThresholdMinRows keeps the threshold from tripping on the first few
	// rows of a file.
	ThresholdMinRows int
}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return 4
	}
	return o.Workers
}

func (o Options) thresholdMinRows() int {
	if o.ThresholdMinRows <= 0 {
		return 100
	}
	return o.ThresholdMinRows
}

// Importer drives a batch end to end: streaming read, normalization,
// resolution, dedup, error collection, and batch finalization. It runs
// inside a background job; the triggering request only holds the job ID.
type Importer struct {
	store      registry.Store
	normalizer Normalizer
	engine     *Engine
	opts       Options
}

func NewImporter(store registry.Store, normalizer Normalizer, engine *Engine, opts Options) *Importer {
	return &Importer{store: store, normalizer: normalizer, engine: engine, opts: opts}
}

// collector accumulates per-row outcomes. Row numbers are assigned in file
// order before rows fan out to workers, so the error log is stable across
// retries of the same file.
type collector struct {
	mu         sync.Mutex
	accepted   int
	updated    int
	duplicates int
	rejected   int
	processed  int
	lastRow    int
	errors     []registry.RowError
}

func (c *collector) record(row int, outcome Outcome, err error) (rejected, processed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processed++
	if row > c.lastRow {
		c.lastRow = row
	}
	if err != nil {
		c.rejected++
		rowErr := registry.RowError{Row: row, Kind: rowErrorKind(err), Reason: err.Error()}
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			rowErr.Field = validationErr.Field
			rowErr.Value = validationErr.RawValue
			rowErr.Reason = validationErr.Reason
		}
		c.errors = append(c.errors, rowErr)
		return c.rejected, c.processed
	}
	switch outcome {
	case Inserted:
		c.accepted++
	case Updated:
		c.updated++
	case SkippedDuplicate:
		c.duplicates++
	}
	return c.rejected, c.processed
}

func (c *collector) fill(batch *registry.Batch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	batch.Accepted = c.accepted
	batch.Updated = c.updated
	batch.Duplicates = c.duplicates
	batch.Rejected = c.rejected
	batch.LastRow = c.lastRow
	sort.Slice(c.errors, func(i, j int) bool { return c.errors[i].Row < c.errors[j].Row })
	batch.Errors = append([]registry.RowError(nil), c.errors...)
}

// Run processes one file as one batch. Row-local failures are logged on the
// batch and never abort it; batch-fatal conditions (unreadable file, storage
// failure, threshold exceeded) finalize the batch as failed and are returned.
// A cancelled context finalizes the batch as cancelled, keeping every row
// already committed.
func (imp *Importer) Run(ctx context.Context, batch registry.Batch, r io.Reader, layout Layout) (registry.Batch, error) {
	batch.State = registry.BatchRunning
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}
	// The upload handler registers the batch as pending before the job is
	// queued; direct runs register it here.
	err := imp.store.UpdateBatch(ctx, batch)
	if errors.Is(err, registry.ErrNotFound) {
		err = imp.store.CreateBatch(ctx, batch)
	}
	if err != nil {
		return batch, fmt.Errorf("register batch: %w", err)
	}

	// One file line is one record. Splitting before CSV parsing keeps a
	// malformed quote from consuming neighboring lines; the portal extracts
	// never carry embedded newlines.
	scanner := bufio.NewScanner(layout.Reader(r))
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	nextLine := func() (string, bool) {
		for scanner.Scan() {
			if line := scanner.Text(); strings.TrimSpace(line) != "" {
				return line, true
			}
		}
		return "", false
	}

	headerLine, ok := nextLine()
	if !ok {
		headerErr := scanner.Err()
		if headerErr == nil {
			headerErr = io.ErrUnexpectedEOF
		}
		return imp.fail(ctx, batch, fmt.Errorf("read header: %w", headerErr))
	}
	header, err := parseLine(headerLine, layout.comma())
	if err != nil {
		return imp.fail(ctx, batch, fmt.Errorf("read header: %w", err))
	}
	binding, err := layout.Bind(header)
	if err != nil {
		return imp.fail(ctx, batch, err)
	}

	resolver := NewResolver(imp.store)
	results := &collector{}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(imp.opts.workers())

	rowNum := 0
readLoop:
	for {
		select {
		case <-groupCtx.Done():
			break readLoop
		default:
		}

		line, ok := nextLine()
		if !ok {
			if scanErr := scanner.Err(); scanErr != nil {
				readErr := fmt.Errorf("read row %d: %w", rowNum+1, scanErr)
				group.Go(func() error { return readErr })
			}
			break
		}
		rowNum++
		row, err := parseLine(line, layout.comma())
		if err != nil {
			// Malformed line: isolate and continue.
			results.record(rowNum, "", &ValidationError{Field: "row", Reason: err.Error()})
			if thresholdErr := imp.checkThreshold(results); thresholdErr != nil {
				group.Go(func() error { return thresholdErr })
				break
			}
			continue
		}

		num := rowNum
		group.Go(func() error {
			return imp.processRow(groupCtx, binding, resolver, results, num, row)
		})
	}

	runErr := group.Wait()
	results.fill(&batch)

	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}

	now := time.Now().UTC()
	batch.FinalizedAt = &now
	switch {
	case runErr == nil && batch.Rejected == 0:
		batch.State = registry.BatchCompleted
	case runErr == nil:
		batch.State = registry.BatchCompletedWithErrors
	case errors.Is(runErr, context.Canceled):
		batch.State = registry.BatchCancelled
		batch.FailReason = ""
	default:
		batch.State = registry.BatchFailed
		batch.FailReason = runErr.Error()
	}

	// Finalize with a fresh context: the batch record must outlive job
	// cancellation.
	finalizeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := imp.store.FinalizeBatch(finalizeCtx, batch); err != nil {
		slog.Warn("batch finalize failed", "batchId", batch.ID, "err", err)
	}

	slog.Info("import batch finished",
		"batchId", batch.ID,
		"file", batch.FileName,
		"state", batch.State,
		"accepted", batch.Accepted,
		"updated", batch.Updated,
		"duplicates", batch.Duplicates,
		"rejected", batch.Rejected)
	return batch, runErr
}

// parseLine parses a single file line as one CSV record. LazyQuotes keeps a
// stray quote inside the line from failing the parse; field validation
// catches whatever garbage comes out.
func parseLine(line string, comma rune) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(line))
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader.Read()
}

func (imp *Importer) processRow(ctx context.Context, binding Binding, resolver *Resolver, results *collector, rowNum int, row []string) error {
	outcome, err := imp.applyRow(ctx, binding, resolver, row)
	if err != nil && !rowLocal(err) {
		// Storage and other infrastructure failures are batch-fatal.
		return fmt.Errorf("row %d: %w", rowNum, err)
	}
	results.record(rowNum, outcome, err)
	return imp.checkThreshold(results)
}

func (imp *Importer) applyRow(ctx context.Context, binding Binding, resolver *Resolver, row []string) (Outcome, error) {
	record, err := imp.normalizer.Normalize(binding, row)
	if err != nil {
		return "", err
	}
	resolved, err := resolver.Resolve(ctx, record)
	if err != nil {
		return "", err
	}
	return imp.engine.Apply(ctx, resolved)
}

func (imp *Importer) checkThreshold(results *collector) error {
	if imp.opts.ErrorRateThreshold <= 0 {
		return nil
	}
	results.mu.Lock()
	rejected, processed := results.rejected, results.processed
	results.mu.Unlock()
	if processed < imp.opts.thresholdMinRows() {
		return nil
	}
	if float64(rejected) > imp.opts.ErrorRateThreshold*float64(processed) {
		return &ThresholdExceededError{Rejected: rejected, Processed: processed, Threshold: imp.opts.ErrorRateThreshold}
	}
	return nil
}

func (imp *Importer) fail(ctx context.Context, batch registry.Batch, cause error) (registry.Batch, error) {
	now := time.Now().UTC()
	batch.State = registry.BatchFailed
	batch.FailReason = cause.Error()
	batch.FinalizedAt = &now
	if err := imp.store.FinalizeBatch(context.WithoutCancel(ctx), batch); err != nil {
		slog.Warn("batch finalize failed", "batchId", batch.ID, "err", err)
	}
	return batch, cause
}

// rowLocal reports whether an error is part of the recoverable row taxonomy
// rather than batch-fatal.
func rowLocal(err error) bool {
	var validationErr *ValidationError
	var resolutionErr *ResolutionError
	var conflictErr *ConflictError
	return errors.As(err, &validationErr) || errors.As(err, &resolutionErr) || errors.As(err, &conflictErr)
}
