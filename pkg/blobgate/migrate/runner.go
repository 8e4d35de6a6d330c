// Package migrate moves legacy inline blobs into object storage. The
// runner pages over the legacy table, seeds a persistent ledger, and
// drains each page with a bounded worker pool. Every item transitions
// Pending -> Processing -> Done/Failed in the ledger, so a crashed or
// cancelled run resumes from the last fully migrated id.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blobgate/blobgate/pkg/blobgate"
	"github.com/blobgate/blobgate/pkg/blobgate/objectkey"
)

// Options tune the migration pipeline. Zero values fall back to the
// defaults below.
type Options struct {
	PageSize     int           // legacy ids fetched per page (default 1000)
	Workers      int           // concurrent item workers (default 8)
	ReadGate     int           // concurrent legacy reads (default 3)
	PutGate      int           // concurrent object writes (default 6)
	LedgerGate   int           // concurrent ledger writes (default 12)
	StuckTimeout time.Duration // Processing older than this is reclaimed (default 30m)
	MaxAttempts  int           // retry ceiling for ResetFailed (default 5)
	MaxErrors    int           // per-item errors kept in the result (default 100)

	DryRun       bool // read and count only, no ledger or object writes
	SkipExisting bool // stat before put; existing objects are marked Done

	ProgressInterval time.Duration  // max time between progress reports (default 5s)
	OnProgress       func(Progress) // optional progress callback
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = 1000
	}
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.ReadGate <= 0 {
		o.ReadGate = 3
	}
	if o.PutGate <= 0 {
		o.PutGate = 6
	}
	if o.LedgerGate <= 0 {
		o.LedgerGate = 12
	}
	if o.StuckTimeout <= 0 {
		o.StuckTimeout = 30 * time.Minute
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.MaxErrors <= 0 {
		o.MaxErrors = 100
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = 5 * time.Second
	}
	return o
}

// Progress is a point-in-time snapshot of a running migration.
type Progress struct {
	Processed int64
	Succeeded int64
	Failed    int64
	Bytes     int64
	Elapsed   time.Duration
	ETA       time.Duration // estimate over the backlog seen so far
}

// ItemError is one failed item recorded in the result.
type ItemError struct {
	LegacyID int64
	Err      string
}

// Result summarizes a completed run.
type Result struct {
	TotalProcessed int64
	Succeeded      int64
	Failed         int64
	BytesProcessed int64
	Duration       time.Duration
	Errors         []ItemError
}

// Runner executes the migration pipeline.
type Runner struct {
	source blobgate.LegacySource
	ledger blobgate.Ledger
	store  blobgate.ObjectStore
	router *BucketRouter

	buckets *blobgate.BucketCache
	logger  *slog.Logger
	opts    Options
	now     func() time.Time
}

// NewRunner creates a migration runner
func NewRunner(source blobgate.LegacySource, ledger blobgate.Ledger, store blobgate.ObjectStore, router *BucketRouter, logger *slog.Logger, opts Options) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if router == nil {
		router = NewBucketRouter(nil)
	}
	return &Runner{
		source:  source,
		ledger:  ledger,
		store:   store,
		router:  router,
		buckets: blobgate.NewBucketCache(0),
		logger:  logger,
		opts:    opts.withDefaults(),
		now:     time.Now,
	}
}

type workUnit struct {
	legacyID int64
	bucket   string
}

// Run drives the migration to completion or context cancellation.
// Per-item failures are recorded in the ledger and the result; only a
// cancelled context or a paging/ledger failure aborts the run.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := r.now()

	if !r.opts.DryRun {
		reset, err := r.ledger.ResetStuck(ctx, r.opts.StuckTimeout)
		if err != nil {
			return nil, fmt.Errorf("reset stuck items: %w", err)
		}
		if reset > 0 {
			r.logger.Warn("reclaimed stuck items", "count", reset, "older_than", r.opts.StuckTimeout)
		}
	}

	cursor, ok, err := r.ledger.ResumeCursor(ctx)
	if err != nil {
		return nil, fmt.Errorf("resume cursor: %w", err)
	}
	if ok {
		r.logger.Info("resuming migration", "after_legacy_id", cursor)
	}

	tracker := newTracker(start, r.opts.ProgressInterval, r.opts.PageSize, r.opts.MaxErrors, r.now, r.opts.OnProgress)
	gates := newGates(r.opts)

	for {
		ids, err := r.source.FetchIDs(ctx, cursor, r.opts.PageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch legacy ids after %d: %w", cursor, err)
		}
		if len(ids) == 0 {
			break
		}

		units, err := r.seedPage(ctx, ids, tracker)
		if err != nil {
			return nil, err
		}

		if err := r.drainPage(ctx, units, gates, tracker); err != nil {
			return nil, err
		}

		cursor = ids[len(ids)-1]
	}

	result := tracker.result(r.now().Sub(start))
	r.logger.Info("migration finished",
		"processed", result.TotalProcessed,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"bytes", result.BytesProcessed,
		"duration", result.Duration)
	return result, nil
}

// RetryFailed resets Failed items below the attempt ceiling back to
// Pending and reports how many were reset. Reset items sit behind the
// resume cursor, so they must be drained with RunPending, not Run.
func (r *Runner) RetryFailed(ctx context.Context) (int64, error) {
	reset, err := r.ledger.ResetFailed(ctx, r.opts.MaxAttempts)
	if err != nil {
		return 0, fmt.Errorf("reset failed items: %w", err)
	}
	r.logger.Info("reset failed items for retry", "count", reset, "max_attempts", r.opts.MaxAttempts)
	return reset, nil
}

// RunPending drains Pending ledger rows through the worker pipeline,
// regardless of where they sit relative to the resume cursor. A dry
// run never transitions rows out of Pending, so each fetched id is
// processed at most once per call and the loop stops as soon as a
// batch brings nothing new.
func (r *Runner) RunPending(ctx context.Context) (*Result, error) {
	start := r.now()
	tracker := newTracker(start, r.opts.ProgressInterval, r.opts.PageSize, r.opts.MaxErrors, r.now, r.opts.OnProgress)
	gates := newGates(r.opts)
	seen := make(map[int64]struct{})

	// Dry runs leave rows Pending, so a limited fetch would return the
	// same head page every time; take the whole backlog in one batch.
	limit := r.opts.PageSize
	if r.opts.DryRun {
		limit = 0
	}

	for {
		items, err := r.ledger.PendingItems(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("list pending items: %w", err)
		}

		units := make([]workUnit, 0, len(items))
		fresh := 0
		for _, item := range items {
			if _, ok := seen[item.LegacyID]; ok {
				continue
			}
			seen[item.LegacyID] = struct{}{}
			fresh++

			bucket := item.Bucket
			if bucket == "" {
				route, err := r.source.ResolveRoute(ctx, item.LegacyID)
				if err != nil {
					if ctx.Err() != nil {
						return nil, ctx.Err()
					}
					tracker.recordFailure(item.LegacyID, fmt.Errorf("resolve route: %w", err))
					if !r.opts.DryRun {
						if lerr := r.ledger.MarkFailed(ctx, item.LegacyID, err.Error()); lerr != nil {
							return nil, fmt.Errorf("mark failed %d: %w", item.LegacyID, lerr)
						}
					}
					continue
				}
				bucket = r.router.BucketFor(route.ChannelID)
			}
			units = append(units, workUnit{legacyID: item.LegacyID, bucket: bucket})
		}
		if fresh == 0 {
			break
		}
		tracker.enqueue(int64(len(units)))

		if err := r.drainPage(ctx, units, gates, tracker); err != nil {
			return nil, err
		}
	}

	result := tracker.result(r.now().Sub(start))
	r.logger.Info("pending drain finished",
		"processed", result.TotalProcessed,
		"succeeded", result.Succeeded,
		"failed", result.Failed)
	return result, nil
}

// seedPage resolves routes for a page and upserts the ledger rows.
// Items whose route cannot be resolved are marked Failed immediately
// and excluded from the page's work.
func (r *Runner) seedPage(ctx context.Context, ids []int64, tracker *tracker) ([]workUnit, error) {
	units := make([]workUnit, 0, len(ids))
	pending := make([]blobgate.PendingItem, 0, len(ids))

	for _, id := range ids {
		route, err := r.source.ResolveRoute(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			tracker.recordFailure(id, fmt.Errorf("resolve route: %w", err))
			if !r.opts.DryRun {
				if lerr := r.ledger.UpsertPending(ctx, []blobgate.PendingItem{{LegacyID: id}}); lerr != nil {
					return nil, fmt.Errorf("upsert pending %d: %w", id, lerr)
				}
				if lerr := r.ledger.MarkFailed(ctx, id, err.Error()); lerr != nil {
					return nil, fmt.Errorf("mark failed %d: %w", id, lerr)
				}
			}
			continue
		}

		bucket := r.router.BucketFor(route.ChannelID)
		units = append(units, workUnit{legacyID: id, bucket: bucket})
		pending = append(pending, blobgate.PendingItem{
			LegacyID:    id,
			ChannelID:   route.ChannelID,
			OperationID: route.OperationID,
			Bucket:      bucket,
		})
	}

	if !r.opts.DryRun && len(pending) > 0 {
		if err := r.ledger.UpsertPending(ctx, pending); err != nil {
			return nil, fmt.Errorf("upsert pending page: %w", err)
		}
	}
	tracker.enqueue(int64(len(units)))
	return units, nil
}

// drainPage fans a page's work out to the worker pool and waits for the
// page to complete. Item failures stay inside the item; only context
// cancellation stops the group.
func (r *Runner) drainPage(ctx context.Context, units []workUnit, gates *gates, tracker *tracker) error {
	work := make(chan workUnit, len(units))
	for _, u := range units {
		work <- u
	}
	close(work)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < r.opts.Workers; i++ {
		g.Go(func() error {
			for u := range work {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.processItem(gctx, u, gates, tracker)
			}
			return nil
		})
	}
	return g.Wait()
}

// processItem migrates one blob. Any failure marks the item Failed and
// is swallowed so one broken row never stops the run.
func (r *Runner) processItem(ctx context.Context, u workUnit, gates *gates, tracker *tracker) {
	size, err := r.migrateOne(ctx, u, gates)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		tracker.recordFailure(u.legacyID, err)
		r.logger.Error("item failed", "legacy_id", u.legacyID, "error", err)
		if !r.opts.DryRun {
			if lerr := gates.ledger(ctx, func() error {
				return r.ledger.MarkFailed(ctx, u.legacyID, err.Error())
			}); lerr != nil {
				r.logger.Error("mark failed", "legacy_id", u.legacyID, "error", lerr)
			}
		}
		return
	}
	tracker.recordSuccess(size)
}

func (r *Runner) migrateOne(ctx context.Context, u workUnit, gates *gates) (int64, error) {
	if !r.opts.DryRun {
		if err := gates.ledger(ctx, func() error {
			return r.ledger.MarkProcessing(ctx, u.legacyID)
		}); err != nil {
			return 0, fmt.Errorf("mark processing: %w", err)
		}
	}

	var meta *blobgate.LegacyMeta
	if err := gates.read(ctx, func() (err error) {
		meta, err = r.source.ReadMeta(ctx, u.legacyID)
		return err
	}); err != nil {
		return 0, fmt.Errorf("read meta: %w", err)
	}

	contentType, ext := blobgate.DeriveLegacyType(meta.ContentType, meta.TypeCode, meta.Extension)
	key := objectkey.ForLegacy(u.legacyID, ext)

	if r.opts.DryRun {
		return meta.Size, nil
	}

	if r.opts.SkipExisting {
		var exists bool
		if err := gates.put(ctx, func() error {
			_, err := r.store.Stat(ctx, u.bucket, key)
			if err == nil {
				exists = true
				return nil
			}
			if errors.Is(err, blobgate.ErrObjectNotFound) {
				return nil
			}
			return err
		}); err != nil {
			return 0, fmt.Errorf("stat %s/%s: %w", u.bucket, key, err)
		}
		if exists {
			if err := gates.ledger(ctx, func() error {
				return r.ledger.MarkDone(ctx, u.legacyID, u.bucket, key, meta.Size, contentType)
			}); err != nil {
				return 0, fmt.Errorf("mark done: %w", err)
			}
			return meta.Size, nil
		}
	}

	if err := gates.put(ctx, func() error {
		return r.ensureBucket(ctx, u.bucket)
	}); err != nil {
		return 0, fmt.Errorf("ensure bucket %s: %w", u.bucket, err)
	}

	var blob io.ReadCloser
	if err := gates.read(ctx, func() (err error) {
		blob, err = r.source.ReadBlob(ctx, u.legacyID)
		return err
	}); err != nil {
		return 0, fmt.Errorf("read blob: %w", err)
	}
	defer blob.Close()

	if err := gates.put(ctx, func() error {
		return r.store.Put(ctx, u.bucket, key, blob, meta.Size, contentType)
	}); err != nil {
		return 0, fmt.Errorf("put %s/%s: %w", u.bucket, key, err)
	}

	if err := gates.ledger(ctx, func() error {
		return r.ledger.MarkDone(ctx, u.legacyID, u.bucket, key, meta.Size, contentType)
	}); err != nil {
		return 0, fmt.Errorf("mark done: %w", err)
	}
	return meta.Size, nil
}

func (r *Runner) ensureBucket(ctx context.Context, bucket string) error {
	if r.buckets.Contains(bucket) {
		return nil
	}
	exists, err := r.store.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := r.store.MakeBucket(ctx, bucket); err != nil {
			return err
		}
	}
	r.buckets.Add(bucket)
	return nil
}

// gates bound concurrency per resource class independently of the
// worker count.
type gates struct {
	reads   chan struct{}
	puts    chan struct{}
	ledgers chan struct{}
}

func newGates(opts Options) *gates {
	return &gates{
		reads:   make(chan struct{}, opts.ReadGate),
		puts:    make(chan struct{}, opts.PutGate),
		ledgers: make(chan struct{}, opts.LedgerGate),
	}
}

func (g *gates) read(ctx context.Context, fn func() error) error {
	return withGate(ctx, g.reads, fn)
}

func (g *gates) put(ctx context.Context, fn func() error) error {
	return withGate(ctx, g.puts, fn)
}

func (g *gates) ledger(ctx context.Context, fn func() error) error {
	return withGate(ctx, g.ledgers, fn)
}

func withGate(ctx context.Context, gate chan struct{}, fn func() error) error {
	select {
	case gate <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-gate }()
	return fn()
}

// tracker accumulates counters and emits periodic progress reports.
type tracker struct {
	mu          sync.Mutex
	start       time.Time
	interval    time.Duration
	batch       int
	now         func() time.Time
	onProgress  func(Progress)
	maxErrors   int
	lastReport  time.Time
	sinceReport int
	enqueued    int64
	processed   int64
	succeeded   int64
	failed      int64
	bytes       int64
	errors      []ItemError
}

func newTracker(start time.Time, interval time.Duration, batch, maxErrors int, now func() time.Time, onProgress func(Progress)) *tracker {
	return &tracker{
		start:      start,
		interval:   interval,
		batch:      batch,
		now:        now,
		onProgress: onProgress,
		maxErrors:  maxErrors,
		lastReport: start,
	}
}

func (t *tracker) enqueue(n int64) {
	t.mu.Lock()
	t.enqueued += n
	t.mu.Unlock()
}

func (t *tracker) recordSuccess(size int64) {
	t.mu.Lock()
	t.processed++
	t.succeeded++
	t.bytes += size
	p, due := t.snapshotLocked()
	t.mu.Unlock()
	if due {
		t.onProgress(p)
	}
}

func (t *tracker) recordFailure(legacyID int64, err error) {
	t.mu.Lock()
	t.processed++
	t.failed++
	if len(t.errors) < t.maxErrors {
		t.errors = append(t.errors, ItemError{LegacyID: legacyID, Err: err.Error()})
	}
	p, due := t.snapshotLocked()
	t.mu.Unlock()
	if due {
		t.onProgress(p)
	}
}

// snapshotLocked decides whether a report is due and builds it. The
// callback itself runs outside the lock so a slow consumer cannot
// stall the workers.
func (t *tracker) snapshotLocked() (Progress, bool) {
	if t.onProgress == nil {
		return Progress{}, false
	}
	t.sinceReport++
	now := t.now()
	if t.sinceReport < t.batch && now.Sub(t.lastReport) < t.interval {
		return Progress{}, false
	}
	t.sinceReport = 0
	t.lastReport = now

	elapsed := now.Sub(t.start)
	var eta time.Duration
	if t.processed > 0 && elapsed > 0 {
		rate := float64(t.processed) / elapsed.Seconds()
		remaining := t.enqueued - t.processed
		if remaining > 0 && rate > 0 {
			eta = time.Duration(float64(remaining)/rate) * time.Second
		}
	}
	return Progress{
		Processed: t.processed,
		Succeeded: t.succeeded,
		Failed:    t.failed,
		Bytes:     t.bytes,
		Elapsed:   elapsed,
		ETA:       eta,
	}, true
}

func (t *tracker) result(duration time.Duration) *Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return &Result{
		TotalProcessed: t.processed,
		Succeeded:      t.succeeded,
		Failed:         t.failed,
		BytesProcessed: t.bytes,
		Duration:       duration,
		Errors:         t.errors,
	}
}
