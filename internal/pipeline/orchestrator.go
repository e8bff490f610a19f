// Package pipeline drives work items through fetch, extraction, checkpointing,
// content building and publishing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonesrussell/north-cloud/problemsync/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/problemsync/internal/content"
	"github.com/jonesrussell/north-cloud/problemsync/internal/domain"
	"github.com/jonesrussell/north-cloud/problemsync/internal/fetcher"
)

// Item outcomes reported to the recorder.
const (
	outcomeRestricted    = "restricted"
	outcomeFetchFailed   = "fetch_failed"
	outcomeExtracted     = "extracted"
	outcomePublished     = "published"
	outcomeUnchanged     = "unchanged"
	outcomePublishFailed = "publish_failed"
	outcomeAborted       = "aborted"
)

// Fetcher retrieves an item's raw page.
type Fetcher interface {
	Fetch(ctx context.Context, item domain.WorkItem) (*fetcher.Document, error)
}

// Extractor turns a raw page into a record.
type Extractor interface {
	Extract(item domain.WorkItem, body []byte) domain.ExtractedRecord
}

// Builder lays out a record as a content tree.
type Builder interface {
	Build(record domain.ExtractedRecord) (content.Tree, error)
}

// Publisher writes a content tree to the document store.
type Publisher interface {
	Publish(ctx context.Context, item domain.WorkItem, tree content.Tree) domain.PublishResult
}

// Store is the checkpoint store as seen by the orchestrator.
type Store interface {
	Get(ctx context.Context, id string) (*domain.CheckpointEntry, error)
	Put(ctx context.Context, entry domain.CheckpointEntry) error
}

// Recorder receives per-item and per-run metrics. It is optional.
type Recorder interface {
	ItemStarted()
	ItemFinished(outcome string, d time.Duration)
	Published(status string)
	RunFinished(result string, successRate float64, at time.Time)
}

// Deps are the collaborators of an Orchestrator. Publisher may be nil when
// every run skips publishing.
type Deps struct {
	Fetcher   Fetcher
	Extractor Extractor
	Builder   Builder
	Publisher Publisher
	Store     Store
}

// Options control a run.
type Options struct {
	// Workers partitions items round-robin across this many pipelines.
	Workers int `env:"PIPELINE_WORKERS" yaml:"workers"`
	// ForceRefresh fetches every item even when a checkpoint exists.
	ForceRefresh bool `env:"PIPELINE_FORCE_REFRESH" yaml:"force_refresh"`
	// Limit caps the number of items taken from the input. Zero means all.
	Limit int `env:"PIPELINE_LIMIT" yaml:"limit"`
	// SkipPublish stops after checkpointing.
	SkipPublish bool `env:"PIPELINE_SKIP_PUBLISH" yaml:"skip_publish"`
}

// SetDefaults applies default values for zero-value fields.
func (o *Options) SetDefaults() {
	if o.Workers <= 0 {
		o.Workers = 1
	}
}

// Status is a point-in-time view of the orchestrator.
type Status struct {
	Running   bool      `json:"running"`
	RunID     string    `json:"run_id,omitempty"`
	Processed int       `json:"processed"`
	Total     int       `json:"total"`
	StartedAt time.Time `json:"started_at,omitzero"`
	LastRun   *Summary  `json:"last_run,omitempty"`
}

// Orchestrator runs batches of items. Runs may not overlap.
type Orchestrator struct {
	deps     Deps
	opts     Options
	log      logger.Logger
	sink     Sink
	recorder Recorder
	tracer   trace.Tracer
	now      func() time.Time

	running atomic.Bool

	statusMu sync.RWMutex
	status   Status
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithSink sends progress reports to s.
func WithSink(s Sink) Option {
	return func(o *Orchestrator) {
		o.sink = s
	}
}

// WithRecorder reports metrics to r.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an Orchestrator.
func New(deps Deps, opts Options, log logger.Logger, options ...Option) *Orchestrator {
	opts.SetDefaults()
	o := &Orchestrator{
		deps:   deps,
		opts:   opts,
		log:    logger.Component(log, "pipeline"),
		sink:   nopSink{},
		tracer: otel.Tracer("problemsync/pipeline"),
		now:    time.Now,
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("a sync run is already in progress")

// Run processes items and returns the aggregated summary. Individual item
// failures are recorded in the summary and never abort the run. The run
// stops early, returning the error, only when the checkpoint store becomes
// unavailable. Cancelling ctx stops the run before the next item; the item
// in flight is finished first.
func (o *Orchestrator) Run(ctx context.Context, items []domain.WorkItem) (Summary, error) {
	if !o.running.CompareAndSwap(false, true) {
		return Summary{}, ErrRunInProgress
	}
	defer o.running.Store(false)

	if o.opts.Limit > 0 && len(items) > o.opts.Limit {
		items = items[:o.opts.Limit]
	}

	r := &run{
		o: o,
		summary: Summary{
			RunID:     uuid.NewString(),
			StartedAt: o.now(),
			Total:     len(items),
		},
	}
	r.log = o.log.With(logger.String("run_id", r.summary.RunID))

	ctx, span := o.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("run_id", r.summary.RunID),
			attribute.Int("items", len(items)),
			attribute.Int("workers", o.opts.Workers),
		))
	defer span.End()

	o.setStatus(func(s *Status) {
		s.Running = true
		s.RunID = r.summary.RunID
		s.Processed = 0
		s.Total = len(items)
		s.StartedAt = r.summary.StartedAt
	})

	r.log.Info("Starting sync run",
		logger.Int("items", len(items)),
		logger.Int("workers", o.opts.Workers),
		logger.Bool("force_refresh", o.opts.ForceRefresh),
		logger.Bool("skip_publish", o.opts.SkipPublish),
	)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	r.stop = stop

	var wg sync.WaitGroup
	for _, part := range partition(items, o.opts.Workers) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.work(runCtx, part)
		}()
	}
	wg.Wait()

	r.summary.Duration = o.now().Sub(r.summary.StartedAt)
	summary := r.summary

	result := "ok"
	switch {
	case r.fatal != nil:
		result = "aborted"
	case ctx.Err() != nil:
		result = "cancelled"
	}
	if o.recorder != nil {
		o.recorder.RunFinished(result, summary.SuccessRate(), o.now())
	}
	o.setStatus(func(s *Status) {
		s.Running = false
		s.LastRun = &summary
	})

	r.log.Info("Sync run finished",
		logger.String("result", result),
		logger.Int("processed", summary.Processed),
		logger.Int("failed", summary.Failed()),
		logger.Int("restricted", summary.Restricted),
		logger.Duration("duration", summary.Duration),
	)

	if r.fatal != nil {
		span.RecordError(r.fatal)
		return summary, r.fatal
	}
	return summary, nil
}

// Status returns the current run progress and the last finished run.
func (o *Orchestrator) Status() Status {
	o.statusMu.RLock()
	defer o.statusMu.RUnlock()
	return o.status
}

func (o *Orchestrator) setStatus(fn func(*Status)) {
	o.statusMu.Lock()
	defer o.statusMu.Unlock()
	fn(&o.status)
}

// partition deals items round-robin into at most n slices.
func partition(items []domain.WorkItem, n int) [][]domain.WorkItem {
	n = max(1, min(n, len(items)))
	parts := make([][]domain.WorkItem, n)
	for i, item := range items {
		parts[i%n] = append(parts[i%n], item)
	}
	return parts
}

// run is the mutable state of one Run call.
type run struct {
	o    *Orchestrator
	log  logger.Logger
	stop context.CancelFunc

	mu      sync.Mutex
	summary Summary
	fatal   error
	started int
}

func (r *run) work(ctx context.Context, items []domain.WorkItem) {
	for _, item := range items {
		if ctx.Err() != nil {
			return
		}
		// The item in flight finishes even if the run is cancelled meanwhile.
		r.process(context.WithoutCancel(ctx), item)
	}
}

// itemResult accumulates one item's contribution to the summary.
type itemResult struct {
	fetched, cached, restricted, partial bool
	fetchFailed                          bool
	publish                              *domain.PublishResult
	buildFailed                          bool
	failure                              *ItemFailure
	outcome                              string
}

func (r *run) process(ctx context.Context, item domain.WorkItem) {
	o := r.o
	start := o.now()
	current := r.begin()
	log := r.log.With(logger.String("item_id", item.ID))
	ctx = logger.WithContext(ctx, r.log)

	ctx, span := o.tracer.Start(ctx, "pipeline.item", trace.WithAttributes(attribute.String("item_id", item.ID)))
	defer span.End()

	if o.recorder != nil {
		o.recorder.ItemStarted()
	}

	res, err := r.handle(ctx, item, current, log)
	if err != nil {
		res.outcome = outcomeAborted
		span.RecordError(err)
		log.Error("Checkpoint store unavailable, aborting run", logger.Error(err))
	}
	span.SetAttributes(attribute.String("outcome", res.outcome))

	if o.recorder != nil {
		o.recorder.ItemFinished(res.outcome, o.now().Sub(start))
		if res.publish != nil {
			o.recorder.Published(string(res.publish.Status))
		}
	}
	r.finish(res, err)
}

// handle runs one item through every stage. The returned error is non-nil
// only for failures that must abort the run.
func (r *run) handle(ctx context.Context, item domain.WorkItem, current int, log logger.Logger) (itemResult, error) {
	o := r.o
	total := r.summary.Total
	var res itemResult

	entry, err := o.deps.Store.Get(ctx, item.ID)
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			return res, err
		}
		log.Warn("Ignoring unreadable checkpoint", logger.Error(err))
		entry = nil
	}

	var record domain.ExtractedRecord
	switch {
	case !o.opts.ForceRefresh && entry.Cached() && entry.Status == domain.StatusAccessRestricted:
		res.restricted = true
		res.outcome = outcomeRestricted
		o.sink.Report("Skipped access-restricted "+item.DisplayTitle(), current, total)
		return res, nil

	case !o.opts.ForceRefresh && entry.Cached():
		res.cached = true
		record = entry.Record
		o.sink.Report("Loaded from checkpoint "+item.DisplayTitle(), current, total)

	default:
		attempts := 1
		if entry != nil {
			attempts = entry.Attempts + 1
		}

		doc, fetchErr := o.deps.Fetcher.Fetch(ctx, item)
		if fetchErr != nil {
			return r.fetchFailed(ctx, item, attempts, fetchErr, current, log)
		}
		o.sink.Report("Fetched "+item.DisplayTitle(), current, total)

		record = o.deps.Extractor.Extract(item, doc.Body)
		record.ExtractedAt = doc.FetchedAt
		res.fetched = true
		res.partial = record.Partial()
		if res.partial {
			log.Warn("Partial extraction", logger.Strings("missing", record.Missing))
		}

		if err = o.deps.Store.Put(ctx, domain.CheckpointEntry{
			ItemID:      item.ID,
			Record:      record,
			LastAttempt: o.now(),
			Status:      domain.StatusSuccess,
			Attempts:    attempts,
		}); err != nil {
			return res, storeErr(err)
		}
		o.sink.Report("Extracted "+item.DisplayTitle(), current, total)
	}

	if o.opts.SkipPublish || o.deps.Publisher == nil {
		res.outcome = outcomeExtracted
		return res, nil
	}

	tree, err := o.deps.Builder.Build(record)
	if err != nil {
		res.buildFailed = true
		res.outcome = outcomePublishFailed
		res.failure = &ItemFailure{ItemID: item.ID, Title: item.Title, Stage: StageBuild, Chunk: domain.NoChunk, Error: err.Error()}
		log.Error("Failed to build content", logger.Error(err))
		return res, nil
	}
	o.sink.Report("Built "+item.DisplayTitle(), current, total)

	pub := o.deps.Publisher.Publish(ctx, item, tree)
	res.publish = &pub
	if pub.Err != nil && errors.Is(pub.Err, domain.ErrStoreUnavailable) {
		return res, pub.Err
	}

	switch pub.Status {
	case domain.PublishFailed:
		res.outcome = outcomePublishFailed
		res.failure = &ItemFailure{
			ItemID: item.ID, Title: item.Title, Stage: StagePublish,
			Chunk: pub.FailedChunk, Error: errString(pub.Err),
		}
		log.Error("Publish failed", logger.Int("failed_chunk", pub.FailedChunk), logger.Error(pub.Err))
	case domain.PublishSkipped:
		res.outcome = outcomeUnchanged
	default:
		res.outcome = outcomePublished
	}
	o.sink.Report(fmt.Sprintf("Published %s (%s)", item.DisplayTitle(), pub.Status), current, total)
	return res, nil
}

// fetchFailed records a fetch failure in the checkpoint. Restricted items
// are checkpointed as such and never reach the publisher.
func (r *run) fetchFailed(
	ctx context.Context, item domain.WorkItem, attempts int, fetchErr error, current int, log logger.Logger,
) (itemResult, error) {
	o := r.o
	var res itemResult

	entry := domain.CheckpointEntry{
		ItemID:      item.ID,
		Record:      domain.ExtractedRecord{Item: item},
		LastAttempt: o.now(),
		Attempts:    attempts,
		Error:       fetchErr.Error(),
	}

	if errors.Is(fetchErr, domain.ErrAccessRestricted) {
		entry.Status = domain.StatusAccessRestricted
		entry.Record.AccessRestricted = true
		entry.Error = ""
		res.restricted = true
		res.outcome = outcomeRestricted
		log.Info("Access restricted, not publishing")
		o.sink.Report("Access restricted "+item.DisplayTitle(), current, r.summary.Total)
	} else {
		entry.Status = domain.StatusFailed
		res.fetchFailed = true
		res.outcome = outcomeFetchFailed
		res.failure = &ItemFailure{
			ItemID: item.ID, Title: item.Title, Stage: StageFetch,
			Chunk: domain.NoChunk, Error: fetchErr.Error(),
		}
		log.Error("Fetch failed",
			logger.String("kind", domain.KindOf(fetchErr).String()),
			logger.Int("attempts", attempts),
			logger.Error(fetchErr),
		)
		o.sink.Report("Fetch failed "+item.DisplayTitle(), current, r.summary.Total)
	}

	if err := o.deps.Store.Put(ctx, entry); err != nil {
		return res, storeErr(err)
	}
	return res, nil
}

func (r *run) begin() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
	return r.started
}

func (r *run) finish(res itemResult, fatal error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &r.summary
	s.Processed++
	if res.fetched {
		s.Fetched++
	}
	if res.cached {
		s.Cached++
	}
	if res.restricted {
		s.Restricted++
	}
	if res.fetchFailed {
		s.FetchFailed++
	}
	if res.partial {
		s.Partial++
	}
	if res.buildFailed {
		s.PublishFailed++
	}
	if p := res.publish; p != nil {
		s.Blocks += p.BlocksAppended
		switch p.Status {
		case domain.PublishCreated:
			s.Created++
		case domain.PublishUpdated:
			s.Updated++
		case domain.PublishSkipped:
			s.Skipped++
		case domain.PublishFailed:
			s.PublishFailed++
		}
	}
	if res.failure != nil {
		s.Failures = append(s.Failures, *res.failure)
	}

	if fatal != nil && r.fatal == nil {
		r.fatal = fatal
		r.stop()
	}

	processed := s.Processed
	r.o.setStatus(func(st *Status) { st.Processed = processed })
}

func storeErr(err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
