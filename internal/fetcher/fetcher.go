// Package fetcher retrieves raw problem pages under rate limiting and retry.
package fetcher

import (
	"context"
	"errors"
	"time"

	"github.com/jonesrussell/north-cloud/problemsync/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/problemsync/internal/domain"
	"github.com/jonesrussell/north-cloud/problemsync/internal/ratelimit"
	"github.com/jonesrussell/north-cloud/problemsync/internal/retry"
	"github.com/jonesrussell/north-cloud/problemsync/internal/source"
)

const opFetch = "fetch"

// errRestrictedPage is the cause recorded when markers, not the status code,
// reveal a restricted page.
var errRestrictedPage = errors.New("page content is behind an access barrier")

// Document is a successfully fetched page.
type Document struct {
	URL       string
	Body      []byte
	FetchedAt time.Time
}

// Detector decides whether a fetched body is an access-restricted page.
type Detector interface {
	Restricted(body []byte) bool
}

// Recorder receives fetch outcomes. It is optional.
type Recorder interface {
	FetchAttempt(outcome string)
	RetryScheduled(service string)
}

// Fetcher wraps a Source with the shared limiter and retry policy.
type Fetcher struct {
	src      source.Source
	limiter  ratelimit.Limiter
	policy   retry.Decider
	detector Detector
	recorder Recorder
	log      logger.Logger
	now      func() time.Time
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithRecorder reports attempts and retries to r.
func WithRecorder(r Recorder) Option {
	return func(f *Fetcher) {
		f.recorder = r
	}
}

// WithClock replaces time.Now for FetchedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		f.now = now
	}
}

// New creates a Fetcher.
func New(
	src source.Source,
	limiter ratelimit.Limiter,
	policy retry.Decider,
	detector Detector,
	log logger.Logger,
	opts ...Option,
) *Fetcher {
	f := &Fetcher{
		src:      src,
		limiter:  limiter,
		policy:   policy,
		detector: detector,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// honorCrawlDelay widens the source spacing to the host's crawl delay when
// both the source and the limiter support it.
func (f *Fetcher) honorCrawlDelay(url string) {
	delayer, ok := f.src.(source.CrawlDelayer)
	if !ok {
		return
	}
	raiser, ok := f.limiter.(ratelimit.Raiser)
	if !ok {
		return
	}
	if d := delayer.CrawlDelay(url); d > 0 {
		raiser.Raise(ratelimit.ServiceSource, d)
	}
}

// Fetch retrieves the item's page. Every attempt, retries included, waits for
// a source limiter slot first. Access-restricted pages are never retried.
func (f *Fetcher) Fetch(ctx context.Context, item domain.WorkItem) (*Document, error) {
	var body []byte

	attempt := func(ctx context.Context) error {
		if err := f.limiter.Acquire(ctx, ratelimit.ServiceSource); err != nil {
			return err
		}

		raw, err := f.src.FetchRaw(ctx, item.URL)
		f.honorCrawlDelay(item.URL)
		if err != nil {
			f.record(domain.KindOf(err).String())
			return err
		}

		if f.detector != nil && f.detector.Restricted(raw) {
			f.record(domain.KindAccessRestricted.String())
			return domain.NewError(domain.KindAccessRestricted, opFetch, errRestrictedPage)
		}

		f.record("success")
		body = raw
		return nil
	}

	notify := func(n int, err error, delay time.Duration) {
		if f.recorder != nil {
			f.recorder.RetryScheduled(ratelimit.ServiceSource)
		}
		logger.Component(logger.FromContext(ctx, f.log), "fetcher").Warn("Fetch failed, retrying",
			logger.String("item_id", item.ID),
			logger.Int("attempt", n+1),
			logger.Duration("delay", delay),
			logger.Error(err),
		)
	}

	if err := retry.Do(ctx, f.policy, attempt, notify); err != nil {
		return nil, err
	}

	return &Document{URL: item.URL, Body: body, FetchedAt: f.now()}, nil
}

func (f *Fetcher) record(outcome string) {
	if f.recorder != nil {
		f.recorder.FetchAttempt(outcome)
	}
}
