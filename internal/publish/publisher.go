// Package publish uploads content trees to a remote document store in
// size-limited chunks. Publishing is idempotent per item and an interrupted
// upload resumes from the first chunk that was not confirmed.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonesrussell/north-cloud/problemsync/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/problemsync/internal/content"
	"github.com/jonesrussell/north-cloud/problemsync/internal/domain"
	"github.com/jonesrussell/north-cloud/problemsync/internal/ratelimit"
	"github.com/jonesrussell/north-cloud/problemsync/internal/retry"
)

//go:generate mockgen -destination=mocks/document_store_mock.go -package=mocks . DocumentStore

// DefaultMaxBlocksPerRequest is the store's cap on blocks per append.
const DefaultMaxBlocksPerRequest = 100

var errNoDocumentID = errors.New("store returned an empty document id")

// ContainerSpec describes a document to create.
type ContainerSpec struct {
	Title          string
	Icon           string
	IdempotencyKey string
	Difficulty     string
	SourceURL      string
	// Blocks are sent with the create request. Keep them under the per-request cap.
	Blocks []content.Block
}

// Container identifies a remote document.
type Container struct {
	ID  string
	URL string
}

// DocumentStore is the remote document workspace.
type DocumentStore interface {
	CreateContainer(ctx context.Context, spec ContainerSpec) (Container, error)
	AppendBlocks(ctx context.Context, id string, blocks []content.Block) error
	FindByIdempotencyKey(ctx context.Context, key string) (Container, bool, error)
	ClearBlocks(ctx context.Context, id string) error
}

// Ledger persists per-item publish progress.
type Ledger interface {
	LoadState(ctx context.Context, id string) (*domain.PublishState, error)
	SaveState(ctx context.Context, state domain.PublishState) error
}

// Recorder receives publish events. It is optional.
type Recorder interface {
	ChunkAppended(blocks int)
	RetryScheduled(service string)
}

// Config configures a Publisher.
type Config struct {
	MaxBlocksPerRequest int `env:"NOTION_MAX_BLOCKS_PER_REQUEST" yaml:"max_blocks_per_request"`
}

// SetDefaults applies default values for zero-value fields.
func (c *Config) SetDefaults() {
	if c.MaxBlocksPerRequest <= 0 {
		c.MaxBlocksPerRequest = DefaultMaxBlocksPerRequest
	}
}

// Publisher is the chunked, resumable uploader.
type Publisher struct {
	store    DocumentStore
	ledger   Ledger
	policy   retry.Decider
	cfg      Config
	log      logger.Logger
	tracer   trace.Tracer
	recorder Recorder
	now      func() time.Time
}

// Option customizes a Publisher.
type Option func(*Publisher)

// WithRecorder reports chunk appends and retries to r.
func WithRecorder(r Recorder) Option {
	return func(p *Publisher) {
		p.recorder = r
	}
}

// WithClock replaces time.Now for ledger timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

// New creates a Publisher.
func New(store DocumentStore, ledger Ledger, policy retry.Decider, cfg Config, log logger.Logger, opts ...Option) *Publisher {
	cfg.SetDefaults()
	p := &Publisher{
		store:  store,
		ledger: ledger,
		policy: policy,
		cfg:    cfg,
		log:    logger.Component(log, "publisher"),
		tracer: otel.Tracer("problemsync/publish"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish creates or updates the item's document so that it holds exactly
// tree. It never returns an error directly: failures are reported in the
// result, with FailedChunk set when a body chunk was rejected.
func (p *Publisher) Publish(ctx context.Context, item domain.WorkItem, tree content.Tree) domain.PublishResult {
	ctx, span := p.tracer.Start(ctx, "publish.item",
		trace.WithAttributes(
			attribute.String("item_id", item.ID),
			attribute.Int("blocks", len(tree.Blocks)),
		))
	defer span.End()

	result := p.publish(ctx, item, tree)

	span.SetAttributes(
		attribute.String("status", string(result.Status)),
		attribute.Int("blocks_appended", result.BlocksAppended),
	)
	if result.Err != nil {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
	}
	return result
}

func (p *Publisher) publish(ctx context.Context, item domain.WorkItem, tree content.Tree) domain.PublishResult {
	result := domain.PublishResult{ItemID: item.ID, FailedChunk: domain.NoChunk}
	log := p.log.With(logger.String("item_id", item.ID))

	hash := tree.Hash()
	chunks := Chunk(tree.Body(), p.cfg.MaxBlocksPerRequest)

	state, err := p.ledger.LoadState(ctx, item.ID)
	if err != nil {
		return failed(result, fmt.Errorf("load publish state: %w", err))
	}
	if state != nil && state.Complete && state.ContentHash == hash {
		result.Status = domain.PublishSkipped
		result.DocumentID = state.DocumentID
		log.Debug("Content unchanged, skipping publish", logger.String("document_id", state.DocumentID))
		return result
	}

	container, found, err := p.locate(ctx, item, state)
	if err != nil {
		return failed(result, err)
	}

	start := 0
	if found {
		result.Status = domain.PublishUpdated
		result.DocumentID, result.URL = container.ID, container.URL

		resumable := state != nil && state.DocumentID == container.ID && !state.Complete && state.ContentHash == hash
		if resumable {
			start = state.NextChunk
			log.Info("Resuming interrupted publish",
				logger.String("document_id", container.ID),
				logger.Int("next_chunk", start),
				logger.Int("total_chunks", len(chunks)),
			)
		} else if err = p.reset(ctx, container.ID, tree.Header()); err != nil {
			return failed(result, err)
		} else {
			result.BlocksAppended += tree.HeaderLen
		}
	} else {
		container, err = p.create(ctx, item, tree)
		if err != nil {
			return failed(result, err)
		}
		result.Status = domain.PublishCreated
		result.DocumentID, result.URL = container.ID, container.URL
		result.BlocksAppended += tree.HeaderLen
	}

	ledger := domain.PublishState{
		ItemID:      item.ID,
		DocumentID:  container.ID,
		ContentHash: hash,
		TotalChunks: len(chunks),
		NextChunk:   start,
		FailedChunk: domain.NoChunk,
	}
	if err = p.save(ctx, &ledger); err != nil {
		return failed(result, err)
	}

	for k := start; k < len(chunks); k++ {
		if err = p.appendChunk(ctx, container.ID, k, chunks[k]); err != nil {
			ledger.NextChunk = k
			ledger.FailedChunk = k
			if saveErr := p.save(ctx, &ledger); saveErr != nil {
				log.Error("Failed to record failed chunk", logger.Int("chunk", k), logger.Error(saveErr))
			}

			chunkErr := domain.NewError(chunkKind(err), "append_blocks", err)
			chunkErr.Chunk = k
			result.FailedChunk = k
			log.Warn("Chunk append failed",
				logger.String("document_id", container.ID),
				logger.Int("chunk", k),
				logger.Error(err),
			)
			return failed(result, chunkErr)
		}

		result.BlocksAppended += len(chunks[k])
		ledger.NextChunk = k + 1
		if err = p.save(ctx, &ledger); err != nil {
			return failed(result, err)
		}
	}

	ledger.Complete = true
	if err = p.save(ctx, &ledger); err != nil {
		return failed(result, err)
	}

	log.Info("Published",
		logger.String("status", string(result.Status)),
		logger.String("document_id", container.ID),
		logger.Int("blocks", result.BlocksAppended),
	)
	return result
}

// locate finds the item's document through the ledger, then the store.
func (p *Publisher) locate(ctx context.Context, item domain.WorkItem, state *domain.PublishState) (Container, bool, error) {
	if state != nil && state.DocumentID != "" {
		return Container{ID: state.DocumentID}, true, nil
	}

	var (
		container Container
		found     bool
	)
	err := retry.Do(ctx, p.policy, func(ctx context.Context) error {
		var err error
		container, found, err = p.store.FindByIdempotencyKey(ctx, item.ID)
		return err
	}, p.notify(item.ID, "find"))
	if err != nil {
		return Container{}, false, fmt.Errorf("find document: %w", err)
	}
	return container, found, nil
}

// create makes the container. A retried create first checks whether the
// failed attempt went through, so a lost response never yields a duplicate.
func (p *Publisher) create(ctx context.Context, item domain.WorkItem, tree content.Tree) (Container, error) {
	spec := ContainerSpec{
		Title:          item.DisplayTitle(),
		Icon:           item.Difficulty.Emoji(),
		IdempotencyKey: item.ID,
		Difficulty:     string(item.Difficulty),
		SourceURL:      item.URL,
		Blocks:         tree.Header(),
	}

	var container Container
	attempt := 0
	err := retry.Do(ctx, p.policy, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			existing, found, err := p.store.FindByIdempotencyKey(ctx, item.ID)
			if err != nil {
				return err
			}
			if found {
				container = existing
				return nil
			}
		}

		var err error
		container, err = p.store.CreateContainer(ctx, spec)
		return err
	}, p.notify(item.ID, "create"))
	if err != nil {
		return Container{}, fmt.Errorf("create document: %w", err)
	}
	if container.ID == "" {
		return Container{}, domain.NewError(domain.KindPermanent, "create_page", errNoDocumentID)
	}
	return container, nil
}

// reset empties an existing document and writes the header again.
func (p *Publisher) reset(ctx context.Context, id string, header []content.Block) error {
	err := retry.Do(ctx, p.policy, func(ctx context.Context) error {
		return p.store.ClearBlocks(ctx, id)
	}, p.notify(id, "clear"))
	if err != nil {
		return fmt.Errorf("clear document: %w", err)
	}

	if len(header) == 0 {
		return nil
	}
	err = retry.Do(ctx, p.policy, func(ctx context.Context) error {
		return p.store.AppendBlocks(ctx, id, header)
	}, p.notify(id, "header"))
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

func (p *Publisher) appendChunk(ctx context.Context, id string, k int, blocks []content.Block) error {
	ctx, span := p.tracer.Start(ctx, "publish.append_chunk",
		trace.WithAttributes(
			attribute.String("document_id", id),
			attribute.Int("chunk", k),
			attribute.Int("blocks", len(blocks)),
		))
	defer span.End()

	err := retry.Do(ctx, p.policy, func(ctx context.Context) error {
		return p.store.AppendBlocks(ctx, id, blocks)
	}, p.notify(id, "append"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if p.recorder != nil {
		p.recorder.ChunkAppended(len(blocks))
	}
	return nil
}

func (p *Publisher) save(ctx context.Context, state *domain.PublishState) error {
	state.UpdatedAt = p.now()
	if err := p.ledger.SaveState(ctx, *state); err != nil {
		return fmt.Errorf("save publish state: %w", err)
	}
	return nil
}

func (p *Publisher) notify(key, op string) retry.Notify {
	return func(attempt int, err error, delay time.Duration) {
		if p.recorder != nil {
			p.recorder.RetryScheduled(ratelimit.ServiceNotion)
		}
		p.log.Warn("Document store call failed, retrying",
			logger.String("key", key),
			logger.String("op", op),
			logger.Int("attempt", attempt+1),
			logger.Duration("delay", delay),
			logger.Error(err),
		)
	}
}

// Chunk splits blocks into consecutive slices of at most size blocks.
func Chunk(blocks []content.Block, size int) [][]content.Block {
	if size <= 0 {
		size = DefaultMaxBlocksPerRequest
	}

	var chunks [][]content.Block
	for start := 0; start < len(blocks); start += size {
		end := min(start+size, len(blocks))
		chunks = append(chunks, blocks[start:end])
	}
	return chunks
}

func chunkKind(err error) domain.Kind {
	if kind := domain.KindOf(err); kind != domain.KindUnknown {
		return kind
	}
	return domain.KindPermanent
}

func failed(result domain.PublishResult, err error) domain.PublishResult {
	result.Status = domain.PublishFailed
	result.Err = err
	return result
}
