package mr

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrInvalidArgument is returned for a non-positive worker count or an
	// otherwise unusable request, before any scanning starts.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrResourceUnavailable is returned when the input cannot be acquired
	// or stops being readable during a run.
	ErrResourceUnavailable = errors.New("resource unavailable")
)

var tracer = otel.Tracer("github.com/threadedstream/uniqwords/internal/mr")

// Recorder receives per-chunk and per-run measurements.
type Recorder interface {
	RecordChunk(bytes int64, tokens, words int, elapsed time.Duration)
	RecordRun(strategy, status string, distinct int, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordChunk(int64, int, int, time.Duration)   {}
func (nopRecorder) RecordRun(string, string, int, time.Duration) {}

// Coordinator splits an input into chunks, runs one worker per chunk and
// merges their words into a single distinct count.
type Coordinator struct {
	strategy Strategy
	boundary Boundary
	shards   int
	recorder Recorder
	logger   *zap.Logger
}

type Option func(*Coordinator)

func WithStrategy(s Strategy) Option {
	return func(c *Coordinator) { c.strategy = s }
}

func WithBoundary(b Boundary) Option {
	return func(c *Coordinator) { c.boundary = b }
}

// WithShards sets the shard count used by StrategySharded.
func WithShards(n int) Option {
	return func(c *Coordinator) { c.shards = n }
}

func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.recorder = r
		}
	}
}

// NewCoordinator returns a Coordinator using StrategyLocalMerge and
// BoundaryAlign unless options say otherwise.
func NewCoordinator(logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		strategy: StrategyLocalMerge,
		boundary: BoundaryAlign,
		shards:   DefaultShards,
		recorder: nopRecorder{},
		logger:   logger.With(zap.String("component", "mr")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Count runs a default Coordinator over in.
func Count(ctx context.Context, in Input, workers int) (int, error) {
	return NewCoordinator(nil).Run(ctx, in, workers)
}

// Run returns the number of distinct normalized words in in, scanned by
// workers concurrent workers. On error the returned count is 0 and must not
// be used: a failed worker fails the whole run.
func (c *Coordinator) Run(ctx context.Context, in Input, workers int) (int, error) {
	if in == nil {
		return 0, fmt.Errorf("%w: nil input", ErrInvalidArgument)
	}
	chunks, err := Plan(in.Size(), workers)
	if err != nil {
		return 0, err
	}

	logger := c.logger.With(zap.String("run_id", uuid.NewString()))
	ctx, span := tracer.Start(ctx, "mr.Run", trace.WithAttributes(
		attribute.Int("workers", workers),
		attribute.Int64("bytes", in.Size()),
		attribute.String("strategy", string(c.strategy)),
		attribute.String("boundary", string(c.boundary)),
	))
	defer span.End()

	logger.Debug("starting run",
		zap.Int("workers", workers),
		zap.Int64("bytes", in.Size()),
		zap.String("strategy", string(c.strategy)),
		zap.String("boundary", string(c.boundary)),
	)

	started := time.Now()
	count, err := c.run(ctx, logger, in, chunks)
	elapsed := time.Since(started)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.recorder.RecordRun(string(c.strategy), "error", 0, elapsed)
		logger.Error("run failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		return 0, err
	}

	span.SetAttributes(attribute.Int("distinct", count))
	c.recorder.RecordRun(string(c.strategy), "success", count, elapsed)
	logger.Info("run finished",
		zap.Int("workers", workers),
		zap.Int("distinct", count),
		zap.Duration("elapsed", elapsed),
	)
	return count, nil
}

func (c *Coordinator) run(ctx context.Context, logger *zap.Logger, in Input, chunks []Chunk) (int, error) {
	switch c.strategy {
	case StrategySharedLock:
		set := NewLockedSet()
		if err := c.scatter(ctx, logger, in, chunks, func(int) Inserter { return set }); err != nil {
			return 0, err
		}
		return set.Len(), nil

	case StrategySharded:
		set := NewShardedSet(c.shards)
		if err := c.scatter(ctx, logger, in, chunks, func(int) Inserter { return set }); err != nil {
			return 0, err
		}
		return set.Len(), nil

	case StrategyLocalMerge, StrategyTreeMerge:
		sets := make([]WordSet, len(chunks))
		for i := range sets {
			sets[i] = make(WordSet)
		}
		if err := c.scatter(ctx, logger, in, chunks, func(i int) Inserter { return sets[i] }); err != nil {
			return 0, err
		}
		if c.strategy == StrategyTreeMerge {
			return reduceTree(sets).Len(), nil
		}
		return mergeAll(sets).Len(), nil
	}
	return 0, fmt.Errorf("%w: unknown merge strategy %q", ErrInvalidArgument, c.strategy)
}

// scatter runs one worker per chunk and waits for all of them. The first
// error cancels the remaining workers and is returned.
func (c *Coordinator) scatter(ctx context.Context, logger *zap.Logger, in Input, chunks []Chunk, sinkFor func(int) Inserter) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(len(chunks))

	for i, chunk := range chunks {
		eg.Go(func() (err error) {
			// a mapped input whose file shrinks under us faults on read
			defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
			defer func() {
				if r := recover(); r != nil {
					err = faultError(i, r)
				}
			}()

			wrk := &Worker{ID: i, Input: in, Boundary: c.boundary}
			return c.scan(ctx, logger, wrk, Task{ID: i, Chunk: chunk}, sinkFor(i))
		})
	}
	return eg.Wait()
}

// faultError turns a recovered memory fault into ErrResourceUnavailable.
// Any other panic is not ours to handle and is re-raised.
func faultError(worker int, r any) error {
	if re, ok := r.(runtime.Error); ok {
		if fault, ok := re.(interface{ Addr() uintptr }); ok {
			return fmt.Errorf("%w: worker %d: input fault at %#x: %v", ErrResourceUnavailable, worker, fault.Addr(), re)
		}
	}
	panic(r)
}

func (c *Coordinator) scan(ctx context.Context, logger *zap.Logger, wrk *Worker, task Task, sink Inserter) error {
	ctx, span := tracer.Start(ctx, "mr.Worker.Do", trace.WithAttributes(
		attribute.Int("task", task.ID),
		attribute.Int64("start", task.Chunk.Start),
		attribute.Int64("end", task.Chunk.End),
	))
	defer span.End()

	started := time.Now()
	stats, err := wrk.Do(ctx, task, sink)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	elapsed := time.Since(started)

	c.recorder.RecordChunk(stats.Bytes, stats.Tokens, stats.Words, elapsed)
	logger.Debug("chunk scanned",
		zap.Int("task", task.ID),
		zap.Stringer("chunk", task.Chunk),
		zap.Stringer("span", stats.Span),
		zap.Int("tokens", stats.Tokens),
		zap.Int("words", stats.Words),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

// mergeAll unions every set into the largest one, single-threaded.
func mergeAll(sets []WordSet) WordSet {
	if len(sets) == 0 {
		return make(WordSet)
	}
	dst := 0
	for i := range sets {
		if len(sets[i]) > len(sets[dst]) {
			dst = i
		}
	}
	for i, s := range sets {
		if i != dst {
			sets[dst].Union(s)
		}
	}
	return sets[dst]
}

// reduceTree unions sets pairwise in parallel rounds until one is left.
// Each round pairs i with i+half and writes only indexes below half.
func reduceTree(sets []WordSet) WordSet {
	if len(sets) == 0 {
		return make(WordSet)
	}
	for len(sets) > 1 {
		half := (len(sets) + 1) / 2
		wg := sync.WaitGroup{}
		wg.Add(len(sets) - half)
		for i := range len(sets) - half {
			go func() {
				defer wg.Done()
				sets[i] = union(sets[i], sets[i+half])
			}()
		}
		wg.Wait()
		sets = sets[:half]
	}
	return sets[0]
}
