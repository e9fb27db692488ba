package coordinator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/threadedstream/uniqwords/internal/config"
	"github.com/threadedstream/uniqwords/internal/metrics"
	"github.com/threadedstream/uniqwords/internal/mr"
	"github.com/threadedstream/uniqwords/internal/pkg/loader"
)

// Coordinator owns everything around a counting run: the input file, the
// deadline, metrics, and the engine itself.

// Main is an entrypoint for coordinator
func Main(ctx context.Context, logger *zap.Logger, cfg *config.Config, path string) (int, error) {
	c, err := NewCoordinator(cfg, logger)
	if err != nil {
		return 0, err
	}
	return c.Count(ctx, path)
}

type Coordinator struct {
	cfg     *config.Config
	mode    loader.Mode
	engine  *mr.Coordinator
	metrics *metrics.Collector // nil unless metrics are enabled
	logger  *zap.Logger
}

func NewCoordinator(cfg *config.Config, logger *zap.Logger) (*Coordinator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", mr.ErrInvalidArgument, err)
	}
	strategy, err := mr.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	boundary, err := mr.ParseBoundary(cfg.Boundary)
	if err != nil {
		return nil, err
	}
	mode, err := loader.ParseMode(cfg.Input.Mode)
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		cfg:    cfg,
		mode:   mode,
		logger: logger.With(zap.String("component", "coordinator")),
	}

	opts := []mr.Option{
		mr.WithStrategy(strategy),
		mr.WithBoundary(boundary),
		mr.WithShards(cfg.Shards),
	}
	if cfg.Metrics.Enabled {
		c.metrics = metrics.NewCollector(cfg.Metrics.Namespace, logger)
		opts = append(opts, mr.WithRecorder(c.metrics))
	}
	c.engine = mr.NewCoordinator(logger, opts...)

	return c, nil
}

// Count returns the number of distinct words in the file at path. The file
// is released before Count returns, whatever the outcome.
func (c *Coordinator) Count(ctx context.Context, path string) (count int, err error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	in, err := loader.Open(path, c.mode)
	if err != nil {
		c.logger.Error("failed to open input", zap.String("path", path), zap.Error(err))
		return 0, err
	}
	defer func() {
		if cerr := in.Close(); cerr != nil {
			c.logger.Warn("failed to release input", zap.String("path", path), zap.Error(cerr))
		}
	}()

	c.logger.Debug("input opened",
		zap.String("path", path),
		zap.String("mode", string(in.Mode())),
		zap.Int64("bytes", in.Size()),
	)

	count, err = c.engine.Run(ctx, in, c.cfg.Workers)
	if c.metrics != nil && c.cfg.Metrics.Textfile != "" {
		if werr := c.metrics.WriteTextfile(c.cfg.Metrics.Textfile); werr != nil {
			c.logger.Warn("metrics not written", zap.Error(werr))
		}
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Metrics returns the collector, or nil when metrics are disabled.
func (c *Coordinator) Metrics() *metrics.Collector {
	return c.metrics
}
