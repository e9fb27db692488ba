package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/threadedstream/uniqwords/coordinator"
	"github.com/threadedstream/uniqwords/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("uniqwords", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: uniqwords [flags] FILE\n")
		fs.PrintDefaults()
	}
	configPath := fs.String("config", "", "Path to config file")
	workers := fs.Int("workers", 0, "Number of workers (default: one per CPU)")
	strategy := fs.String("strategy", "", "Merge strategy: local, tree, shared, sharded")
	boundary := fs.String("boundary", "", "Chunk boundary policy: align, fragment")
	mode := fs.String("mode", "", "Input mode: auto, mmap, stream")
	timeout := fs.Duration("timeout", 0, "Deadline for the whole run (0: none)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}

	// flags win over file and environment
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			cfg.Workers = *workers
		case "strategy":
			cfg.Strategy = *strategy
		case "boundary":
			cfg.Boundary = *boundary
		case "mode":
			cfg.Input.Mode = *mode
		case "timeout":
			cfg.Timeout = *timeout
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Invalid config: %v\n", err)
		return 2
	}

	logger := initLogger(cfg.Log, stderr)
	defer logger.Sync()

	count, err := coordinator.Main(ctx, logger, cfg, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "uniqwords: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Number of unique words: %d\n", count)
	return 0
}

func initLogger(cfg config.LogConfig, out io.Writer) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}
