package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Greggwolin/landscape-sub017/internal/config"
	"github.com/Greggwolin/landscape-sub017/internal/engine"
	"github.com/Greggwolin/landscape-sub017/internal/output"
	"github.com/Greggwolin/landscape-sub017/pkg/cashflow"
	"github.com/Greggwolin/landscape-sub017/pkg/debt"
	"github.com/Greggwolin/landscape-sub017/pkg/depgraph"
	"github.com/Greggwolin/landscape-sub017/pkg/timing"
	"github.com/Greggwolin/landscape-sub017/pkg/waterfall"
)

// Exit codes: deterministic input problems are distinguishable from
// timeouts and from unexpected internal failures.
const (
	exitOK         = 0
	exitInternal   = 1
	exitInputError = 2
	exitTimeout    = 3
)

// initializeLogger creates a zap logger based on configuration and CLI override.
func initializeLogger(loggingConfig config.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	// Determine log level (CLI override takes precedence)
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	if level == "" {
		level = "info"
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	format := loggingConfig.Format
	if format == "" {
		format = "json"
	}

	var zapConfig zap.Config
	switch format {
	case "console":
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)
	case "json":
		zapConfig = zap.NewProductionConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}

	if loggingConfig.OutputFile != "" {
		if dir := filepath.Dir(loggingConfig.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %v", dir, err)
			}
		}
		if file, err := os.OpenFile(loggingConfig.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %v", loggingConfig.OutputFile, err)
		} else {
			_ = file.Close()
		}
		zapConfig.OutputPaths = []string{loggingConfig.OutputFile}
		zapConfig.ErrorOutputPaths = []string{loggingConfig.OutputFile}
	}

	return zapConfig.Build()
}

// exitCodeFor maps error taxonomy to process exit codes: deterministic
// structural/financing/computational input problems exit 2, timeouts exit 3,
// anything unexpected exits 1.
func exitCodeFor(err error) int {
	var (
		timingErr     *timing.Error
		cycleErr      *depgraph.CircularDependencyError
		refErr        *depgraph.UnknownReferenceError
		missingErr    *cashflow.MissingFactError
		overdrawErr   *debt.OverDrawError
		overflowErr   *waterfall.OverflowError
		tierErr       *waterfall.TierListError
		validationErr *config.ValidationError
		timeoutErr    *engine.TimeoutError
	)
	switch {
	case errors.As(err, &timeoutErr):
		return exitTimeout
	case errors.As(err, &timingErr),
		errors.As(err, &cycleErr),
		errors.As(err, &refErr),
		errors.As(err, &missingErr),
		errors.As(err, &overdrawErr),
		errors.As(err, &overflowErr),
		errors.As(err, &tierErr),
		errors.As(err, &validationErr):
		return exitInputError
	default:
		return exitInternal
	}
}

func run() int {
	configLocation := flag.String("config", "project.yaml", "path to project snapshot file")
	outputFormatFlag := flag.String("output-format", "", "type of output override: pretty, csv")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	timeout := flag.Duration("timeout", engine.DefaultRunTimeout, "hard run timeout")
	flag.Parse()

	conf, err := config.LoadConfiguration(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		return exitInternal
	}

	logger, err := initializeLogger(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		return exitInternal
	}
	defer func() {
		_ = logger.Sync()
	}()

	outputFormat := conf.Output.Format
	if *outputFormatFlag != "" {
		outputFormat = *outputFormatFlag
	}
	if outputFormat == "" {
		outputFormat = "pretty"
	}
	if outputFormat != "pretty" && outputFormat != "csv" {
		logger.Error(fmt.Sprintf("invalid output format %s", outputFormat),
			zap.String("op", "main"),
		)
		return exitInputError
	}

	snapshot, err := conf.ToSnapshot()
	if err != nil {
		logger.Error("snapshot validation failed",
			zap.String("op", "main"),
			zap.Error(err),
		)
		return exitCodeFor(err)
	}

	runner := engine.NewRunner(logger, *timeout)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout+time.Second)
	defer cancel()

	result, err := runner.Recalculate(ctx, snapshot)
	if err != nil {
		logger.Error("calculation failed",
			zap.String("op", "main"),
			zap.Error(err),
		)
		return exitCodeFor(err)
	}

	switch outputFormat {
	case "pretty":
		output.PrettyFormat(result)
	case "csv":
		output.CsvFormat(result)
	}
	return exitOK
}

func main() {
	os.Exit(run())
}
