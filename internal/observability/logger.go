package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// CLILogger is used by the benchmark commands.
	CLILogger *zap.Logger

	// ServerLogger is used by the mock upstream server.
	ServerLogger *zap.Logger
)

// LogFileName returns the per-run log file name, gatebench_YYYYMMDD_HHMMSS.log.
func LogFileName(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_%s.log", prefix, t.Format("20060102_150405"))
}

// NewCLILogger builds a logger that writes human-readable lines to stderr and,
// when logDir is not empty, JSON lines to a timestamped file in logDir. The
// returned path is empty when no file is written.
func NewCLILogger(serviceName, level, logDir string, now time.Time) (*zap.Logger, string, error) {
	lvl := zap.NewAtomicLevelAt(ParseLevel(level))

	consoleConfig := zap.NewDevelopmentEncoderConfig()
	consoleConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleConfig),
		zapcore.Lock(os.Stderr),
		lvl,
	)

	cores := []zapcore.Core{consoleCore}
	var path string
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, "", fmt.Errorf("create log directory: %w", err)
		}
		path = filepath.Join(logDir, LogFileName(serviceName, now))
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, "", fmt.Errorf("open log file: %w", err)
		}
		fileConfig := zap.NewProductionEncoderConfig()
		fileConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(fileConfig),
			zapcore.AddSync(file),
			lvl,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...)).With(zap.String("service", serviceName))
	return logger, path, nil
}

// InitCLILogger initializes CLILogger. verbose forces debug level. Failure to
// create the logger is fatal.
func InitCLILogger(serviceName, level, logDir string, verbose bool) string {
	if verbose {
		level = "debug"
	}
	logger, path, err := NewCLILogger(serviceName, level, logDir, time.Now())
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize CLI logger", err)
	}
	CLILogger = logger
	return path
}

// InitServerLogger initializes ServerLogger with JSON output on stderr.
func InitServerLogger(serviceName string, logLevel string) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(ParseLevel(logLevel))
	config.OutputPaths = []string{"stderr"}
	config.Sampling = nil
	config.InitialFields = map[string]any{"service": serviceName}

	logger, err := config.Build()
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize server logger", err)
	}
	ServerLogger = logger
}

// ParseLevel converts a level name to a zap level. Unknown names map to info.
func ParseLevel(levelStr string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// exitWithCodeStderr exits with a semantic exit code, writing to stderr.
// This is a local helper for logger initialization failures before CLI logger is available.
func exitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		} else {
			fmt.Fprintf(os.Stderr, "FATAL: %s (exit code: %d)\n", msg, exitCode)
		}
		os.Exit(int(exitCode))
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "FATAL: %s\n", msg)
	}
	fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)

	os.Exit(info.Code)
}
