package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger  *zap.Logger
	once    sync.Once
	initErr error
)

// Config holds logger configuration
type Config struct {
	Level         zapcore.Level
	ConsoleOutput bool
	Console       io.Writer
	FileOutput    bool
	Filename      string
	MaxSize       int  // megabytes
	MaxAge        int  // days
	MaxBackups    int  // number of backups to keep
	Compress      bool // compress rotated files
	JSONFormat    bool // use JSON format for console output
}

const (
	DefaultFilename   = "logs/namira-pool.log"
	DefaultMaxSize    = 100 // megabytes
	DefaultMaxAge     = 30  // days
	DefaultMaxBackups = 10
	DefaultCompress   = true
)

// Option is a function that configures the logger
type Option func(*Config)

// ParseLevel maps a level name onto a zap level. Unknown names fall back to info.
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	case "panic":
		return zapcore.PanicLevel
	default:
		return zapcore.InfoLevel
	}
}

// WithLevel sets the logging level
func WithLevel(level string) Option {
	return func(c *Config) { c.Level = ParseLevel(level) }
}

// WithConsoleOutput enables/disables console output
func WithConsoleOutput(enabled bool) Option {
	return func(c *Config) { c.ConsoleOutput = enabled }
}

// WithConsoleWriter redirects console output, stdout by default
func WithConsoleWriter(w io.Writer) Option {
	return func(c *Config) { c.Console = w }
}

// WithFileOutput enables/disables file output
func WithFileOutput(enabled bool) Option {
	return func(c *Config) { c.FileOutput = enabled }
}

// WithFilename sets the log filename
func WithFilename(filename string) Option {
	return func(c *Config) { c.Filename = filename }
}

// WithJSONFormat enables JSON format for console output (serve mode)
func WithJSONFormat(enabled bool) Option {
	return func(c *Config) { c.JSONFormat = enabled }
}

// WithRotationConfig sets the log rotation configuration
func WithRotationConfig(maxSize, maxAge, maxBackups int, compress bool) Option {
	return func(c *Config) {
		c.MaxSize = maxSize
		c.MaxAge = maxAge
		c.MaxBackups = maxBackups
		c.Compress = compress
	}
}

func defaultConfig() *Config {
	return &Config{
		Level:         zapcore.InfoLevel,
		ConsoleOutput: true,
		Console:       os.Stdout,
		Filename:      DefaultFilename,
		MaxSize:       DefaultMaxSize,
		MaxAge:        DefaultMaxAge,
		MaxBackups:    DefaultMaxBackups,
		Compress:      DefaultCompress,
	}
}

// New builds a standalone logger. Unlike Init it does not touch the process-wide logger.
func New(opts ...Option) (*zap.Logger, error) {
	config := defaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	var cores []zapcore.Core

	if config.ConsoleOutput {
		cores = append(cores, zapcore.NewCore(
			consoleEncoder(config.JSONFormat),
			zapcore.AddSync(config.Console),
			config.Level,
		))
	}

	// Rotating file output
	if config.FileOutput {
		if err := os.MkdirAll(filepath.Dir(config.Filename), 0755); err != nil {
			return nil, fmt.Errorf("failed to create logs directory: %w", err)
		}

		cores = append(cores, zapcore.NewCore(
			fileEncoder(),
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   config.Filename,
				MaxSize:    config.MaxSize,
				MaxAge:     config.MaxAge,
				MaxBackups: config.MaxBackups,
				Compress:   config.Compress,
			}),
			config.Level,
		))
	}

	if len(cores) == 0 {
		return nil, fmt.Errorf("no output configured for logger")
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

func consoleEncoder(jsonFormat bool) zapcore.Encoder {
	if jsonFormat {
		jsonConfig := zap.NewProductionEncoderConfig()
		jsonConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		jsonConfig.StacktraceKey = ""
		return zapcore.NewJSONEncoder(jsonConfig)
	}

	consoleConfig := zap.NewDevelopmentEncoderConfig()
	consoleConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleConfig.EncodeCaller = zapcore.ShortCallerEncoder
	return zapcore.NewConsoleEncoder(consoleConfig)
}

func fileEncoder() zapcore.Encoder {
	return zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:      "ts",
		LevelKey:     "level",
		NameKey:      "logger",
		CallerKey:    "caller",
		MessageKey:   "msg",
		EncodeLevel:  zapcore.LowercaseLevelEncoder,
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	})
}

// Init initializes logger with default options
func Init(level string) (*zap.Logger, error) {
	return InitWithOptions(WithLevel(level))
}

// InitForCLI initializes logger for the run command with human-readable console output
func InitForCLI(level string) (*zap.Logger, error) {
	return InitWithOptions(
		WithLevel(level),
		WithConsoleOutput(true),
		WithJSONFormat(false),
	)
}

// InitForAPI initializes logger for the serve command with JSON console output
func InitForAPI(level string, enableFileLogging bool, opts ...Option) (*zap.Logger, error) {
	return InitWithOptions(append([]Option{
		WithLevel(level),
		WithConsoleOutput(true),
		WithJSONFormat(true),
		WithFileOutput(enableFileLogging),
	}, opts...)...)
}

// InitWithOptions installs the process-wide logger. Only the first call has any effect.
func InitWithOptions(opts ...Option) (*zap.Logger, error) {
	once.Do(func() {
		logger, initErr = New(opts...)
	})

	return logger, initErr
}

// Get returns the process-wide logger, installing an info-level one if nothing has yet.
func Get() *zap.Logger {
	if l, err := Init("info"); err == nil && l != nil {
		return l
	}
	return zap.NewNop()
}

// Sync flushes any buffered log entries
func Sync() error {
	if l, err := InitWithOptions(); err == nil && l != nil {
		return l.Sync()
	}
	return nil
}

func Fatal(msg string, fields ...zap.Field) { Get().Fatal(msg, fields...) }
