package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/NamiraNet/namira-pool/internal/workerpool"
)

// Config holds the base configuration
type Config struct {
	Pool     PoolConfig
	Workload WorkloadConfig
	Server   ServerConfig
	Redis    RedisConfig
	App      AppConfig
	Telegram TelegramConfig
}

type PoolConfig struct {
	QueueCount      int
	ThreadsPerQueue int
	QueueCapacity   int
	RejectPolicy    string
	RetryAttempts   int
	RetryBackoff    time.Duration
}

type WorkloadConfig struct {
	Tasks      int
	MinSleep   time.Duration
	MaxSleep   time.Duration
	SubmitRate float64 // submissions per second, 0 means unlimited
	Seed       int64   // 0 means seeded from the clock
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	ReportTTL time.Duration
}

type AppConfig struct {
	LogLevel      string
	LogFile       bool
	LogMaxSize    int // megabytes
	LogMaxAge     int // days
	LogMaxBackups int
	LogCompress   bool
	OutputFormat  string
	EncryptionKey string
}

type TelegramConfig struct {
	BotToken        string
	Channel         string
	Template        string
	ProxyURL        string
	SendingInterval time.Duration
}

// Load loads configuration from environment variables with defaults value
func Load() *Config {
	return &Config{
		Pool: PoolConfig{
			QueueCount:      getEnvInt("POOL_QUEUE_COUNT", 3),
			ThreadsPerQueue: getEnvInt("POOL_THREADS_PER_QUEUE", 2),
			QueueCapacity:   getEnvInt("POOL_QUEUE_CAPACITY", 10),
			RejectPolicy:    getEnv("POOL_REJECT_POLICY", string(workerpool.RejectDrop)),
			RetryAttempts:   getEnvInt("POOL_RETRY_ATTEMPTS", 3),
			RetryBackoff:    getEnvDuration("POOL_RETRY_BACKOFF", 500*time.Millisecond),
		},
		Workload: WorkloadConfig{
			Tasks:      getEnvInt("WORKLOAD_TASKS", 100),
			MinSleep:   getEnvDuration("WORKLOAD_MIN_SLEEP", 6*time.Second),
			MaxSleep:   getEnvDuration("WORKLOAD_MAX_SLEEP", 12*time.Second),
			SubmitRate: getEnvFloat("WORKLOAD_SUBMIT_RATE", 0),
			Seed:       getEnvInt64("WORKLOAD_SEED", 0),
		},
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", ""),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvInt("REDIS_DB", 0),
			ReportTTL: getEnvDuration("REDIS_REPORT_TTL", 24*time.Hour),
		},
		App: AppConfig{
			LogLevel:      getEnv("LOG_LEVEL", "info"),
			LogFile:       getEnvBool("LOG_FILE", false),
			LogMaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			LogMaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 10),
			LogCompress:   getEnvBool("LOG_COMPRESS", true),
			OutputFormat:  getEnv("OUTPUT_FORMAT", "table"),
			EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		},
		Telegram: TelegramConfig{
			BotToken:        getEnv("TELEGRAM_BOT_TOKEN", ""),
			Channel:         getEnv("TELEGRAM_CHANNEL", ""),
			Template:        getEnv("TELEGRAM_TEMPLATE", ""),
			ProxyURL:        getEnv("TELEGRAM_PROXY_URL", ""),
			SendingInterval: getEnvDuration("TELEGRAM_SENDING_INTERVAL", 10*time.Second),
		},
	}
}

// WorkerPoolConfig converts the pool section into a workerpool.Config.
func (c *Config) WorkerPoolConfig() (workerpool.Config, error) {
	policy, err := workerpool.ParseRejectPolicy(c.Pool.RejectPolicy)
	if err != nil {
		return workerpool.Config{}, err
	}
	return workerpool.Config{
		QueueCount:      c.Pool.QueueCount,
		ThreadsPerQueue: c.Pool.ThreadsPerQueue,
		QueueCapacity:   c.Pool.QueueCapacity,
		RejectPolicy:    policy,
		RetryAttempts:   c.Pool.RetryAttempts,
		RetryBackoff:    c.Pool.RetryBackoff,
	}, nil
}

// Validate reports every invalid value at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Pool.QueueCount < 1 {
		errs = append(errs, fmt.Errorf("POOL_QUEUE_COUNT must be positive, got %d", c.Pool.QueueCount))
	}
	if c.Pool.ThreadsPerQueue < 1 {
		errs = append(errs, fmt.Errorf("POOL_THREADS_PER_QUEUE must be positive, got %d", c.Pool.ThreadsPerQueue))
	}
	if c.Pool.QueueCapacity < 1 {
		errs = append(errs, fmt.Errorf("POOL_QUEUE_CAPACITY must be positive, got %d", c.Pool.QueueCapacity))
	}
	if _, err := workerpool.ParseRejectPolicy(c.Pool.RejectPolicy); err != nil {
		errs = append(errs, fmt.Errorf("POOL_REJECT_POLICY: %w", err))
	}
	if c.Pool.RetryAttempts < 0 {
		errs = append(errs, fmt.Errorf("POOL_RETRY_ATTEMPTS must not be negative"))
	}
	if c.Workload.Tasks < 0 {
		errs = append(errs, fmt.Errorf("WORKLOAD_TASKS must not be negative"))
	}
	if c.Workload.MinSleep < 0 || c.Workload.MaxSleep < c.Workload.MinSleep {
		errs = append(errs, fmt.Errorf("WORKLOAD_MIN_SLEEP/WORKLOAD_MAX_SLEEP: invalid range [%v, %v)",
			c.Workload.MinSleep, c.Workload.MaxSleep))
	}
	if c.Workload.SubmitRate < 0 {
		errs = append(errs, fmt.Errorf("WORKLOAD_SUBMIT_RATE must not be negative"))
	}
	if key := len(c.App.EncryptionKey); key != 0 && key != 16 && key != 24 && key != 32 {
		errs = append(errs, fmt.Errorf("ENCRYPTION_KEY must be 16, 24 or 32 bytes, got %d", key))
	}

	return errors.Join(errs...)
}

// Helper functions to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
