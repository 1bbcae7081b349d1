package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Log backends.
const (
	LogBackendSlog = "slog"
	LogBackendZap  = "zap"
)

// Config stores service settings.
type Config struct {
	Port      int
	DB        DB
	Log       Log
	Auth      Auth
	Dispatch  Dispatch
	Kafka     Kafka
	Notify    Notify
	RateLimit RateLimit
	Pprof     Pprof
}

// DB stores PostgreSQL connection settings.
type DB struct {
	Host string
	Port string
	User string
	Pass string
	Name string
}

// DSN builds a pgx connection string.
func (d DB) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		d.User, d.Pass, net.JoinHostPort(d.Host, d.Port), d.Name)
}

// Log stores logger settings.
type Log struct {
	Level   string
	Backend string
}

// Auth stores bearer token settings. An empty secret means identities come
// from a trusted upstream via X-User-ID.
type Auth struct {
	JWTSecret string
}

// Retry is an exponential backoff policy.
type Retry struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Dispatch stores matching and scheduling settings.
type Dispatch struct {
	CapacityLimit int
	Workers       int
	QueueSize     int
	RescanSpec    string
	JobTimeout    time.Duration
	Retry         Retry
}

// Kafka stores match queue settings. Kafka is used only when Brokers is set.
type Kafka struct {
	Brokers    []string
	MatchTopic string
	GroupID    string
}

// Enabled reports whether match jobs go through Kafka.
func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

// Notify stores realtime delivery settings.
type Notify struct {
	GRPCAddr           string
	Target             string
	Token              string
	SendTimeout        time.Duration
	BroadcastLocations bool
	Retry              Retry
}

// RateLimit stores token bucket settings.
type RateLimit struct {
	Enabled    bool
	Rate       float64
	Burst      int
	TTL        time.Duration
	MaxBuckets int
}

// Pprof stores debug server settings.
type Pprof struct {
	Enabled bool
	Addr    string
	User    string
	Pass    string
}

// Load reads configuration in order: .env (if present), then environment, then flags.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg := &Config{
		Port:      defaultPort,
		DB:        defaultDB,
		Log:       defaultLog,
		Dispatch:  defaultDispatch,
		Kafka:     defaultKafka,
		Notify:    defaultNotify,
		RateLimit: defaultRateLimit,
		Pprof:     defaultPprof,
	}

	r := envReader{}
	cfg.Port = r.integer("PORT", cfg.Port)

	cfg.DB.Host = r.str("POSTGRES_HOST", cfg.DB.Host)
	cfg.DB.Port = r.str("POSTGRES_PORT", cfg.DB.Port)
	cfg.DB.User = r.str("POSTGRES_USER", cfg.DB.User)
	cfg.DB.Pass = r.str("POSTGRES_PASSWORD", cfg.DB.Pass)
	cfg.DB.Name = r.str("POSTGRES_DB", cfg.DB.Name)

	cfg.Log.Level = r.str("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Backend = strings.ToLower(r.str("LOG_BACKEND", cfg.Log.Backend))

	cfg.Auth.JWTSecret = os.Getenv("AUTH_JWT_SECRET")

	cfg.Dispatch.CapacityLimit = r.integer("DISPATCH_CAPACITY_LIMIT", cfg.Dispatch.CapacityLimit)
	cfg.Dispatch.Workers = r.integer("DISPATCH_WORKERS", cfg.Dispatch.Workers)
	cfg.Dispatch.QueueSize = r.integer("DISPATCH_QUEUE_SIZE", cfg.Dispatch.QueueSize)
	if v, ok := os.LookupEnv("DISPATCH_RESCAN_SPEC"); ok {
		cfg.Dispatch.RescanSpec = strings.TrimSpace(v)
	}
	cfg.Dispatch.JobTimeout = r.duration("DISPATCH_JOB_TIMEOUT", cfg.Dispatch.JobTimeout)
	cfg.Dispatch.Retry.MaxAttempts = r.integer("DISPATCH_RETRY_MAX_ATTEMPTS", cfg.Dispatch.Retry.MaxAttempts)
	cfg.Dispatch.Retry.BaseDelay = r.duration("DISPATCH_RETRY_BASE_DELAY", cfg.Dispatch.Retry.BaseDelay)
	cfg.Dispatch.Retry.MaxDelay = r.duration("DISPATCH_RETRY_MAX_DELAY", cfg.Dispatch.Retry.MaxDelay)

	cfg.Kafka.Brokers = r.list("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.MatchTopic = r.str("KAFKA_MATCH_TOPIC", cfg.Kafka.MatchTopic)
	cfg.Kafka.GroupID = r.str("KAFKA_GROUP_ID", cfg.Kafka.GroupID)

	cfg.Notify.GRPCAddr = r.str("NOTIFY_GRPC_ADDR", cfg.Notify.GRPCAddr)
	cfg.Notify.Target = r.str("NOTIFY_TARGET", cfg.Notify.Target)
	cfg.Notify.Token = os.Getenv("NOTIFY_TOKEN")
	cfg.Notify.SendTimeout = r.duration("NOTIFY_SEND_TIMEOUT", cfg.Notify.SendTimeout)
	cfg.Notify.BroadcastLocations = r.boolean("NOTIFY_BROADCAST_LOCATIONS", cfg.Notify.BroadcastLocations)

	cfg.RateLimit.Enabled = r.boolean("RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.Rate = r.float("RATE_LIMIT_RATE", cfg.RateLimit.Rate)
	cfg.RateLimit.Burst = r.integer("RATE_LIMIT_BURST", cfg.RateLimit.Burst)
	cfg.RateLimit.TTL = r.duration("RATE_LIMIT_TTL", cfg.RateLimit.TTL)
	cfg.RateLimit.MaxBuckets = r.integer("RATE_LIMIT_MAX_BUCKETS", cfg.RateLimit.MaxBuckets)

	cfg.Pprof.Enabled = r.boolean("PPROF_ENABLED", cfg.Pprof.Enabled)
	cfg.Pprof.Addr = r.str("PPROF_ADDR", cfg.Pprof.Addr)
	cfg.Pprof.User = os.Getenv("PPROF_USER")
	cfg.Pprof.Pass = os.Getenv("PPROF_PASS")

	if err := r.err(); err != nil {
		return nil, err
	}

	fs := pflag.CommandLine
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level (debug, info, warn, error)")
	fs.IntVar(&cfg.Dispatch.CapacityLimit, "capacity-limit", cfg.Dispatch.CapacityLimit, "max active deliveries per courier")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if p, err := strconv.Atoi(c.DB.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("invalid POSTGRES_PORT: %q", c.DB.Port)
	}
	if c.Log.Backend != LogBackendSlog && c.Log.Backend != LogBackendZap {
		return fmt.Errorf("invalid LOG_BACKEND: %q", c.Log.Backend)
	}
	if c.Dispatch.CapacityLimit < 1 {
		return fmt.Errorf("invalid capacity limit: %d", c.Dispatch.CapacityLimit)
	}
	if c.Dispatch.Workers < 1 || c.Dispatch.QueueSize < 1 {
		return fmt.Errorf("dispatch workers and queue size must be positive")
	}
	if c.Dispatch.Retry.MaxAttempts < 1 || c.Notify.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be positive")
	}
	if c.Notify.SendTimeout <= 0 {
		return fmt.Errorf("invalid NOTIFY_SEND_TIMEOUT: %s", c.Notify.SendTimeout)
	}
	if c.Kafka.Enabled() && (c.Kafka.MatchTopic == "" || c.Kafka.GroupID == "") {
		return fmt.Errorf("kafka topic and group id are required when brokers are set")
	}
	return nil
}

// envReader collects parse errors so Load reports them together.
type envReader struct {
	errs []error
}

func (r *envReader) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *envReader) integer(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return n
}

func (r *envReader) float(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return f
}

func (r *envReader) boolean(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return b
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return d
}

func (r *envReader) list(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (r *envReader) err() error {
	return errors.Join(r.errs...)
}
