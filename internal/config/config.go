package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// maxDefaultWorkers caps the parsing pool when no explicit worker count is configured.
const maxDefaultWorkers = 8

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	JWT        JWTConfig
	S3         S3Config
	Log        LogConfig
	Pipeline   PipelineConfig
	Enrichment EnrichmentConfig
	Rates      RatesConfig
	Email      EmailConfig
	Tracing    TracingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
	// AllowedOrigins lists the browser origins accepted by CORS.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	Name           string `mapstructure:"name"`
	SSLMode        string `mapstructure:"sslmode"`
	MaxOpen        int    `mapstructure:"max_open"`
	MaxIdle        int    `mapstructure:"max_idle"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// JWTConfig holds settings for validating tokens issued by the identity provider.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// S3Config holds AWS S3 settings for s3:// import sources and the import archive.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	ArchiveBucket string `mapstructure:"archive_bucket"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PipelineConfig tunes the ingestion pipeline.
type PipelineConfig struct {
	Workers        int           `mapstructure:"workers"`
	BatchLines     int           `mapstructure:"batch_lines"`
	QueueFactor    int           `mapstructure:"queue_factor"`
	FlushThreshold int           `mapstructure:"flush_threshold"`
	FlushInterval  time.Duration `mapstructure:"flush_interval"`
	InsertChunk    int           `mapstructure:"insert_chunk"`
	ParseCacheSize int           `mapstructure:"parse_cache_size"`
	// ImportRoot confines local paths accepted over HTTP. Empty disables local paths on the server.
	ImportRoot     string        `mapstructure:"import_root"`
}

// EffectiveWorkers returns the configured worker count, or min(GOMAXPROCS, 8) when unset.
func (p *PipelineConfig) EffectiveWorkers() int {
	if p.Workers > 0 {
		return p.Workers
	}
	n := runtime.GOMAXPROCS(0)
	if n > maxDefaultWorkers {
		n = maxDefaultWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}

// EnrichmentConfig holds supplier registry lookup settings.
type EnrichmentConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Concurrency    int           `mapstructure:"concurrency"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
	Burst          int           `mapstructure:"burst"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	WriteBatchSize int           `mapstructure:"write_batch_size"`
}

// RatesConfig holds the candidate-set rules for rate resolution.
type RatesConfig struct {
	HomeState     string   `mapstructure:"home_state"`
	CFOPWhitelist []string `mapstructure:"cfop_whitelist"`
	PendingLimit  int      `mapstructure:"pending_limit"`
}

// EmailConfig holds pending-rate notification settings.
type EmailConfig struct {
	Provider    string   `mapstructure:"provider"`
	Region      string   `mapstructure:"region"`
	FromAddress string   `mapstructure:"from_address"`
	FromName    string   `mapstructure:"from_name"`
	Recipients  []string `mapstructure:"recipients"`
	FrontendURL string   `mapstructure:"frontend_url"`
}

// TracingConfig holds OpenTelemetry exporter settings. An empty endpoint disables export.
type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

// DefaultCFOPWhitelist lists the purchase CFOPs whose lines receive a resolved rate.
var DefaultCFOPWhitelist = []string{
	"1101", "1102", "1116", "1117", "1401", "1403", "1652",
	"2101", "2102", "2116", "2117", "2401", "2403", "2652",
}

// Load reads configuration from environment variables with the SPEDFLOW_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SPEDFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "10m")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "spedflow")
	v.SetDefault("db.password", "spedflow_secret")
	v.SetDefault("db.name", "spedflow_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)
	v.SetDefault("db.migrations_path", "file://db/migrations")

	// JWT defaults
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.issuer", "spedflow")

	// S3 defaults
	v.SetDefault("s3.region", "sa-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.archive_bucket", "")

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// Pipeline defaults
	v.SetDefault("pipeline.workers", 0)
	v.SetDefault("pipeline.batch_lines", 1000)
	v.SetDefault("pipeline.queue_factor", 2)
	v.SetDefault("pipeline.flush_threshold", 20000)
	v.SetDefault("pipeline.flush_interval", "2s")
	v.SetDefault("pipeline.insert_chunk", 500)
	v.SetDefault("pipeline.parse_cache_size", 5000)
	v.SetDefault("pipeline.import_root", "")

	// Enrichment defaults
	v.SetDefault("enrichment.base_url", "https://brasilapi.com.br/api")
	v.SetDefault("enrichment.concurrency", 50)
	v.SetDefault("enrichment.timeout", "10s")
	v.SetDefault("enrichment.rate_per_second", 20.0)
	v.SetDefault("enrichment.burst", 50)
	v.SetDefault("enrichment.cache_ttl", "1h")
	v.SetDefault("enrichment.write_batch_size", 200)

	// Rates defaults
	v.SetDefault("rates.home_state", "CE")
	v.SetDefault("rates.cfop_whitelist", strings.Join(DefaultCFOPWhitelist, ","))
	v.SetDefault("rates.pending_limit", 500)

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "sa-east-1")
	v.SetDefault("email.from_address", "noreply@spedflow.local")
	v.SetDefault("email.from_name", "SPEDFLOW")
	v.SetDefault("email.recipients", "")
	v.SetDefault("email.frontend_url", "http://localhost:3000")

	// Tracing defaults
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "spedflow")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                 "SPEDFLOW_SERVER_PORT",
		"server.read_timeout":         "SPEDFLOW_SERVER_READ_TIMEOUT",
		"server.write_timeout":        "SPEDFLOW_SERVER_WRITE_TIMEOUT",
		"server.environment":          "SPEDFLOW_SERVER_ENVIRONMENT",
		"server.allowed_origins":      "SPEDFLOW_SERVER_ALLOWED_ORIGINS",
		"db.host":                     "SPEDFLOW_DB_HOST",
		"db.port":                     "SPEDFLOW_DB_PORT",
		"db.user":                     "SPEDFLOW_DB_USER",
		"db.password":                 "SPEDFLOW_DB_PASSWORD",
		"db.name":                     "SPEDFLOW_DB_NAME",
		"db.sslmode":                  "SPEDFLOW_DB_SSLMODE",
		"db.max_open":                 "SPEDFLOW_DB_MAX_OPEN",
		"db.max_idle":                 "SPEDFLOW_DB_MAX_IDLE",
		"db.migrations_path":          "SPEDFLOW_DB_MIGRATIONS_PATH",
		"jwt.secret":                  "SPEDFLOW_JWT_SECRET",
		"jwt.issuer":                  "SPEDFLOW_JWT_ISSUER",
		"s3.region":                   "SPEDFLOW_S3_REGION",
		"s3.endpoint":                 "SPEDFLOW_S3_ENDPOINT",
		"s3.access_key":               "SPEDFLOW_S3_ACCESS_KEY",
		"s3.secret_key":               "SPEDFLOW_S3_SECRET_KEY",
		"s3.archive_bucket":           "SPEDFLOW_S3_ARCHIVE_BUCKET",
		"log.level":                   "SPEDFLOW_LOG_LEVEL",
		"log.format":                  "SPEDFLOW_LOG_FORMAT",
		"pipeline.workers":            "SPEDFLOW_PIPELINE_WORKERS",
		"pipeline.batch_lines":        "SPEDFLOW_PIPELINE_BATCH_LINES",
		"pipeline.queue_factor":       "SPEDFLOW_PIPELINE_QUEUE_FACTOR",
		"pipeline.flush_threshold":    "SPEDFLOW_PIPELINE_FLUSH_THRESHOLD",
		"pipeline.flush_interval":     "SPEDFLOW_PIPELINE_FLUSH_INTERVAL",
		"pipeline.insert_chunk":       "SPEDFLOW_PIPELINE_INSERT_CHUNK",
		"pipeline.parse_cache_size":   "SPEDFLOW_PIPELINE_PARSE_CACHE_SIZE",
		"pipeline.import_root":        "SPEDFLOW_PIPELINE_IMPORT_ROOT",
		"enrichment.base_url":         "SPEDFLOW_ENRICHMENT_BASE_URL",
		"enrichment.concurrency":      "SPEDFLOW_ENRICHMENT_CONCURRENCY",
		"enrichment.timeout":          "SPEDFLOW_ENRICHMENT_TIMEOUT",
		"enrichment.rate_per_second":  "SPEDFLOW_ENRICHMENT_RATE_PER_SECOND",
		"enrichment.burst":            "SPEDFLOW_ENRICHMENT_BURST",
		"enrichment.cache_ttl":        "SPEDFLOW_ENRICHMENT_CACHE_TTL",
		"enrichment.write_batch_size": "SPEDFLOW_ENRICHMENT_WRITE_BATCH_SIZE",
		"rates.home_state":            "SPEDFLOW_RATES_HOME_STATE",
		"rates.cfop_whitelist":        "SPEDFLOW_RATES_CFOP_WHITELIST",
		"rates.pending_limit":         "SPEDFLOW_RATES_PENDING_LIMIT",
		"email.provider":              "SPEDFLOW_EMAIL_PROVIDER",
		"email.region":                "SPEDFLOW_EMAIL_REGION",
		"email.from_address":          "SPEDFLOW_EMAIL_FROM_ADDRESS",
		"email.from_name":             "SPEDFLOW_EMAIL_FROM_NAME",
		"email.recipients":            "SPEDFLOW_EMAIL_RECIPIENTS",
		"email.frontend_url":          "SPEDFLOW_EMAIL_FRONTEND_URL",
		"tracing.endpoint":            "SPEDFLOW_TRACING_ENDPOINT",
		"tracing.service_name":        "SPEDFLOW_TRACING_SERVICE_NAME",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if SPEDFLOW_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("SPEDFLOW_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),

		AllowedOrigins: splitList(v.GetString("server.allowed_origins")),
	}
	cfg.DB = DBConfig{
		Host:           v.GetString("db.host"),
		Port:           v.GetInt("db.port"),
		User:           v.GetString("db.user"),
		Password:       v.GetString("db.password"),
		Name:           v.GetString("db.name"),
		SSLMode:        v.GetString("db.sslmode"),
		MaxOpen:        v.GetInt("db.max_open"),
		MaxIdle:        v.GetInt("db.max_idle"),
		MigrationsPath: v.GetString("db.migrations_path"),
	}
	cfg.JWT = JWTConfig{
		Secret: v.GetString("jwt.secret"),
		Issuer: v.GetString("jwt.issuer"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		ArchiveBucket: v.GetString("s3.archive_bucket"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.Pipeline = PipelineConfig{
		Workers:        v.GetInt("pipeline.workers"),
		BatchLines:     v.GetInt("pipeline.batch_lines"),
		QueueFactor:    v.GetInt("pipeline.queue_factor"),
		FlushThreshold: v.GetInt("pipeline.flush_threshold"),
		FlushInterval:  v.GetDuration("pipeline.flush_interval"),
		InsertChunk:    v.GetInt("pipeline.insert_chunk"),
		ParseCacheSize: v.GetInt("pipeline.parse_cache_size"),
		ImportRoot:     v.GetString("pipeline.import_root"),
	}
	cfg.Enrichment = EnrichmentConfig{
		BaseURL:        v.GetString("enrichment.base_url"),
		Concurrency:    v.GetInt("enrichment.concurrency"),
		Timeout:        v.GetDuration("enrichment.timeout"),
		RatePerSecond:  v.GetFloat64("enrichment.rate_per_second"),
		Burst:          v.GetInt("enrichment.burst"),
		CacheTTL:       v.GetDuration("enrichment.cache_ttl"),
		WriteBatchSize: v.GetInt("enrichment.write_batch_size"),
	}
	cfg.Rates = RatesConfig{
		HomeState:     strings.ToUpper(strings.TrimSpace(v.GetString("rates.home_state"))),
		CFOPWhitelist: splitList(v.GetString("rates.cfop_whitelist")),
		PendingLimit:  v.GetInt("rates.pending_limit"),
	}
	cfg.Email = EmailConfig{
		Provider:    v.GetString("email.provider"),
		Region:      v.GetString("email.region"),
		FromAddress: v.GetString("email.from_address"),
		FromName:    v.GetString("email.from_name"),
		Recipients:  splitList(v.GetString("email.recipients")),
		FrontendURL: v.GetString("email.frontend_url"),
	}
	cfg.Tracing = TracingConfig{
		Endpoint:    v.GetString("tracing.endpoint"),
		ServiceName: v.GetString("tracing.service_name"),
	}

	return cfg, nil
}

// splitList parses a comma-separated string, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
