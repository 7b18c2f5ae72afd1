package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string

	JWTSecret string
	JWTIssuer string

	BlobDriver     string
	BlobFSRoot     string
	BlobPublicURL  string
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3PathStyle    bool
	MaxUploadBytes int64

	AuditSink     string
	AuditMongoURI string
	AuditMongoDB  string

	StatsInterval time.Duration

	LogLevel    string
	LogFormat   string
	CORSOrigins []string
}

const (
	defaultPort          = 3318
	defaultMaxUpload     = "10MB"
	defaultStatsInterval = 10 * time.Second
)

// ParseFlags validates flags and fills the rest from the environment
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var maxUpload, statsInterval string

	fs := flag.NewFlagSet("municipal-results", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite, postgres or pgx)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", "", "JWT HMAC secret (prefer env)")

	fs.StringVar(&cfg.BlobDriver, "blob", "", "Blob driver (memory, fs or s3)")
	fs.StringVar(&maxUpload, "max-upload", "", "Maximum upload size, e.g. 10MB")
	fs.StringVar(&statsInterval, "stats-interval", "", "Live stats polling interval, e.g. 10s")
	fs.StringVar(&cfg.AuditSink, "audit", "", "Audit sink (log, sql or mongo)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = defaultPort
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	cfg.DatabaseType = fallback(cfg.DatabaseType, "DATABASE_TYPE", "sqlite")
	switch cfg.DatabaseType {
	case "sqlite", "postgres", "pgx":
	default:
		return Config{}, fmt.Errorf("invalid DATABASE_TYPE %q", cfg.DatabaseType)
	}

	// Secrets - MUST be provided
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = os.Getenv("JWT_SECRET")
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET required")
	}
	cfg.JWTIssuer = os.Getenv("JWT_ISSUER")

	// Blob storage
	cfg.BlobDriver = fallback(cfg.BlobDriver, "BLOB_DRIVER", "fs")
	cfg.BlobFSRoot = fallback("", "BLOB_FS_ROOT", "./uploads")
	cfg.BlobPublicURL = strings.TrimRight(fallback("", "BLOB_PUBLIC_URL", "http://localhost:"+strconv.Itoa(cfg.Port)+"/uploads"), "/")
	cfg.S3Bucket = os.Getenv("BLOB_S3_BUCKET")
	cfg.S3Region = fallback("", "BLOB_S3_REGION", "us-east-1")
	cfg.S3Endpoint = os.Getenv("BLOB_S3_ENDPOINT")
	cfg.S3PathStyle = strings.EqualFold(os.Getenv("BLOB_S3_PATH_STYLE"), "true")
	switch cfg.BlobDriver {
	case "memory", "fs":
	case "s3":
		if cfg.S3Bucket == "" {
			return Config{}, errors.New("BLOB_S3_BUCKET required for s3 blob driver")
		}
	default:
		return Config{}, fmt.Errorf("invalid BLOB_DRIVER %q", cfg.BlobDriver)
	}

	size, err := humanize.ParseBytes(fallback(maxUpload, "MAX_UPLOAD_SIZE", defaultMaxUpload))
	if err != nil || size == 0 {
		return Config{}, errors.New("invalid MAX_UPLOAD_SIZE")
	}
	cfg.MaxUploadBytes = int64(size)

	// Audit sink
	cfg.AuditSink = fallback(cfg.AuditSink, "AUDIT_SINK", "sql")
	cfg.AuditMongoURI = os.Getenv("AUDIT_MONGO_URI")
	cfg.AuditMongoDB = fallback("", "AUDIT_MONGO_DB", "municipal_results")
	switch cfg.AuditSink {
	case "log", "sql":
	case "mongo":
		if cfg.AuditMongoURI == "" {
			return Config{}, errors.New("AUDIT_MONGO_URI required for mongo audit sink")
		}
	default:
		return Config{}, fmt.Errorf("invalid AUDIT_SINK %q", cfg.AuditSink)
	}

	cfg.StatsInterval = defaultStatsInterval
	if v := fallback(statsInterval, "STATS_STREAM_INTERVAL", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, errors.New("invalid STATS_STREAM_INTERVAL")
		}
		cfg.StatsInterval = d
	}

	cfg.LogLevel = fallback("", "LOG_LEVEL", "info")
	cfg.LogFormat = fallback("", "LOG_FORMAT", "text")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
			}
		}
	}

	return cfg, nil
}

// fallback returns flagValue, else the env variable, else def
func fallback(flagValue, env, def string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return def
}
