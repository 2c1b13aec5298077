package config

import "time"

// Config is the root configuration shared by lifetag-server and
// lifetag-retention.
type Config struct {
	Env string `yaml:"env" env:"LIFETAG_ENV" env-default:"dev"` // "dev" | "prod"

	HTTP      HTTPConfig      `yaml:"http"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	DB        DBConfig        `yaml:"db"`
	Audit     AuditConfig     `yaml:"audit"`
	Gate      GateConfig      `yaml:"gate"`
	Retention RetentionConfig `yaml:"retention"`
	Admin     AdminConfig     `yaml:"admin"`
	Log       LogConfig       `yaml:"log"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"             env:"LIFETAG_HTTP_ADDR"             env-default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"LIFETAG_HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
	// VerifyRatePerMinute limits password submissions per client IP.
	// 0 disables the limit.
	VerifyRatePerMinute int `yaml:"verify_rate_per_minute" env:"LIFETAG_VERIFY_RATE_PER_MINUTE" env-default:"20"`
}

type GRPCConfig struct {
	// HealthAddr is the gRPC health listener; empty disables it.
	HealthAddr string `yaml:"health_addr" env:"LIFETAG_GRPC_HEALTH_ADDR" env-default:":9090"`
}

// DBConfig is the device-local SQLite database holding grants, profiles
// and, for the sqlite audit backend, the audit log.
type DBConfig struct {
	Path string `yaml:"path" env:"LIFETAG_DB_PATH" env-default:"./data/lifetag.db"`
}

type AuditConfig struct {
	Backend     string `yaml:"backend"      env:"LIFETAG_AUDIT_BACKEND"      env-default:"sqlite"` // sqlite | postgres | memory
	PostgresDSN string `yaml:"postgres_dsn" env:"LIFETAG_AUDIT_POSTGRES_DSN"`
	// AccessorKey keys the BLAKE3 accessor hash.  Empty means unkeyed.
	AccessorKey string `yaml:"accessor_key" env:"LIFETAG_AUDIT_ACCESSOR_KEY"`
}

type GateConfig struct {
	AccessWindow time.Duration `yaml:"access_window" env:"LIFETAG_ACCESS_WINDOW" env-default:"15m"`
	MaxAttempts  int           `yaml:"max_attempts"  env:"LIFETAG_MAX_ATTEMPTS"  env-default:"3"`
	SessionTTL   time.Duration `yaml:"session_ttl"   env:"LIFETAG_SESSION_TTL"   env-default:"10m"`
	BcryptCost   int           `yaml:"bcrypt_cost"   env:"LIFETAG_BCRYPT_COST"   env-default:"10"`
}

type RetentionConfig struct {
	Days              int           `yaml:"days"                 env:"LIFETAG_RETENTION_DAYS"       env-default:"90"`
	MaxLogsPerProfile int           `yaml:"max_logs_per_profile" env:"LIFETAG_MAX_LOGS_PER_PROFILE" env-default:"1000"`
	BatchSize         int           `yaml:"batch_size"           env:"LIFETAG_RETENTION_BATCH_SIZE" env-default:"500"`
	Interval          time.Duration `yaml:"interval"             env:"LIFETAG_RETENTION_INTERVAL"   env-default:"6h"`
}

type AdminConfig struct {
	// TokenSecret signs admin bearer tokens.  Empty disables the admin API.
	TokenSecret string        `yaml:"token_secret" env:"LIFETAG_ADMIN_TOKEN_SECRET"`
	TokenTTL    time.Duration `yaml:"token_ttl"    env:"LIFETAG_ADMIN_TOKEN_TTL"    env-default:"1h"`
}

type LogConfig struct {
	Level  string `yaml:"level"  env:"LIFETAG_LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LIFETAG_LOG_FORMAT"` // json | text; empty picks by env
}

func (c *Config) IsProd() bool { return c.Env == "prod" }
