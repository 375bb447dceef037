package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Marketplace  MarketplaceConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Audit        AuditConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ECORIDE_APP_ENV" required:"true"`
	Port         string `envconfig:"ECORIDE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ECORIDE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ECORIDE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ECORIDE_DB_DSN"`
	Driver string `envconfig:"ECORIDE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ECORIDE_DB_HOST"`
	LegacyPort     int    `envconfig:"ECORIDE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ECORIDE_DB_USER"`
	LegacyPassword string `envconfig:"ECORIDE_DB_PASSWORD"`
	LegacyName     string `envconfig:"ECORIDE_DB_NAME"`
	LegacySSLMode  string `envconfig:"ECORIDE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ECORIDE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ECORIDE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ECORIDE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ECORIDE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ECORIDE_REDIS_URL"`
	Address      string        `envconfig:"ECORIDE_REDIS_ADDR"`
	Password     string        `envconfig:"ECORIDE_REDIS_PASSWORD"`
	DB           int           `envconfig:"ECORIDE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ECORIDE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ECORIDE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ECORIDE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ECORIDE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ECORIDE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"ECORIDE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"ECORIDE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"ECORIDE_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"ECORIDE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"ECORIDE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"ECORIDE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"ECORIDE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"ECORIDE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"ECORIDE_ARGON_KEY_LEN" default:"32"`
}

// MarketplaceConfig carries the credit economy knobs.
type MarketplaceConfig struct {
	CommissionCredits int `envconfig:"ECORIDE_COMMISSION_CREDITS" default:"2"`
	SignupCredits     int `envconfig:"ECORIDE_SIGNUP_CREDITS" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ECORIDE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ECORIDE_GCP_PROJECT_ID"`
	ApplicationCredentials string `envconfig:"ECORIDE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	AuditTopic        string `envconfig:"ECORIDE_PUBSUB_AUDIT_TOPIC" default:"ecoride-audit-events"`
	AuditSubscription string `envconfig:"ECORIDE_PUBSUB_AUDIT_SUBSCRIPTION"`
}

// AuditConfig tunes the audit outbox publisher worker.
type AuditConfig struct {
	BatchSize      int `envconfig:"ECORIDE_AUDIT_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ECORIDE_AUDIT_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ECORIDE_AUDIT_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
