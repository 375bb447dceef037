package config

// EnvPrefix is passed to envconfig; individual fields carry explicit names so
// the prefix only matters for variables without a tag.
const EnvPrefix = "ECORIDE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags (tests, error text).
const (
	EnvAppEnv                 = "ECORIDE_APP_ENV"
	EnvPort                   = "ECORIDE_APP_PORT"
	EnvDBDSN                  = "ECORIDE_DB_DSN"
	EnvDBHost                 = "ECORIDE_DB_HOST"
	EnvDBUser                 = "ECORIDE_DB_USER"
	EnvDBName                 = "ECORIDE_DB_NAME"
	EnvRedisURL               = "ECORIDE_REDIS_URL"
	EnvJWTSecret              = "ECORIDE_JWT_SECRET"
	EnvJWTIssuer              = "ECORIDE_JWT_ISSUER"
	EnvJWTExpMins             = "ECORIDE_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "ECORIDE_REFRESH_TOKEN_TTL_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
