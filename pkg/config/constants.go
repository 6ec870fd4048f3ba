package config

// EnvPrefix is applied by envconfig on top of the explicit envconfig tags.
const EnvPrefix = "FABRICA"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags (tests, error messages).
const (
	EnvAppEnv  = "FABRICA_APP_ENV"
	EnvPort    = "FABRICA_APP_PORT"
	EnvDBDSN   = "FABRICA_DB_DSN"
	EnvDBHost  = "FABRICA_DB_HOST"
	EnvDBUser  = "FABRICA_DB_USER"
	EnvDBName  = "FABRICA_DB_NAME"
	EnvRedisURL = "FABRICA_REDIS_URL"

	EnvGCPProjectID       = "FABRICA_GCP_PROJECT_ID"
	EnvGCSBucket          = "FABRICA_GCS_BUCKET_NAME"
	EnvStorageTempPrefix  = "FABRICA_STORAGE_TEMP_PREFIX"
	EnvCleanupTopic       = "FABRICA_PUBSUB_CLEANUP_TOPIC"
	EnvCleanupSubscription = "FABRICA_PUBSUB_CLEANUP_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
