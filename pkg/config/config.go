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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	GCS          GCSConfig
	Storage      StorageConfig
	PubSub       PubSubConfig
	Cleanup      CleanupConfig
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
	Env          string `envconfig:"FABRICA_APP_ENV" required:"true"`
	Port         string `envconfig:"FABRICA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FABRICA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FABRICA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FABRICA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FABRICA_DB_DSN"`
	Driver string `envconfig:"FABRICA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FABRICA_DB_HOST"`
	LegacyPort     int    `envconfig:"FABRICA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FABRICA_DB_USER"`
	LegacyPassword string `envconfig:"FABRICA_DB_PASSWORD"`
	LegacyName     string `envconfig:"FABRICA_DB_NAME"`
	LegacySSLMode  string `envconfig:"FABRICA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FABRICA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FABRICA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FABRICA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FABRICA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FABRICA_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"FABRICA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FABRICA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FABRICA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FABRICA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FABRICA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FABRICA_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FABRICA_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"FABRICA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FABRICA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"FABRICA_GCS_BUCKET_NAME" required:"true"`
}

// StorageConfig shapes the object key namespaces used for product photos.
// Keys under TempPrefix belong to uploads that are not yet attached to a
// persisted entity.
type StorageConfig struct {
	TempPrefix   string `envconfig:"FABRICA_STORAGE_TEMP_PREFIX" default:"uploads/tmp/"`
	EntityPrefix string `envconfig:"FABRICA_STORAGE_ENTITY_PREFIX" default:"entities/"`
}

type PubSubConfig struct {
	CleanupTopic        string `envconfig:"FABRICA_PUBSUB_CLEANUP_TOPIC" required:"true"`
	CleanupSubscription string `envconfig:"FABRICA_PUBSUB_CLEANUP_SUBSCRIPTION" required:"true"`
}

type CleanupConfig struct {
	QueueSize      int           `envconfig:"FABRICA_CLEANUP_QUEUE_SIZE" default:"256"`
	PublishTimeout time.Duration `envconfig:"FABRICA_CLEANUP_PUBLISH_TIMEOUT" default:"10s"`
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
