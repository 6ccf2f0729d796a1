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
	Moderation   ModerationConfig
	Arweave      ArweaveConfig
	Uploader     UploaderConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"WANDERN_APP_ENV" required:"true"`
	Port         string `envconfig:"WANDERN_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"WANDERN_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"WANDERN_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"WANDERN_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"WANDERN_DB_DSN"`
	Driver string `envconfig:"WANDERN_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"WANDERN_DB_HOST"`
	LegacyPort     int    `envconfig:"WANDERN_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"WANDERN_DB_USER"`
	LegacyPassword string `envconfig:"WANDERN_DB_PASSWORD"`
	LegacyName     string `envconfig:"WANDERN_DB_NAME"`
	LegacySSLMode  string `envconfig:"WANDERN_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"WANDERN_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WANDERN_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WANDERN_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WANDERN_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"WANDERN_REDIS_URL"`
	Address      string        `envconfig:"WANDERN_REDIS_ADDR"`
	Password     string        `envconfig:"WANDERN_REDIS_PASSWORD"`
	DB           int           `envconfig:"WANDERN_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WANDERN_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WANDERN_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WANDERN_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WANDERN_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WANDERN_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Configured reports whether a Redis endpoint has been provided at all. The
// uploader only needs Redis when the run lock is enabled.
func (r RedisConfig) Configured() bool {
	return r.URL != "" || r.Address != ""
}

type ModerationConfig struct {
	AgentURL string        `envconfig:"WANDERN_MODERATION_AGENT_URL" required:"true"`
	Timeout  time.Duration `envconfig:"WANDERN_MODERATION_TIMEOUT" default:"60s"`
}

type ArweaveConfig struct {
	NodeURL   string        `envconfig:"WANDERN_ARWEAVE_NODE_URL" default:"https://node1.irys.xyz"`
	WalletKey string        `envconfig:"WANDERN_ARWEAVE_WALLET_KEY"`
	Timeout   time.Duration `envconfig:"WANDERN_ARWEAVE_TIMEOUT" default:"30s"`
	AppID     string        `envconfig:"WANDERN_ARWEAVE_APP_ID" default:"wandern"`
	AppName   string        `envconfig:"WANDERN_ARWEAVE_APP_NAME" default:"Wandern"`
}

type UploaderConfig struct {
	BatchSize      int           `envconfig:"WANDERN_UPLOADER_BATCH_SIZE" default:"50"`
	PollInterval   time.Duration `envconfig:"WANDERN_UPLOADER_POLL_INTERVAL" default:"5m"`
	RunLockEnabled bool          `envconfig:"WANDERN_UPLOADER_RUN_LOCK" default:"false"`
	RunLockTTL     time.Duration `envconfig:"WANDERN_UPLOADER_RUN_LOCK_TTL" default:"10m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"WANDERN_AUTO_MIGRATE" default:"false"`
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
