package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "chartduel"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvDBDSN  = "CHARTDUEL_DB_DSN"
	EnvDBHost = "CHARTDUEL_DB_HOST"
	EnvDBUser = "CHARTDUEL_DB_USER"
	EnvDBName = "CHARTDUEL_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Realtime RealtimeConfig
	Chart    ChartConfig
	Arena    ArenaConfig
	Donation DonationConfig
	Migrate  MigrateConfig
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
	Env          string `envconfig:"CHARTDUEL_APP_ENV" required:"true"`
	Port         string `envconfig:"CHARTDUEL_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"CHARTDUEL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CHARTDUEL_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"CHARTDUEL_DB_DSN"`

	LegacyHost     string `envconfig:"CHARTDUEL_DB_HOST"`
	LegacyPort     int    `envconfig:"CHARTDUEL_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CHARTDUEL_DB_USER"`
	LegacyPassword string `envconfig:"CHARTDUEL_DB_PASSWORD"`
	LegacyName     string `envconfig:"CHARTDUEL_DB_NAME"`
	LegacySSLMode  string `envconfig:"CHARTDUEL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CHARTDUEL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CHARTDUEL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CHARTDUEL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CHARTDUEL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CHARTDUEL_REDIS_URL"`
	Address      string        `envconfig:"CHARTDUEL_REDIS_ADDR"`
	Password     string        `envconfig:"CHARTDUEL_REDIS_PASSWORD"`
	DB           int           `envconfig:"CHARTDUEL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CHARTDUEL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CHARTDUEL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CHARTDUEL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CHARTDUEL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CHARTDUEL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CHARTDUEL_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CHARTDUEL_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CHARTDUEL_JWT_EXPIRATION_MINUTES" default:"720"`
}

// RealtimeConfig tunes the websocket transport.
type RealtimeConfig struct {
	PingInterval   time.Duration `envconfig:"CHARTDUEL_REALTIME_PING_INTERVAL" default:"30s"`
	WriteTimeout   time.Duration `envconfig:"CHARTDUEL_REALTIME_WRITE_TIMEOUT" default:"10s"`
	ReadLimitBytes int64         `envconfig:"CHARTDUEL_REALTIME_READ_LIMIT_BYTES" default:"4096"`
	MaxChatLength  int           `envconfig:"CHARTDUEL_REALTIME_MAX_CHAT_LENGTH" default:"280"`
}

// ChartConfig bounds challenge creation.
type ChartConfig struct {
	MinEntryFee     int64 `envconfig:"CHARTDUEL_CHART_MIN_ENTRY_FEE" default:"1"`
	MaxParticipants int   `envconfig:"CHARTDUEL_CHART_MAX_PARTICIPANTS" default:"64"`
}

// ArenaConfig tunes arena lifecycle defaults.
type ArenaConfig struct {
	DefaultWinScore int64 `envconfig:"CHARTDUEL_ARENA_DEFAULT_WIN_SCORE" default:"100"`
	ChatHistory     int   `envconfig:"CHARTDUEL_ARENA_CHAT_HISTORY" default:"50"`
}

// DonationConfig bounds the donation endpoints.
type DonationConfig struct {
	MinAmount   int64         `envconfig:"CHARTDUEL_DONATION_MIN_AMOUNT" default:"1"`
	RateWindow  time.Duration `envconfig:"CHARTDUEL_DONATION_RATE_WINDOW" default:"1m"`
	RateLimit   int           `envconfig:"CHARTDUEL_DONATION_RATE_LIMIT" default:"10"`
	MaxShoutout int           `envconfig:"CHARTDUEL_SHOUTOUT_MAX_LENGTH" default:"280"`
}

type MigrateConfig struct {
	AutoRun bool   `envconfig:"CHARTDUEL_MIGRATE_AUTO_RUN" default:"false"`
	Dir     string `envconfig:"CHARTDUEL_MIGRATE_DIR"`
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
