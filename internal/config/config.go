package config

import "time"

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	LocalStore LocalStoreConfig `mapstructure:"local_store"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Platform string `mapstructure:"platform"`
}

// DatabaseConfig points at the remote authorization source (a hosted
// Postgres owning authorized_users and login_logs).
type DatabaseConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	DBName         string        `mapstructure:"dbname"`
	SSLMode        string        `mapstructure:"sslmode"`
	AutoMigrate    bool          `mapstructure:"auto_migrate"`
	MigrationsPath string        `mapstructure:"migrations_path"`
	MaxOpenConns   int           `mapstructure:"max_open_conns"`
	MinConns       int           `mapstructure:"min_conns"`
	ConnMaxLife    time.Duration `mapstructure:"conn_max_life"`
}

// LocalStoreConfig locates the device-local key-value store.
type LocalStoreConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BlockDuration time.Duration `mapstructure:"block_duration"`
	CodeTTL       time.Duration `mapstructure:"code_ttl"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	SessionSecret string        `mapstructure:"session_secret"`
	RemoteTimeout time.Duration `mapstructure:"remote_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}
