package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig reads configuration from a yaml file and CRI_-prefixed
// environment variables, env values taking precedence.
func LoadConfig() (*Config, error) {
	setDefaults()

	env := strings.ToLower(os.Getenv("APP_ENV"))
	if env == "" {
		env = "development"
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName(fmt.Sprintf("config.%s", env))
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("CRI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Missing file is fine: environment variables alone can carry the config.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Auth.SessionSecret == "" {
		return nil, fmt.Errorf("auth.session_secret is required")
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("app.name", "cri-novadis")
	viper.SetDefault("app.platform", runtime.GOOS+" "+runtime.GOARCH)

	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "require")
	viper.SetDefault("database.migrations_path", "./migrations")

	viper.SetDefault("local_store.path", "./data/cri-novadis.db")

	viper.SetDefault("auth.max_attempts", 3)
	viper.SetDefault("auth.block_duration", "15m")
	viper.SetDefault("auth.code_ttl", "10m")
	viper.SetDefault("auth.session_ttl", "168h")
	viper.SetDefault("auth.remote_timeout", "10s")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.port", 9090)
}
