// Package config loads CLI settings from config files, the environment and
// .env files.
package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

var AppFs = afero.NewOsFs()

// Config holds the application configuration
type Config struct {
	SchemaPath       string
	DatabaseURL      string
	Dialect          string
	FastPathKeys     []string
	MinServerVersion string
	Debug            bool
	Telemetry        bool
}

// LoadConfig loads configuration from .batchsql.yaml in the working
// directory or the home directory, BATCHSQL_* variables and .env files.
func LoadConfig() (*Config, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetFs(AppFs)
	v.SetConfigName(".batchsql")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(home)
	v.AddConfigPath(filepath.Join(home, ".config", "batchsql"))

	v.SetEnvPrefix("BATCHSQL")
	v.AutomaticEnv()

	v.SetDefault("schema_path", "schema.prisma")
	v.SetDefault("telemetry", false)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// .env never overrides the environment, .env.local does.
	if exists(".env") {
		_ = godotenv.Load()
	}
	if exists(".env.local") {
		_ = godotenv.Overload(".env.local")
	}

	url := v.GetString("database_url")
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}

	return &Config{
		SchemaPath:       v.GetString("schema_path"),
		DatabaseURL:      url,
		Dialect:          v.GetString("dialect"),
		FastPathKeys:     v.GetStringSlice("fast_path_keys"),
		MinServerVersion: v.GetString("min_server_version"),
		Debug:            v.GetBool("debug"),
		Telemetry:        v.GetBool("telemetry"),
	}, nil
}

func exists(path string) bool {
	_, err := AppFs.Stat(path)
	return err == nil
}
