package config

import (
	"fmt"

	"github.com/mlevkov/tickethub/internal/db"
	"github.com/spf13/viper"
)

// StorageConfig locates the object store that holds imported files.
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Folder    string
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port        int
	CORSOrigins []string
}

// LoggingConfig selects log verbosity and output format.
type LoggingConfig struct {
	Level  string
	Format string
}

// Config is the full application configuration.
type Config struct {
	Database db.Config
	Storage  StorageConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

// DefaultConfig returns settings suitable for local development.
func DefaultConfig() Config {
	return Config{
		Database: db.DefaultConfig(),
		Storage: StorageConfig{
			Endpoint:  "localhost:9000",
			AccessKey: "minioadmin",
			SecretKey: "minioadmin",
			UseSSL:    false,
			Bucket:    "tickethub",
			Folder:    "imports",
		},
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:5173"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads config.yaml from configPath, falling back to defaults and
// environment overrides (APP_DATABASE_HOST, APP_STORAGE_ENDPOINT, ...).
func Load(configPath string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("APP")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("storage.endpoint")
	v.BindEnv("storage.access_key")
	v.BindEnv("storage.secret_key")
	v.BindEnv("storage.use_ssl")
	v.BindEnv("storage.bucket")
	v.BindEnv("storage.folder")
	v.BindEnv("server.port")
	v.BindEnv("logging.level")
	v.BindEnv("logging.format")

	if err := v.ReadInConfig(); err != nil {
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}

	if v.IsSet("storage.endpoint") {
		cfg.Storage.Endpoint = v.GetString("storage.endpoint")
	}
	if v.IsSet("storage.access_key") {
		cfg.Storage.AccessKey = v.GetString("storage.access_key")
	}
	if v.IsSet("storage.secret_key") {
		cfg.Storage.SecretKey = v.GetString("storage.secret_key")
	}
	if v.IsSet("storage.use_ssl") {
		cfg.Storage.UseSSL = v.GetBool("storage.use_ssl")
	}
	if v.IsSet("storage.bucket") {
		cfg.Storage.Bucket = v.GetString("storage.bucket")
	}
	if v.IsSet("storage.folder") {
		cfg.Storage.Folder = v.GetString("storage.folder")
	}

	if v.IsSet("server.port") {
		cfg.Server.Port = v.GetInt("server.port")
	}
	if v.IsSet("server.cors_origins") {
		cfg.Server.CORSOrigins = v.GetStringSlice("server.cors_origins")
	}

	if v.IsSet("logging.level") {
		cfg.Logging.Level = v.GetString("logging.level")
	}
	if v.IsSet("logging.format") {
		cfg.Logging.Format = v.GetString("logging.format")
	}

	return cfg, nil
}
