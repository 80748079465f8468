package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	StoreDriver           string
	DatabaseURL           string
	SQLitePath            string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	AuthSecret            string
	AccessTokenTTLMinutes int
	SeedAdminUsername     string
	SeedAdminPassword     string
	Timezone              string
	LogLevel              string
	LogFormat             string
	Backup                BackupConfig
}

type BackupConfig struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

func (b BackupConfig) Enabled() bool {
	return b.Bucket != ""
}

// Load reads configuration with priority env > config.yaml > defaults.
// A .env file in the working directory is loaded into the environment first.
func Load() Config {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "config: ignoring unreadable config.yaml: %v\n", err)
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", "8080")
	v.SetDefault("allowed_origin", "http://127.0.0.1:3000")
	v.SetDefault("store_driver", "")
	v.SetDefault("sqlite_path", "aqualedger.db")
	v.SetDefault("redis_db", 0)
	v.SetDefault("access_token_ttl_minutes", 480)
	v.SetDefault("seed_admin_username", "admin")
	v.SetDefault("timezone", "Asia/Karachi")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("backup_s3_region", "us-east-1")
	for _, key := range []string{"database_url", "redis_addr", "redis_password", "auth_secret", "seed_admin_password",
		"backup_s3_bucket", "backup_s3_endpoint", "backup_s3_access_key", "backup_s3_secret_key"} {
		_ = v.BindEnv(key)
	}

	tokenTTL := v.GetInt("access_token_ttl_minutes")
	if tokenTTL < 1 {
		tokenTTL = 480
	}

	cfg := Config{
		Port:                  v.GetString("port"),
		AllowedOrigin:         v.GetString("allowed_origin"),
		StoreDriver:           strings.ToLower(strings.TrimSpace(v.GetString("store_driver"))),
		DatabaseURL:           v.GetString("database_url"),
		SQLitePath:            v.GetString("sqlite_path"),
		RedisAddr:             v.GetString("redis_addr"),
		RedisPassword:         v.GetString("redis_password"),
		RedisDB:               v.GetInt("redis_db"),
		AuthSecret:            strings.TrimSpace(v.GetString("auth_secret")),
		AccessTokenTTLMinutes: tokenTTL,
		SeedAdminUsername:     strings.TrimSpace(v.GetString("seed_admin_username")),
		SeedAdminPassword:     v.GetString("seed_admin_password"),
		Timezone:              v.GetString("timezone"),
		LogLevel:              v.GetString("log_level"),
		LogFormat:             v.GetString("log_format"),
		Backup: BackupConfig{
			Bucket:    v.GetString("backup_s3_bucket"),
			Region:    v.GetString("backup_s3_region"),
			Endpoint:  v.GetString("backup_s3_endpoint"),
			AccessKey: v.GetString("backup_s3_access_key"),
			SecretKey: v.GetString("backup_s3_secret_key"),
		},
	}
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = cfg.inferDriver()
	}

	return cfg
}

func (c Config) inferDriver() string {
	switch {
	case c.DatabaseURL != "":
		return "postgres"
	default:
		return "memory"
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}
