package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment Environment

	// Server configuration
	ServerPort string
	ServerHost string

	// Database configuration
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBPath     string

	// Redis configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisURL      string

	// JWT configuration
	JWTSecret string

	// Blob storage configuration
	StorageBackend string
	MediaRoot      string
	S3Bucket       string
	S3Region       string

	// Outbound email
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string
	FrontendURL  string

	Sweeper SweeperConfig
}

// SweeperConfig controls scheduling of the unconfirmed-account cleanup job.
type SweeperConfig struct {
	// Dispatch enables enqueueing the cleanup job when an account is created.
	Dispatch bool
	Delay    time.Duration
	// PollInterval is how often the worker checks the queue for due jobs.
	PollInterval time.Duration
}

// DefaultSweeperDelay is the grace period a new account has to confirm its email.
const DefaultSweeperDelay = 900 * time.Second

// LoadConfig creates a new Config instance with values from environment variables or secrets
func LoadConfig() (*Config, error) {
	env := GetEnvironment()
	v := newViper()

	cfg := &Config{Environment: env}
	switch env {
	case CI:
		if err := loadCIConfig(v, cfg); err != nil {
			return nil, fmt.Errorf("failed to load CI configuration: %w", err)
		}
	case Development, Test, Production:
		loadSecretConfig(v, cfg)
	default:
		return nil, fmt.Errorf("unknown environment: %s", env)
	}

	cfg.Sweeper = SweeperConfig{
		Dispatch:     dispatchEnabled(env, v.GetBool("integration_test_queue")),
		Delay:        sweeperDelay(env, v),
		PollInterval: v.GetDuration("sweeper_poll_interval"),
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// dispatchEnabled suppresses job scheduling under automated tests unless the
// queue integration is what is being tested.
func dispatchEnabled(env Environment, integration bool) bool {
	if env.Automated() {
		return integration
	}
	return true
}

// sweeperDelay is fixed at DefaultSweeperDelay. Automated runs may shorten it
// through SWEEPER_DELAY.
func sweeperDelay(env Environment, v *viper.Viper) time.Duration {
	if env.Automated() {
		return v.GetDuration("sweeper_delay")
	}
	return DefaultSweeperDelay
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("server_port", "8080")
	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("db_driver", "postgres")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_name", "accounts")
	v.SetDefault("db_ssl_mode", "disable")
	v.SetDefault("db_path", "accounts.db")
	v.SetDefault("redis_host", "localhost")
	v.SetDefault("redis_port", "6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("storage_backend", "local")
	v.SetDefault("media_root", "media")
	v.SetDefault("s3_bucket_name", "extended-accounts-profile-images")
	v.SetDefault("frontend_url", "http://localhost:8080")
	v.SetDefault("email_from", "no-reply@localhost")
	v.SetDefault("sweeper_delay", DefaultSweeperDelay)
	v.SetDefault("sweeper_poll_interval", 5*time.Second)
	v.SetDefault("integration_test_queue", false)
	return v
}

// loadCIConfig loads configuration for CI environment using ONLY environment variables
func loadCIConfig(v *viper.Viper, cfg *Config) error {
	loadPlain(v, cfg)

	cfg.DBUser = v.GetString("db_user")
	cfg.DBPassword = v.GetString("test_db_password")
	if cfg.DBPassword == "" && cfg.DBDriver == "postgres" {
		return fmt.Errorf("TEST_DB_PASSWORD environment variable is required in CI environment")
	}
	cfg.JWTSecret = v.GetString("test_jwt_secret")
	cfg.RedisPassword = v.GetString("test_redis_password")
	cfg.RedisURL = v.GetString("test_redis_url")
	cfg.SMTPPassword = v.GetString("smtp_password")
	return nil
}

// loadSecretConfig reads sensitive values from Docker secrets, falling back to
// environment variables, and everything else from the environment.
func loadSecretConfig(v *viper.Viper, cfg *Config) {
	loadPlain(v, cfg)

	cfg.DBUser = secretOrEnv(v, "db_user")
	cfg.DBPassword = secretOrEnv(v, "db_password")
	cfg.JWTSecret = secretOrEnv(v, "jwt_secret")
	cfg.RedisPassword = secretOrEnv(v, "redis_password")
	cfg.RedisURL = secretOrEnv(v, "redis_url")
	cfg.SMTPUsername = secretOrEnv(v, "smtp_username")
	cfg.SMTPPassword = secretOrEnv(v, "smtp_password")
}

func loadPlain(v *viper.Viper, cfg *Config) {
	cfg.ServerPort = v.GetString("server_port")
	cfg.ServerHost = v.GetString("server_host")
	cfg.DBDriver = v.GetString("db_driver")
	cfg.DBHost = v.GetString("db_host")
	cfg.DBPort = v.GetString("db_port")
	cfg.DBName = v.GetString("db_name")
	cfg.DBSSLMode = v.GetString("db_ssl_mode")
	cfg.DBPath = v.GetString("db_path")
	cfg.RedisHost = v.GetString("redis_host")
	cfg.RedisPort = v.GetString("redis_port")
	cfg.RedisDB = v.GetInt("redis_db")
	cfg.StorageBackend = v.GetString("storage_backend")
	cfg.MediaRoot = v.GetString("media_root")
	cfg.S3Bucket = v.GetString("s3_bucket_name")
	cfg.S3Region = v.GetString("aws_region")
	cfg.SMTPHost = v.GetString("smtp_host")
	cfg.SMTPPort = v.GetString("smtp_port")
	cfg.SMTPUsername = v.GetString("smtp_username")
	cfg.EmailFrom = v.GetString("email_from")
	cfg.FrontendURL = v.GetString("frontend_url")
}

func secretOrEnv(v *viper.Viper, name string) string {
	if s := readSecret(name); s != "" {
		return s
	}
	return v.GetString(name)
}

// readSecret reads a Docker secret from the secrets directory
func readSecret(name string) string {
	secretsDir := os.Getenv("SECRETS_DIR")
	if secretsDir == "" {
		secretsDir = "/run/secrets"
	}
	secretPath := filepath.Join(secretsDir, name)
	if data, err := os.ReadFile(secretPath); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}
