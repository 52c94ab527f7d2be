package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var validStorageBackends = map[string]bool{"local": true, "s3": true}

var validDBDrivers = map[string]bool{"postgres": true, "sqlite": true}

// ValidateConfig checks if the configuration meets the requirements for the current environment
func ValidateConfig(cfg *Config) error {
	var errs []string
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg}.Error())
	}

	if !validDBDrivers[cfg.DBDriver] {
		add("DB_DRIVER", fmt.Sprintf("unsupported driver %q", cfg.DBDriver))
	}
	if !validStorageBackends[cfg.StorageBackend] {
		add("STORAGE_BACKEND", fmt.Sprintf("unsupported backend %q", cfg.StorageBackend))
	}
	if cfg.StorageBackend == "s3" && cfg.S3Bucket == "" {
		add("S3_BUCKET_NAME", "required when STORAGE_BACKEND=s3")
	}
	if cfg.StorageBackend == "local" && cfg.MediaRoot == "" {
		add("MEDIA_ROOT", "required when STORAGE_BACKEND=local")
	}
	if cfg.Sweeper.Delay <= 0 {
		add("SWEEPER_DELAY", "must be positive")
	}

	// Sensitive values are only mandatory where real infrastructure is expected
	if cfg.Environment == Production {
		if cfg.JWTSecret == "" {
			add("jwt_secret", "secret is required")
		}
		if cfg.DBDriver == "postgres" && cfg.DBPassword == "" {
			add("db_password", "secret is required")
		}
	}
	if cfg.Environment == CI && cfg.JWTSecret == "" {
		add("TEST_JWT_SECRET", "environment variable is required in CI environment")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}
