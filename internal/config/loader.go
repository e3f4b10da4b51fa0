package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Load reads configuration from a YAML file and environment variables.
// Priority: ENV > YAML > defaults (via env-default tags).
// The file path is the argument, else CONFIG_PATH, else "./config.yaml".
// A missing default file is not an error; configuration then comes from
// ENV and defaults only.
func Load(path string) (*Config, error) {
	var cfg Config

	explicitPath := path != ""
	if !explicitPath {
		path = os.Getenv("CONFIG_PATH")
		explicitPath = path != ""
	}
	if !explicitPath {
		path = "./config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

// Validate checks cross-field constraints that tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Auth.AdminCacheTTL <= 0 {
		errs = append(errs, errors.New("auth.admin_cache_ttl must be positive"))
	}

	switch c.Storage.Driver {
	case StorageLocal:
		if c.Storage.LocalRoot == "" {
			errs = append(errs, errors.New("storage.local_root is required for the local driver"))
		}
	case StorageS3:
		if (c.Storage.S3AccessKey == "") != (c.Storage.S3SecretKey == "") {
			errs = append(errs, errors.New("storage.s3_access_key and storage.s3_secret_key must be set together"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be %q or %q, got %q", StorageLocal, StorageS3, c.Storage.Driver))
	}
	if c.Storage.DocumentsBucket == "" || c.Storage.ProductsBucket == "" {
		errs = append(errs, errors.New("storage bucket names are required"))
	}

	switch c.Cart.Store {
	case CartCookie:
	case CartRedis:
		if c.Cart.RedisAddr == "" {
			errs = append(errs, errors.New("cart.redis_addr is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("cart.store must be %q or %q, got %q", CartCookie, CartRedis, c.Cart.Store))
	}

	if c.Documents.MaxSize <= 0 {
		errs = append(errs, errors.New("documents.max_size must be positive"))
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, errors.New("metrics.path must start with /"))
	}

	return errors.Join(errs...)
}
