package config

import "time"

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Cart      CartConfig      `yaml:"cart"`
	Documents DocumentsConfig `yaml:"documents"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr              string        `yaml:"addr"                env:"SERVER_ADDR"                env-default:":8080"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"SERVER_READ_HEADER_TIMEOUT" env-default:"10s"`
	ReadTimeout       time.Duration `yaml:"read_timeout"        env:"SERVER_READ_TIMEOUT"        env-default:"30s"`
	WriteTimeout      time.Duration `yaml:"write_timeout"       env:"SERVER_WRITE_TIMEOUT"       env-default:"60s"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"        env:"SERVER_IDLE_TIMEOUT"        env-default:"120s"`
	RequestTimeout    time.Duration `yaml:"request_timeout"     env:"SERVER_REQUEST_TIMEOUT"     env-default:"30s"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"    env:"SERVER_SHUTDOWN_TIMEOUT"    env-default:"10s"`
	SecureCookies     bool          `yaml:"secure_cookies"      env:"SERVER_SECURE_COOKIES"      env-default:"false"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path" env:"DATABASE_PATH" env-default:"aas.sqlite3"`
}

// AuthConfig holds session and admin gate settings.
type AuthConfig struct {
	// JWTSecret overrides the secret generated and stored in the database.
	JWTSecret      string        `yaml:"jwt_secret"       env:"AUTH_JWT_SECRET"`
	SessionTTL     time.Duration `yaml:"session_ttl"      env:"AUTH_SESSION_TTL"      env-default:"168h"`
	AdminCacheTTL  time.Duration `yaml:"admin_cache_ttl"  env:"AUTH_ADMIN_CACHE_TTL"  env-default:"5m"`
	AdminCacheSize int           `yaml:"admin_cache_size" env:"AUTH_ADMIN_CACHE_SIZE" env-default:"1024"`
}

// Storage drivers.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// StorageConfig selects and configures the object storage backend.
type StorageConfig struct {
	Driver          string        `yaml:"driver"           env:"STORAGE_DRIVER"           env-default:"local"`
	LocalRoot       string        `yaml:"local_root"       env:"STORAGE_LOCAL_ROOT"       env-default:"data/objects"`
	DocumentsBucket string        `yaml:"documents_bucket" env:"STORAGE_DOCUMENTS_BUCKET" env-default:"user_documents"`
	ProductsBucket  string        `yaml:"products_bucket"  env:"STORAGE_PRODUCTS_BUCKET"  env-default:"product_images"`
	Timeout         time.Duration `yaml:"timeout"          env:"STORAGE_TIMEOUT"          env-default:"30s"`
	S3Region        string        `yaml:"s3_region"        env:"S3_REGION"                env-default:"us-east-1"`
	S3Endpoint      string        `yaml:"s3_endpoint"      env:"S3_ENDPOINT"`
	S3AccessKey     string        `yaml:"s3_access_key"    env:"S3_ACCESS_KEY"`
	S3SecretKey     string        `yaml:"s3_secret_key"    env:"S3_SECRET_KEY"`
}

// Cart stores.
const (
	CartCookie = "cookie"
	CartRedis  = "redis"
)

// CartConfig selects where carts are mirrored between requests.
type CartConfig struct {
	Store         string        `yaml:"store"          env:"CART_STORE"          env-default:"cookie"`
	TTL           time.Duration `yaml:"ttl"            env:"CART_TTL"            env-default:"720h"`
	RedisAddr     string        `yaml:"redis_addr"     env:"CART_REDIS_ADDR"     env-default:"localhost:6379"`
	RedisPassword string        `yaml:"redis_password" env:"CART_REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db"       env:"CART_REDIS_DB"       env-default:"0"`
}

// DocumentsConfig holds identity document upload limits.
type DocumentsConfig struct {
	MaxSize int64 `yaml:"max_size" env:"DOCUMENTS_MAX_SIZE" env-default:"5242880"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
	File   string `yaml:"file"   env:"LOG_FILE"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED" env-default:"true"`
	Path    string `yaml:"path"    env:"METRICS_PATH"    env-default:"/metrics"`
}
