package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server ServerConfig `json:"server"`

	// Database Configuration
	Database DatabaseConfig `json:"database"`

	// MongoDB (GridFS image storage)
	MongoDB MongoDBConfig `json:"mongodb"`

	// Redis snapshot cache (optional)
	Redis RedisConfig `json:"redis"`

	// NATS change-feed fan-out (optional)
	NATS NATSConfig `json:"nats"`

	Auth AuthConfig `json:"auth"`

	// Feed session defaults used by wallctl
	Feed FeedConfig `json:"feed"`

	Upload UploadConfig `json:"upload"`

	// Logging Configuration
	Logging LoggingConfig `json:"logging"`

	// EnvFileLoaded reports whether a .env file was read. Callers log it once
	// a logger exists.
	EnvFileLoaded bool `json:"-"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port            string `json:"port"`
	Host            string `json:"host"`
	MediaServerPort string `json:"media_server_port"`
	MediaBaseURL    string `json:"media_base_url"`
	ReadTimeout     int    `json:"read_timeout"`
	WriteTimeout    int    `json:"write_timeout"`
	Environment     string `json:"environment"` // development, staging, production
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	DatabaseName string `json:"database_name"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
}

type MongoDBConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Database string `json:"database"`
	Bucket   string `json:"bucket"`
}

type RedisConfig struct {
	Addr        string `json:"addr"`
	Password    string `json:"password"`
	DB          int    `json:"db"`
	SnapshotTTL int    `json:"snapshot_ttl"` // Seconds
	Enabled     bool   `json:"enabled"`
}

type NATSConfig struct {
	URL     string `json:"url"`
	Subject string `json:"subject"`
	Enabled bool   `json:"enabled"`
}

// AuthConfig holds the signing secret and the admin credential.
// AdminPasswordHash is a bcrypt hash, never a plaintext password.
type AuthConfig struct {
	JWTSecret         string `json:"-"`
	AdminUsername     string `json:"admin_username"`
	AdminPasswordHash string `json:"-"`
	AdminTokenTTL     int    `json:"admin_token_ttl"`   // Hours
	VisitorTokenTTL   int    `json:"visitor_token_ttl"` // Hours
	CookieSecure      bool   `json:"cookie_secure"`
}

type FeedConfig struct {
	ServerURL      string `json:"server_url"`
	PollInterval   int    `json:"poll_interval"`   // Seconds
	ReconnectDelay int    `json:"reconnect_delay"` // Seconds
}

type UploadConfig struct {
	MaxImageBytes int64 `json:"max_image_bytes"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	Format     string `json:"format"`      // json, console
	OutputPath string `json:"output_path"` // stdout, stderr, or file path
}

func LoadConfig() *Config {
	envErr := godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8081"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			MediaServerPort: getEnv("MEDIA_SERVER_PORT", "8080"),
			ReadTimeout:     getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:    getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			Environment:     getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("MYSQL_HOST", "localhost"),
			Port:         getEnv("MYSQL_PORT", "3306"),
			Username:     getEnv("MYSQL_USERNAME", "memorywall"),
			Password:     getEnv("MYSQL_PASSWORD", "memorywall123"),
			DatabaseName: getEnv("MYSQL_DATABASE", "memorywall"),
			MaxOpenConns: getEnvAsInt("MYSQL_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("MYSQL_MAX_IDLE_CONNS", 5),
		},
		MongoDB: MongoDBConfig{
			Host:     getEnv("MONGO_HOST", "localhost"),
			Port:     getEnv("MONGO_PORT", "27017"),
			Username: getEnv("MONGO_USERNAME", "admin"),
			Password: getEnv("MONGO_PASSWORD", "admin123"),
			Database: getEnv("MONGO_DATABASE", "memorywall"),
			Bucket:   getEnv("MONGO_BUCKET", "memory_images"),
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", "localhost:6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvAsInt("REDIS_DB", 0),
			SnapshotTTL: getEnvAsInt("REDIS_SNAPSHOT_TTL", 30),
			Enabled:     getEnvAsBool("REDIS_ENABLED", false),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Subject: getEnv("NATS_SUBJECT", "wall.posts.changes"),
			Enabled: getEnvAsBool("NATS_ENABLED", false),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("JWT_SECRET", ""),
			AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
			AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
			AdminTokenTTL:     getEnvAsInt("ADMIN_TOKEN_TTL", 12),
			VisitorTokenTTL:   getEnvAsInt("VISITOR_TOKEN_TTL", 24*365),
			CookieSecure:      getEnvAsBool("COOKIE_SECURE", false),
		},
		Feed: FeedConfig{
			ServerURL:      getEnv("WALL_SERVER_URL", "http://localhost:8081"),
			PollInterval:   getEnvAsInt("FEED_POLL_INTERVAL", 30),
			ReconnectDelay: getEnvAsInt("FEED_RECONNECT_DELAY", 5),
		},
		Upload: UploadConfig{
			MaxImageBytes: int64(getEnvAsInt("UPLOAD_MAX_IMAGE_BYTES", 5*1024*1024)),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "console"),
			OutputPath: getEnv("LOG_OUTPUT", "stdout"),
		},
	}

	cfg.Server.MediaBaseURL = getEnv("MEDIA_BASE_URL",
		fmt.Sprintf("http://localhost:%s/media/", cfg.Server.MediaServerPort))

	cfg.EnvFileLoaded = envErr == nil
	return cfg
}

func (cfg *Config) DSN() string {
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "3306"
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DatabaseName,
	)
}

func (cfg *Config) GetMongoURI() string {
	if cfg.MongoDB.Username == "" && cfg.MongoDB.Password == "" {
		return fmt.Sprintf("mongodb://%s:%s/%s",
			cfg.MongoDB.Host, cfg.MongoDB.Port, cfg.MongoDB.Database)
	}
	return fmt.Sprintf("mongodb://%s:%s@%s:%s/%s?authSource=admin",
		cfg.MongoDB.Username, cfg.MongoDB.Password,
		cfg.MongoDB.Host, cfg.MongoDB.Port, cfg.MongoDB.Database)
}

// Addr is the listen address of the API server.
func (cfg *Config) Addr() string {
	return fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
}

func (cfg *Config) PollInterval() time.Duration {
	return time.Duration(cfg.Feed.PollInterval) * time.Second
}

func (cfg *Config) ReconnectDelay() time.Duration {
	return time.Duration(cfg.Feed.ReconnectDelay) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
