package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string `validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	MaxOpenConns       int    `validate:"gte=0"`
	MaxIdleConns       int    `validate:"gte=0"`
	ConnMaxLifetimeSec int    `validate:"gte=0"`
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// StorageConfig selects the metadata and blob backends.
type StorageConfig struct {
	StoreDriver string `validate:"required,oneof=postgres memory"`
	BlobDriver  string `validate:"required,oneof=minio memory"`
}

// LifecycleConfig controls trash retention and tree traversal bounds.
type LifecycleConfig struct {
	TrashRetentionDays int           `validate:"gte=1"`
	PurgeInterval      time.Duration `validate:"gte=0"`
	MaxTreeDepth       int           `validate:"gte=1,lte=1000"`
}

// TrashRetention is the retention window as a duration.
func (l LifecycleConfig) TrashRetention() time.Duration {
	return time.Duration(l.TrashRetentionDays) * 24 * time.Hour
}

// AccessConfig holds authorization policy settings.
type AccessConfig struct {
	AdminRoles      []string `validate:"dive,required"`
	FolderNameScope string   `validate:"required,oneof=sibling global"`
}

// ShareConfig holds share link settings.
type ShareConfig struct {
	BcryptCost int `validate:"gte=4,lte=31"`
}

// AuthConfig holds caller identity settings. With an empty JWTSecret the identity is
// taken from trusted gateway headers.
type AuthConfig struct {
	JWTSecret string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `validate:"required,oneof=debug info warn error"`
	Format string `validate:"required,oneof=json console"`
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost   string
	Port      string `validate:"required,numeric"`
	Database  DatabaseConfig
	MinIO     MinIOConfig
	Storage   StorageConfig
	Lifecycle LifecycleConfig
	Access    AccessConfig
	Share     ShareConfig
	Auth      AuthConfig
	Log       LogConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost: getEnv("APP_HOST", "localhost:8080"),
		Port:    getEnv("PORT", "8080"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Storage: StorageConfig{
			StoreDriver: getEnv("STORE_DRIVER", "postgres"),
			BlobDriver:  getEnv("BLOB_DRIVER", "minio"),
		},
		Lifecycle: LifecycleConfig{
			TrashRetentionDays: getEnvInt("TRASH_RETENTION_DAYS", 30),
			PurgeInterval:      getEnvDuration("PURGE_INTERVAL", time.Hour),
			MaxTreeDepth:       getEnvInt("MAX_TREE_DEPTH", 50),
		},
		Access: AccessConfig{
			AdminRoles:      getEnvList("ADMIN_ROLES", []string{"super_admin", "branch_admin", "department_admin"}),
			FolderNameScope: getEnv("FOLDER_NAME_SCOPE", "sibling"),
		},
		Share: ShareConfig{
			BcryptCost: getEnvInt("SHARE_BCRYPT_COST", 10),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
