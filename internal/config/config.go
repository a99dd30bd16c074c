package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string
	HTTPAddr    string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	Provisioning ProvisioningConfig
	Scheduler    SchedulerConfig
	Uploads      UploadsConfig

	// RedisAddr enables the cross-instance scheduler job guard when set.
	RedisAddr     string
	RedisPassword string
}

// ProvisioningConfig points at the external account-provisioning panel.
type ProvisioningConfig struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// SchedulerConfig controls reconciliation intervals.
type SchedulerConfig struct {
	TickInterval     time.Duration
	EnforceInterval  time.Duration
	SyncInterval     time.Duration
	CleanupInterval  time.Duration
	BatchSize        int
	GracePeriod      time.Duration
	UploadsRetention time.Duration
}

// UploadsConfig locates stored receipt files.
type UploadsConfig struct {
	Dir string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "radpanel"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "radpanel"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		Provisioning: ProvisioningConfig{
			BaseURL:  strings.TrimRight(getenv("MARZBAN_URL", "http://localhost:8000"), "/"),
			Username: getenv("MARZBAN_USERNAME", ""),
			Password: getenv("MARZBAN_PASSWORD", ""),
			Timeout:  getenvDuration("MARZBAN_TIMEOUT", 30*time.Second),
		},

		Scheduler: SchedulerConfig{
			TickInterval:     getenvDuration("SCHEDULER_TICK_INTERVAL", time.Minute),
			EnforceInterval:  getenvDuration("SCHEDULER_ENFORCE_INTERVAL", time.Hour),
			SyncInterval:     getenvDuration("SCHEDULER_SYNC_INTERVAL", 2*time.Hour),
			CleanupInterval:  getenvDuration("SCHEDULER_CLEANUP_INTERVAL", 24*time.Hour),
			BatchSize:        getenvInt("SCHEDULER_BATCH_SIZE", 50),
			GracePeriod:      getenvDuration("CREDIT_GRACE_PERIOD", 24*time.Hour),
			UploadsRetention: getenvDuration("UPLOADS_RETENTION", 30*24*time.Hour),
		},

		Uploads: UploadsConfig{
			Dir: getenv("UPLOAD_DIR", "uploads"),
		},

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

var Module = fx.Module("config",
	fx.Provide(Load),
)
