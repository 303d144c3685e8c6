package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/lockguard/internal/models"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Security state store backends
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Lockout  LockoutConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	AutoMigrate       bool
}

type ServerConfig struct {
	Port            string
	Env             string
	LogLevel        string
	AllowedOrigins  []string
	TrustedProxies  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	LoginRatePerMin int
	AdminRatePerMin int
}

type AuthConfig struct {
	JWTSecret         string
	Issuer            string
	AccessTokenExpiry time.Duration
	LoginMinDuration  time.Duration
	LoginJitter       time.Duration
}

// LockoutConfig selects the security state store and the lockout policy
type LockoutConfig struct {
	Store           string
	PolicyFile      string
	Settings        models.PolicySettings
	Policy          models.LockoutPolicy
	CleanupInterval time.Duration // zero disables the idle state sweeper
	EventRetention  time.Duration // zero keeps lockout events forever
}

// EmailConfig configures lockout notifications via SES
type EmailConfig struct {
	Enabled     bool
	Region      string
	FromAddress string
	SupportURL  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "lockguard"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Env:             env,
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			AllowedOrigins:  parseAllowedOrigins(env),
			TrustedProxies:  getEnvAsList("TRUSTED_PROXIES"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			LoginRatePerMin: getEnvAsInt("LOGIN_RATE_LIMIT_PER_MINUTE", 20),
			AdminRatePerMin: getEnvAsInt("ADMIN_RATE_LIMIT_PER_MINUTE", 60),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			Issuer:            getEnv("JWT_ISSUER", "lockguard"),
			AccessTokenExpiry: getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
			LoginMinDuration:  getEnvAsDuration("LOGIN_MIN_DURATION", 250*time.Millisecond),
			LoginJitter:       getEnvAsDuration("LOGIN_JITTER", 100*time.Millisecond),
		},
		Lockout: LockoutConfig{
			Store:           strings.ToLower(getEnv("LOCKOUT_STORE", StorePostgres)),
			PolicyFile:      getEnv("LOCKOUT_POLICY_FILE", ""),
			CleanupInterval: getEnvAsDuration("LOCKOUT_CLEANUP_INTERVAL", time.Hour),
			EventRetention:  getEnvAsDuration("LOCKOUT_EVENT_RETENTION", 90*24*time.Hour),
		},
		Email: EmailConfig{
			Enabled:     getEnvAsBool("LOCKOUT_EMAIL_ENABLED", false),
			Region:      getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
			SupportURL:  getEnv("SUPPORT_URL", ""),
		},
	}

	if cfg.Lockout.Store != StorePostgres && cfg.Lockout.Store != StoreMemory {
		return nil, fmt.Errorf("LOCKOUT_STORE must be %q or %q, got %q", StorePostgres, StoreMemory, cfg.Lockout.Store)
	}

	if cfg.Lockout.Store == StorePostgres && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if cfg.Email.Enabled && cfg.Email.FromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when LOCKOUT_EMAIL_ENABLED is set")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	settings, err := loadPolicySettings(cfg.Lockout.PolicyFile)
	if err != nil {
		return nil, err
	}
	policy, err := models.NewLockoutPolicy(settings)
	if err != nil {
		return nil, err
	}
	cfg.Lockout.Settings = settings
	cfg.Lockout.Policy = policy

	return cfg, nil
}

// loadPolicySettings starts from the defaults, applies LOCKOUT_* variables
// and finally the policy file, if one is named.
func loadPolicySettings(path string) (models.PolicySettings, error) {
	settings := models.DefaultPolicySettings()

	if v := os.Getenv("LOCKOUT_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return settings, fmt.Errorf("%w: LOCKOUT_THRESHOLD: %v", models.ErrInvalidPolicy, err)
		}
		settings.Threshold = n
	}
	if err := applyDurationEnv(&settings.ThresholdWindow, "LOCKOUT_THRESHOLD_DURATION"); err != nil {
		return settings, err
	}
	if err := applyDurationEnv(&settings.LockoutDuration, "LOCKOUT_DURATION"); err != nil {
		return settings, err
	}

	if path == "" {
		return settings, nil
	}
	return LoadPolicyFile(path, settings)
}

// applyDurationEnv reads <prefix>_VALUE and <prefix>_UNIT into d.
func applyDurationEnv(d *models.DurationSetting, prefix string) error {
	if v := os.Getenv(prefix + "_VALUE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s_VALUE: %v", models.ErrInvalidPolicy, prefix, err)
		}
		d.Value = n
	}
	if v := os.Getenv(prefix + "_UNIT"); v != "" {
		unit, err := models.ParseTimeUnit(v)
		if err != nil {
			return fmt.Errorf("%s_UNIT: %w", prefix, err)
		}
		d.Unit = unit
	}
	return nil
}

// LoadPolicyFile overlays a YAML policy file onto base. Keys missing from the
// file keep their base values. An example file:
//
//	threshold: 5
//	threshold_duration: {value: 1, unit: hour}
//	lockout_duration: {value: 24, unit: hours}
func LoadPolicyFile(path string, base models.PolicySettings) (models.PolicySettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read lockout policy file: %w", err)
	}

	settings := base
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return base, fmt.Errorf("%w: %s: %v", models.ErrInvalidPolicy, path, err)
	}
	return settings, nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return getEnvAsList("ALLOWED_ORIGINS")
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
