package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	EmailModeGAS         = "gas"
	EmailModeSMTP        = "smtp"
	EmailModeDevelopment = "development"

	BackendPostgres = "postgres"
	BackendSupabase = "supabase"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
)

const defaultConfigPath = "config/config.yaml"

type ServerConfig struct {
	Port               int           `yaml:"port"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	RateLimitRPM       int           `yaml:"rate_limit_rpm"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
	// TrustedProxies may set X-Forwarded-For; empty means the peer address is the client.
	TrustedProxies     []string      `yaml:"trusted_proxies"`
}

type AuthConfig struct {
	JWTSecret    string        `yaml:"jwt_secret"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	CookieName   string        `yaml:"cookie_name"`
	CookieSecure bool          `yaml:"cookie_secure"`
	OTPLength    int           `yaml:"otp_length"`
	OTPTTL       time.Duration `yaml:"otp_ttl"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

type DatabaseConfig struct {
	DSN     string `yaml:"url"`
	Migrate bool   `yaml:"migrate"`
}

type SupabaseConfig struct {
	URL            string `yaml:"url"`
	AnonKey        string `yaml:"anon_key"`
	ServiceRoleKey string `yaml:"service_role_key"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type EmailConfig struct {
	GASWebAppURL string        `yaml:"gas_webapp_url"`
	GASAPISecret string        `yaml:"gas_api_secret"`
	SMTPHost     string        `yaml:"smtp_host"`
	SMTPPort     int           `yaml:"smtp_port"`
	SMTPUser     string        `yaml:"smtp_user"`
	SMTPPassword string        `yaml:"smtp_password"`
	FromEmail    string        `yaml:"from_email"`
	Timeout      time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	Bucket    string        `yaml:"bucket"`
	Region    string        `yaml:"region"`
	Endpoint  string        `yaml:"endpoint"`
	AccessKey string        `yaml:"access_key"`
	SecretKey string        `yaml:"secret_key"`
	UploadTTL time.Duration `yaml:"upload_ttl"`
}

type ReportsConfig struct {
	FontPath string `yaml:"font_path"`
}

// SeedUser populates the in-memory store when no hosted store is configured.
type SeedUser struct {
	Email       string `yaml:"email"`
	Role        string `yaml:"role"`
	DisplayName string `yaml:"display_name"`
}

type Config struct {
	Environment string         `yaml:"environment"`
	Server      ServerConfig   `yaml:"server"`
	Auth        AuthConfig     `yaml:"auth"`
	Database    DatabaseConfig `yaml:"database"`
	Supabase    SupabaseConfig `yaml:"supabase"`
	Redis       RedisConfig    `yaml:"redis"`
	Email       EmailConfig    `yaml:"email"`
	Storage     StorageConfig  `yaml:"storage"`
	Reports     ReportsConfig  `yaml:"reports"`
	SeedUsers   []SeedUser     `yaml:"seed_users"`
}

// LoadConfig reads .env, the YAML file and the environment, in that order of precedence
// (environment wins), then applies defaults and validates.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	path := getEnv("CONFIG_PATH", defaultConfigPath)
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Environment = getEnv("APP_ENV", getEnv("NODE_ENV", c.Environment))
	c.Server.Port = getInt("PORT", c.Server.Port)
	c.Server.RateLimitRPM = getInt("RATE_LIMIT_RPM", c.Server.RateLimitRPM)
	c.Server.CORSAllowedOrigins = getList("CORS_ALLOWED_ORIGINS", c.Server.CORSAllowedOrigins)
	c.Server.TrustedProxies = getList("TRUSTED_PROXIES", c.Server.TrustedProxies)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.SessionTTL = getDuration("SESSION_TTL", c.Auth.SessionTTL)
	c.Auth.CookieSecure = getBool("COOKIE_SECURE", c.Auth.CookieSecure)

	c.Database.DSN = getEnv("DATABASE_URL", c.Database.DSN)
	c.Database.Migrate = getBool("DATABASE_MIGRATE", c.Database.Migrate)

	c.Supabase.URL = getEnv("NEXT_PUBLIC_SUPABASE_URL", c.Supabase.URL)
	c.Supabase.AnonKey = getEnv("NEXT_PUBLIC_SUPABASE_ANON_KEY", c.Supabase.AnonKey)
	c.Supabase.ServiceRoleKey = getEnv("SUPABASE_SERVICE_ROLE_KEY", c.Supabase.ServiceRoleKey)

	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)

	c.Email.GASWebAppURL = getEnv("GAS_WEBAPP_URL", c.Email.GASWebAppURL)
	c.Email.GASAPISecret = getEnv("GAS_API_SECRET", c.Email.GASAPISecret)
	c.Email.SMTPHost = getEnv("SMTP_HOST", c.Email.SMTPHost)
	c.Email.SMTPPort = getInt("SMTP_PORT", c.Email.SMTPPort)
	c.Email.SMTPUser = getEnv("SMTP_USER", c.Email.SMTPUser)
	c.Email.SMTPPassword = getEnv("SMTP_PASSWORD", c.Email.SMTPPassword)
	c.Email.FromEmail = getEnv("SMTP_FROM", c.Email.FromEmail)

	c.Storage.Bucket = getEnv("S3_BUCKET", c.Storage.Bucket)
	c.Storage.Region = getEnv("S3_REGION", c.Storage.Region)
	c.Storage.Endpoint = getEnv("S3_ENDPOINT", c.Storage.Endpoint)
	c.Storage.AccessKey = getEnv("S3_ACCESS_KEY", c.Storage.AccessKey)
	c.Storage.SecretKey = getEnv("S3_SECRET_KEY", c.Storage.SecretKey)

	c.Reports.FontPath = getEnv("PDF_FONT_PATH", c.Reports.FontPath)
}

func (c *Config) applyDefaults() {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	if c.Environment == "" {
		c.Environment = EnvDevelopment
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = 15 * time.Second
	}
	if c.Server.RateLimitRPM == 0 {
		c.Server.RateLimitRPM = 30
	}
	if len(c.Server.CORSAllowedOrigins) == 0 {
		c.Server.CORSAllowedOrigins = []string{"*"}
	}
	if c.Auth.SessionTTL <= 0 {
		c.Auth.SessionTTL = 7 * 24 * time.Hour
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "auth-token"
	}
	if c.Auth.OTPLength <= 0 {
		c.Auth.OTPLength = 6
	}
	if c.Auth.OTPTTL <= 0 {
		c.Auth.OTPTTL = 10 * time.Minute
	}
	if c.Auth.MaxAttempts <= 0 {
		c.Auth.MaxAttempts = 5
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	if c.Email.Timeout <= 0 {
		c.Email.Timeout = 10 * time.Second
	}
	if c.Storage.Region == "" {
		c.Storage.Region = "us-east-1"
	}
	if c.Storage.UploadTTL <= 0 {
		c.Storage.UploadTTL = 15 * time.Minute
	}
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		if c.IsProduction() {
			return errors.New("JWT_SECRET is required in production")
		}
		// development only: sessions do not survive a restart
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return fmt.Errorf("generate jwt secret: %w", err)
		}
		c.Auth.JWTSecret = hex.EncodeToString(b)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// EmailMode picks the delivery transport from which credentials are present.
func (c *Config) EmailMode() string {
	switch {
	case c.Email.GASWebAppURL != "" && c.Email.GASAPISecret != "":
		return EmailModeGAS
	case c.Email.SMTPHost != "" && c.Email.FromEmail != "":
		return EmailModeSMTP
	default:
		return EmailModeDevelopment
	}
}

// StoreBackend picks where users, profiles, otp logs and posts live.
func (c *Config) StoreBackend() string {
	switch {
	case c.Database.DSN != "":
		return BackendPostgres
	case c.Supabase.URL != "" && c.SupabaseKey() != "":
		return BackendSupabase
	default:
		return BackendMemory
	}
}

// ChallengeBackend picks where active OTP challenges live.
func (c *Config) ChallengeBackend() string {
	switch {
	case c.Redis.URL != "":
		return BackendRedis
	case c.Database.DSN != "":
		return BackendPostgres
	default:
		return BackendMemory
	}
}

// SupabaseKey prefers the service role key, since the server reads tables that row level
// security hides from the anon role.
func (c *Config) SupabaseKey() string {
	if c.Supabase.ServiceRoleKey != "" {
		return c.Supabase.ServiceRoleKey
	}
	return c.Supabase.AnonKey
}

func (c *Config) StorageEnabled() bool {
	return c.Storage.Bucket != ""
}

func (c *Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		var cleaned []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
