package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the IVR process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	Session  SessionConfig
	DB       DBConfig
	Redis    RedisConfig
	Advisory AdvisoryConfig
	IVR      IVRConfig
	Twilio   TwilioConfig
	Auth     AuthConfig
}

type AppConfig struct {
	Env  string
	Port int
	// PublicBaseURL is the externally visible origin gateways call.
	PublicBaseURL string
}

const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

type SessionConfig struct {
	Backend string
	TTL     time.Duration
}

// DBConfig is optional. When Host is empty the audit trail goes to the log.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AdvisoryConfig struct {
	URL     string
	Timeout time.Duration
}

type IVRConfig struct {
	Language            string
	GatherTimeout       time.Duration
	MaxUsernameAttempts int
	MaxPINAttempts      int
}

type TwilioConfig struct {
	// AuthToken enables webhook signature validation when set.
	AuthToken string
}

type AuthConfig struct {
	// AdminAPIKey enables the operator API when set.
	AdminAPIKey     string
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	c.App.PublicBaseURL = strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL"))

	c.Session.Backend = strings.ToLower(strings.TrimSpace(os.Getenv("SESSION_BACKEND")))
	c.Session.TTL, parseErrs = optionalDuration(parseErrs, "SESSION_TTL")

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	if c.DB.Host != "" {
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if c.Redis.Host != "" {
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Advisory.URL = strings.TrimSpace(os.Getenv("ADVISORY_URL"))
	c.Advisory.Timeout, parseErrs = optionalDuration(parseErrs, "ADVISORY_TIMEOUT")

	c.IVR.Language = strings.TrimSpace(os.Getenv("IVR_LANGUAGE"))
	c.IVR.GatherTimeout, parseErrs = optionalDuration(parseErrs, "IVR_GATHER_TIMEOUT")
	c.IVR.MaxUsernameAttempts, parseErrs = optionalInt(parseErrs, "IVR_MAX_USERNAME_ATTEMPTS")
	c.IVR.MaxPINAttempts, parseErrs = optionalInt(parseErrs, "IVR_MAX_PIN_ATTEMPTS")

	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")

	c.Auth.AdminAPIKey = os.Getenv("ADMIN_API_KEY")
	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL, parseErrs = optionalDuration(parseErrs, "JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL, parseErrs = optionalDuration(parseErrs, "JWT_REFRESH_TTL")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate applies defaults and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.PublicBaseURL != "" && !isHTTPURL(c.App.PublicBaseURL) {
		errs = append(errs, fmt.Errorf("PUBLIC_BASE_URL must be an http(s) URL, got %q", c.App.PublicBaseURL))
	}

	if c.Session.Backend == "" {
		c.Session.Backend = SessionBackendMemory
	}
	switch c.Session.Backend {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST is required when SESSION_BACKEND=redis"))
		}
		if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
	default:
		errs = append(errs, fmt.Errorf("SESSION_BACKEND must be memory or redis, got %q", c.Session.Backend))
	}
	if c.Session.TTL <= 0 {
		c.Session.TTL = time.Hour
	}

	if c.AuditEnabled() {
		if c.DB.Port <= 0 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required when DB_HOST is set"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required when DB_HOST is set"))
		}
		if c.DB.SSLMode == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			} else {
				c.DB.SSLMode = "disable"
			}
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	}

	if c.Advisory.URL == "" {
		errs = append(errs, errors.New("ADVISORY_URL is required"))
	} else if !isHTTPURL(c.Advisory.URL) {
		errs = append(errs, fmt.Errorf("ADVISORY_URL must be an http(s) URL, got %q", c.Advisory.URL))
	}
	if c.Advisory.Timeout <= 0 {
		c.Advisory.Timeout = 8 * time.Second
	}
	// A redis lock shorter than the advisory call could expire mid-turn.
	if c.Session.Backend == SessionBackendRedis && c.Session.TTL <= c.Advisory.Timeout {
		errs = append(errs, errors.New("SESSION_TTL must be greater than ADVISORY_TIMEOUT"))
	}

	if c.IVR.Language == "" {
		c.IVR.Language = "en-IN"
	}
	if c.IVR.GatherTimeout <= 0 {
		c.IVR.GatherTimeout = 5 * time.Second
	}
	if c.IVR.MaxUsernameAttempts < 0 || c.IVR.MaxPINAttempts < 0 {
		errs = append(errs, errors.New("IVR_MAX_*_ATTEMPTS must not be negative"))
	}
	if c.IVR.MaxUsernameAttempts == 0 {
		c.IVR.MaxUsernameAttempts = 1
	}
	if c.IVR.MaxPINAttempts == 0 {
		c.IVR.MaxPINAttempts = 2
	}

	if c.Twilio.AuthToken != "" && c.App.PublicBaseURL == "" {
		errs = append(errs, errors.New("PUBLIC_BASE_URL is required when TWILIO_AUTH_TOKEN is set"))
	}

	if c.OperatorAPIEnabled() {
		if c.Auth.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required when ADMIN_API_KEY is set"))
		}
		if c.IsProduction() {
			if c.Auth.JWTIssuer == "" {
				errs = append(errs, errors.New("JWT_ISSUER is required in production"))
			}
			if c.Auth.JWTAudience == "" {
				errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
			}
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) AuditEnabled() bool {
	return c.DB.Host != ""
}

func (c Config) OperatorAPIEnabled() bool {
	return c.Auth.AdminAPIKey != ""
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(errs []error, key string) (int, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, errs
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n, errs
}

func optionalDuration(errs []error, key string) (time.Duration, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, errs
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be a duration like 5s, got %q", key, v))
	}
	return d, errs
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func isHTTPURL(v string) bool {
	u, err := url.Parse(v)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
