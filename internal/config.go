package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	PayPal        PayPalConfig        `mapstructure:"paypal"`
	Calendar      CalendarConfig      `mapstructure:"calendar"`
	Mail          MailConfig          `mapstructure:"mail"`
	Sync          SyncConfig          `mapstructure:"sync"`
	Housekeeping  HousekeepingConfig  `mapstructure:"housekeeping"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	AccessTokenSecret    string        `mapstructure:"access_token_secret" validate:"required,min=32"`
	RefreshTokenSecret   string        `mapstructure:"refresh_token_secret" validate:"required,min=32"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration" validate:"required,min=1m,max=1h"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration" validate:"required,min=1h"`
	BCryptCost           int           `mapstructure:"bcrypt_cost" validate:"required,min=10,max=15"`
}

// PayPalConfig holds credentials and endpoints for the payment gateway.
type PayPalConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	ClientID       string        `mapstructure:"client_id"`
	ClientSecret   string        `mapstructure:"client_secret"`
	ReturnURL      string        `mapstructure:"return_url"`
	CancelURL      string        `mapstructure:"cancel_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type CalendarConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	CalendarID     string        `mapstructure:"calendar_id"`
	AccessToken    string        `mapstructure:"access_token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type MailConfig struct {
	APIURL    string `mapstructure:"api_url"`
	APIToken  string `mapstructure:"api_token"`
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
}

// SyncConfig tunes the payment status reconciler and monitor.
type SyncConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BackoffBase   time.Duration `mapstructure:"backoff_base"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
	RepairPause   time.Duration `mapstructure:"repair_pause"`
	SettleDelay   time.Duration `mapstructure:"settle_delay"`
}

// HousekeepingConfig tunes the periodic chores: reminder mail and stale
// pending-payment expiry.
type HousekeepingConfig struct {
	Interval          time.Duration `mapstructure:"interval"`
	ReminderLead      time.Duration `mapstructure:"reminder_lead"`
	PendingPaymentTTL time.Duration `mapstructure:"pending_payment_ttl"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// ----------------- HELPERS -----------------

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

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// LoadConfigFromEnv builds the configuration purely from environment
// variables, used for containerized deployments.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:           getEnv("SERVER_BASE_URL", "http://localhost:8080"),
			AllowedOrigins:    getEnv("SERVER_ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: getEnvAsDuration("SERVER_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			IdleTimeout:       getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DB_SOURCE", ""),
		},
		Security: SecurityConfig{
			AccessTokenSecret:    getEnv("ACCESS_TOKEN_SECRET", ""),
			RefreshTokenSecret:   getEnv("REFRESH_TOKEN_SECRET", ""),
			AccessTokenDuration:  getEnvAsDuration("ACCESS_TOKEN_DURATION", 15*time.Minute),
			RefreshTokenDuration: getEnvAsDuration("REFRESH_TOKEN_DURATION", 7*24*time.Hour),
			BCryptCost:           getEnvAsInt("BCRYPT_COST", 12),
		},
		PayPal: PayPalConfig{
			BaseURL:        getEnv("PAYPAL_BASE_URL", "https://api.sandbox.paypal.com"),
			ClientID:       getEnv("PAYPAL_CLIENT_ID", ""),
			ClientSecret:   getEnv("PAYPAL_CLIENT_SECRET", ""),
			ReturnURL:      getEnv("PAYPAL_RETURN_URL", ""),
			CancelURL:      getEnv("PAYPAL_CANCEL_URL", ""),
			RequestTimeout: getEnvAsDuration("PAYPAL_REQUEST_TIMEOUT", 15*time.Second),
		},
		Calendar: CalendarConfig{
			Enabled:        getEnv("CALENDAR_ENABLED", "false") == "true",
			BaseURL:        getEnv("CALENDAR_BASE_URL", "https://www.googleapis.com/calendar/v3"),
			CalendarID:     getEnv("CALENDAR_ID", "primary"),
			AccessToken:    getEnv("CALENDAR_ACCESS_TOKEN", ""),
			RequestTimeout: getEnvAsDuration("CALENDAR_REQUEST_TIMEOUT", 15*time.Second),
		},
		Mail: MailConfig{
			APIURL:    getEnv("MAIL_API_URL", ""),
			APIToken:  getEnv("MAIL_API_TOKEN", ""),
			FromEmail: getEnv("MAIL_FROM_EMAIL", "noreply@smiledesk.example"),
			FromName:  getEnv("MAIL_FROM_NAME", "SmileDesk Clinic"),
		},
		Sync: SyncConfig{
			MaxAttempts:   getEnvAsInt("SYNC_MAX_ATTEMPTS", 3),
			BackoffBase:   getEnvAsDuration("SYNC_BACKOFF_BASE", time.Second),
			CheckInterval: getEnvAsDuration("SYNC_CHECK_INTERVAL", 30*time.Second),
			RepairPause:   getEnvAsDuration("SYNC_REPAIR_PAUSE", time.Second),
			SettleDelay:   getEnvAsDuration("SYNC_SETTLE_DELAY", 2*time.Second),
		},
		Housekeeping: HousekeepingConfig{
			Interval:          getEnvAsDuration("HOUSEKEEPING_INTERVAL", time.Hour),
			ReminderLead:      getEnvAsDuration("HOUSEKEEPING_REMINDER_LEAD", 24*time.Hour),
			PendingPaymentTTL: getEnvAsDuration("HOUSEKEEPING_PENDING_PAYMENT_TTL", 24*time.Hour),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.PayPal.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("paypal config: %v", err))
	}

	if err := c.Sync.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("sync config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.AccessTokenSecret) < 32 {
		return errors.New("access token secret must be at least 32 characters")
	}
	if len(c.RefreshTokenSecret) < 32 {
		return errors.New("refresh token secret must be at least 32 characters")
	}
	return nil
}

func (c *PayPalConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 15 * time.Second
	}
	return nil
}

func (c *SyncConfig) Validate() error {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 30 * time.Second
	}
	if c.RepairPause <= 0 {
		c.RepairPause = time.Second
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 2 * time.Second
	}
	return nil
}
