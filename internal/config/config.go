package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Booking    BookingConfig    `yaml:"booking"`
	Exports    ExportConfig     `yaml:"exports"`
	Google     GoogleConfig     `yaml:"google"`
	Seed       SeedConfig       `yaml:"seed"`
}

type BookingConfig struct {
	Timezone        string `yaml:"timezone"`
	SlotStepMinutes int    `yaml:"slot_step_minutes"`
	MaxBookingDays  int    `yaml:"max_booking_days"`
	LockTTLSeconds  int    `yaml:"lock_ttl_seconds"`
	// ClientRateLimit ограничивает число попыток записи клиента в минуту, 0 выключает
	ClientRateLimit int    `yaml:"client_rate_limit"`
}

// Location resolves the booking timezone; empty or "Local" means the process zone.
func (b BookingConfig) Location() (*time.Location, error) {
	if b.Timezone == "" || b.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(b.Timezone)
}

func (b BookingConfig) SlotStep() time.Duration {
	return time.Duration(b.SlotStepMinutes) * time.Minute
}

func (b BookingConfig) LockTTL() time.Duration {
	return time.Duration(b.LockTTLSeconds) * time.Second
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type TelegramConfig struct {
	BotToken     string `yaml:"bot_token"`
	Debug        bool   `yaml:"debug"`
	ReminderTime string `yaml:"reminder_time"`
}

// Enabled reports whether a real bot token was configured.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.BotToken != "YOUR_BOT_TOKEN_HERE"
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type GoogleConfig struct {
	CredentialsFile           string `yaml:"credentials_file"`
	AppointmentsSpreadsheetID string `yaml:"appointments_spreadsheet_id"`
}

func (g GoogleConfig) Enabled() bool {
	return g.CredentialsFile != "" && g.AppointmentsSpreadsheetID != ""
}

type SeedConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env необязателен
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if _, err := c.Booking.Location(); err != nil {
		return fmt.Errorf("booking.timezone: %w", err)
	}
	if c.Booking.SlotStepMinutes <= 0 || c.Booking.SlotStepMinutes > 24*60 {
		return fmt.Errorf("booking.slot_step_minutes must be within 1..1440, got %d", c.Booking.SlotStepMinutes)
	}
	if c.Booking.MaxBookingDays < 0 {
		return fmt.Errorf("booking.max_booking_days must not be negative")
	}
	if c.Booking.ClientRateLimit < 0 {
		return fmt.Errorf("booking.client_rate_limit must not be negative")
	}

	if c.Telegram.ReminderTime != "" {
		if _, err := models.ParseClock(c.Telegram.ReminderTime); err != nil {
			return fmt.Errorf("telegram.reminder_time: %w", err)
		}
	}

	return ValidateAPIKeys(c.API.Auth)
}

// ValidateAPIKeys rejects empty or duplicate keys when auth is on.
func ValidateAPIKeys(auth APIAuthConfig) error {
	if !auth.Enabled {
		return nil
	}
	if len(auth.APIKeys) == 0 {
		return errors.New("api.auth enabled but no api_keys configured")
	}
	seen := make(map[string]bool)
	for _, k := range auth.APIKeys {
		if k.Key == "" {
			return fmt.Errorf("api key '%s' is empty", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key for '%s'", k.Name)
		}
		seen[k.Key] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "navalha"
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Booking.Timezone == "" {
		c.Booking.Timezone = "Local"
	}
	if c.Booking.SlotStepMinutes == 0 {
		c.Booking.SlotStepMinutes = models.DefaultSlotStepMinutes
	}
	if c.Booking.MaxBookingDays == 0 {
		c.Booking.MaxBookingDays = models.DefaultMaxBookingDays
	}
	if c.Booking.LockTTLSeconds == 0 {
		c.Booking.LockTTLSeconds = models.DefaultLockTTLSeconds
	}

	if c.Telegram.ReminderTime == "" {
		c.Telegram.ReminderTime = "20:00"
	}
	if c.Backup.RetentionDays == 0 {
		c.Backup.RetentionDays = 7
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
