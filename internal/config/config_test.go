package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("NAVALHA_TEST_DB", "navalha-test.db")

	path := writeConfig(t, `
database:
  path: "${NAVALHA_TEST_DB}"
booking:
  timezone: "UTC"
  slot_step_minutes: 15
api:
  auth:
    enabled: true
    api_keys:
      - key: "k1"
        name: "frontend"
        permissions: ["read:shops"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "navalha-test.db", cfg.Database.Path)
	assert.Equal(t, 15*time.Minute, cfg.Booking.SlotStep())
	assert.Equal(t, models.DefaultMaxBookingDays, cfg.Booking.MaxBookingDays)
	require.Len(t, cfg.API.Auth.APIKeys, 1)
	assert.Equal(t, "frontend", cfg.API.Auth.APIKeys[0].Name)

	loc, err := cfg.Booking.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		cfg := Config{Database: DatabaseConfig{Path: "path"}}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing db path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "bad timezone", mutate: func(c *Config) { c.Booking.Timezone = "Mars/Olympus" }, wantErr: true},
		{name: "negative step", mutate: func(c *Config) { c.Booking.SlotStepMinutes = -5 }, wantErr: true},
		{name: "bad reminder", mutate: func(c *Config) { c.Telegram.ReminderTime = "8pm" }, wantErr: true},
		{name: "auth without keys", mutate: func(c *Config) { c.API.Auth.Enabled = true }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.Equal(t, 8081, cfg.API.GRPC.Port)
	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, "Local", cfg.Booking.Timezone)
	assert.Equal(t, models.DefaultSlotStepMinutes, cfg.Booking.SlotStepMinutes)
	assert.Equal(t, time.Duration(models.DefaultLockTTLSeconds)*time.Second, cfg.Booking.LockTTL())
	assert.Equal(t, "20:00", cfg.Telegram.ReminderTime)
	assert.False(t, cfg.API.Auth.Enabled)
}

func TestValidateAPIKeys(t *testing.T) {
	tests := []struct {
		name    string
		auth    APIAuthConfig
		wantErr bool
	}{
		{name: "disabled", auth: APIAuthConfig{}},
		{
			name: "valid keys",
			auth: APIAuthConfig{Enabled: true, APIKeys: []APIClientKey{{Key: "a"}, {Key: "b"}}},
		},
		{
			name:    "duplicate",
			auth:    APIAuthConfig{Enabled: true, APIKeys: []APIClientKey{{Key: "a"}, {Key: "a"}}},
			wantErr: true,
		},
		{
			name:    "empty key",
			auth:    APIAuthConfig{Enabled: true, APIKeys: []APIClientKey{{Name: "x"}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKeys(tt.auth)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKeys() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTelegramAndGoogleEnabled(t *testing.T) {
	assert.False(t, TelegramConfig{BotToken: "YOUR_BOT_TOKEN_HERE"}.Enabled())
	assert.True(t, TelegramConfig{BotToken: "123:abc"}.Enabled())
	assert.False(t, GoogleConfig{CredentialsFile: "creds.json"}.Enabled())
	assert.True(t, GoogleConfig{CredentialsFile: "creds.json", AppointmentsSpreadsheetID: "sheet"}.Enabled())
}
