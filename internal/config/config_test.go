package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"billboard/internal/models"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("BILLBOARD_DB_PATH", "from-env.db")
	yamlContent := `
app:
  name: "billboard"
database:
  driver: "sqlite3"
  path: "${BILLBOARD_DB_PATH}"
cache:
  ttl: 90s
engine:
  max_mobile_units: 5
  reaper_interval: 30m
api:
  auth:
    api_keys:
      - key: "k1"
        name: "office"
        permissions: ["read:locations", "write:bookings"]
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config without .env: %v", err)
	}

	if cfg.Database.Path != "from-env.db" {
		t.Errorf("expected path expanded from env, got %s", cfg.Database.Path)
	}
	if cfg.Cache.TTL != 90*time.Second {
		t.Errorf("expected cache ttl 90s, got %s", cfg.Cache.TTL)
	}
	if cfg.Engine.MaxMobileUnits != 5 {
		t.Errorf("expected max_mobile_units 5, got %d", cfg.Engine.MaxMobileUnits)
	}
	if cfg.Engine.ReaperInterval != 30*time.Minute {
		t.Errorf("expected reaper interval 30m, got %s", cfg.Engine.ReaperInterval)
	}
	if cfg.Engine.HoldDays != models.DefaultHoldDays {
		t.Errorf("expected default hold days, got %d", cfg.Engine.HoldDays)
	}
	if len(cfg.API.Auth.APIKeys) != 1 || cfg.API.Auth.APIKeys[0].Name != "office" {
		t.Errorf("expected 1 api key named office")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateConfig(t *testing.T) {
	engine := EngineConfig{MaxMobileUnits: 20, HoldDays: 5}
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid sqlite",
			cfg: Config{
				Database: DatabaseConfig{Driver: DriverSQLite, Path: "billboard.db"},
				Engine:   engine,
			},
		},
		{
			name: "sqlite without path",
			cfg: Config{
				Database: DatabaseConfig{Driver: DriverSQLite},
				Engine:   engine,
			},
			wantErr: true,
		},
		{
			name: "valid mysql",
			cfg: Config{
				Database: DatabaseConfig{Driver: DriverMySQL, MySQL: MySQLConfig{Host: "db", DBName: "billboard"}},
				Engine:   engine,
			},
		},
		{
			name: "postgres without dbname",
			cfg: Config{
				Database: DatabaseConfig{Driver: DriverPostgres, Postgres: PostgresConfig{Host: "db"}},
				Engine:   engine,
			},
			wantErr: true,
		},
		{
			name: "unknown driver",
			cfg: Config{
				Database: DatabaseConfig{Driver: "oracle"},
				Engine:   engine,
			},
			wantErr: true,
		},
		{
			name: "zero capacity",
			cfg: Config{
				Database: DatabaseConfig{Driver: DriverSQLite, Path: "x.db"},
				Engine:   EngineConfig{MaxMobileUnits: 0, HoldDays: 5},
			},
			wantErr: true,
		},
		{
			name: "bad timezone",
			cfg: Config{
				Database: DatabaseConfig{Driver: DriverSQLite, Path: "x.db"},
				Engine:   EngineConfig{MaxMobileUnits: 20, HoldDays: 5, Timezone: "Mars/Olympus"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("expected default driver sqlite3, got %s", cfg.Database.Driver)
	}
	if cfg.Cache.TTL != models.DefaultCacheTTL {
		t.Errorf("expected default cache ttl %s, got %s", models.DefaultCacheTTL, cfg.Cache.TTL)
	}
	if cfg.Engine.MaxMobileUnits != models.DefaultMaxMobileUnits {
		t.Errorf("expected default capacity %d, got %d", models.DefaultMaxMobileUnits, cfg.Engine.MaxMobileUnits)
	}
	if cfg.Engine.HoldDays != models.DefaultHoldDays {
		t.Errorf("expected default hold days %d, got %d", models.DefaultHoldDays, cfg.Engine.HoldDays)
	}
	if cfg.API.HTTP.Port != 8080 {
		t.Errorf("expected default HTTP port 8080, got %d", cfg.API.HTTP.Port)
	}
	if cfg.API.Auth.HeaderAPIKey != "x-api-key" {
		t.Errorf("expected default api key header, got %s", cfg.API.Auth.HeaderAPIKey)
	}
}

func TestValidateAPIKeys(t *testing.T) {
	tests := []struct {
		name    string
		keys    []APIClientKey
		wantErr bool
	}{
		{
			name: "Valid keys",
			keys: []APIClientKey{
				{Key: "a", Name: "office", Permissions: []string{PermReadLocations}},
				{Key: "b", Name: "ops", Permissions: []string{PermAdminMaintenance, "*"}},
			},
		},
		{
			name:    "Duplicate key",
			keys:    []APIClientKey{{Key: "a", Name: "one"}, {Key: "a", Name: "two"}},
			wantErr: true,
		},
		{
			name:    "Empty key",
			keys:    []APIClientKey{{Name: "blank"}},
			wantErr: true,
		},
		{
			name:    "Unknown permission",
			keys:    []APIClientKey{{Key: "a", Name: "x", Permissions: []string{"write:everything"}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKeys(APIAuthConfig{APIKeys: tt.keys})
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKeys() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
