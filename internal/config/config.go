// Package config loads sheetsync settings from the environment and .env files.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Environments Plaid issues credentials for.
var Environments = []string{"sandbox", "development", "production"}

// ValidEnvironment reports whether env is one of Environments.
func ValidEnvironment(env string) bool {
	for _, e := range Environments {
		if strings.EqualFold(e, env) {
			return true
		}
	}
	return false
}

type PlaidConfig struct {
	Env          string        `envconfig:"ENV" default:"sandbox"`
	ClientID     string        `envconfig:"CLIENT_ID"`
	Secret       string        `envconfig:"SECRET"`
	CountryCodes []string      `envconfig:"COUNTRY_CODES" default:"US"`
	Timeout      time.Duration `envconfig:"TIMEOUT" default:"30s"`
	BaseURL      string        `envconfig:"BASE_URL"`

	// Secrets holds PLAID_SECRET_<ENV> values keyed by lower-case env.
	Secrets map[string]string `ignored:"true"`
}

type SheetsConfig struct {
	SpreadsheetID   string `envconfig:"SPREADSHEET_ID"`
	SheetName       string `envconfig:"SHEET_NAME" default:"Sheet1"`
	SheetID         int64  `envconfig:"SHEET_ID" default:"0"`
	CredentialsFile string `envconfig:"CREDENTIALS_FILE"`
	// ConfigFile holds {"spreadsheetId": ...}; used when SpreadsheetID is empty.
	ConfigFile string `envconfig:"CONFIG_FILE"`
}

type SyncConfig struct {
	NumDays     int           `envconfig:"NUM_DAYS" default:"30"`
	Order       string        `envconfig:"ORDER" default:"pending-first"`
	MinInterval time.Duration `envconfig:"MIN_INTERVAL" default:"12h"`
	TokensFile  string        `envconfig:"TOKENS_FILE" default:"db/tokens.json"`
}

type SessionConfig struct {
	Backend  string `envconfig:"BACKEND" default:"memory"`
	BoltPath string `envconfig:"BOLT_PATH" default:"db/session.db"`
}

type BigQueryConfig struct {
	ProjectID string `envconfig:"PROJECT_ID"`
	Dataset   string `envconfig:"DATASET" default:"finance"`
}

type NotionConfig struct {
	Token      string `envconfig:"TOKEN"`
	DatabaseID string `envconfig:"DATABASE_ID"`
}

type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"console"`
}

type HTTPConfig struct {
	Port int `envconfig:"PORT" default:"8080"`
}

// Config is the full application configuration.
type Config struct {
	Plaid    PlaidConfig    `envconfig:"PLAID"`
	Sheets   SheetsConfig   `envconfig:"SHEETS"`
	Sync     SyncConfig     `envconfig:"SYNC"`
	Session  SessionConfig  `envconfig:"SESSION"`
	BigQuery BigQueryConfig `envconfig:"BIGQUERY"`
	Notion   NotionConfig   `envconfig:"NOTION"`
	Log      LogConfig      `envconfig:"LOG"`
	HTTP     HTTPConfig     `envconfig:"HTTP"`
}

// Load reads envPath (or ./.env when empty and present) into the process
// environment and decodes the configuration from it.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("Load: failed to load %s: %w", envPath, err)
		}
	} else {
		// Missing ./.env is fine.
		_ = godotenv.Load()
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}

	cfg.Plaid.Env = strings.ToLower(cfg.Plaid.Env)
	cfg.Plaid.Secrets = make(map[string]string)
	for _, env := range Environments {
		if v := os.Getenv("PLAID_SECRET_" + strings.ToUpper(env)); v != "" {
			cfg.Plaid.Secrets[env] = v
		}
	}
	return &cfg, nil
}

// SecretFor returns the Plaid secret for env, falling back to PLAID_SECRET.
func (p PlaidConfig) SecretFor(env string) string {
	if s, ok := p.Secrets[strings.ToLower(env)]; ok && s != "" {
		return s
	}
	return p.Secret
}

// Validate reports every missing or invalid setting at once.
func (c *Config) Validate() error {
	var problems []string

	if !ValidEnvironment(c.Plaid.Env) {
		problems = append(problems, fmt.Sprintf("PLAID_ENV must be one of %s, got %q", strings.Join(Environments, ", "), c.Plaid.Env))
	}
	if c.Plaid.ClientID == "" {
		problems = append(problems, "PLAID_CLIENT_ID is required")
	}
	if c.Plaid.SecretFor(c.Plaid.Env) == "" {
		problems = append(problems, fmt.Sprintf("PLAID_SECRET or PLAID_SECRET_%s is required", strings.ToUpper(c.Plaid.Env)))
	}
	if c.Sheets.SpreadsheetID == "" && c.Sheets.ConfigFile == "" {
		problems = append(problems, "SHEETS_SPREADSHEET_ID or SHEETS_CONFIG_FILE is required")
	}
	if c.Sync.NumDays <= 0 {
		problems = append(problems, fmt.Sprintf("SYNC_NUM_DAYS must be positive, got %d", c.Sync.NumDays))
	}
	switch strings.ToLower(c.Sync.Order) {
	case "pending-first", "pending-last":
	default:
		problems = append(problems, fmt.Sprintf("SYNC_ORDER must be pending-first or pending-last, got %q", c.Sync.Order))
	}
	switch strings.ToLower(c.Session.Backend) {
	case "memory", "bolt":
	default:
		problems = append(problems, fmt.Sprintf("SESSION_BACKEND must be memory or bolt, got %q", c.Session.Backend))
	}
	if (c.Notion.Token == "") != (c.Notion.DatabaseID == "") {
		problems = append(problems, "NOTION_TOKEN and NOTION_DATABASE_ID must be set together")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// LedgerEnabled reports whether sync runs are recorded in BigQuery.
func (c *Config) LedgerEnabled() bool {
	return c.BigQuery.ProjectID != ""
}

// MirrorEnabled reports whether merged transactions are mirrored to Notion.
func (c *Config) MirrorEnabled() bool {
	return c.Notion.Token != "" && c.Notion.DatabaseID != ""
}
