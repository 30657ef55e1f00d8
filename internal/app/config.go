package app

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/k9trials/ringsync/internal/orgs"
)

type SheetConfig struct {
	LicenseKey      string `toml:"license_key" validate:"required"`
	CredentialsPath string `toml:"credentials_path" validate:"required"`
	SheetID         string `toml:"sheet_id" validate:"required"`
	SheetName       string `toml:"sheet_name" validate:"required"`
	Schedule        string `toml:"schedule" validate:"required"`
}

type Config struct {
	Database struct {
		DSN           string `toml:"dsn" validate:"required"`
		MigrationsDir string `toml:"migrations_dir"`
	} `toml:"database"`

	Remote struct {
		BaseURL        string `toml:"base_url" validate:"required,url"`
		APIKey         string `toml:"api_key" validate:"required"`
		BearerToken    string `toml:"bearer_token" validate:"required"`
		TimeoutSeconds int    `toml:"timeout_seconds"`
	} `toml:"remote"`

	Org struct {
		// Profile names a shipped vocabulary (ukc-nosework, akc-scentwork);
		// Custom overrides it entirely when set.
		Profile string        `toml:"profile"`
		Custom  *orgs.Profile `toml:"custom"`
	} `toml:"org"`

	Lock struct {
		Enabled    bool   `toml:"enabled"`
		RedisURL   string `toml:"redis_url"`
		TTLSeconds int    `toml:"ttl_seconds"`
	} `toml:"lock"`

	Server struct {
		Listen string `toml:"listen"`
	} `toml:"server"`

	Notify struct {
		Enabled  bool    `toml:"enabled"`
		BotToken string  `toml:"bot_token"`
		ChatIDs  []int64 `toml:"chat_ids"`
	} `toml:"notify"`

	Export struct {
		Sheets []SheetConfig `toml:"sheets"`
	} `toml:"export"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
	}

	// Secrets may come from the environment instead of the file.
	if v := os.Getenv("RINGSYNC_API_KEY"); v != "" {
		config.Remote.APIKey = v
	}
	if v := os.Getenv("RINGSYNC_BEARER_TOKEN"); v != "" {
		config.Remote.BearerToken = v
	}

	validate := validator.New()
	if err := validate.Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	if config.Database.MigrationsDir == "" {
		config.Database.MigrationsDir = "./migrations"
	}
	if config.Lock.Enabled && config.Lock.RedisURL == "" {
		return nil, fmt.Errorf("lock.redis_url is required when the session lock is enabled")
	}

	logger.Debug.Printf("Loaded config for remote %s", config.Remote.BaseURL)

	return &config, nil
}

// OrgProfile resolves the configured organization vocabulary.
func (c *Config) OrgProfile() (orgs.Profile, error) {
	if c.Org.Custom != nil {
		if err := c.Org.Custom.Validate(); err != nil {
			return orgs.Profile{}, fmt.Errorf("invalid custom org profile: %w", err)
		}
		return *c.Org.Custom, nil
	}

	key := c.Org.Profile
	if key == "" {
		key = "ukc-nosework"
	}
	profile, ok := orgs.Builtin(key)
	if !ok {
		return orgs.Profile{}, fmt.Errorf("unknown org profile %q", key)
	}
	return profile, nil
}
