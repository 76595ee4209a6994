package utils

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	defaultAddonID     = "com.aiostreams.viren070"
	defaultAddonName   = "AIOStreams"
	defaultDescription = "AIOStreams consolidates multiple Stremio addons and debrid services into a single, easily configurable addon."
	defaultBackground  = "https://raw.githubusercontent.com/Viren070/AIOStreams/refs/heads/main/packages/frontend/public/assets/background.png"
	defaultLogo        = "https://raw.githubusercontent.com/Viren070/AIOStreams/refs/heads/main/packages/frontend/public/assets/logo.png"

	// UnknownVersion is what unstamped builds report.
	UnknownVersion = "unknown"
)

// Settings is the process-wide configuration read from the environment once
// at start-up. It is passed explicitly to whatever needs it and never
// mutated afterwards.
type Settings struct {
	AddonID     string `validate:"required"`
	AddonName   string `validate:"required"`
	Version     string
	Description string
	Background  string `validate:"omitempty,http_url"`
	Logo        string `validate:"omitempty,http_url"`

	AddonsConfigIssuer    string
	AddonsConfigSignature string

	DatabaseURI   string `validate:"required"`
	PruneInterval time.Duration
	PruneMaxDays  int `validate:"gt=0"`

	Port      int `validate:"min=0,max=65535"`
	LogLevel  string
	LogFormat string `validate:"oneof=json console"`

	JWTSecret   string `validate:"required"`
	JWTIssuer   string
	JWTDuration time.Duration

	ManifestRateWindow time.Duration
	ManifestRateMax    int `validate:"gt=0"`

	EngineFetchTimeout time.Duration
	MetadataPath       string
}

// HasAddonsConfig reports whether both halves of the signed-config block are set.
func (s Settings) HasAddonsConfig() bool {
	return s.AddonsConfigIssuer != "" && s.AddonsConfigSignature != ""
}

// LoadSettings reads Settings from the environment, falling back to the
// build metadata file for the version and description.
func LoadSettings() (Settings, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("ADDON_ID", defaultAddonID)
	v.SetDefault("ADDON_NAME", defaultAddonName)
	v.SetDefault("DEFAULT_BACKGROUND", defaultBackground)
	v.SetDefault("DEFAULT_LOGO", defaultLogo)
	v.SetDefault("DATABASE_URI", "sqlite://./data/db.sqlite")
	v.SetDefault("PRUNE_INTERVAL", 86400)
	v.SetDefault("PRUNE_MAX_DAYS", 30)
	v.SetDefault("PORT", 3000)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	// dev default (change for production)
	v.SetDefault("SECRET_KEY", "dev-secret-change-me")
	v.SetDefault("TOKEN_TTL_HOURS", 24)
	v.SetDefault("STREMIO_MANIFEST_RATE_LIMIT_WINDOW", 5)
	v.SetDefault("STREMIO_MANIFEST_RATE_LIMIT_MAX_REQUESTS", 5)
	v.SetDefault("ENGINE_FETCH_TIMEOUT", 10)
	v.SetDefault("METADATA_PATH", DefaultMetadataPath)

	s := Settings{
		AddonID:               v.GetString("ADDON_ID"),
		AddonName:             v.GetString("ADDON_NAME"),
		Version:               v.GetString("VERSION"),
		Description:           v.GetString("DESCRIPTION"),
		Background:            v.GetString("DEFAULT_BACKGROUND"),
		Logo:                  v.GetString("DEFAULT_LOGO"),
		AddonsConfigIssuer:    v.GetString("STREMIO_ADDONS_CONFIG_ISSUER"),
		AddonsConfigSignature: v.GetString("STREMIO_ADDONS_CONFIG_SIGNATURE"),
		DatabaseURI:           v.GetString("DATABASE_URI"),
		PruneInterval:         time.Duration(v.GetInt("PRUNE_INTERVAL")) * time.Second,
		PruneMaxDays:          v.GetInt("PRUNE_MAX_DAYS"),
		Port:                  v.GetInt("PORT"),
		LogLevel:              v.GetString("LOG_LEVEL"),
		LogFormat:             v.GetString("LOG_FORMAT"),
		JWTSecret:             v.GetString("SECRET_KEY"),
		JWTIssuer:             v.GetString("ADDON_ID"),
		JWTDuration:           time.Duration(v.GetInt("TOKEN_TTL_HOURS")) * time.Hour,
		ManifestRateWindow:    time.Duration(v.GetInt("STREMIO_MANIFEST_RATE_LIMIT_WINDOW")) * time.Second,
		ManifestRateMax:       v.GetInt("STREMIO_MANIFEST_RATE_LIMIT_MAX_REQUESTS"),
		EngineFetchTimeout:    time.Duration(v.GetInt("ENGINE_FETCH_TIMEOUT")) * time.Second,
		MetadataPath:          v.GetString("METADATA_PATH"),
	}

	if s.Version == "" || s.Description == "" {
		// a missing metadata file just means an unstamped build
		meta, err := ReadBuildMetadata(s.MetadataPath)
		if err == nil {
			if s.Version == "" {
				s.Version = meta.Version
			}
			if s.Description == "" {
				s.Description = meta.Description
			}
		}
	}
	if s.Version == "" {
		s.Version = UnknownVersion
	}
	if s.Description == "" {
		s.Description = defaultDescription
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks the settings for values the service cannot run with.
func (s Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	if s.PruneInterval <= 0 {
		return fmt.Errorf("invalid settings: PRUNE_INTERVAL must be positive")
	}
	if s.ManifestRateWindow <= 0 {
		return fmt.Errorf("invalid settings: STREMIO_MANIFEST_RATE_LIMIT_WINDOW must be positive")
	}
	if s.JWTDuration <= 0 {
		return fmt.Errorf("invalid settings: TOKEN_TTL_HOURS must be positive")
	}
	if s.EngineFetchTimeout <= 0 {
		return fmt.Errorf("invalid settings: ENGINE_FETCH_TIMEOUT must be positive")
	}
	return nil
}
