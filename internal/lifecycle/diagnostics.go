package lifecycle

import (
	"go.uber.org/zap"

	"aiostreams/internal/logging"
	"aiostreams/pkg/database"
	"aiostreams/pkg/utils"
)

// LogStartupInfo writes a one-shot summary of the running configuration.
// Secrets are masked and the database URI is reduced to its dialect.
func LogStartupInfo(logger *zap.Logger, s *utils.Settings) {
	dialect := "unknown"
	if cfg, err := database.ParseURI(s.DatabaseURI); err == nil {
		dialect = string(cfg.Dialect)
	}

	logger.Info("startup info",
		zap.String("addon_id", s.AddonID),
		zap.String("addon_name", s.AddonName),
		zap.String("version", s.Version),
		zap.Int("port", s.Port),
		zap.String("database", dialect),
		zap.Duration("prune_interval", s.PruneInterval),
		zap.Int("prune_max_days", s.PruneMaxDays),
		zap.Duration("manifest_rate_window", s.ManifestRateWindow),
		zap.Int("manifest_rate_max", s.ManifestRateMax),
		zap.Bool("signed_config", s.HasAddonsConfig()),
		zap.String("signed_config_issuer", s.AddonsConfigIssuer),
		zap.String("signed_config_signature", logging.Mask(s.AddonsConfigSignature)),
		zap.String("log_level", s.LogLevel),
	)
}
