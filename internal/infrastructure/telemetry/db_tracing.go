package telemetry

import (
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing
type DBTracingConfig struct {
	Enabled    bool
	LogFullSQL bool   // include query variables in spans
	DBSystem   string // e.g. "postgresql"
}

// RegisterDBTracing installs the otelgorm plugin on db when enabled
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	dbSystem := cfg.DBSystem
	if dbSystem == "" {
		dbSystem = "postgresql"
	}
	opts := []otelgorm.Option{otelgorm.WithDBName(dbSystem)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.String("db_system", dbSystem),
		zap.Bool("log_full_sql", cfg.LogFullSQL),
	)
	return nil
}
