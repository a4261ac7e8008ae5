package db

import (
	"github.com/facturalink/dte-backend/internal/app/model"
	"github.com/facturalink/dte-backend/pkg/logger"
)

// Migrate runs database migrations
func Migrate() error {
	logger.Info("Running database migrations...")

	models := []interface{}{
		&model.Tenant{},
		&model.AuthorityCredential{},
		&model.Document{},
		&model.TransmissionJob{},
		&model.TransmissionAttempt{},
		&model.ComplianceRequirement{},
		&model.OnboardingState{},
		&model.RecurringTemplate{},
	}

	if err := DB.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}
