package db

import (
	"context"
	"database/sql"
	"errors"

	"churchcare/internal/models"
)

// GetRiskThresholds returns the configured classifier thresholds, or the
// documented defaults when no settings row exists yet.
func GetRiskThresholds(ctx context.Context, database *sql.DB) (models.RiskThresholds, error) {
	var t models.RiskThresholds
	err := database.QueryRowContext(ctx, `
		SELECT low_risk_days, medium_risk_days, high_risk_days, tracking_enabled
		FROM settings WHERE id = 1
	`).Scan(&t.LowRiskDays, &t.MediumRiskDays, &t.HighRiskDays, &t.TrackingEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultRiskThresholds(), nil
	}
	if err != nil {
		return models.RiskThresholds{}, err
	}
	return t, nil
}

func SaveRiskThresholds(ctx context.Context, database *sql.DB, t models.RiskThresholds) error {
	_, err := database.ExecContext(ctx, `
		INSERT INTO settings (id, low_risk_days, medium_risk_days, high_risk_days, tracking_enabled, updated_at)
		VALUES (1, $1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE SET
			low_risk_days = EXCLUDED.low_risk_days,
			medium_risk_days = EXCLUDED.medium_risk_days,
			high_risk_days = EXCLUDED.high_risk_days,
			tracking_enabled = EXCLUDED.tracking_enabled,
			updated_at = now()
	`, t.LowRiskDays, t.MediumRiskDays, t.HighRiskDays, t.TrackingEnabled)
	return err
}
