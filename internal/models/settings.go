package models

// RiskThresholds drive the disengagement classifier. Values are days
// since the member's last confirmed presence.
type RiskThresholds struct {
	LowRiskDays     int
	MediumRiskDays  int
	HighRiskDays    int
	TrackingEnabled bool
}

// DefaultRiskThresholds applies when no settings row exists.
func DefaultRiskThresholds() RiskThresholds {
	return RiskThresholds{
		LowRiskDays:     14,
		MediumRiskDays:  30,
		HighRiskDays:    60,
		TrackingEnabled: true,
	}
}
