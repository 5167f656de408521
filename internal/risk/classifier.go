// Package risk scores members by disengagement: how long since the last
// confirmed presence (or since joining, for members who never attended).
package risk

import (
	"time"

	"churchcare/internal/models"
)

type Change struct {
	MemberID int64
	NewRisk  models.RiskLevel
}

// Classify is a pure function of elapsed time and thresholds. It never
// consults attendance history beyond the cached last_attendance_at.
func Classify(m models.Member, th models.RiskThresholds, now time.Time) models.RiskLevel {
	ref := m.JoinedAt
	if m.LastAttendanceAt != nil {
		ref = *m.LastAttendanceAt
	}
	days := int(now.Sub(ref).Hours() / 24)
	switch {
	case days >= th.HighRiskDays:
		return models.RiskHigh
	case days >= th.MediumRiskDays:
		return models.RiskMedium
	case days >= th.LowRiskDays:
		return models.RiskLow
	default:
		return models.RiskNone
	}
}

// Evaluate computes the writes one classifier run would make, skipping
// members whose level is unchanged. With tracking disabled it returns
// nothing at all.
func Evaluate(members []models.Member, th models.RiskThresholds, now time.Time) []Change {
	if !th.TrackingEnabled {
		return nil
	}
	var out []Change
	for _, m := range members {
		if !m.IsActive {
			continue
		}
		if lvl := Classify(m, th, now); lvl != m.RiskLevel {
			out = append(out, Change{MemberID: m.ID, NewRisk: lvl})
		}
	}
	return out
}
