package models

import "time"

type RiskLevel string

const (
	RiskNone   RiskLevel = "none"
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Member is a cared-for person owned by exactly one shepherd.
// LastAttendanceAt and RiskLevel are written only by attendance approval
// (approved + present) and by the risk classifier.
type Member struct {
	ID               int64
	Name             string
	OwnerID          int64
	LastAttendanceAt *time.Time
	RiskLevel        RiskLevel
	IsActive         bool
	JoinedAt         time.Time
}
