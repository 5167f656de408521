package models

import "time"

type NotificationKind string

const (
	NotifyAttendancePending  NotificationKind = "attendance_pending"
	NotifyAttendanceApproved NotificationKind = "attendance_approved"
	NotifyAttendanceRejected NotificationKind = "attendance_rejected"
)

type Notification struct {
	ID          int64
	RecipientID int64
	Kind        NotificationKind
	Title       string
	Message     string
	RelatedID   *string
	IsRead      bool
	CreatedAt   time.Time
}
