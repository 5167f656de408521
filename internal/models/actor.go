package models

import "time"

type Role string

const (
	Admin    Role = "admin"
	Pastor   Role = "pastor"
	Shepherd Role = "shepherd"
)

func (r Role) Valid() bool {
	switch r {
	case Admin, Pastor, Shepherd:
		return true
	}
	return false
}

// Actor is a staff account: an admin, a pastor, or a shepherd.
// Shepherds carry an OverseerID pointing at their pastor; for other roles
// the field stays nil. Actors are soft-deactivated, never deleted.
type Actor struct {
	ID         int64
	Name       string
	Role       Role
	OverseerID *int64
	ChatID     *int64
	IsActive   bool
	CreatedAt  time.Time
}
