// Package hierarchy answers "may this actor do this to that subject".
// Every mutating operation and every list filter goes through here; no
// call site carries its own role checks.
package hierarchy

import (
	"churchcare/internal/apperr"
	"churchcare/internal/models"
)

type Action string

const (
	ActionCreateAttendance  Action = "create_attendance"
	ActionApproveAttendance Action = "approve_attendance"
	ActionViewAttendance    Action = "view_attendance"
	ActionManageMember      Action = "manage_member"
)

// Target is a subject with its care edges resolved: the shepherd
// responsible for it and that shepherd's pastor.
type Target struct {
	Kind       models.SubjectKind
	SubjectID  int64
	OwnerID    int64  // member's owner, or the shepherd subject itself
	OverseerID *int64 // pastor over OwnerID, when set
}

// Allowed evaluates the policy table in priority order:
// admin > pastor (via overseer edge) > shepherd (via owner edge) > deny.
func Allowed(actor models.Actor, action Action, t Target) error {
	if !actor.IsActive {
		return apperr.Unauthorizedf("actor %d is deactivated", actor.ID)
	}
	switch actor.Role {
	case models.Admin:
		return nil
	case models.Pastor:
		if t.OverseerID != nil && *t.OverseerID == actor.ID {
			return nil
		}
		return apperr.Unauthorizedf("pastor %d does not oversee the shepherd responsible for %s %d",
			actor.ID, t.Kind, t.SubjectID)
	case models.Shepherd:
		// Shepherds never drive approvals, not even for their own flock.
		if action == ActionApproveAttendance {
			return apperr.Unauthorizedf("shepherd %d may not approve attendance", actor.ID)
		}
		if t.Kind == models.SubjectMember && t.OwnerID == actor.ID {
			return nil
		}
		// A shepherd may submit/view their own attendance.
		if t.Kind == models.SubjectShepherd && t.SubjectID == actor.ID {
			return nil
		}
		return apperr.Unauthorizedf("shepherd %d has no authority over %s %d", actor.ID, t.Kind, t.SubjectID)
	default:
		return apperr.Unauthorizedf("role %q has no permissions", actor.Role)
	}
}

// Scope is the row-visibility counterpart of Allowed, consumed by list
// queries so filtering happens in one place.
type Scope struct {
	AllSubjects bool
	ShepherdIDs []int64 // subjects owned by these shepherds are visible
	SubmitterID *int64  // plus records submitted by this actor
}
