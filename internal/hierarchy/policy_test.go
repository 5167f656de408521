package hierarchy

import (
	"testing"

	"churchcare/internal/apperr"
	"churchcare/internal/models"
)

func actor(id int64, role models.Role) models.Actor {
	return models.Actor{ID: id, Role: role, IsActive: true}
}

func ptr(v int64) *int64 { return &v }

func TestAllowed(t *testing.T) {
	memberOf := func(owner int64, overseer *int64) Target {
		return Target{Kind: models.SubjectMember, SubjectID: 100, OwnerID: owner, OverseerID: overseer}
	}
	shepherdSelf := func(id int64, overseer *int64) Target {
		return Target{Kind: models.SubjectShepherd, SubjectID: id, OwnerID: id, OverseerID: overseer}
	}

	cases := []struct {
		name   string
		actor  models.Actor
		action Action
		target Target
		allow  bool
	}{
		{"admin approves anything", actor(1, models.Admin), ActionApproveAttendance, memberOf(9, nil), true},
		{"pastor approves inside branch", actor(2, models.Pastor), ActionApproveAttendance, memberOf(9, ptr(2)), true},
		{"pastor denied outside branch", actor(2, models.Pastor), ActionApproveAttendance, memberOf(9, ptr(5)), false},
		{"pastor denied when shepherd has no overseer", actor(2, models.Pastor), ActionViewAttendance, memberOf(9, nil), false},
		{"shepherd submits own member", actor(9, models.Shepherd), ActionCreateAttendance, memberOf(9, ptr(2)), true},
		{"shepherd denied another flock", actor(9, models.Shepherd), ActionCreateAttendance, memberOf(8, ptr(2)), false},
		{"shepherd never approves, even own flock", actor(9, models.Shepherd), ActionApproveAttendance, memberOf(9, ptr(2)), false},
		{"shepherd submits own attendance", actor(9, models.Shepherd), ActionCreateAttendance, shepherdSelf(9, ptr(2)), true},
		{"shepherd denied another shepherd's attendance", actor(9, models.Shepherd), ActionCreateAttendance, shepherdSelf(8, ptr(2)), false},
		{"shepherd never approves own attendance", actor(9, models.Shepherd), ActionApproveAttendance, shepherdSelf(9, ptr(2)), false},
		{"pastor approves shepherd attendance in branch", actor(2, models.Pastor), ActionApproveAttendance, shepherdSelf(9, ptr(2)), true},
		{"shepherd manages own member", actor(9, models.Shepherd), ActionManageMember, memberOf(9, ptr(2)), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Allowed(tc.actor, tc.action, tc.target)
			if tc.allow && err != nil {
				t.Fatalf("expected allow, got %v", err)
			}
			if !tc.allow {
				if err == nil {
					t.Fatal("expected deny, got allow")
				}
				if apperr.KindOf(err) != apperr.Unauthorized {
					t.Fatalf("deny should be Unauthorized, got %v", apperr.KindOf(err))
				}
			}
		})
	}
}

func TestAllowed_InactiveActorAlwaysDenied(t *testing.T) {
	a := models.Actor{ID: 1, Role: models.Admin, IsActive: false}
	err := Allowed(a, ActionViewAttendance, Target{Kind: models.SubjectMember, SubjectID: 1, OwnerID: 2})
	if err == nil {
		t.Fatal("deactivated admin must be denied")
	}
}
