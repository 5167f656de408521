package models

import "time"

type PresenceStatus string

const (
	Present PresenceStatus = "present"
	Absent  PresenceStatus = "absent"
	Excused PresenceStatus = "excused"
	Late    PresenceStatus = "late"
)

func (s PresenceStatus) Valid() bool {
	switch s {
	case Present, Absent, Excused, Late:
		return true
	}
	return false
}

type ApprovalStatus string

const (
	Pending  ApprovalStatus = "pending"
	Approved ApprovalStatus = "approved"
	Rejected ApprovalStatus = "rejected"
)

type SubjectKind string

const (
	SubjectMember   SubjectKind = "member"
	SubjectShepherd SubjectKind = "shepherd"
)

// Subject is who an attendance record is about: a member or a
// shepherd-as-actor, never both. The zero Subject is invalid; use the
// constructors so the exactly-one invariant holds by construction.
type Subject struct {
	kind SubjectKind
	id   int64
}

func MemberSubject(memberID int64) Subject {
	return Subject{kind: SubjectMember, id: memberID}
}

func ShepherdSubject(actorID int64) Subject {
	return Subject{kind: SubjectShepherd, id: actorID}
}

func (s Subject) Kind() SubjectKind { return s.kind }
func (s Subject) ID() int64         { return s.id }
func (s Subject) IsZero() bool      { return s.kind == "" }

func (s Subject) MemberID() (int64, bool) {
	if s.kind == SubjectMember {
		return s.id, true
	}
	return 0, false
}

func (s Subject) ShepherdID() (int64, bool) {
	if s.kind == SubjectShepherd {
		return s.id, true
	}
	return 0, false
}

// AttendanceRecord is one attendance assertion for a subject on a calendar
// day. Day is normalized to local midnight (see DayStart). ApprovalStatus
// is terminal once approved or rejected.
type AttendanceRecord struct {
	ID              string
	Subject         Subject
	Day             time.Time
	Presence        PresenceStatus
	Approval        ApprovalStatus
	Notes           *string
	SubmittedBy     int64
	ApprovedBy      *int64
	ApprovedAt      *time.Time
	RejectionReason *string
	CreatedAt       time.Time
}

// DayStart normalizes a timestamp to the start of its calendar day in loc.
// The whole system uses a single configured zone for day boundaries.
func DayStart(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}
