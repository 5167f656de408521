//go:build testutil
// +build testutil

package db_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"churchcare/internal/db"
	"churchcare/internal/models"
	"churchcare/internal/testutil/testdb"
)

func mustActor(t *testing.T, ctx context.Context, h *testdb.DBHandle, a models.Actor) int64 {
	t.Helper()
	id, err := db.CreateActor(ctx, h.DB, a)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func mustMember(t *testing.T, ctx context.Context, h *testdb.DBHandle, name string, owner int64) int64 {
	t.Helper()
	id, err := db.CreateMember(ctx, h.DB, models.Member{Name: name, OwnerID: owner, IsActive: true})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func pendingRecord(subject models.Subject, day time.Time, submitter int64) models.AttendanceRecord {
	return models.AttendanceRecord{
		ID:          uuid.NewString(),
		Subject:     subject,
		Day:         day,
		Presence:    models.Present,
		Approval:    models.Pending,
		SubmittedBy: submitter,
	}
}

func TestCreateAttendance_DuplicateGuard(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	shepherd := mustActor(t, ctx, h, models.Actor{Name: "sh", Role: models.Shepherd, IsActive: true})
	memberID := mustMember(t, ctx, h, "m", shepherd)
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	inserted, err := db.CreateAttendance(ctx, h.DB, pendingRecord(models.MemberSubject(memberID), day, shepherd))
	if err != nil || !inserted {
		t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
	}

	// Same subject, same day: rejected no matter the presence value.
	dup := pendingRecord(models.MemberSubject(memberID), day, shepherd)
	dup.Presence = models.Absent
	inserted, err = db.CreateAttendance(ctx, h.DB, dup)
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Fatal("duplicate day slot accepted")
	}

	// Next day is a different slot.
	inserted, err = db.CreateAttendance(ctx, h.DB, pendingRecord(models.MemberSubject(memberID), day.AddDate(0, 0, 1), shepherd))
	if err != nil || !inserted {
		t.Fatalf("next-day insert: inserted=%v err=%v", inserted, err)
	}

	// A shepherd self-record on the same day is also a different slot.
	inserted, err = db.CreateAttendance(ctx, h.DB, pendingRecord(models.ShepherdSubject(shepherd), day, shepherd))
	if err != nil || !inserted {
		t.Fatalf("shepherd self insert: inserted=%v err=%v", inserted, err)
	}
}

func TestCreateAttendance_ConcurrentSubmissions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	shepherd := mustActor(t, ctx, h, models.Actor{Name: "sh", Role: models.Shepherd, IsActive: true})
	memberID := mustMember(t, ctx, h, "m", shepherd)
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := db.CreateAttendance(ctx, h.DB, pendingRecord(models.MemberSubject(memberID), day, shepherd))
			if err != nil {
				t.Error(err)
				return
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestTransitionAttendance_ApprovePresentRefreshesMember(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	pastor := mustActor(t, ctx, h, models.Actor{Name: "p", Role: models.Pastor, IsActive: true})
	shepherd := mustActor(t, ctx, h, models.Actor{Name: "sh", Role: models.Shepherd, OverseerID: &pastor, IsActive: true})
	memberID := mustMember(t, ctx, h, "m", shepherd)
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	rec := pendingRecord(models.MemberSubject(memberID), day, shepherd)
	if _, err := db.CreateAttendance(ctx, h.DB, rec); err != nil {
		t.Fatal(err)
	}

	ok, err := db.TransitionAttendance(ctx, h.DB, rec.ID, models.Approved, pastor, time.Now(), nil, nil)
	if err != nil || !ok {
		t.Fatalf("approve: ok=%v err=%v", ok, err)
	}

	m, err := db.GetMemberByID(ctx, h.DB, memberID)
	if err != nil {
		t.Fatal(err)
	}
	if m.LastAttendanceAt == nil || !m.LastAttendanceAt.Equal(day) {
		t.Fatalf("last_attendance_at = %v, want %v", m.LastAttendanceAt, day)
	}
	if m.RiskLevel != models.RiskNone {
		t.Fatalf("risk_level = %s, want none", m.RiskLevel)
	}

	// Terminal state: the same record cannot transition again.
	ok, err = db.TransitionAttendance(ctx, h.DB, rec.ID, models.Rejected, pastor, time.Now(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("approved record transitioned again")
	}
}

func TestTransitionAttendance_ApproveAbsentLeavesMemberUntouched(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	pastor := mustActor(t, ctx, h, models.Actor{Name: "p", Role: models.Pastor, IsActive: true})
	shepherd := mustActor(t, ctx, h, models.Actor{Name: "sh", Role: models.Shepherd, OverseerID: &pastor, IsActive: true})
	memberID := mustMember(t, ctx, h, "m", shepherd)

	rec := pendingRecord(models.MemberSubject(memberID), time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), shepherd)
	rec.Presence = models.Absent
	if _, err := db.CreateAttendance(ctx, h.DB, rec); err != nil {
		t.Fatal(err)
	}
	if ok, err := db.TransitionAttendance(ctx, h.DB, rec.ID, models.Approved, pastor, time.Now(), nil, nil); err != nil || !ok {
		t.Fatalf("approve: ok=%v err=%v", ok, err)
	}

	m, err := db.GetMemberByID(ctx, h.DB, memberID)
	if err != nil {
		t.Fatal(err)
	}
	if m.LastAttendanceAt != nil {
		t.Fatalf("absent approval must not refresh presence, got %v", m.LastAttendanceAt)
	}
}

func TestListAttendance_ScopeAndFilters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	sh1 := mustActor(t, ctx, h, models.Actor{Name: "sh1", Role: models.Shepherd, IsActive: true})
	sh2 := mustActor(t, ctx, h, models.Actor{Name: "sh2", Role: models.Shepherd, IsActive: true})
	m1 := mustMember(t, ctx, h, "m1", sh1)
	m2 := mustMember(t, ctx, h, "m2", sh2)
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	for _, r := range []models.AttendanceRecord{
		pendingRecord(models.MemberSubject(m1), day, sh1),
		pendingRecord(models.MemberSubject(m2), day, sh2),
		pendingRecord(models.ShepherdSubject(sh1), day, sh1),
	} {
		if _, err := db.CreateAttendance(ctx, h.DB, r); err != nil {
			t.Fatal(err)
		}
	}

	// sh1's scope sees its member and its own self-record, not sh2's flock.
	recs, err := db.ListAttendance(ctx, h.DB, db.AttendanceFilter{ShepherdIDs: []int64{sh1}, SubmitterID: &sh1})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("shepherd scope returned %d records, want 2", len(recs))
	}

	// Admin scope sees everything.
	recs, err = db.ListAttendance(ctx, h.DB, db.AttendanceFilter{AllSubjects: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("admin scope returned %d records, want 3", len(recs))
	}

	// Subject filter narrows within scope.
	subj := models.MemberSubject(m1)
	recs, err = db.ListAttendance(ctx, h.DB, db.AttendanceFilter{AllSubjects: true, Subject: &subj})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("subject filter returned %d records, want 1", len(recs))
	}
}
