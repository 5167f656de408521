//go:build testutil
// +build testutil

package attendance_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"churchcare/internal/apperr"
	"churchcare/internal/attendance"
	"churchcare/internal/db"
	"churchcare/internal/hierarchy"
	"churchcare/internal/models"
	"churchcare/internal/notify"
	"churchcare/internal/testutil/testdb"
)

// captureNotifier records emitted events instead of delivering them.
type captureNotifier struct {
	events []notify.Event
}

func (n *captureNotifier) Emit(_ context.Context, ev notify.Event) {
	n.events = append(n.events, ev)
}

type fixture struct {
	h        *testdb.DBHandle
	svc      *attendance.Service
	notifier *captureNotifier

	admin, pastor, shepherd, outsider int64
	memberID                          int64
}

func setup(t *testing.T, ctx context.Context) *fixture {
	t.Helper()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(h.Close)

	f := &fixture{h: h, notifier: &captureNotifier{}}

	mk := func(a models.Actor) int64 {
		id, err := db.CreateActor(ctx, h.DB, a)
		if err != nil {
			t.Fatal(err)
		}
		return id
	}
	f.admin = mk(models.Actor{Name: "admin", Role: models.Admin, IsActive: true})
	f.pastor = mk(models.Actor{Name: "pastor", Role: models.Pastor, IsActive: true})
	f.shepherd = mk(models.Actor{Name: "shepherd", Role: models.Shepherd, OverseerID: &f.pastor, IsActive: true})
	f.outsider = mk(models.Actor{Name: "outsider", Role: models.Shepherd, IsActive: true})

	f.memberID, err = db.CreateMember(ctx, h.DB, models.Member{Name: "member", OwnerID: f.shepherd, IsActive: true})
	if err != nil {
		t.Fatal(err)
	}

	dir := hierarchy.NewDirectory(h.DB)
	f.svc = attendance.NewService(h.DB, dir, f.notifier, time.UTC, zap.NewNop().Sugar())
	return f
}

func submitInput(subject models.Subject) attendance.SubmitInput {
	return attendance.SubmitInput{
		Subject:  subject,
		At:       time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC),
		Presence: models.Present,
	}
}

func TestSubmit_Lifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := setup(t, ctx)

	rec, err := f.svc.Submit(ctx, f.shepherd, submitInput(models.MemberSubject(f.memberID)))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Approval != models.Pending {
		t.Fatalf("fresh record is %s, want pending", rec.Approval)
	}
	if !rec.Day.Equal(time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("day not normalized: %v", rec.Day)
	}

	// Shepherd submission notifies the overseeing pastor and the admin.
	if len(f.notifier.events) != 2 {
		t.Fatalf("expected 2 pending notifications, got %d", len(f.notifier.events))
	}

	// The shepherd cannot approve, not even their own submission.
	err = f.svc.Approve(ctx, f.shepherd, rec.ID, nil)
	if apperr.KindOf(err) != apperr.Unauthorized {
		t.Fatalf("shepherd approve: kind=%v err=%v", apperr.KindOf(err), err)
	}

	if err := f.svc.Approve(ctx, f.pastor, rec.ID, nil); err != nil {
		t.Fatal(err)
	}

	got, err := f.svc.Get(ctx, f.pastor, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Approval != models.Approved || got.ApprovedBy == nil || *got.ApprovedBy != f.pastor {
		t.Fatalf("after approve: %+v", got)
	}

	m, err := db.GetMemberByID(ctx, f.h.DB, f.memberID)
	if err != nil {
		t.Fatal(err)
	}
	if m.LastAttendanceAt == nil {
		t.Fatal("approval of a present record must refresh the member")
	}

	// Approved is terminal.
	err = f.svc.Reject(ctx, f.pastor, rec.ID, "changed my mind")
	if apperr.KindOf(err) != apperr.InvalidState {
		t.Fatalf("re-transition: kind=%v err=%v", apperr.KindOf(err), err)
	}
}

func TestSubmit_DuplicateDay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := setup(t, ctx)

	if _, err := f.svc.Submit(ctx, f.shepherd, submitInput(models.MemberSubject(f.memberID))); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.Submit(ctx, f.shepherd, submitInput(models.MemberSubject(f.memberID)))
	if apperr.KindOf(err) != apperr.Duplicate {
		t.Fatalf("second submit: kind=%v err=%v", apperr.KindOf(err), err)
	}
}

func TestSubmit_RejectedDayStaysBlocked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := setup(t, ctx)

	rec, err := f.svc.Submit(ctx, f.shepherd, submitInput(models.MemberSubject(f.memberID)))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Reject(ctx, f.pastor, rec.ID, "not at the service"); err != nil {
		t.Fatal(err)
	}

	// The rejected record still occupies the day slot.
	_, err = f.svc.Submit(ctx, f.shepherd, submitInput(models.MemberSubject(f.memberID)))
	if apperr.KindOf(err) != apperr.Duplicate {
		t.Fatalf("resubmit after reject: kind=%v err=%v", apperr.KindOf(err), err)
	}
}

func TestReject_RequiresReason(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := setup(t, ctx)

	rec, err := f.svc.Submit(ctx, f.shepherd, submitInput(models.MemberSubject(f.memberID)))
	if err != nil {
		t.Fatal(err)
	}
	err = f.svc.Reject(ctx, f.pastor, rec.ID, "")
	if apperr.KindOf(err) != apperr.Validation {
		t.Fatalf("empty reason: kind=%v err=%v", apperr.KindOf(err), err)
	}
}

func TestSubmit_OutsiderDenied(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := setup(t, ctx)

	_, err := f.svc.Submit(ctx, f.outsider, submitInput(models.MemberSubject(f.memberID)))
	if apperr.KindOf(err) != apperr.Unauthorized {
		t.Fatalf("outsider submit: kind=%v err=%v", apperr.KindOf(err), err)
	}
}

func TestSubmit_AssertApproved(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := setup(t, ctx)

	// Shepherds cannot skip the pending stage.
	in := submitInput(models.MemberSubject(f.memberID))
	in.AssertApproved = true
	_, err := f.svc.Submit(ctx, f.shepherd, in)
	if apperr.KindOf(err) != apperr.Unauthorized {
		t.Fatalf("shepherd assert-approved: kind=%v err=%v", apperr.KindOf(err), err)
	}

	rec, err := f.svc.Submit(ctx, f.admin, in)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Approval != models.Approved {
		t.Fatalf("admin assert-approved landed %s", rec.Approval)
	}
	m, err := db.GetMemberByID(ctx, f.h.DB, f.memberID)
	if err != nil {
		t.Fatal(err)
	}
	if m.LastAttendanceAt == nil {
		t.Fatal("direct approval of a present record must refresh the member")
	}
}

func TestUpdate_OnlySubmitterWhilePending(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := setup(t, ctx)

	rec, err := f.svc.Submit(ctx, f.shepherd, submitInput(models.MemberSubject(f.memberID)))
	if err != nil {
		t.Fatal(err)
	}

	late := models.Late
	err = f.svc.Update(ctx, f.admin, rec.ID, attendance.UpdateInput{Presence: &late})
	if apperr.KindOf(err) != apperr.Unauthorized {
		t.Fatalf("admin edit of someone else's record: kind=%v err=%v", apperr.KindOf(err), err)
	}

	if err := f.svc.Update(ctx, f.shepherd, rec.ID, attendance.UpdateInput{Presence: &late}); err != nil {
		t.Fatal(err)
	}
	got, err := f.svc.Get(ctx, f.shepherd, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Presence != models.Late {
		t.Fatalf("presence = %s after update", got.Presence)
	}

	if err := f.svc.Approve(ctx, f.pastor, rec.ID, nil); err != nil {
		t.Fatal(err)
	}
	err = f.svc.Update(ctx, f.shepherd, rec.ID, attendance.UpdateInput{Presence: &late})
	if apperr.KindOf(err) != apperr.InvalidState {
		t.Fatalf("edit after approve: kind=%v err=%v", apperr.KindOf(err), err)
	}
}

func TestRemove(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := setup(t, ctx)

	rec, err := f.svc.Submit(ctx, f.shepherd, submitInput(models.MemberSubject(f.memberID)))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Approve(ctx, f.pastor, rec.ID, nil); err != nil {
		t.Fatal(err)
	}

	// After approval the submitter may no longer remove it.
	err = f.svc.Remove(ctx, f.shepherd, rec.ID)
	if apperr.KindOf(err) != apperr.Unauthorized {
		t.Fatalf("submitter remove after approve: kind=%v err=%v", apperr.KindOf(err), err)
	}

	// The admin override still can, and frees the day slot.
	if err := f.svc.Remove(ctx, f.admin, rec.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Submit(ctx, f.shepherd, submitInput(models.MemberSubject(f.memberID))); err != nil {
		t.Fatal(err)
	}
}

func TestSubmitBatch_PartialSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := setup(t, ctx)

	other, err := db.CreateMember(ctx, f.h.DB, models.Member{Name: "other", OwnerID: f.outsider, IsActive: true})
	if err != nil {
		t.Fatal(err)
	}

	results := f.svc.SubmitBatch(ctx, f.shepherd, []attendance.SubmitInput{
		submitInput(models.MemberSubject(f.memberID)),
		submitInput(models.MemberSubject(other)),     // not this shepherd's flock
		submitInput(models.MemberSubject(f.memberID)), // duplicate of the first
	})
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("first item: %v", results[0].Err)
	}
	if apperr.KindOf(results[1].Err) != apperr.Unauthorized {
		t.Fatalf("second item: %v", results[1].Err)
	}
	if apperr.KindOf(results[2].Err) != apperr.Duplicate {
		t.Fatalf("third item: %v", results[2].Err)
	}
}

func TestList_ScopedByRole(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := setup(t, ctx)

	otherMember, err := db.CreateMember(ctx, f.h.DB, models.Member{Name: "other", OwnerID: f.outsider, IsActive: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Submit(ctx, f.shepherd, submitInput(models.MemberSubject(f.memberID))); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Submit(ctx, f.outsider, submitInput(models.MemberSubject(otherMember))); err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct {
		name  string
		actor int64
		want  int
	}{
		{"admin sees all", f.admin, 2},
		{"pastor sees own branch", f.pastor, 1},
		{"shepherd sees own flock", f.shepherd, 1},
	} {
		recs, err := f.svc.List(ctx, tc.actor, attendance.ListInput{})
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if len(recs) != tc.want {
			t.Fatalf("%s: got %d records, want %d", tc.name, len(recs), tc.want)
		}
	}
}
