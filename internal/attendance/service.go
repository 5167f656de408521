// Package attendance implements the attendance lifecycle: submission
// behind the duplicate guard, the pending → approved/rejected state
// machine, and the member presence refresh on confirmed attendance.
package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"churchcare/internal/apperr"
	"churchcare/internal/db"
	"churchcare/internal/hierarchy"
	"churchcare/internal/metrics"
	"churchcare/internal/models"
	"churchcare/internal/notify"
	"churchcare/internal/observability"
)

// Notifier is the fire-and-forget boundary; Emit never fails the caller.
type Notifier interface {
	Emit(ctx context.Context, ev notify.Event)
}

type Service struct {
	db       *sql.DB
	dir      *hierarchy.Directory
	notifier Notifier
	loc      *time.Location
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewService(database *sql.DB, dir *hierarchy.Directory, notifier Notifier, loc *time.Location, log *zap.SugaredLogger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{db: database, dir: dir, notifier: notifier, loc: loc, log: log, now: time.Now}
}

type SubmitInput struct {
	Subject  models.Subject
	At       time.Time // any timestamp inside the target calendar day
	Presence models.PresenceStatus
	Notes    *string
	// AssertApproved lets an admin or pastor record attendance as already
	// approved, skipping the pending stage.
	AssertApproved bool
}

// Submit records one attendance assertion. At most one record may exist
// per subject per calendar day, no matter its approval status.
func (s *Service) Submit(ctx context.Context, actorID int64, in SubmitInput) (rec *models.AttendanceRecord, err error) {
	defer func() { metrics.ObserveOp("submit", err) }()

	actor, err := s.dir.Actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if in.Subject.IsZero() {
		return nil, apperr.Validationf("subject must reference a member or a shepherd")
	}
	if !in.Presence.Valid() {
		return nil, apperr.Validationf("unknown presence status %q", in.Presence)
	}
	if in.At.IsZero() {
		return nil, apperr.Validationf("attendance day is required")
	}
	if err := s.dir.Authorize(ctx, *actor, hierarchy.ActionCreateAttendance, in.Subject); err != nil {
		return nil, err
	}

	now := s.now()
	r := models.AttendanceRecord{
		ID:          uuid.NewString(),
		Subject:     in.Subject,
		Day:         models.DayStart(in.At, s.loc),
		Presence:    in.Presence,
		Approval:    models.Pending,
		Notes:       in.Notes,
		SubmittedBy: actor.ID,
		CreatedAt:   now,
	}
	if in.AssertApproved {
		if actor.Role != models.Admin && actor.Role != models.Pastor {
			return nil, apperr.Unauthorizedf("only admins and pastors may record attendance as approved")
		}
		r.Approval = models.Approved
		r.ApprovedBy = &actor.ID
		at := now
		r.ApprovedAt = &at
	}

	inserted, err := db.CreateAttendance(ctx, s.db, r)
	if err != nil {
		return nil, apperr.Internalf(err, "store attendance")
	}
	if !inserted {
		return nil, apperr.Duplicatef("attendance for %s %d on %s already recorded",
			r.Subject.Kind(), r.Subject.ID(), r.Day.Format("2006-01-02"))
	}

	if r.Approval == models.Pending && actor.Role == models.Shepherd {
		s.notifyPending(ctx, *actor, r)
	}
	return &r, nil
}

// BatchResult reports one item's outcome in a batch submit; one item
// failing never aborts the rest.
type BatchResult struct {
	Record *models.AttendanceRecord
	Err    error
}

func (s *Service) SubmitBatch(ctx context.Context, actorID int64, items []SubmitInput) []BatchResult {
	out := make([]BatchResult, len(items))
	for i, in := range items {
		rec, err := s.Submit(ctx, actorID, in)
		out[i] = BatchResult{Record: rec, Err: err}
	}
	return out
}

// Get returns a single record, enforcing the same authority a list query
// would: subjects outside the actor's scope answer Unauthorized.
func (s *Service) Get(ctx context.Context, actorID int64, recordID string) (*models.AttendanceRecord, error) {
	actor, err := s.dir.Actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	rec, err := s.load(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(ctx, *actor, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Approve confirms a pending record. On present member records the
// member's last attendance moves to the record's day and risk resets.
func (s *Service) Approve(ctx context.Context, actorID int64, recordID string, notes *string) (err error) {
	defer func() { metrics.ObserveOp("approve", err) }()
	return s.transition(ctx, actorID, recordID, models.Approved, nil, notes)
}

// Reject declines a pending record; a reason is mandatory.
func (s *Service) Reject(ctx context.Context, actorID int64, recordID, reason string) (err error) {
	defer func() { metrics.ObserveOp("reject", err) }()
	if reason == "" {
		return apperr.Validationf("rejection reason is required")
	}
	return s.transition(ctx, actorID, recordID, models.Rejected, &reason, nil)
}

func (s *Service) transition(ctx context.Context, actorID int64, recordID string,
	to models.ApprovalStatus, reason, notes *string) error {
	actor, err := s.dir.Actor(ctx, actorID)
	if err != nil {
		return err
	}
	rec, err := s.load(ctx, recordID)
	if err != nil {
		return err
	}
	if err := s.dir.Authorize(ctx, *actor, hierarchy.ActionApproveAttendance, rec.Subject); err != nil {
		return err
	}
	if rec.Approval != models.Pending {
		return apperr.InvalidStatef("record %s is already %s", recordID, rec.Approval)
	}

	ok, err := db.TransitionAttendance(ctx, s.db, recordID, to, actor.ID, s.now(), reason, notes)
	if err != nil {
		return apperr.Internalf(err, "transition attendance %s", recordID)
	}
	if !ok {
		// lost the race against a concurrent transition
		return apperr.InvalidStatef("record %s is no longer pending", recordID)
	}

	s.notifyDecision(ctx, *rec, to, reason)
	return nil
}

type UpdateInput struct {
	Presence *models.PresenceStatus
	Notes    *string
}

// Update edits a record that is still pending; only the original
// submitter may do so, with no admin override.
func (s *Service) Update(ctx context.Context, actorID int64, recordID string, in UpdateInput) (err error) {
	defer func() { metrics.ObserveOp("update", err) }()

	actor, err := s.dir.Actor(ctx, actorID)
	if err != nil {
		return err
	}
	rec, err := s.load(ctx, recordID)
	if err != nil {
		return err
	}
	if rec.SubmittedBy != actor.ID {
		return apperr.Unauthorizedf("only the submitter may edit record %s", recordID)
	}
	if rec.Approval != models.Pending {
		return apperr.InvalidStatef("record %s is already %s", recordID, rec.Approval)
	}
	if in.Presence != nil && !in.Presence.Valid() {
		return apperr.Validationf("unknown presence status %q", *in.Presence)
	}

	ok, err := db.UpdateAttendanceFields(ctx, s.db, recordID, in.Presence, in.Notes)
	if err != nil {
		return apperr.Internalf(err, "update attendance %s", recordID)
	}
	if !ok {
		return apperr.InvalidStatef("record %s is no longer pending", recordID)
	}
	return nil
}

// Remove deletes a record: the submitter while it is still pending, or
// an admin regardless of status.
func (s *Service) Remove(ctx context.Context, actorID int64, recordID string) (err error) {
	defer func() { metrics.ObserveOp("remove", err) }()

	actor, err := s.dir.Actor(ctx, actorID)
	if err != nil {
		return err
	}
	rec, err := s.load(ctx, recordID)
	if err != nil {
		return err
	}
	admin := actor.Role == models.Admin
	if !admin && (rec.SubmittedBy != actor.ID || rec.Approval != models.Pending) {
		return apperr.Unauthorizedf("record %s can only be removed by its submitter while pending", recordID)
	}

	ok, err := db.DeleteAttendance(ctx, s.db, recordID)
	if err != nil {
		return apperr.Internalf(err, "delete attendance %s", recordID)
	}
	if !ok {
		return apperr.NotFoundf("attendance record %s not found", recordID)
	}

	if admin && rec.SubmittedBy != actor.ID {
		// admin override of someone else's record leaves an audit trail
		if err := db.AuditRecord(ctx, s.db, actor.ID, "attendance_delete", "attendance_record", recordID,
			map[string]any{"submitted_by": rec.SubmittedBy, "approval_status": string(rec.Approval)}); err != nil {
			observability.CaptureErr(err)
			s.log.Warnw("audit write failed", "record", recordID, "err", err)
		}
	}
	return nil
}

type ListInput struct {
	Subject  *models.Subject
	Approval *models.ApprovalStatus
	From, To *time.Time
	Limit    int
	Offset   int
}

// List returns records visible to the actor. The hierarchy scope is
// applied first; caller filters only narrow within it.
func (s *Service) List(ctx context.Context, actorID int64, in ListInput) ([]models.AttendanceRecord, error) {
	actor, err := s.dir.Actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	scope, err := s.dir.Scope(ctx, *actor)
	if err != nil {
		return nil, err
	}
	f := db.AttendanceFilter{
		AllSubjects: scope.AllSubjects,
		ShepherdIDs: scope.ShepherdIDs,
		SubmitterID: scope.SubmitterID,
		Subject:     in.Subject,
		Approval:    in.Approval,
		From:        in.From,
		To:          in.To,
		Limit:       in.Limit,
		Offset:      in.Offset,
	}
	recs, err := db.ListAttendance(ctx, s.db, f)
	if err != nil {
		return nil, apperr.Internalf(err, "list attendance")
	}
	return recs, nil
}

func (s *Service) load(ctx context.Context, recordID string) (*models.AttendanceRecord, error) {
	rec, err := db.GetAttendance(ctx, s.db, recordID)
	if err != nil {
		return nil, apperr.Internalf(err, "load attendance %s", recordID)
	}
	if rec == nil {
		return nil, apperr.NotFoundf("attendance record %s not found", recordID)
	}
	return rec, nil
}

func (s *Service) authorizeView(ctx context.Context, actor models.Actor, rec *models.AttendanceRecord) error {
	if rec.SubmittedBy == actor.ID {
		return nil
	}
	return s.dir.Authorize(ctx, actor, hierarchy.ActionViewAttendance, rec.Subject)
}

func (s *Service) notifyPending(ctx context.Context, submitter models.Actor, r models.AttendanceRecord) {
	title := "Attendance pending approval"
	msg := fmt.Sprintf("%s submitted %s attendance for %s %d on %s",
		submitter.Name, r.Presence, r.Subject.Kind(), r.Subject.ID(), r.Day.Format("2006-01-02"))

	if submitter.OverseerID != nil {
		s.notifier.Emit(ctx, notify.Event{
			RecipientID: *submitter.OverseerID,
			Kind:        models.NotifyAttendancePending,
			Title:       title, Message: msg, RelatedID: r.ID,
		})
	}
	admins, err := db.ListActiveAdmins(ctx, s.db)
	if err != nil {
		s.log.Warnw("admin fanout skipped", "err", err)
		return
	}
	for _, a := range admins {
		s.notifier.Emit(ctx, notify.Event{
			RecipientID: a.ID,
			Kind:        models.NotifyAttendancePending,
			Title:       title, Message: msg, RelatedID: r.ID,
		})
	}
}

func (s *Service) notifyDecision(ctx context.Context, rec models.AttendanceRecord, to models.ApprovalStatus, reason *string) {
	ev := notify.Event{
		RecipientID: rec.SubmittedBy,
		RelatedID:   rec.ID,
	}
	day := rec.Day.Format("2006-01-02")
	if to == models.Approved {
		ev.Kind = models.NotifyAttendanceApproved
		ev.Title = "Attendance approved"
		ev.Message = fmt.Sprintf("Your attendance entry for %s was approved", day)
	} else {
		ev.Kind = models.NotifyAttendanceRejected
		ev.Title = "Attendance rejected"
		ev.Message = fmt.Sprintf("Your attendance entry for %s was rejected: %s", day, *reason)
	}
	s.notifier.Emit(ctx, ev)
}
