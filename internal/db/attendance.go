package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"churchcare/internal/models"
)

const attendanceCols = `id, member_id, shepherd_id, attended_on, presence_status, approval_status,
	notes, submitted_by, approved_by, approved_at, rejection_reason, created_at`

func scanAttendance(row interface{ Scan(...any) error }) (*models.AttendanceRecord, error) {
	var r models.AttendanceRecord
	var memberID, shepherdID sql.NullInt64
	var presence, approval string
	if err := row.Scan(&r.ID, &memberID, &shepherdID, &r.Day, &presence, &approval,
		&r.Notes, &r.SubmittedBy, &r.ApprovedBy, &r.ApprovedAt, &r.RejectionReason, &r.CreatedAt); err != nil {
		return nil, err
	}
	switch {
	case memberID.Valid:
		r.Subject = models.MemberSubject(memberID.Int64)
	case shepherdID.Valid:
		r.Subject = models.ShepherdSubject(shepherdID.Int64)
	}
	r.Presence = models.PresenceStatus(presence)
	r.Approval = models.ApprovalStatus(approval)
	return &r, nil
}

func subjectColumns(s models.Subject) (memberID, shepherdID any) {
	if id, ok := s.MemberID(); ok {
		return id, nil
	}
	if id, ok := s.ShepherdID(); ok {
		return nil, id
	}
	return nil, nil
}

// CreateAttendance inserts a record and, when it lands approved+present
// for a member, refreshes that member's presence in the same transaction.
// Returns false when the subject/day slot is already taken — the insert
// and the duplicate check are a single statement, so two concurrent
// submissions can never both succeed.
func CreateAttendance(ctx context.Context, database *sql.DB, r models.AttendanceRecord) (bool, error) {
	tx, err := database.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	memberID, shepherdID := subjectColumns(r.Subject)
	var id string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO attendance_records
			(id, member_id, shepherd_id, attended_on, presence_status, approval_status,
			 notes, submitted_by, approved_by, approved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT DO NOTHING
		RETURNING id
	`, r.ID, memberID, shepherdID, r.Day.Format("2006-01-02"), string(r.Presence), string(r.Approval),
		r.Notes, r.SubmittedBy, r.ApprovedBy, r.ApprovedAt).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if r.Approval == models.Approved && r.Presence == models.Present {
		if mid, ok := r.Subject.MemberID(); ok {
			if err := refreshPresenceTx(ctx, tx, mid, r.Day); err != nil {
				return false, err
			}
		}
	}
	return true, tx.Commit()
}

func refreshPresenceTx(ctx context.Context, tx *sql.Tx, memberID int64, day time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE members
		SET last_attendance_at = GREATEST(COALESCE(last_attendance_at, $2), $2),
		    risk_level = 'none'
		WHERE id = $1
	`, memberID, day)
	return err
}

// GetAttendance returns nil, nil when the record does not exist.
func GetAttendance(ctx context.Context, database *sql.DB, id string) (*models.AttendanceRecord, error) {
	row := database.QueryRowContext(ctx, `SELECT `+attendanceCols+` FROM attendance_records WHERE id = $1`, id)
	r, err := scanAttendance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// TransitionAttendance moves a pending record to approved/rejected and, on
// approved+present member records, refreshes the member's presence inside
// the same transaction. Returns false when the record was not pending
// anymore (a concurrent transition won).
func TransitionAttendance(ctx context.Context, database *sql.DB, id string,
	to models.ApprovalStatus, actorID int64, at time.Time, reason, notes *string) (bool, error) {
	tx, err := database.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		UPDATE attendance_records
		SET approval_status = $2, approved_by = $3, approved_at = $4, rejection_reason = $5,
		    notes = COALESCE($6, notes)
		WHERE id = $1 AND approval_status = 'pending'
		RETURNING member_id, attended_on, presence_status
	`, id, string(to), actorID, at, reason, notes)

	var memberID sql.NullInt64
	var day time.Time
	var presence string
	if err := row.Scan(&memberID, &day, &presence); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	if to == models.Approved && models.PresenceStatus(presence) == models.Present && memberID.Valid {
		if err := refreshPresenceTx(ctx, tx, memberID.Int64, day); err != nil {
			return false, err
		}
	}
	return true, tx.Commit()
}

// UpdateAttendanceFields edits notes/presence on a still-pending record.
// Returns false when the record is no longer pending.
func UpdateAttendanceFields(ctx context.Context, database *sql.DB, id string,
	presence *models.PresenceStatus, notes *string) (bool, error) {
	var presenceStr *string
	if presence != nil {
		s := string(*presence)
		presenceStr = &s
	}
	res, err := database.ExecContext(ctx, `
		UPDATE attendance_records
		SET presence_status = COALESCE($2, presence_status),
		    notes = COALESCE($3, notes)
		WHERE id = $1 AND approval_status = 'pending'
	`, id, presenceStr, notes)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func DeleteAttendance(ctx context.Context, database *sql.DB, id string) (bool, error) {
	res, err := database.ExecContext(ctx, `DELETE FROM attendance_records WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// AttendanceFilter narrows ListAttendance. Scope fields come from the
// hierarchy directory and are applied before any caller-supplied filter.
type AttendanceFilter struct {
	// visibility scope
	AllSubjects bool    // admin
	ShepherdIDs []int64 // member owners / shepherd subjects visible to the caller
	SubmitterID *int64  // additionally: records this actor submitted

	// caller filters
	Subject  *models.Subject
	Approval *models.ApprovalStatus
	From, To *time.Time // day range, inclusive From, exclusive To
	Limit    int
	Offset   int
}

func ListAttendance(ctx context.Context, database *sql.DB, f AttendanceFilter) ([]models.AttendanceRecord, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	q := `
		SELECT a.id, a.member_id, a.shepherd_id, a.attended_on, a.presence_status, a.approval_status,
		       a.notes, a.submitted_by, a.approved_by, a.approved_at, a.rejection_reason, a.created_at
		FROM attendance_records a
		LEFT JOIN members m ON m.id = a.member_id
		WHERE ($1 OR m.owner_id = ANY($2) OR a.shepherd_id = ANY($2) OR a.submitted_by = $3)
	`
	var submitter any
	if f.SubmitterID != nil {
		submitter = *f.SubmitterID
	}
	args := []any{f.AllSubjects, pq.Array(f.ShepherdIDs), submitter}
	idx := 4

	if f.Subject != nil {
		if id, ok := f.Subject.MemberID(); ok {
			q += fmt.Sprintf(" AND a.member_id = $%d", idx)
			args = append(args, id)
		} else if id, ok := f.Subject.ShepherdID(); ok {
			q += fmt.Sprintf(" AND a.shepherd_id = $%d", idx)
			args = append(args, id)
		}
		idx++
	}
	if f.Approval != nil {
		q += fmt.Sprintf(" AND a.approval_status = $%d", idx)
		args = append(args, string(*f.Approval))
		idx++
	}
	if f.From != nil {
		q += fmt.Sprintf(" AND a.attended_on >= $%d", idx)
		args = append(args, f.From.Format("2006-01-02"))
		idx++
	}
	if f.To != nil {
		q += fmt.Sprintf(" AND a.attended_on < $%d", idx)
		args = append(args, f.To.Format("2006-01-02"))
		idx++
	}
	q += fmt.Sprintf(" ORDER BY a.attended_on DESC, a.created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := database.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AttendanceRecord
	for rows.Next() {
		r, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
