package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"churchcare/internal/models"
)

const memberCols = `id, name, owner_id, last_attendance_at, risk_level, is_active, joined_at`

func scanMember(row interface{ Scan(...any) error }) (*models.Member, error) {
	var m models.Member
	var risk string
	if err := row.Scan(&m.ID, &m.Name, &m.OwnerID, &m.LastAttendanceAt, &risk, &m.IsActive, &m.JoinedAt); err != nil {
		return nil, err
	}
	m.RiskLevel = models.RiskLevel(risk)
	return &m, nil
}

// GetMemberByID returns nil, nil when the member does not exist.
func GetMemberByID(ctx context.Context, database *sql.DB, id int64) (*models.Member, error) {
	row := database.QueryRowContext(ctx, `SELECT `+memberCols+` FROM members WHERE id = $1`, id)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func CreateMember(ctx context.Context, database *sql.DB, m models.Member) (int64, error) {
	var id int64
	err := database.QueryRowContext(ctx, `
		INSERT INTO members (name, owner_id, is_active)
		VALUES ($1, $2, $3)
		RETURNING id
	`, m.Name, m.OwnerID, m.IsActive).Scan(&id)
	return id, err
}

// ListMembers returns members owned by the given shepherds; nil owners
// means no owner restriction (admin scope).
func ListMembers(ctx context.Context, database *sql.DB, owners []int64, activeOnly bool) ([]models.Member, error) {
	q := `SELECT ` + memberCols + ` FROM members WHERE ($1 OR owner_id = ANY($2))`
	if activeOnly {
		q += ` AND is_active`
	}
	q += ` ORDER BY id`
	rows, err := database.QueryContext(ctx, q, owners == nil, pq.Array(owners))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// ListActiveMembers feeds the risk classifier run.
func ListActiveMembers(ctx context.Context, database *sql.DB) ([]models.Member, error) {
	return ListMembers(ctx, database, nil, true)
}

// ReassignMember moves a member to another shepherd (admin-only at the
// service layer). Returns false when the member does not exist.
func ReassignMember(ctx context.Context, database *sql.DB, memberID, newOwnerID int64) (bool, error) {
	res, err := database.ExecContext(ctx, `UPDATE members SET owner_id = $2 WHERE id = $1`, memberID, newOwnerID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func SetMemberActive(ctx context.Context, database *sql.DB, id int64, active bool) error {
	_, err := database.ExecContext(ctx, `UPDATE members SET is_active = $2 WHERE id = $1`, id, active)
	return err
}

// RefreshMemberPresence records a confirmed presence: bumps
// last_attendance_at and resets risk. Only moves the timestamp forward.
func RefreshMemberPresence(ctx context.Context, database *sql.DB, memberID int64, day time.Time) error {
	_, err := database.ExecContext(ctx, `
		UPDATE members
		SET last_attendance_at = GREATEST(COALESCE(last_attendance_at, $2), $2),
		    risk_level = 'none'
		WHERE id = $1
	`, memberID, day)
	return err
}

// UpdateRiskLevels writes one risk level for a batch of members.
func UpdateRiskLevels(ctx context.Context, database *sql.DB, level models.RiskLevel, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := database.ExecContext(ctx, `
		UPDATE members SET risk_level = $1 WHERE id = ANY($2)
	`, string(level), pq.Array(ids))
	return err
}
