package db

import (
	"context"
	"database/sql"
	"errors"

	"churchcare/internal/models"
)

const actorCols = `id, name, role, overseer_id, chat_id, is_active, created_at`

func scanActor(row interface{ Scan(...any) error }) (*models.Actor, error) {
	var a models.Actor
	var role string
	if err := row.Scan(&a.ID, &a.Name, &role, &a.OverseerID, &a.ChatID, &a.IsActive, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Role = models.Role(role)
	return &a, nil
}

// GetActorByID returns nil, nil when the actor does not exist.
func GetActorByID(ctx context.Context, database *sql.DB, id int64) (*models.Actor, error) {
	row := database.QueryRowContext(ctx, `SELECT `+actorCols+` FROM actors WHERE id = $1`, id)
	a, err := scanActor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func CreateActor(ctx context.Context, database *sql.DB, a models.Actor) (int64, error) {
	var id int64
	err := database.QueryRowContext(ctx, `
		INSERT INTO actors (name, role, overseer_id, chat_id, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, a.Name, string(a.Role), a.OverseerID, a.ChatID, a.IsActive).Scan(&id)
	return id, err
}

func SetActorActive(ctx context.Context, database *sql.DB, id int64, active bool) error {
	_, err := database.ExecContext(ctx, `UPDATE actors SET is_active = $2 WHERE id = $1`, id, active)
	return err
}

// ListActiveAdmins feeds the pending-attendance fanout.
func ListActiveAdmins(ctx context.Context, database *sql.DB) ([]models.Actor, error) {
	rows, err := database.QueryContext(ctx, `
		SELECT `+actorCols+` FROM actors WHERE role = 'admin' AND is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Actor
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// ListShepherdIDsByOverseer returns the shepherds a pastor oversees,
// the pastor's visibility scope.
func ListShepherdIDsByOverseer(ctx context.Context, database *sql.DB, pastorID int64) ([]int64, error) {
	rows, err := database.QueryContext(ctx, `
		SELECT id FROM actors WHERE role = 'shepherd' AND overseer_id = $1 ORDER BY id`, pastorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
