package db

import (
	"context"
	"database/sql"
	"encoding/json"
)

// AuditRecord appends one audit row. Callers treat a failure here as
// non-fatal to the primary operation: log it, move on.
func AuditRecord(ctx context.Context, database *sql.DB, actorID int64, action, entityType, entityID string, details map[string]any) error {
	var blob []byte
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return err
		}
		blob = b
	}
	_, err := database.ExecContext(ctx, `
		INSERT INTO audit_log (actor_id, action, entity_type, entity_id, details)
		VALUES ($1, $2, $3, $4, $5)
	`, actorID, action, entityType, entityID, blob)
	return err
}
