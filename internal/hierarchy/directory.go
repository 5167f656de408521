package hierarchy

import (
	"context"
	"database/sql"
	"errors"

	"churchcare/internal/apperr"
	"churchcare/internal/db"
	"churchcare/internal/models"
)

// Directory resolves actors and care edges from storage and applies the
// policy table to them.
type Directory struct {
	DB *sql.DB
}

func NewDirectory(database *sql.DB) *Directory {
	return &Directory{DB: database}
}

func (d *Directory) Actor(ctx context.Context, actorID int64) (*models.Actor, error) {
	a, err := db.GetActorByID(ctx, d.DB, actorID)
	if err != nil {
		return nil, apperr.Internalf(err, "load actor %d", actorID)
	}
	if a == nil {
		return nil, apperr.NotFoundf("actor %d not found", actorID)
	}
	return a, nil
}

// ResolveSubject loads the care edges behind a subject reference.
func (d *Directory) ResolveSubject(ctx context.Context, s models.Subject) (Target, error) {
	if s.IsZero() {
		return Target{}, apperr.Validationf("subject must reference a member or a shepherd")
	}
	if memberID, ok := s.MemberID(); ok {
		var ownerID int64
		var overseerID *int64
		err := d.DB.QueryRowContext(ctx, `
			SELECT m.owner_id, a.overseer_id
			FROM members m
			JOIN actors a ON a.id = m.owner_id
			WHERE m.id = $1
		`, memberID).Scan(&ownerID, &overseerID)
		if errors.Is(err, sql.ErrNoRows) {
			return Target{}, apperr.NotFoundf("member %d not found", memberID)
		}
		if err != nil {
			return Target{}, apperr.Internalf(err, "resolve member %d", memberID)
		}
		return Target{Kind: models.SubjectMember, SubjectID: memberID, OwnerID: ownerID, OverseerID: overseerID}, nil
	}

	shepherdID, _ := s.ShepherdID()
	var overseerID *int64
	err := d.DB.QueryRowContext(ctx, `
		SELECT overseer_id FROM actors WHERE id = $1 AND role = 'shepherd'
	`, shepherdID).Scan(&overseerID)
	if errors.Is(err, sql.ErrNoRows) {
		return Target{}, apperr.NotFoundf("shepherd %d not found", shepherdID)
	}
	if err != nil {
		return Target{}, apperr.Internalf(err, "resolve shepherd %d", shepherdID)
	}
	return Target{Kind: models.SubjectShepherd, SubjectID: shepherdID, OwnerID: shepherdID, OverseerID: overseerID}, nil
}

// Authorize is the single entry point consulted by every operation.
func (d *Directory) Authorize(ctx context.Context, actor models.Actor, action Action, s models.Subject) error {
	t, err := d.ResolveSubject(ctx, s)
	if err != nil {
		return err
	}
	return Allowed(actor, action, t)
}

// Scope computes what the actor may see in list queries.
func (d *Directory) Scope(ctx context.Context, actor models.Actor) (Scope, error) {
	switch actor.Role {
	case models.Admin:
		return Scope{AllSubjects: true}, nil
	case models.Pastor:
		ids, err := db.ListShepherdIDsByOverseer(ctx, d.DB, actor.ID)
		if err != nil {
			return Scope{}, apperr.Internalf(err, "scope for pastor %d", actor.ID)
		}
		return Scope{ShepherdIDs: ids}, nil
	case models.Shepherd:
		id := actor.ID
		return Scope{ShepherdIDs: []int64{actor.ID}, SubmitterID: &id}, nil
	default:
		return Scope{}, apperr.Unauthorizedf("role %q has no visibility", actor.Role)
	}
}
