// Package roster manages the member list around the attendance engine:
// creation, scoped listing, deactivation, and admin-only reassignment of
// a member to a different shepherd.
package roster

import (
	"context"
	"database/sql"
	"strconv"

	"go.uber.org/zap"

	"churchcare/internal/apperr"
	"churchcare/internal/db"
	"churchcare/internal/hierarchy"
	"churchcare/internal/models"
	"churchcare/internal/observability"
)

type Service struct {
	db  *sql.DB
	dir *hierarchy.Directory
	log *zap.SugaredLogger
}

func NewService(database *sql.DB, dir *hierarchy.Directory, log *zap.SugaredLogger) *Service {
	return &Service{db: database, dir: dir, log: log}
}

// Create registers a member. Shepherds may only create members they will
// own themselves; admins may set any owner.
func (s *Service) Create(ctx context.Context, actorID int64, name string, ownerID int64) (*models.Member, error) {
	actor, err := s.dir.Actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, apperr.Validationf("member name is required")
	}
	switch actor.Role {
	case models.Admin:
	case models.Shepherd:
		if ownerID != actor.ID {
			return nil, apperr.Unauthorizedf("shepherd %d may only add members to their own flock", actor.ID)
		}
	default:
		return nil, apperr.Unauthorizedf("role %q may not create members", actor.Role)
	}

	owner, err := db.GetActorByID(ctx, s.db, ownerID)
	if err != nil {
		return nil, apperr.Internalf(err, "load owner %d", ownerID)
	}
	if owner == nil || owner.Role != models.Shepherd {
		return nil, apperr.Validationf("owner %d is not a shepherd", ownerID)
	}

	m := models.Member{Name: name, OwnerID: ownerID, RiskLevel: models.RiskNone, IsActive: true}
	id, err := db.CreateMember(ctx, s.db, m)
	if err != nil {
		return nil, apperr.Internalf(err, "create member")
	}
	return db.GetMemberByID(ctx, s.db, id)
}

// List returns members inside the actor's visibility scope.
func (s *Service) List(ctx context.Context, actorID int64, activeOnly bool) ([]models.Member, error) {
	actor, err := s.dir.Actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	scope, err := s.dir.Scope(ctx, *actor)
	if err != nil {
		return nil, err
	}
	owners := scope.ShepherdIDs
	if scope.AllSubjects {
		owners = nil
	} else if owners == nil {
		owners = []int64{} // empty scope, not unrestricted
	}
	members, err := db.ListMembers(ctx, s.db, owners, activeOnly)
	if err != nil {
		return nil, apperr.Internalf(err, "list members")
	}
	return members, nil
}

// Reassign moves a member to a new shepherd. Admin only; leaves an
// audit trail whose failure does not fail the reassignment.
func (s *Service) Reassign(ctx context.Context, actorID, memberID, newOwnerID int64) error {
	actor, err := s.dir.Actor(ctx, actorID)
	if err != nil {
		return err
	}
	if actor.Role != models.Admin {
		return apperr.Unauthorizedf("only admins may reassign members")
	}

	m, err := db.GetMemberByID(ctx, s.db, memberID)
	if err != nil {
		return apperr.Internalf(err, "load member %d", memberID)
	}
	if m == nil {
		return apperr.NotFoundf("member %d not found", memberID)
	}
	owner, err := db.GetActorByID(ctx, s.db, newOwnerID)
	if err != nil {
		return apperr.Internalf(err, "load owner %d", newOwnerID)
	}
	if owner == nil || owner.Role != models.Shepherd {
		return apperr.Validationf("owner %d is not a shepherd", newOwnerID)
	}

	ok, err := db.ReassignMember(ctx, s.db, memberID, newOwnerID)
	if err != nil {
		return apperr.Internalf(err, "reassign member %d", memberID)
	}
	if !ok {
		return apperr.NotFoundf("member %d not found", memberID)
	}

	if err := db.AuditRecord(ctx, s.db, actor.ID, "member_reassign", "member", formatID(memberID),
		map[string]any{"from_owner": m.OwnerID, "to_owner": newOwnerID}); err != nil {
		observability.CaptureErr(err)
		s.log.Warnw("audit write failed", "member", memberID, "err", err)
	}
	return nil
}

// Deactivate soft-removes a member; the owning shepherd or an admin.
func (s *Service) Deactivate(ctx context.Context, actorID, memberID int64) error {
	actor, err := s.dir.Actor(ctx, actorID)
	if err != nil {
		return err
	}
	if err := s.dir.Authorize(ctx, *actor, hierarchy.ActionManageMember, models.MemberSubject(memberID)); err != nil {
		return err
	}
	if err := db.SetMemberActive(ctx, s.db, memberID, false); err != nil {
		return apperr.Internalf(err, "deactivate member %d", memberID)
	}
	return nil
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }
