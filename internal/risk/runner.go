package risk

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"churchcare/internal/db"
	"churchcare/internal/metrics"
	"churchcare/internal/models"
	"churchcare/internal/observability"
)

// Runner is the scheduled batch job around Evaluate. It is idempotent
// and safe to re-run in full after a failure.
type Runner struct {
	DB  *sql.DB
	Log *zap.SugaredLogger
	Now func() time.Time
}

func NewRunner(database *sql.DB, log *zap.SugaredLogger) *Runner {
	return &Runner{DB: database, Log: log, Now: time.Now}
}

func (r *Runner) Run(ctx context.Context) error {
	th, err := db.GetRiskThresholds(ctx, r.DB)
	if err != nil {
		return err
	}
	if !th.TrackingEnabled {
		r.Log.Debugw("risk tracking disabled, skipping run")
		return nil
	}

	members, err := db.ListActiveMembers(ctx, r.DB)
	if err != nil {
		return err
	}
	changes := Evaluate(members, th, r.Now())
	if len(changes) == 0 {
		return nil
	}

	byLevel := map[models.RiskLevel][]int64{}
	for _, c := range changes {
		byLevel[c.NewRisk] = append(byLevel[c.NewRisk], c.MemberID)
	}

	// one level failing must not stop the others
	var errs []error
	for lvl, ids := range byLevel {
		if err := db.UpdateRiskLevels(ctx, r.DB, lvl, ids); err != nil {
			observability.CaptureErr(err)
			r.Log.Errorw("risk level write failed", "level", lvl, "members", len(ids), "err", err)
			errs = append(errs, err)
			continue
		}
		metrics.RiskUpdates.WithLabelValues(string(lvl)).Add(float64(len(ids)))
	}
	r.Log.Infow("risk run finished", "members", len(members), "changes", len(changes), "failures", len(errs))
	return errors.Join(errs...)
}
