// Package httpapi exposes the attendance engine over HTTP. Every staff
// route runs behind bearer-token auth; authority beyond identity is
// decided per operation by the hierarchy, not here.
package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"churchcare/internal/apperr"
	"churchcare/internal/attendance"
	"churchcare/internal/auth"
	"churchcare/internal/config"
	"churchcare/internal/ctxutil"
	"churchcare/internal/hierarchy"
	"churchcare/internal/metrics"
	"churchcare/internal/roster"
)

type Server struct {
	cfg        *config.Config
	db         *sql.DB
	rdb        *redis.Client // nil when the in-memory queue is used
	attendance *attendance.Service
	roster     *roster.Service
	dir        *hierarchy.Directory
	log        *zap.SugaredLogger

	httpSrv *http.Server
}

func New(cfg *config.Config, database *sql.DB, rdb *redis.Client,
	att *attendance.Service, ros *roster.Service, dir *hierarchy.Directory, log *zap.SugaredLogger) *Server {
	s := &Server{cfg: cfg, db: database, rdb: rdb, attendance: att, roster: ros, dir: dir, log: log}
	s.httpSrv = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) router() *gin.Engine {
	if s.cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.healthz)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api/v1", auth.StaffAuth(s.cfg.JWTSigningKey, s.cfg.JWTIssuer))
	{
		api.POST("/attendance", s.submitAttendance)
		api.POST("/attendance/batch", s.submitAttendanceBatch)
		api.GET("/attendance", s.listAttendance)
		api.GET("/attendance/:id", s.getAttendance)
		api.POST("/attendance/:id/approve", s.approveAttendance)
		api.POST("/attendance/:id/reject", s.rejectAttendance)
		api.PATCH("/attendance/:id", s.updateAttendance)
		api.DELETE("/attendance/:id", s.removeAttendance)

		api.POST("/members", s.createMember)
		api.GET("/members", s.listMembers)
		api.POST("/members/:id/reassign", s.reassignMember)
		api.DELETE("/members/:id", s.deactivateMember)

		api.GET("/notifications", s.listNotifications)
		api.POST("/notifications/read", s.markNotificationsRead)

		api.GET("/settings/risk", s.getRiskSettings)
		api.PUT("/settings/risk", s.putRiskSettings)

		api.GET("/reports/care.xlsx", s.careReport)
	}
	return r
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Infow("http listening", "addr", s.cfg.HTTPAddr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	start := time.Now()
	if err := s.db.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "db": err.Error()})
		return
	}
	metrics.ObserveDBPing(time.Since(start))

	if s.rdb != nil {
		if err := s.rdb.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "redis": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeErr maps the error taxonomy onto HTTP statuses. Internal details
// stay in the logs.
func (s *Server) writeErr(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.Unauthorized:
		status = http.StatusForbidden
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.Validation:
		status = http.StatusBadRequest
	case apperr.InvalidState:
		status = http.StatusConflict
	case apperr.Duplicate:
		status = http.StatusConflict
	}
	msg := err.Error()
	if kind == apperr.Internal {
		actorID, _ := ctxutil.ActorID(c.Request.Context())
		s.log.Errorw("request failed", "path", c.FullPath(), "actor", actorID, "err", err)
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg, "kind": kind.String()})
}
