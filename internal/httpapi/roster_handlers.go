package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"churchcare/internal/apperr"
	"churchcare/internal/auth"
	"churchcare/internal/db"
	"churchcare/internal/export"
	"churchcare/internal/models"
)

type memberDTO struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	OwnerID          int64      `json:"owner_id"`
	LastAttendanceAt *time.Time `json:"last_attendance_at,omitempty"`
	RiskLevel        string     `json:"risk_level"`
	IsActive         bool       `json:"is_active"`
	JoinedAt         time.Time  `json:"joined_at"`
}

func toMemberDTO(m models.Member) memberDTO {
	return memberDTO{
		ID: m.ID, Name: m.Name, OwnerID: m.OwnerID,
		LastAttendanceAt: m.LastAttendanceAt,
		RiskLevel:        string(m.RiskLevel),
		IsActive:         m.IsActive, JoinedAt: m.JoinedAt,
	}
}

func (s *Server) createMember(c *gin.Context) {
	var body struct {
		Name    string `json:"name" binding:"required"`
		OwnerID int64  `json:"owner_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.writeErr(c, apperr.Validationf("bad request body: %v", err))
		return
	}
	m, err := s.roster.Create(c.Request.Context(), auth.ActorID(c), body.Name, body.OwnerID)
	if err != nil {
		s.writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMemberDTO(*m))
}

func (s *Server) listMembers(c *gin.Context) {
	activeOnly := c.DefaultQuery("active", "true") != "false"
	members, err := s.roster.List(c.Request.Context(), auth.ActorID(c), activeOnly)
	if err != nil {
		s.writeErr(c, err)
		return
	}
	out := make([]memberDTO, 0, len(members))
	for _, m := range members {
		out = append(out, toMemberDTO(m))
	}
	c.JSON(http.StatusOK, gin.H{"members": out})
}

func (s *Server) reassignMember(c *gin.Context) {
	memberID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		s.writeErr(c, apperr.Validationf("member id must be numeric"))
		return
	}
	var body struct {
		NewOwnerID int64 `json:"new_owner_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.writeErr(c, apperr.Validationf("bad request body: %v", err))
		return
	}
	if err := s.roster.Reassign(c.Request.Context(), auth.ActorID(c), memberID, body.NewOwnerID); err != nil {
		s.writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deactivateMember(c *gin.Context) {
	memberID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		s.writeErr(c, apperr.Validationf("member id must be numeric"))
		return
	}
	if err := s.roster.Deactivate(c.Request.Context(), auth.ActorID(c), memberID); err != nil {
		s.writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listNotifications(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true"
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	ns, err := db.ListNotifications(c.Request.Context(), s.db, auth.ActorID(c), unreadOnly, limit)
	if err != nil {
		s.writeErr(c, apperr.Internalf(err, "list notifications"))
		return
	}
	type notifDTO struct {
		ID        int64     `json:"id"`
		Kind      string    `json:"kind"`
		Title     string    `json:"title"`
		Message   string    `json:"message"`
		RelatedID *string   `json:"related_id,omitempty"`
		IsRead    bool      `json:"is_read"`
		CreatedAt time.Time `json:"created_at"`
	}
	out := make([]notifDTO, 0, len(ns))
	for _, n := range ns {
		out = append(out, notifDTO{
			ID: n.ID, Kind: string(n.Kind), Title: n.Title, Message: n.Message,
			RelatedID: n.RelatedID, IsRead: n.IsRead, CreatedAt: n.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"notifications": out})
}

func (s *Server) markNotificationsRead(c *gin.Context) {
	var body struct {
		IDs []int64 `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.writeErr(c, apperr.Validationf("bad request body: %v", err))
		return
	}
	if err := db.MarkNotificationsRead(c.Request.Context(), s.db, auth.ActorID(c), body.IDs); err != nil {
		s.writeErr(c, apperr.Internalf(err, "mark notifications read"))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) requireAdmin(c *gin.Context) (*models.Actor, bool) {
	actor, err := s.dir.Actor(c.Request.Context(), auth.ActorID(c))
	if err != nil {
		s.writeErr(c, err)
		return nil, false
	}
	if actor.Role != models.Admin {
		s.writeErr(c, apperr.Unauthorizedf("admin role required"))
		return nil, false
	}
	return actor, true
}

func (s *Server) getRiskSettings(c *gin.Context) {
	if _, ok := s.requireAdmin(c); !ok {
		return
	}
	t, err := db.GetRiskThresholds(c.Request.Context(), s.db)
	if err != nil {
		s.writeErr(c, apperr.Internalf(err, "load risk settings"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"low_risk_days":    t.LowRiskDays,
		"medium_risk_days": t.MediumRiskDays,
		"high_risk_days":   t.HighRiskDays,
		"tracking_enabled": t.TrackingEnabled,
	})
}

func (s *Server) putRiskSettings(c *gin.Context) {
	if _, ok := s.requireAdmin(c); !ok {
		return
	}
	var body struct {
		LowRiskDays     int  `json:"low_risk_days" binding:"required"`
		MediumRiskDays  int  `json:"medium_risk_days" binding:"required"`
		HighRiskDays    int  `json:"high_risk_days" binding:"required"`
		TrackingEnabled bool `json:"tracking_enabled"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.writeErr(c, apperr.Validationf("bad request body: %v", err))
		return
	}
	if !(body.LowRiskDays > 0 && body.LowRiskDays < body.MediumRiskDays && body.MediumRiskDays < body.HighRiskDays) {
		s.writeErr(c, apperr.Validationf("thresholds must satisfy 0 < low < medium < high"))
		return
	}
	t := models.RiskThresholds{
		LowRiskDays:     body.LowRiskDays,
		MediumRiskDays:  body.MediumRiskDays,
		HighRiskDays:    body.HighRiskDays,
		TrackingEnabled: body.TrackingEnabled,
	}
	if err := db.SaveRiskThresholds(c.Request.Context(), s.db, t); err != nil {
		s.writeErr(c, apperr.Internalf(err, "save risk settings"))
		return
	}
	c.Status(http.StatusNoContent)
}

// careReport streams an xlsx with the caller's visible attendance history
// and member roster.
func (s *Server) careReport(c *gin.Context) {
	actorID := auth.ActorID(c)
	in, err := listInputFromQuery(c)
	if err != nil {
		s.writeErr(c, err)
		return
	}
	if in.Limit <= 0 || in.Limit > 10000 {
		in.Limit = 10000
	}
	records, err := s.attendance.List(c.Request.Context(), actorID, in)
	if err != nil {
		s.writeErr(c, err)
		return
	}
	members, err := s.roster.List(c.Request.Context(), actorID, false)
	if err != nil {
		s.writeErr(c, err)
		return
	}
	f, err := export.CareReport(records, members)
	if err != nil {
		s.writeErr(c, apperr.Internalf(err, "build report"))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="care_report.xlsx"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		s.log.Warnw("report write aborted", "err", err)
	}
}
