package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"churchcare/internal/apperr"
	"churchcare/internal/attendance"
	"churchcare/internal/auth"
	"churchcare/internal/models"
)

type subjectBody struct {
	Kind string `json:"kind" binding:"required"`
	ID   int64  `json:"id" binding:"required"`
}

func (b subjectBody) toSubject() (models.Subject, error) {
	switch models.SubjectKind(b.Kind) {
	case models.SubjectMember:
		return models.MemberSubject(b.ID), nil
	case models.SubjectShepherd:
		return models.ShepherdSubject(b.ID), nil
	}
	return models.Subject{}, apperr.Validationf("unknown subject kind %q", b.Kind)
}

type submitBody struct {
	Subject        subjectBody `json:"subject" binding:"required"`
	Day            string      `json:"day" binding:"required"` // YYYY-MM-DD
	Presence       string      `json:"presence" binding:"required"`
	Notes          *string     `json:"notes"`
	AssertApproved bool        `json:"assert_approved"`
}

func (s *Server) submitInput(b submitBody) (attendance.SubmitInput, error) {
	subj, err := b.Subject.toSubject()
	if err != nil {
		return attendance.SubmitInput{}, err
	}
	day, err := time.ParseInLocation("2006-01-02", b.Day, s.cfg.Location)
	if err != nil {
		return attendance.SubmitInput{}, apperr.Validationf("day %q must be YYYY-MM-DD", b.Day)
	}
	return attendance.SubmitInput{
		Subject:        subj,
		At:             day,
		Presence:       models.PresenceStatus(b.Presence),
		Notes:          b.Notes,
		AssertApproved: b.AssertApproved,
	}, nil
}

type recordDTO struct {
	ID              string     `json:"id"`
	SubjectKind     string     `json:"subject_kind"`
	SubjectID       int64      `json:"subject_id"`
	Day             string     `json:"day"`
	Presence        string     `json:"presence"`
	Approval        string     `json:"approval"`
	Notes           *string    `json:"notes,omitempty"`
	SubmittedBy     int64      `json:"submitted_by"`
	ApprovedBy      *int64     `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toRecordDTO(r models.AttendanceRecord) recordDTO {
	return recordDTO{
		ID:              r.ID,
		SubjectKind:     string(r.Subject.Kind()),
		SubjectID:       r.Subject.ID(),
		Day:             r.Day.Format("2006-01-02"),
		Presence:        string(r.Presence),
		Approval:        string(r.Approval),
		Notes:           r.Notes,
		SubmittedBy:     r.SubmittedBy,
		ApprovedBy:      r.ApprovedBy,
		ApprovedAt:      r.ApprovedAt,
		RejectionReason: r.RejectionReason,
		CreatedAt:       r.CreatedAt,
	}
}

func (s *Server) submitAttendance(c *gin.Context) {
	var body submitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.writeErr(c, apperr.Validationf("bad request body: %v", err))
		return
	}
	in, err := s.submitInput(body)
	if err != nil {
		s.writeErr(c, err)
		return
	}
	rec, err := s.attendance.Submit(c.Request.Context(), auth.ActorID(c), in)
	if err != nil {
		s.writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRecordDTO(*rec))
}

func (s *Server) submitAttendanceBatch(c *gin.Context) {
	var body struct {
		Items []submitBody `json:"items" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.writeErr(c, apperr.Validationf("bad request body: %v", err))
		return
	}
	if len(body.Items) == 0 {
		s.writeErr(c, apperr.Validationf("batch is empty"))
		return
	}

	inputs := make([]attendance.SubmitInput, len(body.Items))
	for i, item := range body.Items {
		in, err := s.submitInput(item)
		if err != nil {
			s.writeErr(c, apperr.Validationf("item %d: %v", i, err))
			return
		}
		inputs[i] = in
	}

	results := s.attendance.SubmitBatch(c.Request.Context(), auth.ActorID(c), inputs)
	type itemResult struct {
		Record *recordDTO `json:"record,omitempty"`
		Error  *string    `json:"error,omitempty"`
		Kind   *string    `json:"kind,omitempty"`
	}
	out := make([]itemResult, len(results))
	for i, res := range results {
		if res.Err != nil {
			msg := res.Err.Error()
			kind := apperr.KindOf(res.Err).String()
			out[i] = itemResult{Error: &msg, Kind: &kind}
			continue
		}
		dto := toRecordDTO(*res.Record)
		out[i] = itemResult{Record: &dto}
	}
	c.JSON(http.StatusMultiStatus, gin.H{"results": out})
}

func (s *Server) getAttendance(c *gin.Context) {
	rec, err := s.attendance.Get(c.Request.Context(), auth.ActorID(c), c.Param("id"))
	if err != nil {
		s.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, toRecordDTO(*rec))
}

func (s *Server) listAttendance(c *gin.Context) {
	in, err := listInputFromQuery(c)
	if err != nil {
		s.writeErr(c, err)
		return
	}
	recs, err := s.attendance.List(c.Request.Context(), auth.ActorID(c), in)
	if err != nil {
		s.writeErr(c, err)
		return
	}
	out := make([]recordDTO, 0, len(recs))
	for _, r := range recs {
		out = append(out, toRecordDTO(r))
	}
	c.JSON(http.StatusOK, gin.H{"records": out})
}

func listInputFromQuery(c *gin.Context) (attendance.ListInput, error) {
	var in attendance.ListInput

	if kind := c.Query("subject_kind"); kind != "" {
		id, err := strconv.ParseInt(c.Query("subject_id"), 10, 64)
		if err != nil {
			return in, apperr.Validationf("subject_id must accompany subject_kind")
		}
		sb := subjectBody{Kind: kind, ID: id}
		subj, err := sb.toSubject()
		if err != nil {
			return in, err
		}
		in.Subject = &subj
	}
	if v := c.Query("approval"); v != "" {
		st := models.ApprovalStatus(v)
		switch st {
		case models.Pending, models.Approved, models.Rejected:
			in.Approval = &st
		default:
			return in, apperr.Validationf("unknown approval status %q", v)
		}
	}
	for _, q := range []struct {
		key string
		dst **time.Time
	}{{"from", &in.From}, {"to", &in.To}} {
		if v := c.Query(q.key); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				return in, apperr.Validationf("%s %q must be YYYY-MM-DD", q.key, v)
			}
			*q.dst = &t
		}
	}
	in.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	in.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return in, nil
}

func (s *Server) approveAttendance(c *gin.Context) {
	var body struct {
		Notes *string `json:"notes"`
	}
	_ = c.ShouldBindJSON(&body) // empty body is fine
	if err := s.attendance.Approve(c.Request.Context(), auth.ActorID(c), c.Param("id"), body.Notes); err != nil {
		s.writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) rejectAttendance(c *gin.Context) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.writeErr(c, apperr.Validationf("bad request body: %v", err))
		return
	}
	if err := s.attendance.Reject(c.Request.Context(), auth.ActorID(c), c.Param("id"), body.Reason); err != nil {
		s.writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) updateAttendance(c *gin.Context) {
	var body struct {
		Presence *string `json:"presence"`
		Notes    *string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.writeErr(c, apperr.Validationf("bad request body: %v", err))
		return
	}
	var in attendance.UpdateInput
	if body.Presence != nil {
		p := models.PresenceStatus(*body.Presence)
		in.Presence = &p
	}
	in.Notes = body.Notes
	if err := s.attendance.Update(c.Request.Context(), auth.ActorID(c), c.Param("id"), in); err != nil {
		s.writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) removeAttendance(c *gin.Context) {
	if err := s.attendance.Remove(c.Request.Context(), auth.ActorID(c), c.Param("id")); err != nil {
		s.writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
