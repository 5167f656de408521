package export

import (
	"strconv"

	"github.com/xuri/excelize/v2"

	"churchcare/internal/models"
)

// CareReport renders the attendance history and the member risk roster
// into one workbook.
func CareReport(records []models.AttendanceRecord, members []models.Member) (*excelize.File, error) {
	attRows := make([][]string, 0, len(records))
	for _, r := range records {
		reason := ""
		if r.RejectionReason != nil {
			reason = *r.RejectionReason
		}
		notes := ""
		if r.Notes != nil {
			notes = *r.Notes
		}
		attRows = append(attRows, []string{
			r.Day.Format("2006-01-02"),
			string(r.Subject.Kind()),
			strconv.FormatInt(r.Subject.ID(), 10),
			string(r.Presence),
			string(r.Approval),
			strconv.FormatInt(r.SubmittedBy, 10),
			reason,
			notes,
		})
	}

	memRows := make([][]string, 0, len(members))
	for _, m := range members {
		last := "never"
		if m.LastAttendanceAt != nil {
			last = m.LastAttendanceAt.Format("2006-01-02")
		}
		memRows = append(memRows, []string{
			strconv.FormatInt(m.ID, 10),
			m.Name,
			strconv.FormatInt(m.OwnerID, 10),
			last,
			string(m.RiskLevel),
		})
	}

	return NewWorkbook([]SheetSpec{
		{
			Title:  "Attendance",
			Header: []string{"Day", "Subject", "Subject ID", "Presence", "Approval", "Submitted By", "Rejection Reason", "Notes"},
			Rows:   attRows,
		},
		{
			Title:  "Members",
			Header: []string{"ID", "Name", "Shepherd", "Last Attendance", "Risk"},
			Rows:   memRows,
		},
	})
}
