package main

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	displayTimestampLayout = "2006-01-02 15:04"

	templateLoginPath     = "templates/login.tmpl"
	templateRegisterPath  = "templates/register.tmpl"
	templateReportPath    = "templates/report.tmpl"
	templateMyReportsPath = "templates/my_reports.tmpl"
	templateDashboardPath = "templates/dashboard.tmpl"
	templateProfilePath   = "templates/profile.tmpl"
)

type baseViewData struct {
	Title         string
	Session       *Session
	ErrorMessage  string
	NoticeMessage string
}

type loginViewData struct {
	baseViewData
	Email string
}

type registerViewData struct {
	baseViewData
	Name  string
	Email string
}

type reportViewData struct {
	baseViewData
}

type complaintRowView struct {
	ID          int
	NoiseType   string
	DBLevel     float64
	Location    string
	Description string
	Status      string
	StatusClass string
	Evidence    string
	SubmittedAt string
}

type myReportsViewData struct {
	baseViewData
	Complaints []complaintRowView
}

type dashboardRowView struct {
	complaintRowView
	ReporterName string
	EvidenceURL  string
}

type dashboardViewData struct {
	baseViewData
	Complaints      []dashboardRowView
	TotalComplaints int
	PendingCount    int
	ResolvedCount   int
	StatusFilter    string
	StatusOptions   []string
	TypeChartJSON   string
	StatusChartJSON string
}

type profileViewData struct {
	baseViewData
	Name  string
	Email string
}

func (a *App) baseData(c *gin.Context, title string) baseViewData {
	var session *Session
	if value, ok := c.Get("session"); ok {
		if stored, castOK := value.(Session); castOK {
			session = &stored
		}
	}

	return baseViewData{
		Title:         title,
		Session:       session,
		ErrorMessage:  strings.TrimSpace(c.Query("error")),
		NoticeMessage: strings.TrimSpace(c.Query("notice")),
	}
}

func complaintToRowView(complaint Complaint) complaintRowView {
	return complaintRowView{
		ID:          complaint.ID,
		NoiseType:   complaint.NoiseType,
		DBLevel:     complaint.DBLevel,
		Location:    complaint.Location,
		Description: complaint.Description,
		Status:      complaint.Status,
		StatusClass: statusBadgeClass(complaint.Status),
		Evidence:    complaint.Evidence,
		SubmittedAt: formatTimestamp(complaint.CreatedAt),
	}
}

func statusBadgeClass(status string) string {
	return "status-" + strings.ReplaceAll(strings.ToLower(strings.TrimSpace(status)), " ", "-")
}

func formatTimestamp(raw string) string {
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return parsed.UTC().Format(displayTimestampLayout)
}

// chartData is the shape the dashboard chart script consumes from the
// embedded JSON blocks.
type chartData struct {
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
}

func typeChartJSON(stats *DashboardStats) string {
	data := chartData{Labels: []string{}, Values: []int{}}
	if stats != nil {
		for _, entry := range stats.ByNoiseType {
			data.Labels = append(data.Labels, entry.NoiseType)
			data.Values = append(data.Values, entry.Count)
		}
	}
	encoded, _ := json.Marshal(data)
	return string(encoded)
}

func statusChartJSON(stats *DashboardStats) string {
	data := chartData{Labels: []string{}, Values: []int{}}
	if stats != nil {
		for _, entry := range stats.ByStatus {
			data.Labels = append(data.Labels, entry.Status)
			data.Values = append(data.Values, entry.Count)
		}
	}
	encoded, _ := json.Marshal(data)
	return string(encoded)
}

func statusCountFor(stats *DashboardStats, status string) int {
	if stats == nil {
		return 0
	}
	for _, entry := range stats.ByStatus {
		if entry.Status == status {
			return entry.Count
		}
	}
	return 0
}
