package main

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ankush850/Smart-Noise-Pollution-Monitoring-and-Complaint-Management-System/mailer"
)

func (a *App) dashboardPageHandler(c *gin.Context) {
	statusFilter := strings.TrimSpace(c.Query("status"))

	filters := map[string]any{}
	if statusFilter != "" {
		filters["status"] = statusFilter
	}

	complaints, err := a.listAllComplaints(c.Request.Context(), filters)
	if err != nil {
		a.log.Error("failed to list complaints for dashboard", "err", err)
		base := a.baseData(c, "Dashboard")
		base.ErrorMessage = "Could not load the dashboard."
		a.renderTemplate(c, http.StatusInternalServerError, templateDashboardPath, dashboardViewData{
			baseViewData:  base,
			Complaints:    []dashboardRowView{},
			StatusOptions: statusOptions,
		})
		return
	}

	stats, err := a.complaintStats(c.Request.Context())
	if err != nil {
		a.log.Error("failed to compute dashboard stats", "err", err)
		stats = &DashboardStats{}
	}

	rows := make([]dashboardRowView, 0, len(complaints))
	for _, entry := range complaints {
		row := dashboardRowView{
			complaintRowView: complaintToRowView(entry.Complaint),
			ReporterName:     entry.ReporterName,
		}
		if entry.Evidence != "" {
			row.EvidenceURL = "/admin/evidence/" + entry.Evidence
		}
		rows = append(rows, row)
	}

	data := dashboardViewData{
		baseViewData:    a.baseData(c, "Dashboard"),
		Complaints:      rows,
		TotalComplaints: stats.TotalComplaints,
		PendingCount:    statusCountFor(stats, "Pending"),
		ResolvedCount:   statusCountFor(stats, "Resolved"),
		StatusFilter:    statusFilter,
		StatusOptions:   statusOptions,
		TypeChartJSON:   typeChartJSON(stats),
		StatusChartJSON: statusChartJSON(stats),
	}
	a.renderTemplate(c, http.StatusOK, templateDashboardPath, data)
}

func (a *App) updateStatusHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		a.respondStatusUpdateError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_complaint_id", Message: "Invalid complaint id"})
		return
	}

	status := strings.TrimSpace(c.PostForm("status"))
	if status == "" {
		a.respondStatusUpdateError(c, &apiError{Status: http.StatusBadRequest, Code: "missing_status", Message: "Status is required"})
		return
	}

	updated, err := a.setComplaintStatus(c.Request.Context(), id, status)
	if err != nil {
		a.log.Error("status update failed", "complaint_id", id, "err", err)
		a.respondStatusUpdateError(c, err)
		return
	}

	// Notification is best effort; the update already committed.
	go a.sendStatusChangeEmail(*updated)

	if isAJAXRequest(c) {
		c.JSON(http.StatusOK, gin.H{"status": "success", "complaintStatus": updated.Status})
		return
	}
	redirectWithMessage(c, "/admin", "notice", fmt.Sprintf("Complaint #%d marked %s.", updated.ID, updated.Status))
}

func (a *App) respondStatusUpdateError(c *gin.Context, err error) {
	if isAJAXRequest(c) {
		writeAPIError(c, err)
		return
	}

	message := "Status update failed."
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		message = apiErr.Message + "."
	}
	redirectWithMessage(c, "/admin", "error", message)
}

// sendStatusChangeEmail tells the reporter their complaint moved. The
// sensor system account has no inbox, so its address is skipped.
func (a *App) sendStatusChangeEmail(updated StatusUpdateResult) {
	if updated.ReporterEmail == "" || updated.ReporterEmail == sensorUserEmail {
		return
	}

	detailURL := ""
	if a.cfg.PublicBaseURL != "" {
		detailURL = a.cfg.PublicBaseURL + "/my-reports"
	}

	subject := fmt.Sprintf("Your noise complaint #%d is now %s", updated.ID, updated.Status)
	text := fmt.Sprintf(
		"Hello %s,\n\nThe status of your noise complaint #%d (%s at %s) changed to %s.\n",
		updated.ReporterName, updated.ID, updated.NoiseType, updated.Location, updated.Status,
	)
	htmlBody := fmt.Sprintf(
		"<p>Hello %s,</p><p>The status of your noise complaint <strong>#%d</strong> (%s at %s) changed to <strong>%s</strong>.</p>",
		html.EscapeString(updated.ReporterName), updated.ID,
		html.EscapeString(updated.NoiseType), html.EscapeString(updated.Location),
		html.EscapeString(updated.Status),
	)
	if detailURL != "" {
		text += fmt.Sprintf("\nView your reports: %s\n", detailURL)
		htmlBody += fmt.Sprintf(`<p><a href="%s">View your reports</a></p>`, detailURL)
	}

	result, err := a.mailer.Send(mailer.Message{
		To:      []string{updated.ReporterEmail},
		Subject: subject,
		HTML:    htmlBody,
		Text:    text,
	})
	if err != nil {
		a.log.Error("status change email failed", "complaint_id", updated.ID, "err", err)
		return
	}
	a.log.Info("status change email sent",
		"complaint_id", updated.ID,
		"provider_message_id", result.ProviderMessageID,
	)
}

// evidenceServeHandler serves a stored evidence file to an administrator.
// Filenames are sanitized on upload, but the lookup re-checks for path
// traversal anyway.
func (a *App) evidenceServeHandler(c *gin.Context) {
	name := filepath.Base(strings.TrimSpace(c.Param("name")))
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		c.String(http.StatusNotFound, "not found")
		return
	}

	fullPath := filepath.Join(a.cfg.DataRoot, "uploads", name)
	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		c.String(http.StatusNotFound, "not found")
		return
	}

	c.File(fullPath)
}
