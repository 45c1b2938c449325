package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

func (a *App) reportPageHandler(c *gin.Context) {
	data := reportViewData{
		baseViewData: a.baseData(c, "Report noise"),
	}
	a.renderTemplate(c, http.StatusOK, templateReportPath, data)
}

// reportForm is the validated complaint submission. Fields must be present
// and db_level must parse; beyond that any value is accepted.
type reportForm struct {
	NoiseType   string
	DBLevel     float64
	Location    string
	Description string
}

func parseReportForm(c *gin.Context) (reportForm, error) {
	form := reportForm{
		NoiseType:   strings.TrimSpace(c.PostForm("noise_type")),
		Location:    strings.TrimSpace(c.PostForm("location")),
		Description: strings.TrimSpace(c.PostForm("description")),
	}

	if form.NoiseType == "" {
		return form, &apiError{Status: http.StatusBadRequest, Code: "missing_noise_type", Message: "Noise type is required"}
	}
	if form.Location == "" {
		return form, &apiError{Status: http.StatusBadRequest, Code: "missing_location", Message: "Location is required"}
	}

	rawLevel := strings.TrimSpace(c.PostForm("db_level"))
	if rawLevel == "" {
		return form, &apiError{Status: http.StatusBadRequest, Code: "missing_db_level", Message: "Noise level is required"}
	}
	level, err := strconv.ParseFloat(rawLevel, 64)
	if err != nil {
		return form, &apiError{Status: http.StatusBadRequest, Code: "invalid_db_level", Message: "Noise level must be a number"}
	}
	form.DBLevel = level

	return form, nil
}

func (a *App) reportSubmitHandler(c *gin.Context) {
	session, err := getSession(c)
	if err != nil {
		redirectWithMessage(c, "/", "error", "Please log in first.")
		return
	}

	form, err := parseReportForm(c)
	if err != nil {
		message := "Invalid complaint submission."
		if apiErr, ok := err.(*apiError); ok {
			message = apiErr.Message + "."
		}
		base := a.baseData(c, "Report noise")
		base.ErrorMessage = message
		a.renderTemplate(c, http.StatusBadRequest, templateReportPath, reportViewData{baseViewData: base})
		return
	}

	evidenceName, err := a.saveEvidenceUpload(c)
	if err != nil {
		a.log.Error("evidence upload failed", "user_id", session.UserID, "err", err)
		base := a.baseData(c, "Report noise")
		base.ErrorMessage = "Evidence upload failed. Please try again."
		a.renderTemplate(c, http.StatusBadRequest, templateReportPath, reportViewData{baseViewData: base})
		return
	}

	_, err = a.createComplaint(c.Request.Context(), ComplaintDraft{
		UserID:      session.UserID,
		NoiseType:   form.NoiseType,
		DBLevel:     form.DBLevel,
		Location:    form.Location,
		Description: form.Description,
		Evidence:    evidenceName,
		Source:      "web",
	})
	if err != nil {
		a.log.Error("failed to create complaint", "user_id", session.UserID, "err", err)
		base := a.baseData(c, "Report noise")
		base.ErrorMessage = "Could not submit your complaint. Please try again."
		a.renderTemplate(c, http.StatusInternalServerError, templateReportPath, reportViewData{baseViewData: base})
		return
	}

	redirectWithMessage(c, "/my-reports", "notice", "Complaint submitted.")
}

// saveEvidenceUpload stores the optional evidence file under the upload
// directory and returns the stored filename, or "" when no file was sent.
func (a *App) saveEvidenceUpload(c *gin.Context) (string, error) {
	fileHeader, err := c.FormFile("evidence")
	if err != nil {
		if err == http.ErrMissingFile {
			return "", nil
		}
		// a multipart form without the field behaves like a missing file
		if strings.Contains(err.Error(), "no such file") {
			return "", nil
		}
		return "", err
	}
	if fileHeader.Size == 0 {
		return "", nil
	}
	if fileHeader.Size > maxEvidenceBytes {
		return "", fmt.Errorf("evidence exceeds %d bytes", int64(maxEvidenceBytes))
	}

	opened, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer opened.Close()

	data, err := io.ReadAll(io.LimitReader(opened, maxEvidenceBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxEvidenceBytes {
		return "", fmt.Errorf("evidence exceeds %d bytes", int64(maxEvidenceBytes))
	}

	storedName := timestampedEvidenceName(time.Now(), fileHeader.Filename)
	uploadDir := filepath.Join(a.cfg.DataRoot, "uploads")
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(uploadDir, storedName), data, 0o644); err != nil {
		return "", err
	}

	return storedName, nil
}

func (a *App) myReportsPageHandler(c *gin.Context) {
	session, err := getSession(c)
	if err != nil {
		redirectWithMessage(c, "/", "error", "Please log in first.")
		return
	}

	complaints, err := a.listUserComplaints(c.Request.Context(), session.UserID)
	if err != nil {
		a.log.Error("failed to list complaints", "user_id", session.UserID, "err", err)
		base := a.baseData(c, "My reports")
		base.ErrorMessage = "Could not load your reports."
		a.renderTemplate(c, http.StatusInternalServerError, templateMyReportsPath, myReportsViewData{baseViewData: base})
		return
	}

	rows := make([]complaintRowView, 0, len(complaints))
	for _, complaint := range complaints {
		rows = append(rows, complaintToRowView(complaint))
	}

	data := myReportsViewData{
		baseViewData: a.baseData(c, "My reports"),
		Complaints:   rows,
	}
	a.renderTemplate(c, http.StatusOK, templateMyReportsPath, data)
}
