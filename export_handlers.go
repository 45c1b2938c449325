package main

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-pdf/fpdf"
)

func (a *App) exportCSVHandler(c *gin.Context) {
	complaints, err := a.listAllComplaints(c.Request.Context(), map[string]any{})
	if err != nil {
		a.log.Error("csv export failed", "err", err)
		redirectWithMessage(c, "/admin", "error", "Export failed. Please try again.")
		return
	}

	content, err := buildComplaintsCSV(complaints)
	if err != nil {
		a.log.Error("csv export failed", "err", err)
		redirectWithMessage(c, "/admin", "error", "Export failed. Please try again.")
		return
	}

	filename := fmt.Sprintf("complaints-%s.csv", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", content)
}

func buildComplaintsCSV(complaints []ComplaintWithReporter) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"ID", "User", "Noise Type", "dB Level", "Location", "Status", "Date"}); err != nil {
		return nil, err
	}
	for _, entry := range complaints {
		record := []string{
			strconv.Itoa(entry.ID),
			entry.ReporterName,
			entry.NoiseType,
			strconv.FormatFloat(entry.DBLevel, 'f', -1, 64),
			entry.Location,
			entry.Status,
			formatTimestamp(entry.CreatedAt),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (a *App) exportPDFHandler(c *gin.Context) {
	complaints, err := a.listAllComplaints(c.Request.Context(), map[string]any{})
	if err != nil {
		a.log.Error("pdf export failed", "err", err)
		redirectWithMessage(c, "/admin", "error", "Export failed. Please try again.")
		return
	}

	stats, err := a.complaintStats(c.Request.Context())
	if err != nil {
		a.log.Error("pdf export failed", "err", err)
		redirectWithMessage(c, "/admin", "error", "Export failed. Please try again.")
		return
	}

	content, err := buildComplaintsPDF(complaints, stats, time.Now().UTC())
	if err != nil {
		a.log.Error("pdf export failed", "err", err)
		redirectWithMessage(c, "/admin", "error", "Export failed. Please try again.")
		return
	}

	filename := fmt.Sprintf("complaints-%s.pdf", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", content)
}

func buildComplaintsPDF(complaints []ComplaintWithReporter, stats *DashboardStats, generatedAt time.Time) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Noise complaint report", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Noise complaint report")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated %s", generatedAt.Format("2006-01-02 15:04 UTC")))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Total complaints: %d", stats.TotalComplaints))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 7, "By status")
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 10)
	for _, entry := range stats.ByStatus {
		pdf.Cell(0, 6, fmt.Sprintf("%s: %d", entry.Status, entry.Count))
		pdf.Ln(5)
	}
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 7, "By noise type")
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 10)
	for _, entry := range stats.ByNoiseType {
		pdf.Cell(0, 6, fmt.Sprintf("%s: %d", entry.NoiseType, entry.Count))
		pdf.Ln(5)
	}
	pdf.Ln(5)

	headers := []string{"ID", "User", "Noise Type", "dB", "Location", "Status", "Date"}
	widths := []float64{12, 45, 40, 15, 70, 28, 35}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, header := range headers {
		pdf.CellFormat(widths[i], 7, header, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, entry := range complaints {
		cells := []string{
			strconv.Itoa(entry.ID),
			entry.ReporterName,
			entry.NoiseType,
			strconv.FormatFloat(entry.DBLevel, 'f', 1, 64),
			entry.Location,
			entry.Status,
			formatTimestamp(entry.CreatedAt),
		}
		for i, cell := range cells {
			pdf.CellFormat(widths[i], 6, cell, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
