package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// sensorReportPayload is the JSON body accepted from field sensors. Every
// key is optional; absent values fall back to the sensor defaults.
type sensorReportPayload struct {
	Type        *string  `json:"type"`
	DBLevel     *float64 `json:"db_level"`
	Location    *string  `json:"location"`
	Description *string  `json:"description"`
}

func (a *App) sensorReportHandler(c *gin.Context) {
	if !a.verifySensorKey(strings.TrimSpace(c.GetHeader("X-API-KEY"))) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var payload sensorReportPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload", "message": "Body must be a JSON object"})
		return
	}

	draft := ComplaintDraft{
		UserID:      a.sensorUserID,
		NoiseType:   sensorDefaultType,
		DBLevel:     0,
		Location:    sensorDefaultLocation,
		Description: sensorDefaultDescription,
		Evidence:    "",
		Source:      "sensor",
	}
	if payload.Type != nil && strings.TrimSpace(*payload.Type) != "" {
		draft.NoiseType = strings.TrimSpace(*payload.Type)
	}
	if payload.DBLevel != nil {
		draft.DBLevel = *payload.DBLevel
	}
	if payload.Location != nil && strings.TrimSpace(*payload.Location) != "" {
		draft.Location = strings.TrimSpace(*payload.Location)
	}
	if payload.Description != nil && strings.TrimSpace(*payload.Description) != "" {
		draft.Description = strings.TrimSpace(*payload.Description)
	}

	complaint, err := a.createComplaint(c.Request.Context(), draft)
	if err != nil {
		a.log.Error("sensor complaint ingestion failed", "err", err)
		writeAPIError(c, err)
		return
	}

	a.log.Info("sensor complaint ingested",
		"complaint_id", complaint.ID,
		"noise_type", complaint.NoiseType,
		"db_level", complaint.DBLevel,
	)
	c.JSON(http.StatusCreated, gin.H{"status": "success", "id": complaint.ID})
}
