package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const complaintColumns = `id, user_id, noise_type, db_level, location, description, status, evidence, created_at`

func scanComplaint(row interface{ Scan(...any) error }) (Complaint, error) {
	var complaint Complaint
	var createdAt time.Time
	err := row.Scan(
		&complaint.ID,
		&complaint.UserID,
		&complaint.NoiseType,
		&complaint.DBLevel,
		&complaint.Location,
		&complaint.Description,
		&complaint.Status,
		&complaint.Evidence,
		&createdAt,
	)
	if err != nil {
		return Complaint{}, err
	}
	complaint.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	return complaint, nil
}

func (a *App) storeCreateComplaint(ctx context.Context, draft ComplaintDraft) (*Complaint, error) {
	row := a.db.QueryRowContext(ctx, `
		INSERT INTO complaints (user_id, noise_type, db_level, location, description, status, evidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+complaintColumns+`
	`, draft.UserID, draft.NoiseType, draft.DBLevel, draft.Location, draft.Description, defaultStatus, draft.Evidence)

	complaint, err := scanComplaint(row)
	if err != nil {
		return nil, err
	}
	return &complaint, nil
}

func (a *App) storeListUserComplaints(ctx context.Context, userID int) ([]Complaint, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT `+complaintColumns+`
		FROM complaints
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	complaints := make([]Complaint, 0)
	for rows.Next() {
		complaint, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		complaints = append(complaints, complaint)
	}
	return complaints, rows.Err()
}

func buildComplaintsWhereClause(filters map[string]any) (string, []any) {
	where := []string{}
	args := []any{}

	if status, ok := filters["status"].(string); ok && status != "" {
		where = append(where, fmt.Sprintf("c.status = $%d", len(args)+1))
		args = append(args, status)
	}
	if noiseType, ok := filters["noise_type"].(string); ok && noiseType != "" {
		where = append(where, fmt.Sprintf("c.noise_type = $%d", len(args)+1))
		args = append(args, noiseType)
	}

	return strings.Join(where, " AND "), args
}

func (a *App) storeListAllComplaints(ctx context.Context, filters map[string]any) ([]ComplaintWithReporter, error) {
	query := `
		SELECT c.id, c.user_id, c.noise_type, c.db_level, c.location, c.description,
		       c.status, c.evidence, c.created_at, u.name
		FROM complaints c
		JOIN users u ON u.id = c.user_id
	`
	whereClause, args := buildComplaintsWhereClause(filters)
	if whereClause != "" {
		query += " WHERE " + whereClause
	}
	query += " ORDER BY c.created_at DESC, c.id DESC"

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	complaints := make([]ComplaintWithReporter, 0)
	for rows.Next() {
		var entry ComplaintWithReporter
		var createdAt time.Time
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.NoiseType,
			&entry.DBLevel,
			&entry.Location,
			&entry.Description,
			&entry.Status,
			&entry.Evidence,
			&createdAt,
			&entry.ReporterName,
		); err != nil {
			return nil, err
		}
		entry.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		complaints = append(complaints, entry)
	}
	return complaints, rows.Err()
}

// storeComplaintStats recomputes the dashboard aggregates on every call.
func (a *App) storeComplaintStats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{
		ByNoiseType: []TypeCount{},
		ByStatus:    []StatusCount{},
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT noise_type, COUNT(*)
		FROM complaints
		GROUP BY noise_type
		ORDER BY COUNT(*) DESC, noise_type ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var entry TypeCount
		if err := rows.Scan(&entry.NoiseType, &entry.Count); err != nil {
			return nil, err
		}
		stats.ByNoiseType = append(stats.ByNoiseType, entry)
		stats.TotalComplaints += entry.Count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	statusRows, err := a.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM complaints
		GROUP BY status
		ORDER BY COUNT(*) DESC, status ASC
	`)
	if err != nil {
		return nil, err
	}
	defer statusRows.Close()
	for statusRows.Next() {
		var entry StatusCount
		if err := statusRows.Scan(&entry.Status, &entry.Count); err != nil {
			return nil, err
		}
		stats.ByStatus = append(stats.ByStatus, entry)
	}
	return stats, statusRows.Err()
}

// storeSetComplaintStatus overwrites the status unconditionally and
// returns the updated row joined with the reporter, so the caller can
// notify them. Last write wins; there is no versioning.
func (a *App) storeSetComplaintStatus(ctx context.Context, id int, status string) (*StatusUpdateResult, error) {
	result, err := a.db.ExecContext(ctx, `
		UPDATE complaints SET status = $1 WHERE id = $2
	`, status, id)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, &apiError{Status: http.StatusNotFound, Code: "complaint_not_found", Message: "Complaint not found"}
	}

	var updated StatusUpdateResult
	var createdAt time.Time
	err = a.db.QueryRowContext(ctx, `
		SELECT c.id, c.user_id, c.noise_type, c.db_level, c.location, c.description,
		       c.status, c.evidence, c.created_at, u.name, u.email
		FROM complaints c
		JOIN users u ON u.id = c.user_id
		WHERE c.id = $1
	`, id).Scan(
		&updated.ID,
		&updated.UserID,
		&updated.NoiseType,
		&updated.DBLevel,
		&updated.Location,
		&updated.Description,
		&updated.Status,
		&updated.Evidence,
		&createdAt,
		&updated.ReporterName,
		&updated.ReporterEmail,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &apiError{Status: http.StatusNotFound, Code: "complaint_not_found", Message: "Complaint not found"}
		}
		return nil, err
	}
	updated.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	return &updated, nil
}
