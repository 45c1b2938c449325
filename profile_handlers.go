package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (a *App) profilePageHandler(c *gin.Context) {
	session, err := getSession(c)
	if err != nil {
		redirectWithMessage(c, "/", "error", "Please log in first.")
		return
	}

	user, err := a.getUserByID(c.Request.Context(), session.UserID)
	if err != nil {
		a.log.Error("failed to load profile", "user_id", session.UserID, "err", err)
		base := a.baseData(c, "Profile")
		base.ErrorMessage = "Could not load your profile."
		a.renderTemplate(c, http.StatusInternalServerError, templateProfilePath, profileViewData{baseViewData: base})
		return
	}

	data := profileViewData{
		baseViewData: a.baseData(c, "Profile"),
		Name:         user.Name,
		Email:        user.Email,
	}
	a.renderTemplate(c, http.StatusOK, templateProfilePath, data)
}

func (a *App) profileSubmitHandler(c *gin.Context) {
	session, err := getSession(c)
	if err != nil {
		redirectWithMessage(c, "/", "error", "Please log in first.")
		return
	}

	name := strings.TrimSpace(c.PostForm("name"))
	email := normalizeEmail(c.PostForm("email"))

	renderError := func(status int, message string) {
		base := a.baseData(c, "Profile")
		base.ErrorMessage = message
		a.renderTemplate(c, status, templateProfilePath, profileViewData{
			baseViewData: base,
			Name:         name,
			Email:        email,
		})
	}

	if name == "" || email == "" {
		renderError(http.StatusBadRequest, "Name and email are required.")
		return
	}
	if !strings.Contains(email, "@") {
		renderError(http.StatusBadRequest, "A valid email address is required.")
		return
	}

	if err := a.updateUserProfile(c.Request.Context(), session.UserID, name, email); err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.Code == "email_taken" {
			renderError(http.StatusConflict, "An account with this email already exists.")
			return
		}
		a.log.Error("profile update failed", "user_id", session.UserID, "err", err)
		renderError(http.StatusInternalServerError, "Profile update failed. Please try again.")
		return
	}

	// the session token carries the display name, so refresh it
	session.Name = name
	if err := a.startSession(c, session); err != nil {
		a.log.Error("failed to refresh session", "user_id", session.UserID, "err", err)
	}

	redirectWithMessage(c, "/profile", "notice", "Profile updated.")
}

func (a *App) storeGetUserByID(ctx context.Context, id int) (*User, error) {
	var user User
	var rawRole string
	err := a.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role
		FROM users
		WHERE id = $1
	`, id).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &rawRole)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &apiError{Status: http.StatusNotFound, Code: "user_not_found", Message: "User not found"}
		}
		return nil, err
	}

	role, err := ParseRole(rawRole)
	if err != nil {
		return nil, err
	}
	user.Role = role
	return &user, nil
}

func (a *App) storeUpdateUserProfile(ctx context.Context, id int, name, email string) error {
	result, err := a.db.ExecContext(ctx, `
		UPDATE users
		SET name = $1, email = $2, updated_at = NOW()
		WHERE id = $3
		  AND NOT EXISTS (SELECT 1 FROM users WHERE email = $2 AND id <> $3)
	`, name, normalizeEmail(email), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		checkErr := a.db.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2)
		`, normalizeEmail(email), id).Scan(&exists)
		if checkErr != nil {
			return checkErr
		}
		if exists {
			return &apiError{Status: http.StatusConflict, Code: "email_taken", Message: "Email already registered"}
		}
		return &apiError{Status: http.StatusNotFound, Code: "user_not_found", Message: "User not found"}
	}
	return nil
}
