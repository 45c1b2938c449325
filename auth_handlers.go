package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// loginFailedMessage is deliberately identical for unknown emails and
// wrong passwords so the form leaks nothing about which one it was.
const loginFailedMessage = "Invalid email or password."

func (a *App) loginPageHandler(c *gin.Context) {
	if token, err := c.Cookie(sessionCookieName); err == nil {
		if session, verifyErr := a.verifySessionToken(token); verifyErr == nil {
			c.Redirect(http.StatusSeeOther, landingPathForRole(session.Role))
			return
		}
	}

	data := loginViewData{
		baseViewData: a.baseData(c, "Log in"),
		Email:        "",
	}
	a.renderTemplate(c, http.StatusOK, templateLoginPath, data)
}

func (a *App) loginSubmitHandler(c *gin.Context) {
	email := normalizeEmail(c.PostForm("email"))
	password := c.PostForm("password")

	if email == "" || password == "" {
		base := a.baseData(c, "Log in")
		base.ErrorMessage = "Email and password are required."
		a.renderTemplate(c, http.StatusBadRequest, templateLoginPath, loginViewData{baseViewData: base, Email: email})
		return
	}

	user, err := a.authenticateUser(c.Request.Context(), email, password)
	if err != nil {
		status := http.StatusInternalServerError
		message := "Login failed. Please try again."
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			status = http.StatusUnauthorized
			message = loginFailedMessage
		} else {
			a.log.Error("login failed", "email", email, "err", err)
		}

		base := a.baseData(c, "Log in")
		base.ErrorMessage = message
		a.renderTemplate(c, status, templateLoginPath, loginViewData{baseViewData: base, Email: email})
		return
	}

	if err := a.startSession(c, Session{UserID: user.ID, Role: user.Role, Name: user.Name}); err != nil {
		a.log.Error("failed to start session", "user_id", user.ID, "err", err)
		base := a.baseData(c, "Log in")
		base.ErrorMessage = "Login failed. Please try again."
		a.renderTemplate(c, http.StatusInternalServerError, templateLoginPath, loginViewData{baseViewData: base, Email: email})
		return
	}

	c.Redirect(http.StatusSeeOther, landingPathForRole(user.Role))
}

func landingPathForRole(role Role) string {
	if role == RoleAdmin {
		return "/admin"
	}
	return "/report"
}

func (a *App) registerPageHandler(c *gin.Context) {
	data := registerViewData{
		baseViewData: a.baseData(c, "Create account"),
	}
	a.renderTemplate(c, http.StatusOK, templateRegisterPath, data)
}

func (a *App) registerSubmitHandler(c *gin.Context) {
	name := strings.TrimSpace(c.PostForm("name"))
	email := normalizeEmail(c.PostForm("email"))
	password := c.PostForm("password")

	renderError := func(status int, message string) {
		base := a.baseData(c, "Create account")
		base.ErrorMessage = message
		a.renderTemplate(c, status, templateRegisterPath, registerViewData{
			baseViewData: base,
			Name:         name,
			Email:        email,
		})
	}

	if name == "" || email == "" || password == "" {
		renderError(http.StatusBadRequest, "Name, email and password are required.")
		return
	}
	if !strings.Contains(email, "@") {
		renderError(http.StatusBadRequest, "A valid email address is required.")
		return
	}

	_, err := a.registerUser(c.Request.Context(), name, email, password)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.Code == "email_taken" {
			renderError(http.StatusConflict, "An account with this email already exists.")
			return
		}
		a.log.Error("registration failed", "email", email, "err", err)
		renderError(http.StatusInternalServerError, "Registration failed. Please try again.")
		return
	}

	redirectWithMessage(c, "/", "notice", "Account created. Please log in.")
}

func (a *App) logoutHandler(c *gin.Context) {
	a.clearSession(c)
	redirectWithMessage(c, "/", "notice", "You have been logged out.")
}

func (a *App) storeAuthenticateUser(ctx context.Context, email, password string) (*User, error) {
	var user User
	var rawRole string
	err := a.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role
		FROM users
		WHERE email = $1
	`, normalizeEmail(email)).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &rawRole)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &apiError{Status: http.StatusUnauthorized, Code: "invalid_credentials", Message: "Invalid credentials"}
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, &apiError{Status: http.StatusUnauthorized, Code: "invalid_credentials", Message: "Invalid credentials"}
	}

	role, err := ParseRole(rawRole)
	if err != nil {
		return nil, err
	}
	user.Role = role
	return &user, nil
}

func (a *App) storeRegisterUser(ctx context.Context, name, email, password string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	var id int
	err = a.db.QueryRowContext(ctx, `
		INSERT INTO users (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO NOTHING
		RETURNING id
	`, name, normalizeEmail(email), string(hash), string(RoleUser)).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// conflict swallowed the insert: the email is taken
			return nil, &apiError{Status: http.StatusConflict, Code: "email_taken", Message: "Email already registered"}
		}
		return nil, err
	}

	return &User{ID: id, Name: name, Email: normalizeEmail(email), Role: RoleUser}, nil
}
