package main

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is the closed set of account roles. It is fixed at account
// creation; there is no promotion path.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role: %q", raw)
	}
}

// Session is the per-request identity populated by the auth middleware.
// Handlers read it from the gin context, never from ambient state.
type Session struct {
	UserID int    `json:"userId"`
	Role   Role   `json:"role"`
	Name   string `json:"name"`
}

func (a *App) createSessionToken(session Session) (string, error) {
	claims := jwt.MapClaims{
		"user_id": session.UserID,
		"role":    string(session.Role),
		"name":    session.Name,
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(sessionDuration).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.cfg.AppSigningSecret))
}

func (a *App) verifySessionToken(tokenString string) (*Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(a.cfg.AppSigningSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	rawID, ok := claims["user_id"].(float64)
	if !ok || rawID <= 0 {
		return nil, fmt.Errorf("invalid user_id claim")
	}
	rawRole, _ := claims["role"].(string)
	role, err := ParseRole(rawRole)
	if err != nil {
		return nil, fmt.Errorf("invalid role claim")
	}
	name, _ := claims["name"].(string)

	return &Session{UserID: int(rawID), Role: role, Name: name}, nil
}

func (a *App) startSession(c *gin.Context, session Session) error {
	token, err := a.createSessionToken(session)
	if err != nil {
		return err
	}
	secure := strings.EqualFold(a.cfg.Env, "production")
	c.SetCookie(sessionCookieName, token, int(sessionDuration.Seconds()), "/", "", secure, true)
	return nil
}

func (a *App) clearSession(c *gin.Context) {
	secure := strings.EqualFold(a.cfg.Env, "production")
	c.SetCookie(sessionCookieName, "", -1, "/", "", secure, true)
}

// requireSession verifies the session cookie and stores the session in the
// gin context. Unauthenticated browsers are sent back to the login page
// with a notice.
func (a *App) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(sessionCookieName)
		if err != nil {
			redirectWithMessage(c, "/", "error", "Please log in first.")
			c.Abort()
			return
		}
		session, err := a.verifySessionToken(token)
		if err != nil {
			a.clearSession(c)
			redirectWithMessage(c, "/", "error", "Please log in first.")
			c.Abort()
			return
		}
		c.Set("session", *session)
		c.Next()
	}
}

// requireAdminPage guards server-rendered admin pages. Non-admins land on
// the report form with a notice rather than an error page.
func (a *App) requireAdminPage() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := getSession(c)
		if err != nil || session.Role != RoleAdmin {
			redirectWithMessage(c, "/report", "error", "Administrator access required.")
			c.Abort()
			return
		}
		c.Next()
	}
}

// requireAdminJSON guards the AJAX status-update route: the dashboard
// script expects a structured response, not a redirect.
func (a *App) requireAdminJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := getSession(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		if session.Role != RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// requireUserPage keeps admins out of the citizen-facing pages; they have
// no complaints of their own and belong on the dashboard.
func (a *App) requireUserPage() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := getSession(c)
		if err == nil && session.Role == RoleAdmin {
			redirectWithMessage(c, "/admin", "notice", "Administrators manage complaints from the dashboard.")
			c.Abort()
			return
		}
		c.Next()
	}
}

func getSession(c *gin.Context) (Session, error) {
	value, ok := c.Get("session")
	if !ok {
		return Session{}, fmt.Errorf("missing session")
	}
	session, ok := value.(Session)
	if !ok {
		return Session{}, fmt.Errorf("invalid session")
	}
	return session, nil
}

// isAJAXRequest reports whether the dashboard script issued the request.
func isAJAXRequest(c *gin.Context) bool {
	return strings.EqualFold(c.GetHeader("X-Requested-With"), "XMLHttpRequest")
}

// sanitizeRedirectTarget keeps redirects on-site. Anything absolute,
// protocol-relative or otherwise suspicious falls back to the login page.
func sanitizeRedirectTarget(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "/"
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "/"
	}
	if parsed.IsAbs() || parsed.Host != "" {
		return "/"
	}
	if strings.HasPrefix(parsed.Path, "//") || !strings.HasPrefix(parsed.Path, "/") {
		return "/"
	}

	target := parsed.Path
	if parsed.RawQuery != "" {
		target += "?" + parsed.RawQuery
	}
	return target
}

// redirectWithMessage sends the browser to target carrying a one-shot
// flash message in the query string, which the layout renders as a banner.
func redirectWithMessage(c *gin.Context, target, key, value string) {
	parsed, err := url.Parse(sanitizeRedirectTarget(target))
	if err != nil {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	query := parsed.Query()
	query.Del("error")
	query.Del("notice")
	query.Set(key, value)
	parsed.RawQuery = query.Encode()

	redirectURL := parsed.Path
	if parsed.RawQuery != "" {
		redirectURL += "?" + parsed.RawQuery
	}
	c.Redirect(http.StatusSeeOther, redirectURL)
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func randomToken() string {
	return uuid.NewString()
}

// verifySensorKey compares the presented key against the configured sensor
// secret. An empty configured key disables the endpoint entirely.
func (a *App) verifySensorKey(presented string) bool {
	if a.cfg.SensorAPIKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(a.cfg.SensorAPIKey)) == 1
}

const evidenceTimestampLayout = "20060102150405"

// timestampedEvidenceName derives the stored filename for an uploaded
// evidence file: a timestamp prefix on the sanitized original name. Two
// uploads of the same file within the same second still collide, matching
// the documented storage contract.
func timestampedEvidenceName(now time.Time, original string) string {
	return now.UTC().Format(evidenceTimestampLayout) + "_" + sanitizeEvidenceFileName(original)
}

func sanitizeEvidenceFileName(original string) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	if base == "." || base == ".." || base == "/" || base == "" {
		return "evidence"
	}

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	cleaned := strings.Trim(b.String(), ".")
	if cleaned == "" {
		return "evidence"
	}
	return cleaned
}
