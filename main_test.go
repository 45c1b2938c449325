package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/ankush850/Smart-Noise-Pollution-Monitoring-and-Complaint-Management-System/mailer"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return &App{
		cfg: &Config{
			Env:              "test",
			DataRoot:         t.TempDir(),
			AppSigningSecret: "test-signing-secret-0123456789",
			SensorAPIKey:     "test-sensor-key",
		},
		log:          logger,
		mailer:       mailer.New(mailer.NewLogProvider(logger), "noreply@noisewatch.test"),
		templates:    newTemplateRenderer("test"),
		sensorUserID: 42,
	}
}

func newTestRouter(app *App) *gin.Engine {
	r := gin.New()

	r.GET("/", app.loginPageHandler)
	r.POST("/", app.loginSubmitHandler)
	r.GET("/register", app.registerPageHandler)
	r.POST("/register", app.registerSubmitHandler)
	r.GET("/logout", app.logoutHandler)

	citizen := r.Group("")
	citizen.Use(app.requireSession(), app.requireUserPage())
	{
		citizen.GET("/report", app.reportPageHandler)
		citizen.POST("/report", app.reportSubmitHandler)
		citizen.GET("/my-reports", app.myReportsPageHandler)
	}

	profile := r.Group("/profile")
	profile.Use(app.requireSession())
	{
		profile.GET("", app.profilePageHandler)
		profile.POST("", app.profileSubmitHandler)
	}

	admin := r.Group("/admin")
	admin.Use(app.requireSession())
	{
		admin.GET("", app.requireAdminPage(), app.dashboardPageHandler)
		admin.GET("/export", app.requireAdminPage(), app.exportCSVHandler)
		admin.GET("/export/pdf", app.requireAdminPage(), app.exportPDFHandler)
		admin.GET("/evidence/:name", app.requireAdminPage(), app.evidenceServeHandler)
		admin.POST("/update_status/:id", app.requireAdminJSON(), app.updateStatusHandler)
	}

	r.POST("/api/v1/report", app.sensorReportHandler)

	return r
}

func sessionCookie(t *testing.T, app *App, session Session) *http.Cookie {
	t.Helper()
	token, err := app.createSessionToken(session)
	if err != nil {
		t.Fatalf("createSessionToken: %v", err)
	}
	return &http.Cookie{Name: sessionCookieName, Value: token}
}

func performRequest(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
