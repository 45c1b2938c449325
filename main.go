package main

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/crypto/bcrypt"

	"github.com/ankush850/Smart-Noise-Pollution-Monitoring-and-Complaint-Management-System/mailer"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const (
	sessionCookieName = "noisewatch_session"
	sessionDuration   = 24 * time.Hour
	maxEvidenceBytes  = 10 * 1024 * 1024
	defaultStatus     = "Pending"

	sensorUserEmail = "sensor@noisewatch.local"
	sensorUserName  = "Noise Sensor Network"

	sensorDefaultType        = "Sensor Detected"
	sensorDefaultLocation    = "Unknown"
	sensorDefaultDescription = "Automated noise report from sensor network"
)

// statusOptions drive the dashboard dropdown. Stored statuses are free
// text; updates are not restricted to this list.
var statusOptions = []string{"Pending", "Reviewed", "Resolved"}

type Config struct {
	Addr                   string
	Env                    string
	DatabaseURL            string
	DataRoot               string
	PublicBaseURL          string
	AppSigningSecret       string
	SensorAPIKey           string
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
	BootstrapAdminName     string
	ResendAPIKey           string
	MailerFromAddresses    map[string]string
}

type App struct {
	cfg *Config
	db  *sql.DB
	log *slog.Logger

	mailer    *mailer.Mailer
	templates *templateRenderer

	// id of the bootstrapped system user that owns sensor-ingested
	// complaints.
	sensorUserID int

	// test hooks for handlers; main() wires them to the store methods
	authenticateUser   func(ctx context.Context, email, password string) (*User, error)
	registerUser       func(ctx context.Context, name, email, password string) (*User, error)
	getUserByID        func(ctx context.Context, id int) (*User, error)
	updateUserProfile  func(ctx context.Context, id int, name, email string) error
	createComplaint    func(ctx context.Context, draft ComplaintDraft) (*Complaint, error)
	listUserComplaints func(ctx context.Context, userID int) ([]Complaint, error)
	listAllComplaints  func(ctx context.Context, filters map[string]any) ([]ComplaintWithReporter, error)
	complaintStats     func(ctx context.Context) (*DashboardStats, error)
	setComplaintStatus func(ctx context.Context, id int, status string) (*StatusUpdateResult, error)
}

type User struct {
	ID           int
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    string
	UpdatedAt    string
}

type Complaint struct {
	ID          int     `json:"id"`
	UserID      int     `json:"userId"`
	NoiseType   string  `json:"noiseType"`
	DBLevel     float64 `json:"dbLevel"`
	Location    string  `json:"location"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Evidence    string  `json:"evidence"`
	CreatedAt   string  `json:"createdAt"`
}

type ComplaintWithReporter struct {
	Complaint
	ReporterName string `json:"reporterName"`
}

type StatusUpdateResult struct {
	Complaint
	ReporterName  string
	ReporterEmail string
}

type ComplaintDraft struct {
	UserID      int
	NoiseType   string
	DBLevel     float64
	Location    string
	Description string
	Evidence    string
	Source      string
}

type TypeCount struct {
	NoiseType string `json:"noiseType"`
	Count     int    `json:"count"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type DashboardStats struct {
	TotalComplaints int
	ByNoiseType     []TypeCount
	ByStatus        []StatusCount
}

type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string { return e.Message }

func main() {
	if err := loadDotEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		panic(err)
	}

	var mailProvider mailer.Provider
	if cfg.ResendAPIKey != "" {
		mailProvider = mailer.NewResendProvider(cfg.ResendAPIKey)
		logger.Info("mailer initialized", "provider", "resend")
	} else {
		mailProvider = mailer.NewLogProvider(logger)
		logger.Info("mailer initialized", "provider", "log")
	}
	mailClient := mailer.New(mailProvider, cfg.MailerFromAddresses[mailProvider.Name()])

	app := &App{
		cfg:       cfg,
		db:        db,
		log:       logger,
		mailer:    mailClient,
		templates: newTemplateRenderer(cfg.Env),
	}

	app.authenticateUser = app.storeAuthenticateUser
	app.registerUser = app.storeRegisterUser
	app.getUserByID = app.storeGetUserByID
	app.updateUserProfile = app.storeUpdateUserProfile
	app.createComplaint = app.storeCreateComplaint
	app.listUserComplaints = app.storeListUserComplaints
	app.listAllComplaints = app.storeListAllComplaints
	app.complaintStats = app.storeComplaintStats
	app.setComplaintStatus = app.storeSetComplaintStatus

	if err := app.runMigrations(ctx); err != nil {
		panic(err)
	}
	if err := app.bootstrapAdmin(ctx); err != nil {
		panic(err)
	}
	if err := app.ensureSensorUser(ctx); err != nil {
		panic(err)
	}

	if err := os.MkdirAll(filepath.Join(cfg.DataRoot, "uploads"), 0o755); err != nil {
		panic(err)
	}

	logger.Info("runtime configuration",
		"env", cfg.Env,
		"addr", cfg.Addr,
		"sensor_ingestion_enabled", cfg.SensorAPIKey != "",
	)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(app.loggingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

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
		// status updates arrive from the dashboard via AJAX, so role
		// failures answer with JSON instead of a redirect
		admin.POST("/update_status/:id", app.requireAdminJSON(), app.updateStatusHandler)
	}

	r.POST("/api/v1/report", app.sensorReportHandler)

	app.log.Info("starting gin server", "addr", cfg.Addr)
	if err := r.Run(cfg.Addr); err != nil {
		panic(err)
	}
}

func loadConfig() (*Config, error) {
	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		host := valueFromEnvKeys("PGHOST", "POSTGRES_HOST")
		if host == "" {
			host = "127.0.0.1"
		}
		port := valueFromEnvKeys("PGPORT", "POSTGRES_PORT")
		if port == "" {
			port = "5432"
		}
		dbname := valueFromEnvKeys("PGDATABASE", "POSTGRES_DB")
		user := valueFromEnvKeys("PGUSER", "POSTGRES_USER")
		password := valueFromEnvKeys("PGPASSWORD", "POSTGRES_PASSWORD")
		sslmode := valueFromEnvKeys("PGSSLMODE", "POSTGRES_SSLMODE")
		if sslmode == "" {
			sslmode = "disable"
		}
		if dbname != "" && user != "" {
			databaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, dbname, sslmode)
		}
	}
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or PG*/POSTGRES_* variables must be configured")
	}

	secret := strings.TrimSpace(os.Getenv("APP_SIGNING_SECRET"))
	if len(secret) < 16 {
		return nil, fmt.Errorf("APP_SIGNING_SECRET must be at least 16 characters")
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "development"
	}

	publicBase := strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")), "/")

	cfg := &Config{
		Addr:                   valueOrDefault("GIN_ADDR", ":8080"),
		Env:                    env,
		DatabaseURL:            databaseURL,
		DataRoot:               valueOrDefault("DATA_ROOT", "/var/lib/noisewatch"),
		PublicBaseURL:          publicBase,
		AppSigningSecret:       secret,
		SensorAPIKey:           strings.TrimSpace(os.Getenv("SENSOR_API_KEY")),
		BootstrapAdminEmail:    strings.TrimSpace(os.Getenv("BOOTSTRAP_ADMIN_EMAIL")),
		BootstrapAdminPassword: strings.TrimSpace(os.Getenv("BOOTSTRAP_ADMIN_PASSWORD")),
		BootstrapAdminName:     valueOrDefault("BOOTSTRAP_ADMIN_NAME", "Administrator"),
		ResendAPIKey:           strings.TrimSpace(os.Getenv("RESEND_API_KEY")),
		MailerFromAddresses: map[string]string{
			"resend": valueOrDefault("MAILER_FROM_ADDRESS_RESEND", "noreply@noisewatch.example"),
			"log":    valueOrDefault("MAILER_FROM_ADDRESS_LOG", "noreply@noisewatch.local"),
		},
	}

	return cfg, nil
}

func loadDotEnvFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, raw := range strings.Split(string(content), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.Trim(strings.TrimSpace(line[idx+1:]), "\"")
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, value)
		}
	}
	return nil
}

func valueOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func valueFromEnvKeys(keys ...string) string {
	for _, key := range keys {
		value := strings.TrimSpace(os.Getenv(key))
		if value != "" {
			return value
		}
	}
	return ""
}

func (a *App) runMigrations(ctx context.Context) error {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return err
	}

	if _, err := a.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return err
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		var exists bool
		if err := a.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, file).Scan(&exists); err != nil {
			return err
		}
		if exists {
			continue
		}

		content, err := migrationFiles.ReadFile(filepath.Join("migrations", file))
		if err != nil {
			return err
		}

		tx, err := a.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, file); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		a.log.Info("applied migration", "file", file)
	}

	return nil
}

// bootstrapAdmin ensures an administrator account exists. Roles are fixed
// at creation and there is no promotion path, so this is the only way an
// admin comes into existence.
func (a *App) bootstrapAdmin(ctx context.Context) error {
	email := normalizeEmail(a.cfg.BootstrapAdminEmail)
	password := a.cfg.BootstrapAdminPassword
	if email == "" || password == "" {
		a.log.Info("bootstrap admin not configured")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO users (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email)
		DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role,
			updated_at = NOW()
	`, a.cfg.BootstrapAdminName, email, string(hash), string(RoleAdmin))
	if err != nil {
		return err
	}

	a.log.Info("bootstrap admin ensured", "email", email)
	return nil
}

// ensureSensorUser creates the system account that owns complaints coming
// in through the sensor ingestion endpoint. It has an unguessable random
// password and is never logged into interactively.
func (a *App) ensureSensorUser(ctx context.Context) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(randomToken()), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	var id int
	err = a.db.QueryRowContext(ctx, `
		INSERT INTO users (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email)
		DO UPDATE SET updated_at = NOW()
		RETURNING id
	`, sensorUserName, sensorUserEmail, string(hash), string(RoleUser)).Scan(&id)
	if err != nil {
		return err
	}

	a.sensorUserID = id
	a.log.Info("sensor system user ensured", "user_id", id)
	return nil
}

func (a *App) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		)
	}
}

func writeAPIError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{"error": apiErr.Code, "message": apiErr.Message})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
}
