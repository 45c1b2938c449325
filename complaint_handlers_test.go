package main

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func citizenCookie(t *testing.T, app *App) *http.Cookie {
	t.Helper()
	return sessionCookie(t, app, Session{UserID: 5, Role: RoleUser, Name: "Citizen"})
}

func TestReportSubmitCreatesComplaint(t *testing.T) {
	app := newTestApp(t)
	var gotDraft ComplaintDraft
	app.createComplaint = func(ctx context.Context, draft ComplaintDraft) (*Complaint, error) {
		gotDraft = draft
		return &Complaint{ID: 1, UserID: draft.UserID, Status: defaultStatus}, nil
	}
	r := newTestRouter(app)

	w := postForm(r, "/report", url.Values{
		"noise_type":  {"Construction"},
		"db_level":    {"88.5"},
		"location":    {"5th and Main"},
		"description": {"Jackhammer at 6am"},
	}, citizenCookie(t, app))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d, body: %s", w.Code, http.StatusSeeOther, w.Body.String())
	}
	if got := w.Header().Get("Location"); got != "/my-reports?notice=Complaint+submitted." {
		t.Errorf("Location = %q", got)
	}

	if gotDraft.UserID != 5 {
		t.Errorf("draft UserID = %d, want session user", gotDraft.UserID)
	}
	if gotDraft.NoiseType != "Construction" || gotDraft.DBLevel != 88.5 || gotDraft.Location != "5th and Main" {
		t.Errorf("draft fields = %+v", gotDraft)
	}
	if gotDraft.Source != "web" {
		t.Errorf("draft Source = %q, want web", gotDraft.Source)
	}
}

func TestReportSubmitValidation(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
	}{
		{"missing noise type", url.Values{"db_level": {"60"}, "location": {"park"}}},
		{"missing location", url.Values{"noise_type": {"Traffic"}, "db_level": {"60"}}},
		{"missing db level", url.Values{"noise_type": {"Traffic"}, "location": {"park"}}},
		{"non-numeric db level", url.Values{"noise_type": {"Traffic"}, "db_level": {"loud"}, "location": {"park"}}},
		{"blank fields", url.Values{"noise_type": {"   "}, "db_level": {"60"}, "location": {"park"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t)
			app.createComplaint = func(ctx context.Context, draft ComplaintDraft) (*Complaint, error) {
				t.Fatal("createComplaint must not be called for an invalid form")
				return nil, nil
			}
			r := newTestRouter(app)

			w := postForm(r, "/report", tc.form, citizenCookie(t, app))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestReportSubmitStoresEvidenceFile(t *testing.T) {
	app := newTestApp(t)
	var gotDraft ComplaintDraft
	app.createComplaint = func(ctx context.Context, draft ComplaintDraft) (*Complaint, error) {
		gotDraft = draft
		return &Complaint{ID: 2, UserID: draft.UserID}, nil
	}
	r := newTestRouter(app)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	_ = form.WriteField("noise_type", "Loudspeaker")
	_ = form.WriteField("db_level", "95")
	_ = form.WriteField("location", "Market square")
	part, err := form.CreateFormFile("evidence", "recording.mp3")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write([]byte("fake audio bytes")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	_ = form.Close()

	req := httptest.NewRequest(http.MethodPost, "/report", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.AddCookie(citizenCookie(t, app))
	w := performRequest(r, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d, body: %s", w.Code, http.StatusSeeOther, w.Body.String())
	}

	if gotDraft.Evidence == "" {
		t.Fatal("draft has no evidence filename")
	}
	if !strings.HasSuffix(gotDraft.Evidence, "_recording.mp3") {
		t.Errorf("evidence name = %q, want timestamp prefix on original name", gotDraft.Evidence)
	}

	stored, err := os.ReadFile(filepath.Join(app.cfg.DataRoot, "uploads", gotDraft.Evidence))
	if err != nil {
		t.Fatalf("stored file unreadable: %v", err)
	}
	if string(stored) != "fake audio bytes" {
		t.Errorf("stored content = %q", stored)
	}
}

func TestReportSubmitWithoutEvidenceIsFine(t *testing.T) {
	app := newTestApp(t)
	app.createComplaint = func(ctx context.Context, draft ComplaintDraft) (*Complaint, error) {
		if draft.Evidence != "" {
			t.Errorf("evidence = %q, want empty", draft.Evidence)
		}
		return &Complaint{ID: 3}, nil
	}
	r := newTestRouter(app)

	w := postForm(r, "/report", url.Values{
		"noise_type": {"Traffic"},
		"db_level":   {"70"},
		"location":   {"Ring road"},
	}, citizenCookie(t, app))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
}

func TestMyReportsListsOwnComplaints(t *testing.T) {
	app := newTestApp(t)
	app.listUserComplaints = func(ctx context.Context, userID int) ([]Complaint, error) {
		if userID != 5 {
			t.Errorf("userID = %d, want session user", userID)
		}
		return []Complaint{
			{ID: 1, UserID: 5, NoiseType: "Traffic", DBLevel: 72, Location: "Ring road", Status: "Pending", CreatedAt: "2026-08-01T10:00:00Z"},
			{ID: 2, UserID: 5, NoiseType: "Neighbors", DBLevel: 65, Location: "Elm street", Status: "Resolved", CreatedAt: "2026-08-02T11:30:00Z"},
		}, nil
	}
	r := newTestRouter(app)

	req := httptest.NewRequest(http.MethodGet, "/my-reports", nil)
	req.AddCookie(citizenCookie(t, app))
	w := performRequest(r, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	for _, want := range []string{"Traffic", "Ring road", "Resolved", "2026-08-01 10:00"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}
