package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfilePageShowsCurrentValues(t *testing.T) {
	app := newTestApp(t)
	app.getUserByID = func(ctx context.Context, id int) (*User, error) {
		if id != 5 {
			t.Errorf("id = %d, want session user", id)
		}
		return &User{ID: 5, Name: "Citizen Five", Email: "five@example.com", Role: RoleUser}, nil
	}
	r := newTestRouter(app)

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.AddCookie(citizenCookie(t, app))
	w := performRequest(r, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Citizen Five") || !strings.Contains(body, "five@example.com") {
		t.Error("profile page missing current name or email")
	}
}

func TestProfileUpdateSuccess(t *testing.T) {
	app := newTestApp(t)
	var gotName, gotEmail string
	app.updateUserProfile = func(ctx context.Context, id int, name, email string) error {
		gotName, gotEmail = name, email
		return nil
	}
	r := newTestRouter(app)

	w := postForm(r, "/profile", url.Values{
		"name":  {"Renamed"},
		"email": {" Renamed@Example.com "},
	}, citizenCookie(t, app))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	assert.Equal(t, "/profile?notice=Profile+updated.", w.Header().Get("Location"))
	assert.Equal(t, "Renamed", gotName)
	assert.Equal(t, "renamed@example.com", gotEmail)

	var refreshed bool
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == sessionCookieName && cookie.Value != "" {
			refreshed = true
		}
	}
	if !refreshed {
		t.Error("session cookie not refreshed after a name change")
	}
}

func TestProfileUpdateValidation(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
	}{
		{"missing name", url.Values{"email": {"x@example.com"}}},
		{"missing email", url.Values{"name": {"X"}}},
		{"invalid email", url.Values{"name": {"X"}, "email": {"not-an-email"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t)
			app.updateUserProfile = func(ctx context.Context, id int, name, email string) error {
				t.Fatal("updateUserProfile must not be called for an invalid form")
				return nil
			}
			r := newTestRouter(app)

			w := postForm(r, "/profile", tc.form, citizenCookie(t, app))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestProfileUpdateDuplicateEmail(t *testing.T) {
	app := newTestApp(t)
	app.updateUserProfile = func(ctx context.Context, id int, name, email string) error {
		return &apiError{Status: http.StatusConflict, Code: "email_taken", Message: "Email already registered"}
	}
	r := newTestRouter(app)

	w := postForm(r, "/profile", url.Values{
		"name":  {"X"},
		"email": {"taken@example.com"},
	}, citizenCookie(t, app))

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	if !strings.Contains(w.Body.String(), "An account with this email already exists.") {
		t.Error("body missing duplicate email message")
	}
}
