package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nferro/atelier/internal/database"
	"github.com/nferro/atelier/internal/middleware"
	"github.com/nferro/atelier/internal/models"
	"github.com/nferro/atelier/internal/testutil"
	"github.com/nferro/atelier/internal/utils"
)

func TestLoginHandler(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)

	hash, err := utils.HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := database.CreateUser(db, "alice", "alice@example.com", hash, "Alice"); err != nil {
		t.Fatal(err)
	}

	handler := LoginHandler(db, cfg)

	rr := httptest.NewRecorder()
	handler(rr, jsonRequest(t, http.MethodPost, "/api/auth/login",
		models.LoginRequest{Username: "alice", Password: "correct horse"}, nil))
	testutil.AssertStatusCode(t, rr, http.StatusOK)

	var profile models.Profile
	decodeBody(t, rr, &profile)
	if profile.Username != "alice" {
		t.Errorf("profile username = %q, want alice", profile.Username)
	}

	// A session cookie is set and resolves to a valid session.
	var sessionCookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("no session cookie set")
	}
	if !sessionCookie.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}
	session, err := database.GetUserSession(db, sessionCookie.Value)
	if err != nil {
		t.Fatal(err)
	}
	if session == nil {
		t.Error("cookie token does not resolve to a session")
	}
}

func TestLoginHandlerInvalidCredentials(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)

	hash, err := utils.HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := database.CreateUser(db, "alice", "alice@example.com", hash, "Alice"); err != nil {
		t.Fatal(err)
	}

	handler := LoginHandler(db, cfg)

	tests := []struct {
		name string
		req  models.LoginRequest
	}{
		{"wrong password", models.LoginRequest{Username: "alice", Password: "wrong"}},
		{"unknown user", models.LoginRequest{Username: "nobody", Password: "whatever"}},
		{"empty password", models.LoginRequest{Username: "alice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler(rr, jsonRequest(t, http.MethodPost, "/api/auth/login", tt.req, nil))
			testutil.AssertStatusCode(t, rr, http.StatusUnauthorized)
			if code := errorCode(t, rr); code != "INVALID_CREDENTIALS" {
				t.Errorf("code = %q, want INVALID_CREDENTIALS", code)
			}
		})
	}
}

func TestLoginHandlerSSOAccountHasNoPassword(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)

	// SSO-provisioned account: no password hash stored.
	if _, err := database.GetOrCreateUserBySubject(db, "oidc|1", "carol@example.com", "Carol"); err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	LoginHandler(db, cfg)(rr, jsonRequest(t, http.MethodPost, "/api/auth/login",
		models.LoginRequest{Username: "carol", Password: "anything"}, nil))
	testutil.AssertStatusCode(t, rr, http.StatusUnauthorized)
}

func TestLogoutHandler(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	user := testutil.CreateTestUser(t, db, "alice")
	token := testutil.CreateTestSession(t, db, user.ID)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: token})

	rr := httptest.NewRecorder()
	LogoutHandler(db, cfg)(rr, req)
	testutil.AssertStatusCode(t, rr, http.StatusNoContent)

	session, err := database.GetUserSession(db, token)
	if err != nil {
		t.Fatal(err)
	}
	if session != nil {
		t.Error("session should be invalidated after logout")
	}
}

func TestCurrentUserHandler(t *testing.T) {
	db := testutil.SetupTestDB(t)
	user := testutil.CreateTestUser(t, db, "alice")

	rr := httptest.NewRecorder()
	CurrentUserHandler()(rr, authedRequest(http.MethodGet, "/api/auth/user", nil, user))
	testutil.AssertStatusCode(t, rr, http.StatusOK)

	var profile models.Profile
	decodeBody(t, rr, &profile)
	if profile.Username != "alice" {
		t.Errorf("username = %q, want alice", profile.Username)
	}

	rr = httptest.NewRecorder()
	CurrentUserHandler()(rr, httptest.NewRequest(http.MethodGet, "/api/auth/user", nil))
	testutil.AssertStatusCode(t, rr, http.StatusUnauthorized)
}

func TestIsSafeReturnURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"/gallery", true},
		{"/images/42", true},
		{"", false},
		{"//evil.example.com", false},
		{"https://evil.example.com", false},
		{"/\\evil", false},
	}
	for _, tt := range tests {
		if got := isSafeReturnURL(tt.url); got != tt.want {
			t.Errorf("isSafeReturnURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
