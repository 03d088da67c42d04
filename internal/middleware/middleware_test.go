package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nferro/atelier/internal/database"
	"github.com/nferro/atelier/internal/metrics"
	"github.com/nferro/atelier/internal/models"
	"github.com/nferro/atelier/internal/ratelimit"
	"github.com/nferro/atelier/internal/testutil"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestUserAuth(t *testing.T) {
	db := testutil.SetupTestDB(t)
	user := testutil.CreateTestUser(t, db, "alice")
	token := testutil.CreateTestSession(t, db, user.ID)

	var gotUser *models.User
	handler := UserAuth(db)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/images", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusOK)
	if gotUser == nil || gotUser.ID != user.ID {
		t.Errorf("context user = %+v, want user %d", gotUser, user.ID)
	}
}

func TestUserAuthRejections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := UserAuth(db)(okHandler())

	// No cookie.
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	testutil.AssertStatusCode(t, rr, http.StatusUnauthorized)

	// Bogus token.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "deadbeef"})
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	testutil.AssertStatusCode(t, rr, http.StatusUnauthorized)

	// Expired session.
	user := testutil.CreateTestUser(t, db, "alice")
	expired, err := database.CreateUserSession(db, user.ID, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: expired.Token})
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	testutil.AssertStatusCode(t, rr, http.StatusUnauthorized)
}

func TestOptionalUserAuth(t *testing.T) {
	db := testutil.SetupTestDB(t)
	user := testutil.CreateTestUser(t, db, "alice")
	token := testutil.CreateTestSession(t, db, user.ID)

	var gotUser *models.User
	handler := OptionalUserAuth(db)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// Anonymous requests pass through without a user.
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/feed", nil))
	testutil.AssertStatusCode(t, rr, http.StatusOK)
	if gotUser != nil {
		t.Errorf("anonymous request should have no context user, got %+v", gotUser)
	}

	// A valid cookie attaches the user.
	req := httptest.NewRequest(http.MethodGet, "/api/feed", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	testutil.AssertStatusCode(t, rr, http.StatusOK)
	if gotUser == nil || gotUser.ID != user.ID {
		t.Errorf("context user = %+v, want user %d", gotUser, user.ID)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	db := testutil.SetupTestDB(t)
	user := testutil.CreateTestUser(t, db, "alice")

	limiter, err := ratelimit.New(db, map[string]ratelimit.Rule{
		"generate": {Max: 2, Window: time.Hour},
	})
	if err != nil {
		t.Fatal(err)
	}

	handler := RateLimit(limiter, "generate")(okHandler())

	request := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/generate", nil)
		req = req.WithContext(ContextWithUser(req.Context(), user))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	rr := request()
	testutil.AssertStatusCode(t, rr, http.StatusOK)
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "1" {
		t.Errorf("first remaining = %q, want 1", got)
	}

	rr = request()
	testutil.AssertStatusCode(t, rr, http.StatusOK)

	rr = request()
	testutil.AssertStatusCode(t, rr, http.StatusTooManyRequests)
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("denied remaining = %q, want 0", got)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("denied response must carry Retry-After")
	}
	if rr.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("responses must carry X-RateLimit-Reset")
	}
}

func TestRateLimitSubjectsIndependent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	alice := testutil.CreateTestUser(t, db, "alice")
	bob := testutil.CreateTestUser(t, db, "bob")

	limiter, err := ratelimit.New(db, map[string]ratelimit.Rule{
		"generate": {Max: 1, Window: time.Hour},
	})
	if err != nil {
		t.Fatal(err)
	}
	handler := RateLimit(limiter, "generate")(okHandler())

	send := func(u *models.User) int {
		req := httptest.NewRequest(http.MethodPost, "/api/generate", nil)
		req = req.WithContext(ContextWithUser(req.Context(), u))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send(alice); code != http.StatusOK {
		t.Fatalf("alice first request = %d", code)
	}
	if code := send(alice); code != http.StatusTooManyRequests {
		t.Fatalf("alice second request = %d, want 429", code)
	}
	if code := send(bob); code != http.StatusOK {
		t.Errorf("bob's budget must be independent, got %d", code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	initialPanics := promtest.ToFloat64(metrics.ErrorsTotal.WithLabelValues("PANIC"))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	testutil.AssertStatusCode(t, rr, http.StatusInternalServerError)
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q, want application/json", ct)
	}

	panics := promtest.ToFloat64(metrics.ErrorsTotal.WithLabelValues("PANIC"))
	if panics < initialPanics+1.0 {
		t.Errorf("panic error count = %f, want at least %f", panics, initialPanics+1.0)
	}
}

func TestLoggingMiddlewarePreservesResponse(t *testing.T) {
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	testutil.AssertStatusCode(t, rr, http.StatusTeapot)
	if rr.Body.String() != "short and stout" {
		t.Errorf("body = %q", rr.Body.String())
	}
}

func TestResponseWriterCountsBytes(t *testing.T) {
	rr := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rr, statusCode: http.StatusOK}

	rw.Write([]byte("hello "))
	rw.Write([]byte("world"))

	if rw.bytes != 11 {
		t.Errorf("bytes = %d, want 11", rw.bytes)
	}
	if rw.statusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", rw.statusCode)
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	handler := SecurityHeadersMiddleware(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	for header, want := range map[string]string{
		"X-Frame-Options":        "DENY",
		"X-Content-Type-Options": "nosniff",
		"Referrer-Policy":        "same-origin",
	} {
		if got := rr.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("missing Content-Security-Policy header")
	}
}
