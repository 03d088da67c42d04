package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nferro/atelier/internal/models"
	"github.com/nferro/atelier/internal/testutil"
)

func TestEnhanceHandler(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	user := testutil.CreateTestUser(t, db, "alice")
	enhancer := &stubEnhancer{result: "  a lighthouse at dusk, golden hour, volumetric light  "}

	req := jsonRequest(t, http.MethodPost, "/api/enhance-prompt", models.EnhanceRequest{Prompt: "lighthouse"}, user)
	rr := httptest.NewRecorder()
	EnhanceHandler(cfg, enhancer)(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusOK)

	var resp models.EnhanceResponse
	decodeBody(t, rr, &resp)
	if resp.Prompt != "a lighthouse at dusk, golden hour, volumetric light" {
		t.Errorf("prompt = %q, want trimmed enhancement", resp.Prompt)
	}
}

func TestEnhanceHandlerEmptyPrompt(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	user := testutil.CreateTestUser(t, db, "alice")

	req := jsonRequest(t, http.MethodPost, "/api/enhance-prompt", models.EnhanceRequest{Prompt: "  "}, user)
	rr := httptest.NewRecorder()
	EnhanceHandler(cfg, &stubEnhancer{result: "x"})(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusBadRequest)
}

func TestEnhanceHandlerTimeout(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	cfg.EnhanceTimeout = 20 * time.Millisecond
	user := testutil.CreateTestUser(t, db, "alice")

	req := jsonRequest(t, http.MethodPost, "/api/enhance-prompt", models.EnhanceRequest{Prompt: "lighthouse"}, user)
	rr := httptest.NewRecorder()
	EnhanceHandler(cfg, &stubEnhancer{waitForContext: true})(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusGatewayTimeout)
	if code := errorCode(t, rr); code != "ENHANCE_TIMEOUT" {
		t.Errorf("code = %q, want ENHANCE_TIMEOUT", code)
	}
}

func TestEnhanceHandlerProviderFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	user := testutil.CreateTestUser(t, db, "alice")

	req := jsonRequest(t, http.MethodPost, "/api/enhance-prompt", models.EnhanceRequest{Prompt: "lighthouse"}, user)
	rr := httptest.NewRecorder()
	EnhanceHandler(cfg, &stubEnhancer{err: errors.New("provider down")})(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusBadGateway)
	if code := errorCode(t, rr); code != "ENHANCE_FAILED" {
		t.Errorf("code = %q, want ENHANCE_FAILED", code)
	}
}

func TestEnhanceHandlerClientCancellation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	user := testutil.CreateTestUser(t, db, "alice")

	req := jsonRequest(t, http.MethodPost, "/api/enhance-prompt", models.EnhanceRequest{Prompt: "lighthouse"}, user)

	// Simulate the client disconnecting mid-call.
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	rr := httptest.NewRecorder()
	EnhanceHandler(cfg, &stubEnhancer{waitForContext: true})(rr, req)

	// Nobody is listening; no response body is written.
	if rr.Body.Len() != 0 {
		t.Errorf("expected no response after cancellation, got %q", rr.Body.String())
	}
}
