package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"keeva/internal/http/middleware"
	"keeva/internal/infra"
)

// stubVerifier is a test double for infra.TokenVerifier.
type stubVerifier struct {
	token *infra.Token
	err   error
}

func (s *stubVerifier) VerifyIDToken(_ context.Context, _ string) (*infra.Token, error) {
	return s.token, s.err
}

func newTestRouter(verifier infra.TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Auth(verifier))
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"role":   middleware.Caller(c).Role(),
			"caller": middleware.Caller(c).ID(),
		})
	})
	r.GET("/staff", middleware.Require(middleware.Staff), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func get(r *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_MissingHeader(t *testing.T) {
	r := newTestRouter(&stubVerifier{token: &infra.Token{UID: "user1"}})
	if w := get(r, "/test", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_InvalidBearerPrefix(t *testing.T) {
	r := newTestRouter(&stubVerifier{token: &infra.Token{UID: "user1"}})
	if w := get(r, "/test", "Token sometoken"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_VerifierError(t *testing.T) {
	r := newTestRouter(&stubVerifier{err: errors.New("bad token")})
	if w := get(r, "/test", "Bearer invalidtoken"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_UnknownRole(t *testing.T) {
	token := &infra.Token{UID: "x", Claims: map[string]interface{}{"role": "driver"}}
	r := newTestRouter(&stubVerifier{token: token})
	if w := get(r, "/test", "Bearer validtoken"); w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestAuth_ValidToken_UIDAndRolePopulated(t *testing.T) {
	token := &infra.Token{
		UID:    "uid-1",
		Claims: map[string]interface{}{"role": "partner", "partnerId": "rider123", "partnerRole": "rider"},
	}
	r := newTestRouter(&stubVerifier{token: token})
	w := get(r, "/test", "Bearer validtoken")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"caller":"rider123"`) {
		t.Errorf("expected partner id as caller, got %s", body)
	}
	if !strings.Contains(body, `"role":"rider"`) {
		t.Errorf("expected role rider in body, got %s", body)
	}
}

func TestAuth_ValidToken_NoRoleClaim(t *testing.T) {
	token := &infra.Token{UID: "customer456", Claims: map[string]interface{}{}}
	r := newTestRouter(&stubVerifier{token: token})
	w := get(r, "/test", "Bearer validtoken")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"role":"customer"`) {
		t.Errorf("expected customer role, got %s", w.Body.String())
	}
}

func TestRequire_Staff(t *testing.T) {
	customer := newTestRouter(&stubVerifier{token: &infra.Token{UID: "c1", Claims: map[string]interface{}{}}})
	if w := get(customer, "/staff", "Bearer t"); w.Code != http.StatusForbidden {
		t.Errorf("customer: expected 403, got %d", w.Code)
	}
	admin := newTestRouter(&stubVerifier{token: &infra.Token{UID: "a1", Claims: map[string]interface{}{"role": "admin"}}})
	if w := get(admin, "/staff", "Bearer t"); w.Code != http.StatusNoContent {
		t.Errorf("admin: expected 204, got %d", w.Code)
	}
}

func TestLogging_RecordsCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	token := &infra.Token{
		UID:    "uid-7",
		Claims: map[string]interface{}{"role": "partner", "partnerId": "rider7", "partnerRole": "rider"},
	}
	r := gin.New()
	r.Use(middleware.Logging(log), middleware.Auth(&stubVerifier{token: token}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := get(r, "/ping", "Bearer t")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w.Header().Get(middleware.HeaderRequestID) == "" {
		t.Error("expected a request id header")
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if entry["uid"] != "uid-7" || entry["caller"] != "rider7" || entry["role"] != "rider" {
		t.Errorf("unexpected log attrs: %v", entry)
	}
}
