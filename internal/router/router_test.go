package router

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"zkaccount-backend/internal/config"
	"zkaccount-backend/internal/handlers"
	"zkaccount-backend/internal/middleware"
	"zkaccount-backend/internal/services"
)

const secret = "router-test-secret"

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testRouter(t *testing.T, mutate func(*config.Config)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Auth: config.AuthConfig{JWTSecret: secret},
		CORS: config.CORSConfig{AllowedOrigins: []string{"https://wallet.example"}, AllowCredentials: true, MaxAge: 600},
	}
	if mutate != nil {
		mutate(cfg)
	}
	logger := testLogger()
	// handlers reached by these tests return before touching their services
	return SetupRouter(cfg, Handlers{
		Health:    handlers.NewHealthHandler(),
		Accounts:  handlers.NewAccountHandler(nil, nil, logger),
		Transfers: handlers.NewTransferHandler(nil, nil, logger),
		Queries:   handlers.NewQueryHandler(nil, nil, nil, nil, logger),
		WebSocket: handlers.NewWebSocketHandler(services.NewSettlementPushService(logger), logger),
	}, logger)
}

func serve(r http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func bearer(t *testing.T) string {
	t.Helper()
	token, err := middleware.IssueToken(secret, "", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", "alice@example.com", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return "Bearer " + token
}

func TestRouter_HealthIsPublic(t *testing.T) {
	r := testRouter(t, nil)
	for _, path := range []string{"/health", "/api/health"} {
		w, body := serve(r, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK || body["status"] != "ok" {
			t.Errorf("%s: got %d %v", path, w.Code, body)
		}
	}
}

func TestRouter_APIRequiresAuth(t *testing.T) {
	r := testRouter(t, nil)
	owner := "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

	w, body := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/accounts/"+owner, nil))
	if w.Code != http.StatusUnauthorized || body["code"] != "MISSING_AUTH_HEADER" {
		t.Fatalf("no token: got %d %v", w.Code, body["code"])
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/"+owner, nil)
	req.Header.Set("Authorization", bearer(t))
	w, body = serve(r, req)
	if w.Code != http.StatusBadRequest || body["code"] != "MISSING_CHAIN_ID" {
		t.Errorf("authenticated: got %d %v", w.Code, body["code"])
	}
}

func TestRouter_TransfersRequireTOTPWhenConfigured(t *testing.T) {
	r := testRouter(t, func(cfg *config.Config) { cfg.Auth.TOTPSecret = "JBSWY3DPEHPK3PXP" })

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers/native", nil)
	req.Header.Set("Authorization", bearer(t))
	w, body := serve(r, req)
	if w.Code != http.StatusUnauthorized || body["code"] != "INVALID_TOTP" {
		t.Errorf("got %d %v", w.Code, body["code"])
	}

	// reads are not stepped up
	req = httptest.NewRequest(http.MethodGet, "/api/v1/accounts/0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", nil)
	req.Header.Set("Authorization", bearer(t))
	if w, _ := serve(r, req); w.Code != http.StatusBadRequest {
		t.Errorf("read endpoint: status = %d, want 400", w.Code)
	}
}

func TestRouter_MetricsRestricted(t *testing.T) {
	r := testRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	if w, _ := serve(r, req); w.Code != http.StatusForbidden {
		t.Errorf("remote scrape: status = %d, want 403", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	if w, _ := serve(r, req); w.Code != http.StatusOK {
		t.Errorf("local scrape: status = %d, want 200", w.Code)
	}

	r = testRouter(t, func(cfg *config.Config) { cfg.Server.MetricsAllowedIPs = []string{"203.0.113.0/24"} })
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	if w, _ := serve(r, req); w.Code != http.StatusOK {
		t.Errorf("whitelisted scrape: status = %d, want 200", w.Code)
	}
}

func TestRouter_CORS(t *testing.T) {
	r := testRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/transfers/native", nil)
	req.Header.Set("Origin", "https://wallet.example")
	w, _ := serve(r, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://wallet.example" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q", got)
	}
	if got := w.Header().Get("Access-Control-Max-Age"); got != "600" {
		t.Errorf("Max-Age = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w, _ = serve(r, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}

	r = testRouter(t, func(cfg *config.Config) { cfg.CORS.AllowedOrigins = nil })
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://anything.example")
	w, _ = serve(r, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("open policy Allow-Origin = %q, want *", got)
	}
}

func TestRouter_NoRoute(t *testing.T) {
	r := testRouter(t, nil)
	w, body := serve(r, httptest.NewRequest(http.MethodGet, "/api/v2/unknown", nil))
	if w.Code != http.StatusNotFound || body["message"] != "API endpoint not found" {
		t.Errorf("got %d %v", w.Code, body)
	}
}
