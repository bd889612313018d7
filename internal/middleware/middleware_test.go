package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"

	"zkaccount-backend/internal/config"
)

const testSecret = "test-secret"

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newAuthRouter(cfg config.AuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth := NewAuthMiddleware(cfg, testLogger())
	r := gin.New()
	r.GET("/me", auth.RequireAuth(), func(c *gin.Context) {
		claims := Claims(c)
		c.JSON(http.StatusOK, gin.H{"token": Session(c).BearerToken, "subject": claims.Subject, "email": claims.Email})
	})
	r.POST("/spend", auth.RequireTOTP(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func doRequest(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth_ValidToken(t *testing.T) {
	r := newAuthRouter(config.AuthConfig{JWTSecret: testSecret, Issuer: "idp"})
	token, err := IssueToken(testSecret, "idp", "user-1", "a@example.com", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	w := doRequest(r, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer " + token})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body)
	}
	want := `{"email":"a@example.com","subject":"user-1","token":"` + token + `"}`
	if w.Body.String() != want {
		t.Errorf("body = %s, want %s", w.Body, want)
	}
}

func TestRequireAuth_Rejections(t *testing.T) {
	r := newAuthRouter(config.AuthConfig{JWTSecret: testSecret, Issuer: "idp"})
	otherSecret, _ := IssueToken("other", "idp", "u", "", time.Hour)
	otherIssuer, _ := IssueToken(testSecret, "evil", "u", "", time.Hour)
	expired, _ := IssueToken(testSecret, "idp", "u", "", -time.Minute)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic abc"},
		{"empty bearer", "Bearer  "},
		{"wrong secret", "Bearer " + otherSecret},
		{"wrong issuer", "Bearer " + otherIssuer},
		{"expired", "Bearer " + expired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			if w := doRequest(r, http.MethodGet, "/me", headers); w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestRequireTOTP(t *testing.T) {
	const secret = "JBSWY3DPEHPK3PXP"

	if w := doRequest(newAuthRouter(config.AuthConfig{}), http.MethodPost, "/spend", nil); w.Code != http.StatusNoContent {
		t.Errorf("without secret status = %d, want 204", w.Code)
	}

	r := newAuthRouter(config.AuthConfig{TOTPSecret: secret})
	if w := doRequest(r, http.MethodPost, "/spend", map[string]string{TOTPHeader: "000000x"}); w.Code != http.StatusUnauthorized {
		t.Errorf("bad code status = %d, want 401", w.Code)
	}
	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if w := doRequest(r, http.MethodPost, "/spend", map[string]string{TOTPHeader: code}); w.Code != http.StatusNoContent {
		t.Errorf("valid code status = %d, want 204", w.Code)
	}
}

func TestLocalhostOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	newRouter := func(allowed []string) *gin.Engine {
		r := gin.New()
		r.GET("/metrics", NewLocalhostOnly(testLogger(), allowed).Restrict(), func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}
	request := func(r *gin.Engine, remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if got := request(newRouter(nil), "127.0.0.1:5000"); got != http.StatusOK {
		t.Errorf("loopback = %d, want 200", got)
	}
	if got := request(newRouter(nil), "10.1.2.3:5000"); got != http.StatusForbidden {
		t.Errorf("remote = %d, want 403", got)
	}
	if got := request(newRouter([]string{"10.0.0.0/8"}), "10.1.2.3:5000"); got != http.StatusOK {
		t.Errorf("whitelisted = %d, want 200", got)
	}
}
