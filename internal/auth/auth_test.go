package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"

	mware "github.com/sudo-init-do/binaryhub/internal/middleware"
)

const secret = "test-secret"

func guarded(t *testing.T, token string, role string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.GET("/whoami", func(c echo.Context) error {
		uid, _ := mware.UserID(c)
		return c.JSON(http.StatusOK, echo.Map{"user_id": uid, "role": c.Get("role")})
	}, mware.JWTMiddleware(secret), mware.RequireRoles(role))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestIssueToken_RoundTrip(t *testing.T) {
	token, err := IssueToken(secret, "p1", mware.RoleParticipant, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error: %v", err)
	}
	rec := guarded(t, token, mware.RoleParticipant)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"user_id":"p1"`) {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestJWTMiddleware_Rejects(t *testing.T) {
	wrong, _ := IssueToken("other-secret", "p1", mware.RoleAdmin, time.Hour)
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "p1",
		"role":    mware.RoleAdmin,
		"exp":     time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte(secret))
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "p1",
		"role":    mware.RoleAdmin,
	}).SignedString([]byte(secret))
	participant, _ := IssueToken(secret, "p1", mware.RoleParticipant, time.Hour)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "not-a-token", http.StatusUnauthorized},
		{"wrong secret", wrong, http.StatusUnauthorized},
		{"expired", expired, http.StatusUnauthorized},
		{"no expiry", noExp, http.StatusUnauthorized},
		{"wrong role", participant, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := guarded(t, tt.token, mware.RoleAdmin); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestBootstrapAdmin(t *testing.T) {
	e := echo.New()
	e.POST("/auth/bootstrap-admin", BootstrapAdmin(secret, "let-me-in"))

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/bootstrap-admin", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	if rec := post(`{"operator":"ops","secret":"nope"}`); rec.Code != http.StatusForbidden {
		t.Errorf("bad secret: status = %d, want 403", rec.Code)
	}
	if rec := post(`{"secret":"let-me-in"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("no operator: status = %d, want 400", rec.Code)
	}
	rec := post(`{"operator":"ops","secret":"let-me-in"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"token"`) {
		t.Errorf("valid: status = %d, body %s", rec.Code, rec.Body)
	}
}
