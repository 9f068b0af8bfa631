package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/curation-backend/internal/platform/ctxutil"
	"github.com/yungbote/curation-backend/internal/platform/logger"
)

func signToken(t *testing.T, secret, subject string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func authEngine(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewAuthMiddleware(logger.NewNop(), secret).RequireAuth())
	r.POST("/echo", func(c *gin.Context) {
		user := ""
		if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
			user = rd.UserID.String()
		}
		body, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, user+"|"+string(body))
	})
	return r
}

func TestAuthAcceptsBearerAndBodyTokens(t *testing.T) {
	user := uuid.New()
	token := signToken(t, "s3cret", user.String(), time.Hour)
	r := authEngine("s3cret")

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), user.String()+"|") {
		t.Fatalf("bearer: %d %s", rec.Code, rec.Body.String())
	}

	body := `{"accessToken":"` + token + `","curationId":"x"}`
	req = httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != user.String()+"|"+body {
		t.Fatalf("body token or body restore failed: %d %s", rec.Code, rec.Body.String())
	}
}

func TestAuthRejectsBadTokens(t *testing.T) {
	r := authEngine("s3cret")
	cases := map[string]string{
		"missing":      "",
		"wrong secret": signToken(t, "other", uuid.NewString(), time.Hour),
		"expired":      signToken(t, "s3cret", uuid.NewString(), -time.Minute),
		"bad subject":  signToken(t, "s3cret", "not-a-uuid", time.Hour),
	}
	for name, token := range cases {
		req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{}`))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status %d", name, rec.Code)
		}
	}
}

func TestAuthDisabledWithoutSecret(t *testing.T) {
	rec := httptest.NewRecorder()
	authEngine("").ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{}`)))
	if rec.Code != http.StatusOK || rec.Body.String() != "|{}" {
		t.Fatalf("anonymous request: %d %s", rec.Code, rec.Body.String())
	}
}
