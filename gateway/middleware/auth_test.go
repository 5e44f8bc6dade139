package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const testSecret = "contestd-test-secret"

func callerEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(CallerFromContext(r.Context())))
	})
}

func TestIdentifyAttachesSubject(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{HMACSecret: testSecret, Issuer: "contestd"}, nil)
	token, err := IssueToken(testSecret, "alice.near", "contestd", "", time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/contests", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	auth.Identify(callerEcho()).ServeHTTP(res, req)
	if res.Code != http.StatusOK || res.Body.String() != "alice.near" {
		t.Fatalf("unexpected response %d %q", res.Code, res.Body.String())
	}
}

func TestIdentifyAllowsAnonymousButRequireRejects(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{HMACSecret: testSecret}, nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/contests", nil)
	res := httptest.NewRecorder()
	auth.Identify(callerEcho()).ServeHTTP(res, req)
	if res.Code != http.StatusOK || res.Body.String() != "" {
		t.Fatalf("expected anonymous pass-through, got %d %q", res.Code, res.Body.String())
	}

	res = httptest.NewRecorder()
	auth.Identify(auth.Require(callerEcho())).ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestIdentifyRejectsBadTokens(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{HMACSecret: testSecret, Audience: "stakecurate"}, nil)

	wrongSecret, _ := IssueToken("other", "alice.near", "", "stakecurate", time.Minute)
	wrongAudience, _ := IssueToken(testSecret, "alice.near", "", "elsewhere", time.Minute)
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice.near",
		"aud": "stakecurate",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	noSubject, _ := IssueToken(testSecret, "", "", "stakecurate", time.Minute)

	for name, token := range map[string]string{
		"wrong secret":   wrongSecret,
		"wrong audience": wrongAudience,
		"expired":        expired,
		"no subject":     noSubject,
	} {
		req := httptest.NewRequest(http.MethodGet, "/v1/contests", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		res := httptest.NewRecorder()
		auth.Identify(callerEcho()).ServeHTTP(res, req)
		if res.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, res.Code)
		}
	}
}

func TestCORSReflectsAllowedOrigin(t *testing.T) {
	handler := CORS(CORSConfig{AllowedOrigins: []string{"https://app.example/"}})(okHandler())
	req := httptest.NewRequest(http.MethodOptions, "/v1/contests", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("unexpected origin header %q", got)
	}
	if got := res.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("expected credentials for listed origin, got %q", got)
	}
}

func TestCORSRejectsUnknownPreflight(t *testing.T) {
	handler := CORS(CORSConfig{AllowedOrigins: []string{"https://app.example"}})(okHandler())
	req := httptest.NewRequest(http.MethodOptions, "/v1/contests", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", res.Code)
	}
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected origin header %q", got)
	}
}

func TestCORSWildcardExposesChecksum(t *testing.T) {
	handler := CORS(CORSConfig{})(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/v1/settlements", nil)
	req.Header.Set("Origin", "https://any.example")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard, got %q", got)
	}
	if !strings.Contains(res.Header().Get("Access-Control-Expose-Headers"), "X-Checksum-SHA256") {
		t.Fatal("checksum header not exposed")
	}
}
