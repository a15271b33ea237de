package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
)

const (
	testKeyID  = "test-key-dm"
	testIssuer = "https://idp.test/realms/drive"
)

// mockProvisioner — мок UserProvisioner, запоминает созданных пользователей.
type mockProvisioner struct {
	mu    sync.Mutex
	calls map[string]string
	err   error
}

func (m *mockProvisioner) EnsureUser(_ context.Context, id, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.calls == nil {
		m.calls = map[string]string{}
	}
	m.calls[id] = username
	return &model.User{ID: id, Username: username, StorageLimit: 1}, nil
}

func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

// buildJWKSetJSON строит JWKS JSON из RSA публичного ключа.
func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}
	data, _ := json.Marshal(jwks)
	return data
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestJWTAuth(t *testing.T, key *rsa.PrivateKey, users UserProvisioner) *JWTAuth {
	t.Helper()
	kf, err := keyfunc.NewJWKSetJSON(buildJWKSetJSON(&key.PublicKey, testKeyID))
	if err != nil {
		t.Fatalf("не удалось создать keyfunc: %v", err)
	}
	return NewJWTAuthWithKeyfunc(kf, testIssuer, "", users, testLogger())
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func userClaims(sub string, exp time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":                sub,
		"preferred_username": "alice",
		"email":              "alice@example.com",
		"iss":                testIssuer,
		"exp":                jwt.NewNumericDate(exp),
		"iat":                jwt.NewNumericDate(time.Now()),
	}
}

// captureHandler запоминает claims из контекста.
func captureHandler(got **AuthClaims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestJWTAuth_ValidToken(t *testing.T) {
	key := generateTestKey(t)
	users := &mockProvisioner{}
	auth := newTestJWTAuth(t, key, users)

	var got *AuthClaims
	h := auth.Middleware()(captureHandler(&got))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trash", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, key, userClaims("user-1", time.Now().Add(time.Hour))))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200: %s", rec.Code, rec.Body.String())
	}
	if got == nil || got.Subject != "user-1" || got.Username != "alice" || got.Email != "alice@example.com" {
		t.Fatalf("claims = %+v", got)
	}
	if users.calls["user-1"] != "alice" {
		t.Errorf("пользователь не создан: %v", users.calls)
	}
}

func TestJWTAuth_Rejects(t *testing.T) {
	key := generateTestKey(t)
	otherKey := generateTestKey(t)
	auth := newTestJWTAuth(t, key, nil)

	noSub := userClaims("", time.Now().Add(time.Hour))
	delete(noSub, "sub")
	wrongIssuer := userClaims("user-1", time.Now().Add(time.Hour))
	wrongIssuer["iss"] = "https://evil.test"
	noExp := userClaims("user-1", time.Now().Add(time.Hour))
	delete(noExp, "exp")

	tests := []struct {
		name   string
		header string
	}{
		{"нет заголовка", ""},
		{"не Bearer", "Basic abc"},
		{"пустой токен", "Bearer "},
		{"мусор", "Bearer not-a-jwt"},
		{"просрочен", "Bearer " + signToken(t, key, userClaims("user-1", time.Now().Add(-time.Hour)))},
		{"чужой ключ", "Bearer " + signToken(t, otherKey, userClaims("user-1", time.Now().Add(time.Hour)))},
		{"без sub", "Bearer " + signToken(t, key, noSub)},
		{"чужой issuer", "Bearer " + signToken(t, key, wrongIssuer)},
		{"без exp", "Bearer " + signToken(t, key, noExp)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/v1/trash", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("статус = %d, ожидался 401", rec.Code)
			}
			if called {
				t.Error("обработчик не должен вызываться")
			}
		})
	}
}

func TestJWTAuth_ProvisionFailure(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key, &mockProvisioner{err: errors.New("db down")})

	h := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("обработчик не должен вызываться")
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/trash", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, key, userClaims("user-1", time.Now().Add(time.Hour))))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("статус = %d, ожидался 500", rec.Code)
	}
}

func TestJWTAuth_CustomUsernameClaim(t *testing.T) {
	key := generateTestKey(t)
	kf, err := keyfunc.NewJWKSetJSON(buildJWKSetJSON(&key.PublicKey, testKeyID))
	if err != nil {
		t.Fatal(err)
	}
	auth := NewJWTAuthWithKeyfunc(kf, "", "email", nil, testLogger())

	var got *AuthClaims
	h := auth.Middleware()(captureHandler(&got))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, key, userClaims("user-2", time.Now().Add(time.Hour))))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil || got.Username != "alice@example.com" {
		t.Fatalf("claims = %+v", got)
	}
}

func TestContextHelpers(t *testing.T) {
	if SubjectFromContext(context.Background()) != "" {
		t.Error("пустой контекст должен давать пустой sub")
	}
	ctx := WithClaims(context.Background(), &AuthClaims{Subject: "u"})
	if SubjectFromContext(ctx) != "u" {
		t.Error("sub не извлечён из контекста")
	}
}

func TestIDPReadinessChecker(t *testing.T) {
	key := generateTestKey(t)
	jwks := buildJWKSetJSON(&key.PublicKey, testKeyID)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{"ok", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write(jwks) }, "ok"},
		{"нет ключей", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"keys":[]}`)) }, "degraded"},
		{"не JSON", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`<html>`)) }, "degraded"},
		{"500", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) }, "fail"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			status, msg := NewIDPReadinessChecker(srv.URL, time.Second).CheckReady()
			if status != tt.want {
				t.Errorf("статус = %q (%s), ожидался %q", status, msg, tt.want)
			}
		})
	}
}

func TestRequestLogger_RecordsUser(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key, nil)

	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	owner := RequestLogger(logger)(auth.Middleware()(ok))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/files", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, key, userClaims("user-7", time.Now().Add(time.Hour))))
	owner.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if !strings.Contains(out, "user_id=user-7") || !strings.Contains(out, "access=owner") {
		t.Errorf("в логе нет пользователя: %s", out)
	}

	buf.Reset()
	public := RequestLogger(logger)(ok)
	public.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/public/shares/abc", nil))
	if out := buf.String(); !strings.Contains(out, "access=share") || !strings.Contains(out, `user_id=""`) {
		t.Errorf("публичный запрос должен логироваться без пользователя: %s", out)
	}
}
