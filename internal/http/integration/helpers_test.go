package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/taskhub/internal/app"
	"github.com/geocoder89/taskhub/internal/config"
	"github.com/gin-gonic/gin"
)

const (
	testSecret        = "test-secret-key"
	testAdminEmail    = "admin@example.com"
	testAdminPassword = "admin-password"
)

type apiErrorResponse struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

type authResponse struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type taskResponse struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	UserID   string `json:"userId"`
	Owner    *struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"owner"`
}

type taskListResponse struct {
	Items []taskResponse `json:"items"`
	Count int            `json:"count"`
}

func testConfig(driver string) config.Config {
	return config.Config{
		Env:             "test",
		Port:            0,
		StoreDriver:     driver,
		SQLitePath:      ":memory:",
		JWTSecret:       testSecret,
		JWTExpiry:       time.Hour,
		AdminEmail:      testAdminEmail,
		AdminPassword:   testAdminPassword,
		AdminName:       "Test Admin",
		AuthRateLimit:   50,
		ProfileCacheTTL: time.Second,
		MaxBodyBytes:    1 << 20,
	}
}

func newTestApp(t *testing.T, cfg config.Config) *app.App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("failed to build app: %v", err)
	}
	t.Cleanup(a.Close)

	return a
}

func doRequest(router http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()
	err := json.Unmarshal(w.Body.Bytes(), out)
	if err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int, what string) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("%s got status %d, want %d, body=%s", what, w.Code, want, w.Body.String())
	}
}

func expectErrorCode(t *testing.T, w *httptest.ResponseRecorder, want string) {
	t.Helper()

	var e apiErrorResponse
	mustReadJSON(t, w, &e)
	if e.Error.Code != want {
		t.Fatalf("error code = %q, want %q, body=%s", e.Error.Code, want, w.Body.String())
	}
}

func register(t *testing.T, router http.Handler, name, email, password string) authResponse {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"name": name, "email": email, "password": password})
	w := doRequest(router, http.MethodPost, "/api/v1/auth/register", string(body), "")
	expectStatus(t, w, http.StatusCreated, "register "+email)

	var res authResponse
	mustReadJSON(t, w, &res)
	return res
}

func login(t *testing.T, router http.Handler, email, password string) authResponse {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	w := doRequest(router, http.MethodPost, "/api/v1/auth/login", string(body), "")
	expectStatus(t, w, http.StatusOK, "login "+email)

	var res authResponse
	mustReadJSON(t, w, &res)
	return res
}

func doRequestWithType(router http.Handler, method, path, body, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}
