package middlewares_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/taskhub/internal/actorctx"
	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct {
	verifyFn func(token string) (user.Principal, error)
}

func (f fakeVerifier) Verify(token string) (user.Principal, error) {
	return f.verifyFn(token)
}

type errorBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()

	var body errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, w.Body.String())
	}
	return body
}

func authRouter(v middlewares.TokenVerifier) *gin.Engine {
	m := middlewares.NewAuthMiddleware(v)

	r := gin.New()
	r.Use(middlewares.RequestID())
	r.GET("/me", m.RequireAuth(), func(c *gin.Context) {
		p, ok := middlewares.PrincipalFromContext(c)
		fromCtx, okCtx := actorctx.PrincipalFrom(c.Request.Context())
		if !ok || !okCtx || p != fromCtx {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": p.ID, "role": p.Role})
	})
	r.GET("/admin", m.RequireAuth(), m.RequireRole(user.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	return r
}

func TestRequireAuth(t *testing.T) {
	v := fakeVerifier{verifyFn: func(token string) (user.Principal, error) {
		switch token {
		case "good":
			return user.Principal{ID: "u1", Role: user.RoleMember}, nil
		case "admin":
			return user.Principal{ID: "a1", Role: user.RoleAdmin}, nil
		case "old":
			return user.Principal{}, apperr.New(apperr.KindCredentialExpired, "Access token expired")
		default:
			return user.Principal{}, apperr.New(apperr.KindInvalidCredential, "Invalid access token")
		}
	}}
	r := authRouter(v)

	tests := []struct {
		name     string
		path     string
		header   string
		wantCode int
		wantErr  string
	}{
		{name: "no header", path: "/me", wantCode: http.StatusUnauthorized, wantErr: "unauthorized"},
		{name: "wrong scheme", path: "/me", header: "Basic abc", wantCode: http.StatusUnauthorized, wantErr: "unauthorized"},
		{name: "empty token", path: "/me", header: "Bearer   ", wantCode: http.StatusUnauthorized, wantErr: "unauthorized"},
		{name: "invalid token", path: "/me", header: "Bearer junk", wantCode: http.StatusUnauthorized, wantErr: "invalid_token"},
		{name: "expired token", path: "/me", header: "Bearer old", wantCode: http.StatusUnauthorized, wantErr: "token_expired"},
		{name: "valid token", path: "/me", header: "Bearer good", wantCode: http.StatusOK},
		{name: "lowercase scheme", path: "/me", header: "bearer good", wantCode: http.StatusOK},
		{name: "member on admin route", path: "/admin", header: "Bearer good", wantCode: http.StatusForbidden, wantErr: "forbidden"},
		{name: "admin on admin route", path: "/admin", header: "Bearer admin", wantCode: http.StatusNoContent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d, body=%s", w.Code, tc.wantCode, w.Body.String())
			}
			if tc.wantErr != "" {
				body := decodeError(t, w)
				if body.Error.Code != tc.wantErr {
					t.Fatalf("code = %q, want %q", body.Error.Code, tc.wantErr)
				}
				if body.Error.RequestID == "" {
					t.Fatalf("error response missing requestId")
				}
			}
		})
	}
}

func limitedRouter(l middlewares.Limiter, onLimited func(string)) *gin.Engine {
	r := gin.New()
	r.POST("/login", middlewares.RateLimit(l, middlewares.KeyByRouteAndIP, onLimited), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRateLimit_InProcess(t *testing.T) {
	var limitedRoutes []string
	r := limitedRouter(middlewares.NewRateLimiter(2, time.Minute), func(route string) {
		limitedRoutes = append(limitedRoutes, route)
	})

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := send("10.0.0.1"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, w.Code)
		}
	}

	w := send("10.0.0.1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After header")
	}
	if decodeError(t, w).Error.Code != "rate_limited" {
		t.Fatalf("unexpected error code")
	}
	if len(limitedRoutes) != 1 || limitedRoutes[0] != "/login" {
		t.Fatalf("onLimited calls = %v", limitedRoutes)
	}

	if w := send("10.0.0.2"); w.Code != http.StatusOK {
		t.Fatalf("other client should not be limited, got %d", w.Code)
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (middlewares.Decision, error) {
	return middlewares.Decision{}, errors.New("redis down")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	r := limitedRouter(failingLimiter{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("limiter error should fail open, got %d", w.Code)
	}
}

func TestRateLimiter_WindowResets(t *testing.T) {
	rl := middlewares.NewRateLimiter(1, 50*time.Millisecond)
	ctx := context.Background()

	if d, _ := rl.Allow(ctx, "k"); !d.Allowed {
		t.Fatalf("first hit denied")
	}
	if d, _ := rl.Allow(ctx, "k"); d.Allowed {
		t.Fatalf("second hit allowed")
	}

	time.Sleep(60 * time.Millisecond)

	if d, _ := rl.Allow(ctx, "k"); !d.Allowed {
		t.Fatalf("hit after window denied")
	}
}

func TestRequireJSON(t *testing.T) {
	r := gin.New()
	r.Use(middlewares.RequireJSON())
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		name, method, ct, body string
		want                   int
	}{
		{"json", http.MethodPost, "application/json; charset=utf-8", `{}`, http.StatusNoContent},
		{"form", http.MethodPost, "application/x-www-form-urlencoded", `a=b`, http.StatusUnsupportedMediaType},
		{"missing type", http.MethodPost, "", `{}`, http.StatusUnsupportedMediaType},
		{"get ignored", http.MethodGet, "", "", http.StatusNoContent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/x", strings.NewReader(tc.body))
			if tc.ct != "" {
				req.Header.Set("Content-Type", tc.ct)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	r := gin.New()
	r.Use(middlewares.RequestID(), middlewares.SecurityHeaders())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(middlewares.CtxRequestID)) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("X-Request-Id") != "req-123" || w.Body.String() != "req-123" {
		t.Fatalf("request id not propagated: header=%q body=%q", w.Header().Get("X-Request-Id"), w.Body.String())
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" || w.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("security headers missing: %v", w.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatalf("request id not generated")
	}
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(middlewares.CORS([]string{"https://app.example"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") != "https://app.example" {
		t.Fatalf("allowed origin not echoed: %v", w.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("foreign origin allowed")
	}
}
