package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "test-jwt-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func whoAmIRouter(secret string, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{Auth(secret)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		id, err := GetUserID(c)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"userId": id, "admin": IsAdmin(c)})
	})
	r.GET("/me", handlers...)
	return r
}

func doGet(r http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_JWT(t *testing.T) {
	r := whoAmIRouter(testSecret)
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{
			name:       "sub claim",
			header:     "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "u1", "role": "admin", "exp": exp}),
			wantStatus: http.StatusOK,
			wantUser:   "u1",
		},
		{
			name:       "user_id claim",
			header:     "bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"user_id": "u2", "exp": exp}),
			wantStatus: http.StatusOK,
			wantUser:   "u2",
		},
		{
			name:       "expired",
			header:     "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Minute).Unix()}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong secret",
			header:     "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "u1", "exp": exp}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "no subject",
			header:     "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"role": "admin", "exp": exp}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing header",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "gateway headers ignored when jwt configured",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{"X-User-ID": "spoofed"}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			w := doGet(r, "/me", headers)
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantUser == "" {
				var body map[string]any
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, "unauthorized", body["code"])
				return
			}
			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantUser, body["userId"])
		})
	}
}

func TestAuth_RejectsNoneAlgorithm(t *testing.T) {
	r := whoAmIRouter(testSecret)
	token := signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{"sub": "u1"})
	w := doGet(r, "/me", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_GatewayHeaders(t *testing.T) {
	r := whoAmIRouter("")

	w := doGet(r, "/me", map[string]string{"X-User-ID": "u9", "X-User-Role": "admin"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":"u9","admin":true}`, w.Body.String())

	w = doGet(r, "/me", map[string]string{"Cookie": "user_id=u7"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":"u7","admin":false}`, w.Body.String())

	w = doGet(r, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminOnly(t *testing.T) {
	r := whoAmIRouter("", AdminOnly())

	w := doGet(r, "/me", map[string]string{"X-User-ID": "u1", "X-User-Role": "customer"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Admin role required")

	w = doGet(r, "/me", map[string]string{"X-User-ID": "u1", "X-User-Role": "admin"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := doGet(r, "/x", nil)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(60, 2))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, doGet(r, "/x", nil).Code)
	assert.Equal(t, http.StatusOK, doGet(r, "/x", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, doGet(r, "/x", nil).Code)
}

func TestRateLimiter_DropsIdleEntries(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(rate.Limit(1), 1, time.Minute)
	rl.now = func() time.Time { return now }

	rl.GetLimiter("1.1.1.1")
	rl.GetLimiter("2.2.2.2")
	assert.Equal(t, 2, rl.size())

	now = now.Add(2 * time.Minute)
	rl.GetLimiter("3.3.3.3")
	assert.Equal(t, 1, rl.size())
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(cors.New(CORSConfig([]string{"https://shop.example.com/", " http://localhost:5173"})))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.OPTIONS("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := doGet(r, "/x", map[string]string{"Origin": "https://shop.example.com"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = doGet(r, "/x", map[string]string{"Origin": "https://evil.example.com"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doGet(r, "/x", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	pre := httptest.NewRecorder()
	r.ServeHTTP(pre, req)
	assert.Equal(t, http.StatusNoContent, pre.Code)
	assert.Contains(t, pre.Header().Get("Access-Control-Allow-Methods"), "POST")

	open := gin.New()
	open.Use(cors.New(CORSConfig([]string{"*"})))
	open.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	w = doGet(open, "/x", map[string]string{"Origin": "https://anything.example"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSConfig(t *testing.T) {
	cfg := CORSConfig([]string{"https://shop.example.com/", ""})
	assert.Equal(t, []string{"https://shop.example.com"}, cfg.AllowOrigins)
	assert.False(t, cfg.AllowAllOrigins)
	assert.True(t, cfg.AllowCredentials)
	require.NoError(t, cfg.Validate())

	for _, origins := range [][]string{{"*"}, nil, {" ", ""}} {
		cfg = CORSConfig(origins)
		assert.True(t, cfg.AllowAllOrigins)
		assert.Empty(t, cfg.AllowOrigins)
		assert.False(t, cfg.AllowCredentials)
		require.NoError(t, cfg.Validate())
	}
}

func TestStatusCodeToRange(t *testing.T) {
	assert.Equal(t, "2xx", statusCodeToRange(201))
	assert.Equal(t, "3xx", statusCodeToRange(304))
	assert.Equal(t, "4xx", statusCodeToRange(409))
	assert.Equal(t, "5xx", statusCodeToRange(502))
	assert.Equal(t, "unknown", statusCodeToRange(100))
}

func TestMetricsMiddleware_DisabledPassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(MetricsMiddleware(nil, "storefront"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusTeapot) })
	assert.Equal(t, http.StatusTeapot, doGet(r, "/x", nil).Code)
}
