package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"todo-app/backend/internal/logging"
	"todo-app/backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func testAuthConfig() middleware.AuthConfig {
	return middleware.AuthConfig{
		Secret:     testSecret,
		Issuer:     "todo-identity",
		CookieName: "todo_session",
		LoginURL:   "/account/login",
		Logger:     logging.Discard(),
	}
}

func createTestToken(t *testing.T, claims jwt.Claims, method jwt.SigningMethod, key interface{}) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims(subject string) middleware.SessionClaims {
	return middleware.SessionClaims{
		CSRF: "csrf-123",
		Name: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "todo-identity",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func setupAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.RequireUser(testAuthConfig()))
	router.GET("/tasks", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetString(middleware.UserIDKey),
			"name":    c.GetString(middleware.UserNameKey),
			"csrf":    c.GetString(middleware.CSRFTokenKey),
		})
	})
	return router
}

func TestRequireUser_NoToken_RedirectsToLogin(t *testing.T) {
	router := setupAuthRouter()

	req := httptest.NewRequest(http.MethodGet, "/tasks?filter=open", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/account/login", location.Path)
	assert.Equal(t, "/tasks?filter=open", location.Query().Get("returnUrl"))
}

func TestRequireUser_NoToken_JSONClientGets401(t *testing.T) {
	router := setupAuthRouter()

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"authentication required"}`, w.Body.String())
}

func TestRequireUser_ValidCookie(t *testing.T) {
	router := setupAuthRouter()
	token := createTestToken(t, validClaims("user-1"), jwt.SigningMethodHS256, testSecret)

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.AddCookie(&http.Cookie{Name: "todo_session", Value: token})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"user-1","name":"alice","csrf":"csrf-123"}`, w.Body.String())
}

func TestRequireUser_ValidBearer(t *testing.T) {
	router := setupAuthRouter()
	token := createTestToken(t, validClaims("user-2"), jwt.SigningMethodHS256, testSecret)

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user-2"`)
}

func TestRequireUser_RejectedTokens(t *testing.T) {
	expired := validClaims("user-1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noSubject := validClaims("")

	wrongIssuer := validClaims("user-1")
	wrongIssuer.Issuer = "someone-else"

	noExpiry := validClaims("user-1")
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"wrong secret", createTestToken(t, validClaims("user-1"), jwt.SigningMethodHS256, []byte("other"))},
		{"wrong algorithm", createTestToken(t, validClaims("user-1"), jwt.SigningMethodHS512, testSecret)},
		{"expired", createTestToken(t, expired, jwt.SigningMethodHS256, testSecret)},
		{"no subject", createTestToken(t, noSubject, jwt.SigningMethodHS256, testSecret)},
		{"wrong issuer", createTestToken(t, wrongIssuer, jwt.SigningMethodHS256, testSecret)},
		{"no expiry", createTestToken(t, noExpiry, jwt.SigningMethodHS256, testSecret)},
	}

	router := setupAuthRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
			req.AddCookie(&http.Cookie{Name: "todo_session", Value: tt.token})
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusFound, w.Code)
			assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/account/login?returnUrl="))
		})
	}
}

func TestRequireUser_IssuerOptional(t *testing.T) {
	router := setupAuthRouter()
	claims := validClaims("user-3")
	claims.Issuer = ""
	token := createTestToken(t, claims, jwt.SigningMethodHS256, testSecret)

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireUser_LoginURLWithQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	config := testAuthConfig()
	config.LoginURL = "/identity/login?tenant=a"

	router := gin.New()
	router.Use(middleware.RequireUser(config))
	router.GET("/tasks", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "/identity/login?tenant=a&returnUrl=%2Ftasks", w.Header().Get("Location"))
}
