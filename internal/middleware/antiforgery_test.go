package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"todo-app/backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func setupAntiForgeryRouter(sessionToken string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.CSRFTokenKey, sessionToken)
		c.Next()
	})
	router.Use(middleware.RequireAntiForgery())
	router.GET("/tasks", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/tasks", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"title": c.PostForm("title")})
	})
	return router
}

func TestRequireAntiForgery(t *testing.T) {
	tests := []struct {
		name       string
		session    string
		formToken  string
		header     string
		wantStatus int
	}{
		{"form token matches", "abc", "abc", "", http.StatusOK},
		{"header token matches", "abc", "", "abc", http.StatusOK},
		{"missing token", "abc", "", "", http.StatusBadRequest},
		{"wrong token", "abc", "abd", "", http.StatusBadRequest},
		{"session without token", "", "", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupAntiForgeryRouter(tt.session)

			form := url.Values{"title": {"x"}}
			if tt.formToken != "" {
				form.Set(middleware.AntiForgeryFormField, tt.formToken)
			}
			req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if tt.header != "" {
				req.Header.Set(middleware.AntiForgeryHeader, tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusBadRequest {
				assert.JSONEq(t, `{"error":"invalid anti-forgery token"}`, w.Body.String())
			} else {
				assert.JSONEq(t, `{"title":"x"}`, w.Body.String(), "form stays readable downstream")
			}
		})
	}
}

func TestRequireAntiForgery_SafeMethodsPass(t *testing.T) {
	router := setupAntiForgeryRouter("abc")

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
