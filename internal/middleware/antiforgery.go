package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	AntiForgeryFormField = "__RequestVerificationToken"
	AntiForgeryHeader    = "X-CSRF-Token"
)

// RequireAntiForgery rejects state-changing requests whose token does not
// match the one bound to the caller's session. It must run after RequireUser.
func RequireAntiForgery() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		expected := c.GetString(CSRFTokenKey)
		submitted := c.GetHeader(AntiForgeryHeader)
		if submitted == "" {
			submitted = c.PostForm(AntiForgeryFormField)
		}

		if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(submitted)) != 1 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid anti-forgery token"})
			return
		}
		c.Next()
	}
}
