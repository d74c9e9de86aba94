package middleware

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by RequireUser.
const (
	UserIDKey    = "user_id"
	UserNameKey  = "user_name"
	CSRFTokenKey = "csrf_token"
)

var (
	errMissingToken   = errors.New("missing session token")
	errMissingSubject = errors.New("session token has no subject")
	errWrongIssuer    = errors.New("session token issuer is invalid")
)

type AuthConfig struct {
	Secret     []byte
	Issuer     string
	CookieName string
	LoginURL   string
	Logger     *log.Logger
}

// SessionClaims is the payload of the session token issued by the identity
// subsystem.
type SessionClaims struct {
	CSRF string `json:"csrf,omitempty"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// RequireUser resolves the caller from the session cookie or a bearer token.
// Anonymous callers are sent to the login page, or get a 401 when they asked
// for JSON.
func RequireUser(config AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := parseSession(c, config)
		if err != nil {
			if config.Logger != nil && !errors.Is(err, errMissingToken) {
				config.Logger.Debug("session rejected", "path", c.Request.URL.Path, "err", err)
			}
			challenge(c, config.LoginURL)
			return
		}

		c.Set(UserIDKey, claims.Subject)
		c.Set(UserNameKey, claims.Name)
		c.Set(CSRFTokenKey, claims.CSRF)
		c.Next()
	}
}

func sessionToken(c *gin.Context, cookieName string) string {
	if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	if cookieName == "" {
		return ""
	}
	cookie, err := c.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return cookie
}

func parseSession(c *gin.Context, config AuthConfig) (*SessionClaims, error) {
	tokenStr := sessionToken(c, config.CookieName)
	if tokenStr == "" {
		return nil, errMissingToken
	}

	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return config.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}

	if claims.Subject == "" {
		return nil, errMissingSubject
	}
	if claims.Issuer != "" && config.Issuer != "" && claims.Issuer != config.Issuer {
		return nil, errWrongIssuer
	}
	return claims, nil
}

func challenge(c *gin.Context, loginURL string) {
	if wantsJSON(c) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	target := loginURL + "?returnUrl=" + url.QueryEscape(c.Request.URL.RequestURI())
	if strings.Contains(loginURL, "?") {
		target = loginURL + "&returnUrl=" + url.QueryEscape(c.Request.URL.RequestURI())
	}
	c.Redirect(http.StatusFound, target)
	c.Abort()
}

func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}
