package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"

	"zkaccount-backend/internal/config"
	"zkaccount-backend/internal/models"
)

const (
	sessionKey = "session"
	claimsKey  = "claims"

	// TOTPHeader carries the one-time code for spend endpoints
	TOTPHeader = "X-TOTP-Code"
)

// SessionClaims claims of the identity service token. The same token authenticates proof requests.
type SessionClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware JWT session validation and TOTP step-up
type AuthMiddleware struct {
	secret     []byte
	issuer     string
	totpSecret string
	logger     *logrus.Logger
}

// NewAuthMiddleware creates the middleware from the auth config
func NewAuthMiddleware(cfg config.AuthConfig, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		totpSecret: cfg.TOTPSecret,
		logger:     logger,
	}
}

// ValidateToken parses and verifies an HS256 session token
func (a *AuthMiddleware) ValidateToken(tokenString string) (*SessionClaims, error) {
	if len(a.secret) == 0 {
		return nil, errors.New("jwt secret not configured")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// RequireAuth JWT
func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := a.logger.WithFields(logrus.Fields{
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" && c.Query("access_token") != "" {
			// browsers cannot set headers on websocket upgrades
			authHeader = "Bearer " + c.Query("access_token")
		}
		if authHeader == "" {
			log.Warn("JWT failed - missing Authorization header")
			abortUnauthorized(c, "Authentication required", "Missing Authorization header. Please provide a valid JWT token.", "MISSING_AUTH_HEADER")
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			log.Warn("JWT failed - invalid Authorization format")
			abortUnauthorized(c, "Invalid authorization format", "Authorization header must be in format: Bearer <token>", "INVALID_AUTH_FORMAT")
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if tokenString == "" {
			log.Warn("JWT failed - empty token")
			abortUnauthorized(c, "Empty token", "Token cannot be empty", "EMPTY_TOKEN")
			return
		}

		claims, err := a.ValidateToken(tokenString)
		if err != nil {
			log.WithError(err).Warn("JWT failed - token verification failed")
			abortUnauthorized(c, "Invalid or expired token", err.Error(), "INVALID_TOKEN")
			return
		}

		c.Set(claimsKey, claims)
		c.Set(sessionKey, models.SessionContext{BearerToken: tokenString})
		log.WithField("subject", claims.Subject).Debug("JWT success")
		c.Next()
	}
}

// RequireTOTP step-up for spend endpoints; a no-op when no TOTP secret is configured
func (a *AuthMiddleware) RequireTOTP() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.totpSecret == "" {
			c.Next()
			return
		}
		code := strings.TrimSpace(c.GetHeader(TOTPHeader))
		if code == "" || !totp.Validate(code, a.totpSecret) {
			a.logger.WithField("path", c.Request.URL.Path).Warn("TOTP step-up failed")
			abortUnauthorized(c, "Invalid TOTP code", fmt.Sprintf("A valid %s header is required for this operation", TOTPHeader), "INVALID_TOTP")
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, errMsg, message, code string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   errMsg,
		"message": message,
		"code":    code,
	})
}

// Session returns the session stored by RequireAuth; empty when the route is unauthenticated
func Session(c *gin.Context) models.SessionContext {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(models.SessionContext); ok {
			return s
		}
	}
	return models.SessionContext{}
}

// Claims returns the validated claims, nil when absent
func Claims(c *gin.Context) *SessionClaims {
	if v, ok := c.Get(claimsKey); ok {
		if claims, ok := v.(*SessionClaims); ok {
			return claims
		}
	}
	return nil
}

// IssueToken signs a session token; used by dev tooling and tests
func IssueToken(secret, issuer, subject, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   subject,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
