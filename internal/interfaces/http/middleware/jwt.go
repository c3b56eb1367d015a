package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/meschain/marketsync/internal/infrastructure/auth"
	"github.com/meschain/marketsync/internal/interfaces/http/dto"
)

const (
	AuthHeaderKey = "Authorization"

	jwtClaimsKey  = "jwt_claims"
	jwtSubjectKey = "jwt_subject"
	bearerScheme  = "bearer"
)

// TokenValidator validates bearer tokens
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// authFailure is a rejected credential: what is logged and what the caller sees
type authFailure struct {
	cause   error
	code    string
	message string
}

var errNoCredentials = errors.New("no bearer token")

// BearerAuth authenticates the API group. Health checks and webhooks are mounted
// outside that group and never reach it.
func BearerAuth(validator TokenValidator, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		claims, fail := authenticate(validator, c.GetHeader(AuthHeaderKey))
		if fail != nil {
			log.Warn("API authentication failed",
				zap.String("path", c.Request.URL.Path),
				zap.String("reason", fail.message),
				zap.Error(fail.cause),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, authError(c, fail.code, fail.message))
			return
		}
		c.Set(jwtClaimsKey, claims)
		c.Set(jwtSubjectKey, claims.Subject)
		c.Next()
	}
}

func authenticate(validator TokenValidator, header string) (*auth.Claims, *authFailure) {
	token, ok := bearerToken(header)
	if !ok {
		if header == "" {
			return nil, &authFailure{errNoCredentials, dto.ErrCodeUnauthorized, "Authentication required"}
		}
		return nil, &authFailure{auth.ErrInvalidToken, dto.ErrCodeTokenInvalid, "Authorization header must be a bearer token"}
	}
	claims, err := validator.Validate(token)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, auth.ErrExpiredToken):
		return nil, &authFailure{err, dto.ErrCodeTokenExpired, "Token has expired"}
	case errors.Is(err, auth.ErrTokenNotYetValid):
		return nil, &authFailure{err, dto.ErrCodeTokenInvalid, "Token is not yet valid"}
	default:
		return nil, &authFailure{err, dto.ErrCodeTokenInvalid, "Invalid token"}
	}
}

// bearerToken extracts the token; the scheme is case-insensitive
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireScope rejects tokens without scope. It runs after BearerAuth.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		switch {
		case claims == nil:
			c.AbortWithStatusJSON(http.StatusUnauthorized, authError(c, dto.ErrCodeUnauthorized, "Authentication required"))
		case !claims.HasScope(scope):
			c.AbortWithStatusJSON(http.StatusForbidden, authError(c, dto.ErrCodeForbidden, "Token lacks scope "+scope))
		default:
			c.Next()
		}
	}
}

func authError(c *gin.Context, code, message string) dto.Response {
	return dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c))
}

// GetJWTClaims returns the claims stored by BearerAuth, or nil
func GetJWTClaims(c *gin.Context) *auth.Claims {
	v, _ := c.Get(jwtClaimsKey)
	claims, _ := v.(*auth.Claims)
	return claims
}

// GetJWTSubject returns the token subject, or "" for unauthenticated requests
func GetJWTSubject(c *gin.Context) string {
	return c.GetString(jwtSubjectKey)
}
