package middlewares

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"parley-server/internal/domain"
	"parley-server/internal/interfaces/httpserver/responses"
	"parley-server/internal/utils/platformerrors"
)

const principalContextKey = "principal"

type accessClaims struct {
	Email             string `json:"email,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates bearer tokens and attaches the principal to the
// request. An expired token is rejected with reason "jwt_expired" so clients
// can tell it apart from an idle-session rejection.
func AuthMiddleware(secret []byte, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized,
				"authentication required", "c5f2e9a1-73d8-4b06-9ac4-e18f5d2b7c30")
			return
		}

		claims := &accessClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return secret, nil
		}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
		if err != nil || !parsed.Valid {
			if errors.Is(err, jwt.ErrTokenExpired) {
				responses.HandleNewErrorWithReason(c, platformerrors.ErrorTypeUnauthorized,
					"token expired", "jwt_expired", "0d6b3f82-e491-4c57-a8d0-27b5c9e1f643")
				return
			}
			responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized,
				"invalid token", "7e0a4d15-b8c6-42f9-93e7-d50a1b6c8f24")
			return
		}
		if claims.Subject == "" {
			responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized,
				"token has no subject", "1b9e6c40-5d27-48a3-bf18-c4e7d0a29f56")
			return
		}

		principal := domain.Principal{
			ID:         claims.Subject,
			Subject:    claims.Subject,
			Email:      claims.Email,
			Username:   claims.PreferredUsername,
			Issuer:     claims.Issuer,
			AuthMethod: domain.AuthMethodJWT,
		}
		if claims.ExpiresAt != nil {
			principal.ExpiresAt = claims.ExpiresAt.Time
		}
		setPrincipal(c, principal)

		c.Next()
	}
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(c *gin.Context) (domain.Principal, bool) {
	val, ok := c.Get(principalContextKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := val.(domain.Principal)
	return principal, ok
}

func setPrincipal(c *gin.Context, principal domain.Principal) {
	c.Set(principalContextKey, principal)
	// expose commonly-used identity values for downstream handlers
	c.Set("user_id", principal.ID)
	if principal.Email != "" {
		c.Set("user_email", principal.Email)
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
