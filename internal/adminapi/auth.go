package adminapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const claimsContextKey = "admin_claims"

var errMissingToken = errors.New("missing bearer token")

// AdminClaims carries the operator identity embedded in the bearer token.
type AdminClaims struct {
	AdminID string `json:"admin_id"`
	Email   string `json:"email"`
	jwt.RegisteredClaims
}

// TokenValidator verifies HS256 admin bearer tokens.
type TokenValidator struct {
	signingKey []byte
	issuer     string
}

// NewTokenValidator builds a validator for the configured key and issuer.
func NewTokenValidator(signingKey []byte, issuer string) (*TokenValidator, error) {
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("signing key is required")
	}
	if strings.TrimSpace(issuer) == "" {
		return nil, fmt.Errorf("issuer is required")
	}
	return &TokenValidator{signingKey: signingKey, issuer: issuer}, nil
}

// Parse validates a raw token string and returns its claims.
func (validator *TokenValidator) Parse(rawToken string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
		}
		return validator.signingKey, nil
	}, jwt.WithIssuer(validator.issuer))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errMissingToken
	}
	if strings.TrimSpace(claims.AdminID) == "" {
		return nil, fmt.Errorf("token missing admin_id claim")
	}
	return claims, nil
}

// GinMiddleware rejects requests without a valid admin bearer token and
// stores the parsed claims in the request context.
func (validator *TokenValidator) GinMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		rawToken, err := bearerToken(ctx.GetHeader("Authorization"))
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing bearer token"))
			return
		}
		claims, err := validator.Parse(rawToken)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid bearer token"))
			return
		}
		ctx.Set(claimsContextKey, claims)
		ctx.Next()
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errMissingToken
	}
	return strings.TrimSpace(parts[1]), nil
}

func getAdminClaims(ctx *gin.Context) *AdminClaims {
	claimsValue, ok := ctx.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, _ := claimsValue.(*AdminClaims)
	return claims
}
