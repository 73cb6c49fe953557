package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"spendsnap/internal/config"
	apperrors "spendsnap/internal/errors"
	"spendsnap/internal/models"
	"spendsnap/internal/uuid"
)

const (
	userIDKey = "userID"
	emailKey  = "email"
	tokenKey  = "token"
	issuer    = "spendsnap-api"
)

// getJWTKey returns the JWT key from configuration
func getJWTKey() []byte {
	return []byte(config.Get().JWTSecret)
}

// JWTClaims represents the claims in the JWT
type JWTClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// GenerateToken signs a session token for user that expires after the
// configured JWT_EXPIRES_IN.
func GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &JWTClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(config.Get().JWTExpirationDur)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   user.ID,
			ID:        uuid.New(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(getJWTKey())
}

// ParseToken validates tokenString and returns its claims.
func ParseToken(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return getJWTKey(), nil
	}, jwt.WithIssuer(issuer))
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// HashToken returns the SHA-256 hex digest of a token string.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// revoked holds hashes of signed-out tokens until they would have expired.
var revoked = struct {
	sync.Mutex
	until map[string]time.Time
}{until: map[string]time.Time{}}

// RevokeToken rejects tokenString for the rest of its lifetime.
func RevokeToken(tokenString string, expires time.Time) {
	revoked.Lock()
	defer revoked.Unlock()
	now := time.Now()
	for hash, exp := range revoked.until {
		if now.After(exp) {
			delete(revoked.until, hash)
		}
	}
	revoked.until[HashToken(tokenString)] = expires
}

func isRevoked(tokenString string) bool {
	revoked.Lock()
	defer revoked.Unlock()
	_, ok := revoked.until[HashToken(tokenString)]
	return ok
}

// AuthMiddleware verifies the JWT token and sets the user in the context.
// Every rejection is a 401 with code UNAUTHORIZED.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			RespondWithError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Authorization header is required"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			RespondWithError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid authorization header format"))
			return
		}

		tokenString := parts[1]
		claims, err := ParseToken(tokenString)
		if err != nil || isRevoked(tokenString) {
			RespondWithError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid or expired token"))
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set(emailKey, claims.Email)
		c.Set(tokenKey, tokenString)
		c.Next()
	}
}

// CurrentToken returns the bearer token accepted by AuthMiddleware.
func CurrentToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}
