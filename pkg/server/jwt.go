package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ClaimsKey is the gin context key holding verified jwt.MapClaims.
const ClaimsKey = "jwt_claims"

// VerifyConfig configures bearer token verification.
// AllowedIssuer and AllowedAudience are checked only when set.
type VerifyConfig struct {
	Secret          []byte
	RequireJTI      bool
	AllowedIssuer   string
	AllowedAudience string
	ClockSkew       time.Duration
}

// JWTMiddleware rejects requests without a valid HS256 bearer token.
func JWTMiddleware(cfg VerifyConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(cfg.Secret) == 0 {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "jwt secret not configured"})
			return
		}
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			return
		}
		tok, err := jwt.Parse(strings.TrimSpace(auth[len("Bearer "):]), func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return cfg.Secret, nil
		}, jwt.WithLeeway(cfg.ClockSkew))
		if err != nil || !tok.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		claims, ok := tok.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims"})
			return
		}
		if err := validateClaims(claims, cfg); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

func validateClaims(c jwt.MapClaims, cfg VerifyConfig) error {
	if cfg.RequireJTI {
		if _, ok := c["jti"]; !ok {
			return errors.New("token missing jti")
		}
	}
	if cfg.AllowedIssuer != "" {
		if iss, _ := c.GetIssuer(); iss != cfg.AllowedIssuer {
			return errors.New("invalid iss")
		}
	}
	if cfg.AllowedAudience != "" {
		aud, _ := c.GetAudience()
		for _, a := range aud {
			if a == cfg.AllowedAudience {
				return nil
			}
		}
		return errors.New("invalid aud")
	}
	return nil
}

// TokenConfig describes a token to issue for the status API.
type TokenConfig struct {
	Secret   string
	TTL      time.Duration
	Subject  string
	Issuer   string
	Audience []string
	ID       string
}

// Issue signs an HS256 token. TTL defaults to five minutes.
func (c TokenConfig) Issue() (string, error) {
	if c.Secret == "" {
		return "", errors.New("server: token secret required")
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	claims := jwt.MapClaims{"exp": time.Now().Add(ttl).Unix()}
	if c.Subject != "" {
		claims["sub"] = c.Subject
	}
	if c.Issuer != "" {
		claims["iss"] = c.Issuer
	}
	if len(c.Audience) > 0 {
		claims["aud"] = c.Audience
	}
	if c.ID != "" {
		claims["jti"] = c.ID
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.Secret))
}
