package app

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const subjectKey = "subject"

// StaticSubject is the subject of requests authenticated with a static token.
const StaticSubject = "static"

// AuthMiddleware accepts a bearer JWT signed with secret (HMAC) or one of
// the static tokens. The JWT subject is stored for Subject.
func AuthMiddleware(secret string, staticTokens []string) gin.HandlerFunc {
	tokens := make(map[string]struct{}, len(staticTokens))
	for _, t := range staticTokens {
		if t = strings.TrimSpace(t); t != "" {
			tokens[t] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			unauthorized(c, "missing authorization")
			return
		}
		parts := strings.Fields(auth)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			unauthorized(c, "invalid authorization format")
			return
		}
		tokenStr := parts[1]

		if secret != "" {
			var claims jwt.RegisteredClaims
			_, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrTokenMalformed
				}
				return []byte(secret), nil
			}, jwt.WithLeeway(5*time.Second))
			if err == nil {
				c.Set(subjectKey, claims.Subject)
				c.Next()
				return
			}
		}

		if _, ok := tokens[tokenStr]; ok {
			c.Set(subjectKey, StaticSubject)
			c.Next()
			return
		}

		unauthorized(c, "invalid token")
	}
}

// Subject is the authenticated caller, "" when unknown.
func Subject(c *gin.Context) string {
	return c.GetString(subjectKey)
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: errorBody{
		Kind: "unauthorized", Code: "unauthorized", Message: msg,
	}})
}

// caller resolves who a request acts for. A JWT subject wins over claimed;
// a claim naming someone else is an error. Static tokens act for claimed.
func (a *App) caller(c *gin.Context, claimed string) (string, error) {
	sub := Subject(c)
	if sub == "" || sub == StaticSubject {
		return claimed, nil
	}
	if claimed != "" && claimed != sub {
		return "", fmt.Errorf("authenticated as %s, cannot act for %s", sub, claimed)
	}
	return sub, nil
}
