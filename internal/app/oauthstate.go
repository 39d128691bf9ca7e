package app

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	stateAudience = "oauth-state"
	stateTTL      = 10 * time.Minute
)

var errInvalidState = errors.New("invalid oauth state")

// stateSigner issues the OAuth state parameter as a short-lived JWT naming
// the worker. Its key is derived from the API secret so a state can never
// pass as a bearer token.
type stateSigner struct {
	key []byte
	now func() time.Time
}

func newStateSigner(secret string) *stateSigner {
	var key []byte
	if secret != "" {
		sum := sha256.Sum256([]byte("oauth-state:" + secret))
		key = sum[:]
	} else {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
	}
	return &stateSigner{key: key, now: time.Now}
}

func (s *stateSigner) Issue(workerID string) (string, error) {
	now := s.now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   workerID,
		Audience:  jwt.ClaimStrings{stateAudience},
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
	}).SignedString(s.key)
}

// Verify returns the worker the state was issued for.
func (s *stateSigner) Verify(state string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(state, &claims, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(stateAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", errors.Join(errInvalidState, err)
	}
	if claims.Subject == "" {
		return "", errInvalidState
	}
	return claims.Subject, nil
}
