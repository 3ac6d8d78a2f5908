package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/vocdoni/selfpoll-relay/log"
)

type ctxKey string

// sessionCtxKey holds the subject of the authenticated session.
const sessionCtxKey ctxKey = "session"

// bearerAuth returns a middleware that requires a valid HS256 bearer token
// signed with secret. If no secret is configured every request is rejected.
func bearerAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(secret) == 0 {
				ErrUnauthorized.With("sessions are not enabled").Write(w)
				return
			}
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				ErrUnauthorized.With("authorization header required").Write(w)
				return
			}
			claims := &jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims,
				func(t *jwt.Token) (any, error) {
					if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
					}
					return secret, nil
				})
			if err != nil || !token.Valid {
				log.Debugw("rejected session token", "error", err)
				ErrUnauthorized.With("invalid session token").Write(w)
				return
			}
			ctx := context.WithValue(r.Context(), sessionCtxKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionSubject returns the subject of the authenticated session, if any.
func sessionSubject(ctx context.Context) string {
	s, _ := ctx.Value(sessionCtxKey).(string)
	return s
}

// NewSessionToken issues a session token for subject, valid for ttl.
func NewSessionToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(secret)
}
