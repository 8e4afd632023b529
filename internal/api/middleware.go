/**
 * @description
 * Custom middleware for the HTTP router. The ledger-service consumes a
 * verified identity from the auth layer in front of it: requests carry a
 * bearer JWT whose `sub` claim is the caller's user id. Identity-provider
 * token exchange happens outside this service; here the token is only
 * validated and the subject placed on the request context.
 */

package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// userIDContextKey is a custom type for the context key to avoid collisions.
type userIDContextKey string

const callerIDKey userIDContextKey = "callerID"

// AuthMiddleware validates the bearer token and stores the caller's subject
// on the context. Requests without a valid token pass through with no
// subject; handlers resolve that to the unauthenticated status, which keeps
// the 401 mapping in one place.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				next.ServeHTTP(w, r)
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				next.ServeHTTP(w, r)
				return
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			subject, ok := claims["sub"].(string)
			if !ok || subject == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), callerIDKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerID returns the authenticated subject from the request context.
func CallerID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(callerIDKey).(string)
	return id, ok && id != ""
}

// InternalKeyMiddleware guards service-to-service endpoints (the identity
// provider's sign-in assertion) with a shared API key.
func InternalKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" || r.Header.Get("X-Internal-Api-Key") != apiKey {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
