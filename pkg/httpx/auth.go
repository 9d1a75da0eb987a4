package httpx

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey int

const (
	customerKey ctxKey = iota
	adminKey
)

// CustomerID returns the authenticated customer id from the request context.
func CustomerID(ctx context.Context) string {
	v, _ := ctx.Value(customerKey).(string)
	return v
}

// IsAdmin reports whether the request carries the admin role.
func IsAdmin(ctx context.Context) bool {
	v, _ := ctx.Value(adminKey).(bool)
	return v
}

// Auth validates the bearer token and stores the subject and role in the
// request context. Token issuance belongs to the external identity service;
// only HMAC validation happens here.
type Auth struct {
	secret []byte
	issuer string
}

func NewAuth(secret, issuer string) *Auth {
	return &Auth{secret: []byte(secret), issuer: issuer}
}

func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			WriteJSON(w, http.StatusUnauthorized, errorBody{Error: "missing bearer token"})
			return
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return a.secret, nil
		}, jwt.WithLeeway(30*time.Second))
		if err != nil || !token.Valid {
			WriteJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			WriteJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid claims"})
			return
		}
		if a.issuer != "" && claims["iss"] != a.issuer {
			WriteJSON(w, http.StatusUnauthorized, errorBody{Error: "issuer mismatch"})
			return
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			WriteJSON(w, http.StatusUnauthorized, errorBody{Error: "missing subject"})
			return
		}

		ctx := context.WithValue(r.Context(), customerKey, sub)
		if role, _ := claims["role"].(string); role == "admin" {
			ctx = context.WithValue(ctx, adminKey, true)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin gates admin-only routes.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r.Context()) {
			WriteJSON(w, http.StatusForbidden, errorBody{Error: "admin only"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
