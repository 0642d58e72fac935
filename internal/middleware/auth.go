// Package middleware hosts authentication, logging, and rate limiting middleware.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"sacco/pkg/errors"
)

// contextKey avoids collisions when storing values in request contexts.
type contextKey string

const (
	ctxActorIDKey contextKey = "actor_id"
	ctxRoleKey    contextKey = "role"
)

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// TokenBlacklist reports revoked tokens.
type TokenBlacklist interface {
	IsBlacklisted(ctx context.Context, token string) (bool, error)
}

// TokenRevoker stores a revoked token until it would have expired anyway.
type TokenRevoker interface {
	Blacklist(ctx context.Context, token string, expiration time.Duration) error
}

// MaxRevocation is how long a token without an exp claim stays revoked.
const MaxRevocation = 24 * time.Hour

// AuthMiddleware validates bearer JWTs issued by the member portal and puts
// the acting member and role on the request context. It never issues tokens.
type AuthMiddleware struct {
	jwtSecret string
	issuer    string
	blacklist TokenBlacklist
}

// NewAuthMiddleware constructs an AuthMiddleware with the given secret. An
// empty issuer accepts any iss claim.
func NewAuthMiddleware(secret, issuer string) *AuthMiddleware {
	return &AuthMiddleware{jwtSecret: secret, issuer: issuer}
}

// WithBlacklist rejects tokens the blacklist reports as revoked.
func (m *AuthMiddleware) WithBlacklist(b TokenBlacklist) *AuthMiddleware {
	m.blacklist = b
	return m
}

// Authenticate enforces bearer auth and populates the actor on the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if strings.TrimSpace(authHeader) == "" {
			jsonError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			jsonError(w, http.StatusUnauthorized, "Invalid authorization format")
			return
		}
		tokenString := parts[1]

		claims, err := m.parse(tokenString)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		if exp, ok := claims["exp"].(float64); ok {
			if time.Now().Unix() > int64(exp) {
				jsonError(w, http.StatusUnauthorized, "Token expired")
				return
			}
		}

		if m.blacklist != nil {
			revoked, err := m.blacklist.IsBlacklisted(r.Context(), tokenString)
			if err != nil {
				jsonError(w, http.StatusServiceUnavailable, "Token check unavailable")
				return
			}
			if revoked {
				jsonError(w, http.StatusUnauthorized, "Token revoked")
				return
			}
		}

		actorStr, ok := claims["user_id"].(string)
		if !ok {
			actorStr, ok = claims["sub"].(string)
		}
		if !ok {
			jsonError(w, http.StatusUnauthorized, "Invalid actor in token")
			return
		}
		actorID, err := uuid.Parse(actorStr)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "Invalid actor ID format")
			return
		}

		role, _ := claims["role"].(string)
		if role == "" {
			role = RoleMember
		}

		ctx := WithActor(r.Context(), actorID, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) parse(tokenString string) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(m.jwtSecret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Revoke blacklists a token this middleware would accept for the rest of its
// lifetime. Expired tokens are already refused, so revoking one is a no-op.
func (m *AuthMiddleware) Revoke(ctx context.Context, tokenString string) error {
	revoker, ok := m.blacklist.(TokenRevoker)
	if !ok {
		return errors.ErrRevocationOff
	}
	claims, err := m.parse(tokenString)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil
	}
	if err != nil {
		return errors.NewValidation("token", "is not a valid token")
	}
	ttl := MaxRevocation
	if exp, ok := claims["exp"].(float64); ok {
		if ttl = time.Until(time.Unix(int64(exp), 0)); ttl <= 0 {
			return nil
		}
	}
	return revoker.Blacklist(ctx, tokenString, ttl)
}

// RequireRole lets the request through only when the authenticated role is
// one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := RoleFromContext(r.Context())
			if !ok {
				jsonError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			jsonError(w, http.StatusForbidden, "Insufficient role")
		})
	}
}

// WithActor stores the acting member and role on ctx.
func WithActor(ctx context.Context, actorID uuid.UUID, role string) context.Context {
	ctx = context.WithValue(ctx, ctxActorIDKey, actorID)
	return context.WithValue(ctx, ctxRoleKey, role)
}

// ActorIDFromContext returns the authenticated actor's UUID from context.
func ActorIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ctxActorIDKey).(uuid.UUID)
	return id, ok
}

// RoleFromContext returns the authenticated actor's role from context.
func RoleFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(ctxRoleKey).(string)
	return s, ok
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// CORS reflects the request origin when it is in allowed. With no allowed
// origins configured every origin is reflected.
func CORS(allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if len(allowed) > 0 {
				for _, o := range allowed {
					if strings.EqualFold(o, origin) {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						w.Header().Set("Vary", "Origin")
						break
					}
				}
			} else if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, Idempotency-Key")
			w.Header().Set("Access-Control-Max-Age", "3600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
