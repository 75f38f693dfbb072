package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ecomsec/scanhub/internal/engine"
)

type contextKey string

const actorKey contextKey = "actor"

// authenticate verifies the bearer token and stores the resulting actor
// on the request context. Token issuance belongs to the external auth
// service; this side only verifies the signature and reads the claims.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			respondError(w, r, http.StatusUnauthorized, "Authentication required")
			return
		}

		actor, err := s.parseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			respondError(w, r, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), actorKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// parseToken validates an HMAC-signed JWT and extracts the actor claims.
func (s *Server) parseToken(tokenStr string) (engine.Actor, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return engine.Actor{}, fmt.Errorf("httpapi: parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return engine.Actor{}, fmt.Errorf("httpapi: unexpected claims type %T", token.Claims)
	}

	actor := engine.Actor{
		ID:       stringClaim(claims, "user_id"),
		Username: stringClaim(claims, "username"),
		Role:     stringClaim(claims, "role"),
	}
	if actor.ID == "" {
		return engine.Actor{}, fmt.Errorf("httpapi: token has no user_id claim")
	}
	return actor, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}

// requireScanManager gates scan start/cancel and finding resolution to
// admins and security analysts.
func (s *Server) requireScanManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r.Context())
		if !ok {
			respondError(w, r, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !actor.CanManageScans() {
			respondError(w, r, http.StatusForbidden, "Insufficient permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// actorFrom returns the authenticated actor stored by authenticate.
func actorFrom(ctx context.Context) (engine.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(engine.Actor)
	return actor, ok
}
