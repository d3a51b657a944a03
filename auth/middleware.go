package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/antonlindstrom/pgstore"
	"github.com/gorilla/sessions"
	"github.com/nikhilsahni7/TourDesk/logger"
	"github.com/nikhilsahni7/TourDesk/models"
	"go.uber.org/zap"
)

const SessionName = "tourdesk-session"

// Identity is the authenticated caller. Handlers read it once and pass it
// to the operations they invoke.
type Identity struct {
	UserID uint
	Email  string
	Role   models.Role
}

func (id Identity) HasRole(roles ...models.Role) bool {
	for _, r := range roles {
		if id.Role == r {
			return true
		}
	}
	return false
}

// CanModify reports whether the caller may edit content authored by
// authorID.
func (id Identity) CanModify(authorID uint) bool {
	return id.Role == models.RoleAdmin || id.UserID == authorID
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// NewSessionStore opens the Postgres-backed cookie session store.
func NewSessionStore(databaseURL, key string) (*pgstore.PGStore, error) {
	return pgstore.NewPGStore(databaseURL, []byte(key))
}

// Authenticator resolves the caller from a bearer token, falling back to
// the session cookie.
type Authenticator struct {
	tokens   *Tokens
	sessions sessions.Store
}

func NewAuthenticator(tokens *Tokens, store sessions.Store) *Authenticator {
	return &Authenticator{tokens: tokens, sessions: store}
}

func (a *Authenticator) identify(r *http.Request) (Identity, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return Identity{}, false
		}
		claims, err := a.tokens.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			logger.FromContext(r.Context()).Debug("Invalid bearer token", zap.Error(err))
			return Identity{}, false
		}
		return Identity{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}, true
	}

	if a.sessions == nil {
		return Identity{}, false
	}
	session, err := a.sessions.Get(r, SessionName)
	if err != nil {
		return Identity{}, false
	}
	if authed, ok := session.Values["authenticated"].(bool); !ok || !authed {
		return Identity{}, false
	}
	userID, ok := session.Values["user_id"].(uint)
	if !ok {
		return Identity{}, false
	}
	role, _ := session.Values["role"].(string)
	email, _ := session.Values["email"].(string)
	return Identity{UserID: userID, Email: email, Role: models.Role(role)}, true
}

// Require rejects unauthenticated requests with 401 and, when roles are
// given, callers holding none of them with 403.
func (a *Authenticator) Require(next http.HandlerFunc, roles ...models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := a.identify(r)
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if len(roles) > 0 && !id.HasRole(roles...) {
			writeJSONError(w, http.StatusForbidden, "Insufficient permissions")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	}
}

// StartSession stores the caller in the session cookie.
func (a *Authenticator) StartSession(w http.ResponseWriter, r *http.Request, user *models.User) error {
	if a.sessions == nil {
		return nil
	}
	session, err := a.sessions.New(r, SessionName)
	if err != nil && session == nil {
		return err
	}
	session.Values["authenticated"] = true
	session.Values["user_id"] = user.ID
	session.Values["email"] = user.Email
	session.Values["role"] = string(user.Role)
	return session.Save(r, w)
}

func (a *Authenticator) ClearSession(w http.ResponseWriter, r *http.Request) error {
	if a.sessions == nil {
		return nil
	}
	session, _ := a.sessions.Get(r, SessionName)
	if session == nil {
		return nil
	}
	session.Options.MaxAge = -1
	session.Values["authenticated"] = false
	delete(session.Values, "user_id")
	return session.Save(r, w)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
