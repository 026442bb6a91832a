package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/cleanops/cleanops/internal/rbac"
	"github.com/cleanops/cleanops/internal/shared"
)

// Source reports the identity state for a request.
type Source interface {
	Snapshot(ctx context.Context, r *http.Request) Snapshot
}

// UserLookup fetches the account bound to a session.
type UserLookup interface {
	FindUserByID(ctx context.Context, id int64) (*rbac.User, error)
}

// SessionSource derives snapshots from the cookie session placed in the
// request context by the session middleware. A request without a loaded
// session is unhydrated.
type SessionSource struct {
	users  UserLookup
	logger *slog.Logger
	group  singleflight.Group
}

// NewSessionSource constructs a SessionSource.
func NewSessionSource(users UserLookup, logger *slog.Logger) *SessionSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionSource{users: users, logger: logger}
}

// Snapshot implements Source.
func (s *SessionSource) Snapshot(ctx context.Context, r *http.Request) Snapshot {
	sess := shared.SessionFromContext(ctx)
	if sess == nil {
		return Snapshot{}
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return Anonymous()
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.logger.Warn("identity: malformed session user", slog.String("value", raw))
		return Anonymous()
	}

	v, err, _ := s.group.Do(raw, func() (any, error) {
		return s.users.FindUserByID(ctx, id)
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Anonymous()
		}
		s.logger.Warn("identity: user lookup", slog.Int64("user_id", id), slog.Any("error", err))
		return Pending()
	}
	user, _ := v.(*rbac.User)
	if user == nil {
		return Anonymous()
	}
	// v is shared between concurrent callers.
	copied := *user
	return Authenticated(&copied)
}

// Middleware stores the request's snapshot in its context so handlers and
// gates read one consistent observation per request.
func Middleware(src Source) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap := src.Snapshot(r.Context(), r)
			next.ServeHTTP(w, r.WithContext(ContextWithSnapshot(r.Context(), snap)))
		})
	}
}

const clientKeySession = "identity_client"

// ClientKey returns the broker key for a browser session. It survives
// session ID renewal at sign-in, so subscribers opened before sign-in still
// receive the update.
func ClientKey(sess *shared.Session) string {
	if sess == nil {
		return ""
	}
	if key := sess.Get(clientKeySession); key != "" {
		return key
	}
	key := uuid.NewString()
	sess.Set(clientKeySession, key)
	return key
}
