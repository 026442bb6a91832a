package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cleanops/cleanops/internal/gate"
	"github.com/cleanops/cleanops/internal/identity"
	"github.com/cleanops/cleanops/internal/platform/httpx"
	"github.com/cleanops/cleanops/internal/shared"
)

// MountTracker counts live gate components.
type MountTracker interface {
	TrackMount(delta int)
}

// Stream pushes gate decisions to the browser as server-sent events. Each
// connection mounts one gate component that re-evaluates whenever the
// session's identity changes, and disposes it when the client goes away.
type Stream struct {
	logger  *slog.Logger
	gate    *gate.Gate
	watcher identity.Watcher
	mounts  MountTracker
}

// NewStream constructs a Stream. mounts may be nil.
func NewStream(logger *slog.Logger, g *gate.Gate, watcher identity.Watcher, mounts MountTracker) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{logger: logger, gate: g, watcher: watcher, mounts: mounts}
}

// ServeHTTP implements http.Handler. Props come from the query string, as
// for the access API; redirect_to adds a one-time redirect event. The
// server write deadline is lifted for the life of the connection.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, httpx.ErrUnavailable)
		return
	}
	key := identity.ClientKey(sess)
	rc := http.NewResponseController(w)

	updates, cancel := s.watcher.Subscribe(key)
	defer cancel()

	props := gate.PropsFromQuery(r)
	var writeErr error
	send := func(event string, payload any) {
		if writeErr != nil {
			return
		}
		data, err := json.Marshal(payload)
		if err != nil {
			writeErr = err
			return
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			writeErr = err
			return
		}
		writeErr = rc.Flush()
	}

	c := s.gate.Mount(props,
		gate.NavigatorFunc(func(target string) { send("redirect", map[string]string{"to": target}) }),
		func(d gate.Decision) { send("decision", gate.NewAccessResponse(d)) })
	defer c.Dispose()
	if s.mounts != nil {
		s.mounts.TrackMount(1)
		defer s.mounts.TrackMount(-1)
	}

	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Warn("access stream: clear write deadline", slog.Any("error", err))
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	c.Apply(c.Epoch(), identity.FromContext(r.Context()))
	if writeErr != nil {
		s.logger.Warn("access stream: initial write", slog.Any("error", writeErr))
		return
	}
	c.Watch(r.Context(), updates)
	if writeErr != nil {
		s.logger.Debug("access stream closed", slog.Any("error", writeErr))
	}
}
