package live

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"hls-live/internal/hls"

	"github.com/go-chi/chi/v5"
)

const (
	playlistContentType = "application/vnd.apple.mpegurl"
	fragmentContentType = "video/mp2t"
)

// Handler exposes the viewer and publisher HTTP endpoints using go-chi.
type Handler struct {
	svc *Service
	log *slog.Logger
}

// NewHandler returns a Handler that uses the given Service and Logger. Metrics
// are recorded by the service pipeline and the router middleware.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes mounts the endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/{app}", func(r chi.Router) {
		r.Get("/{file}", h.Serve)
		r.Post("/{stream}/publish", h.Publish)
		r.Delete("/{stream}/sessions/{session}", h.CloseSession)
	})
}

// Serve handles GET /{app}/{stream}.m3u8 and GET /{app}/{stream}-{id}.ts.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	switch {
	case strings.HasSuffix(file, ".m3u8"):
		h.Playlist(w, r, strings.TrimSuffix(file, ".m3u8"))
	case strings.HasSuffix(file, ".ts"):
		h.Fragment(w, r, file)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// Playlist serves a session's playlist. Requests without a session token
// attach a new session and are redirected to the tokenized URL.
func (h *Handler) Playlist(w http.ResponseWriter, r *http.Request, stream string) {
	app := chi.URLParam(r, "app")
	if stream == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	token := r.URL.Query().Get("session")
	if token == "" {
		token, err := h.svc.Play(r.Context(), app, stream)
		if err != nil {
			h.writeError(w, err, "play")
			return
		}
		q := url.Values{"session": {token}}
		http.Redirect(w, r, r.URL.Path+"?"+q.Encode(), http.StatusFound)
		return
	}

	m3u8, err := h.svc.WaitPlaylist(r.Context(), app, stream, token)
	if err != nil {
		if errors.Is(err, hls.ErrNotReady) {
			h.retryLater(w, app)
			return
		}
		h.writeError(w, err, "playlist")
		return
	}

	w.Header().Set("Content-Type", playlistContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(m3u8))
}

// Fragment serves the content of one fragment of the session's window.
func (h *Handler) Fragment(w http.ResponseWriter, r *http.Request, name string) {
	app := chi.URLParam(r, "app")
	token := r.URL.Query().Get("session")
	if token == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	base := strings.TrimSuffix(name, ".ts")
	i := strings.LastIndexByte(base, '-')
	if i <= 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	stream := base[:i]

	c, err := h.svc.Fragment(r.Context(), app, stream, token, name)
	if err != nil {
		h.writeError(w, err, "fragment")
		return
	}
	defer h.svc.Release(c)

	w.Header().Set("Content-Type", fragmentContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(c.Size(), 10))
	w.WriteHeader(http.StatusOK)
	if _, err := c.WriteTo(w); err != nil {
		h.log.Debug("fragment write aborted",
			slog.String("app", app),
			slog.String("stream", stream),
			slog.String("session", token),
			slog.Uint64("fragment_id", c.Fragment().ID),
			slog.String("error", err.Error()))
	}
}

// CloseSession handles DELETE /{app}/{stream}/sessions/{session}.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	app := chi.URLParam(r, "app")
	stream := chi.URLParam(r, "stream")
	token := chi.URLParam(r, "session")

	if err := h.svc.Close(r.Context(), app, stream, token); err != nil {
		h.writeError(w, err, "close")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Publish handles POST /{app}/{stream}/publish. The body is the ingest
// message stream; the response is written once the publisher disconnects.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	app := chi.URLParam(r, "app")
	stream := chi.URLParam(r, "stream")

	if err := h.svc.Publish(r.Context(), app, stream, r.Body); err != nil {
		h.writeError(w, err, "publish")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) retryLater(w http.ResponseWriter, app string) {
	retry := 1
	if a, err := h.svc.Application(app); err == nil {
		retry = int(math.Ceil(a.Config.FragmentLength.Seconds()))
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	w.WriteHeader(http.StatusServiceUnavailable)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrUnknownApplication),
		errors.Is(err, ErrStreamNotFound),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, hls.ErrNotFound),
		errors.Is(err, hls.ErrSessionClosed):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, ErrAlreadyPublishing):
		h.log.Info(op+" rejected", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusConflict)
	case errors.Is(err, ErrInvalidIngest):
		h.log.Info(op+" rejected", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
	default:
		h.log.Error(op+" failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
	}
}
