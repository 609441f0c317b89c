package live

import (
	"hls-live/internal/hls"
	"hls-live/internal/media"
)

// StreamKey uniquely identifies a live stream within the server.
type StreamKey struct {
	App    string
	Stream string
}

func (k StreamKey) String() string {
	return k.App + "/" + k.Stream
}

// Close reasons reported to notification sinks and metrics.
const (
	ReasonDetached      = "detached"
	ReasonTimeout       = "timeout"
	ReasonBackpressure  = "backpressure"
	ReasonPoolExhausted = "pool_exhausted"
	ReasonShutdown      = "shutdown"
	ReasonError         = "error"
)

// StreamState is the in-memory representation of a stream: its publisher
// status, codec context, join cache and attached viewers in attach order.
// It lives on the event loop.
type StreamState struct {
	Key        StreamKey
	App        *hls.Application
	Codecs     media.Codecs
	Publishing bool
	Viewers    []*Viewer

	cache *joinCache
}

func newStreamState(key StreamKey, app *hls.Application) *StreamState {
	return &StreamState{
		Key:   key,
		App:   app,
		cache: newJoinCache(app.Config),
	}
}

func (st *StreamState) detach(v *Viewer) {
	for i, x := range st.Viewers {
		if x == v {
			st.Viewers = append(st.Viewers[:i], st.Viewers[i+1:]...)
			return
		}
	}
}

// idle reports whether nothing keeps the stream alive.
func (st *StreamState) idle() bool {
	return !st.Publishing && len(st.Viewers) == 0
}

// Viewer is an attached HLS session plus the live-layer bookkeeping around it.
type Viewer struct {
	*hls.Session
	Key StreamKey

	ready     chan struct{}
	signalled bool
}

func newViewer(key StreamKey, s *hls.Session) *Viewer {
	return &Viewer{Session: s, Key: key, ready: make(chan struct{})}
}

// signal wakes playlist requests waiting for the viewer to become ready.
func (v *Viewer) signal() {
	if !v.signalled {
		v.signalled = true
		close(v.ready)
	}
}
