package live

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"hls-live/internal/eventloop"
	"hls-live/internal/hls"
	"hls-live/internal/media"
	"hls-live/internal/notify"
	"hls-live/internal/platform/metrics"
)

var (
	// ErrUnknownApplication is returned for application names with no
	// configured scope.
	ErrUnknownApplication = errors.New("unknown application")

	// ErrStreamNotFound is returned when playing a stream that has no
	// publisher.
	ErrStreamNotFound = errors.New("stream not found")

	// ErrSessionNotFound is returned for unknown, closed or mismatched
	// session tokens.
	ErrSessionNotFound = errors.New("session not found")

	// ErrAlreadyPublishing is returned when a second publisher connects to a
	// stream.
	ErrAlreadyPublishing = errors.New("stream already has a publisher")

	// ErrInvalidIngest is returned for malformed publisher streams.
	ErrInvalidIngest = errors.New("invalid ingest stream")
)

const (
	notifyTimeout   = 5 * time.Second
	minPlayableWait = time.Second
)

type idleKey string

// Service attaches viewer sessions to published streams and drives every
// segmenter from a single event loop. Its exported methods may be called
// from any goroutine.
type Service struct {
	loop     *eventloop.Loop
	apps     map[string]*hls.Application
	store    Store
	viewers  map[string]*Viewer
	frames   *media.Pool
	pipeline *Pipeline
	notifier notify.Notifier
	log      *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	newToken func() string
	maxWait  time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithStore replaces the default in-memory stream registry.
func WithStore(st Store) Option {
	return func(s *Service) { s.store = st }
}

// WithNotifier sets the sink for playable and closed events.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock replaces time.Now for idle accounting and event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTokenSource replaces the session token generator.
func WithTokenSource(fn func() string) Option {
	return func(s *Service) { s.newToken = fn }
}

// WithMaxWait caps how long a playlist request waits for its session to
// become playable.
func WithMaxWait(d time.Duration) Option {
	return func(s *Service) { s.maxWait = d }
}

// WithFramePool sets the pool ingest frames are allocated from.
func WithFramePool(p *media.Pool) Option {
	return func(s *Service) { s.frames = p }
}

// NewService returns a Service for the given application scopes. Metrics may
// be nil to disable metric recording (e.g. in tests).
func NewService(loop *eventloop.Loop, apps []*hls.Application, log *slog.Logger, m *metrics.Metrics, opts ...Option) *Service {
	s := &Service{
		loop:     loop,
		apps:     make(map[string]*hls.Application, len(apps)),
		store:    NewInMemoryStore(),
		viewers:  make(map[string]*Viewer),
		frames:   media.NewPool(0),
		pipeline: NewPipeline(),
		notifier: notify.Nop,
		log:      log,
		metrics:  m,
		now:      time.Now,
		newToken: uuid.NewString,
	}
	for _, a := range apps {
		s.apps[a.Name] = a
	}
	for _, opt := range opts {
		opt(s)
	}

	s.pipeline.Handle(StagePlay, HandlerFunc(s.attach))
	s.pipeline.Handle(StageClose, HandlerFunc(s.detach))
	s.pipeline.Handle(StageFrame, HandlerFunc(s.fanOut))
	s.pipeline.Use(StagePlay, s.logStage)
	s.pipeline.Use(StageClose, s.logStage)
	if m != nil {
		s.pipeline.Use(StageFrame, countFrames(m))
		s.pipeline.Use(StageClose, countClosed(m))
	}
	return s
}

// Pipeline returns the stage pipeline. Middleware must be registered before
// the service handles traffic.
func (s *Service) Pipeline() *Pipeline {
	return s.pipeline
}

// Application returns the scope named app.
func (s *Service) Application(app string) (*hls.Application, error) {
	a, ok := s.apps[app]
	if !ok {
		return nil, ErrUnknownApplication
	}
	return a, nil
}

// PlayableWait returns how long a playlist request for app may wait for its
// session to become playable: fragment_length * min fragments, at least one
// second.
func (s *Service) PlayableWait(app string) (time.Duration, error) {
	a, err := s.Application(app)
	if err != nil {
		return 0, err
	}
	d := a.Config.FragmentLength * time.Duration(a.Config.MinFragments)
	if d < minPlayableWait {
		d = minPlayableWait
	}
	if s.maxWait > 0 && d > s.maxWait {
		d = s.maxWait
	}
	return d, nil
}

func (s *Service) do(ctx context.Context, fn func() error) error {
	var err error
	if derr := s.loop.Do(ctx, func() { err = fn() }); derr != nil {
		return derr
	}
	return err
}

// Play attaches a new viewer session to a published stream and returns its
// token.
func (s *Service) Play(ctx context.Context, app, stream string) (string, error) {
	var token string
	err := s.do(ctx, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, err := s.play(StreamKey{App: app, Stream: stream})
		if err != nil {
			return err
		}
		token = v.Token
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *Service) play(key StreamKey) (*Viewer, error) {
	a, ok := s.apps[key.App]
	if !ok {
		return nil, ErrUnknownApplication
	}
	st, ok := s.store.GetStream(key)
	if !ok || !st.Publishing {
		return nil, ErrStreamNotFound
	}

	var v *Viewer
	sess := hls.NewSession(a, key.Stream, s.newToken(),
		hls.WithClock(s.now),
		hls.OnPlayable(func(*hls.Session) { s.playable(v) }),
		hls.OnFragmentClosed(func(_ *hls.Session, f *hls.Fragment) { s.fragmentClosed(v, f) }),
	)
	v = newViewer(key, sess)
	s.viewers[v.Token] = v

	if err := s.pipeline.Run(&Event{Stage: StagePlay, Stream: st, Viewer: v}); err != nil {
		s.closeViewer(v, reasonFor(err))
		return nil, err
	}
	s.scheduleIdle(v, a.Config.IdleTimeout)
	return v, nil
}

// attach is the terminal play handler: the viewer joins the stream's fan-out
// and is first fed the join cache.
func (s *Service) attach(ev *Event) error {
	st, v := ev.Stream, ev.Viewer
	st.Viewers = append(st.Viewers, v)
	return st.cache.each(func(f *media.Frame) error {
		return v.Update(f, st.Codecs)
	})
}

// detach is the terminal close handler.
func (s *Service) detach(ev *Event) error {
	v := ev.Viewer
	if st := ev.Stream; st != nil {
		st.detach(v)
		if st.idle() {
			s.store.DeleteStream(st.Key)
		}
	}
	v.Close()
	v.signal()
	s.notify(notify.KindClosed, v, ev.Reason)
	return nil
}

// fanOut is the terminal frame handler: every attached viewer receives the
// frame in attach order, then the join cache keeps it.
func (s *Service) fanOut(ev *Event) error {
	st := ev.Stream

	var failed []*Viewer
	var errs []error
	for _, v := range st.Viewers {
		if err := v.Update(ev.Frame, st.Codecs); err != nil {
			failed = append(failed, v)
			errs = append(errs, err)
		}
	}
	for i, v := range failed {
		s.viewerLog(v).Warn("session aborted", slog.String("error", errs[i].Error()))
		s.closeViewer(v, reasonFor(errs[i]))
	}

	st.cache.add(ev.Frame, st.Codecs)
	return nil
}

func (s *Service) closeViewer(v *Viewer, reason string) {
	if cur, ok := s.viewers[v.Token]; !ok || cur != v {
		return
	}
	delete(s.viewers, v.Token)
	s.loop.Cancel(idleKey(v.Token))

	st, _ := s.store.GetStream(v.Key)
	if err := s.pipeline.Run(&Event{Stage: StageClose, Stream: st, Viewer: v, Reason: reason}); err != nil {
		s.viewerLog(v).Error("close handler failed", slog.String("error", err.Error()))
	}
}

func (s *Service) scheduleIdle(v *Viewer, d time.Duration) {
	s.loop.Schedule(idleKey(v.Token), d, func() { s.checkIdle(v) })
}

// checkIdle finalizes v if it saw no fragment close or playlist request
// within the idle timeout, and re-arms the timer otherwise.
func (s *Service) checkIdle(v *Viewer) {
	if cur, ok := s.viewers[v.Token]; !ok || cur != v {
		return
	}
	if v.IdleExpired() {
		s.viewerLog(v).Info("session idle timeout")
		s.closeViewer(v, ReasonTimeout)
		return
	}
	s.scheduleIdle(v, v.IdleDeadline().Sub(s.now())+time.Millisecond)
}

func (s *Service) playable(v *Viewer) {
	s.viewerLog(v).Info("session playable")
	if s.metrics != nil {
		s.metrics.IncSessionsPlayable()
	}
	s.notify(notify.KindPlayable, v, "")
	if v.Window().Len() >= 2 {
		v.signal()
	}
}

func (s *Service) fragmentClosed(v *Viewer, f *hls.Fragment) {
	if s.metrics != nil {
		s.metrics.IncFragmentsClosed()
	}
	s.viewerLog(v).Debug("fragment closed",
		slog.Uint64("fragment_id", f.ID),
		slog.Float64("duration", f.Duration),
		slog.Int("size", f.Length))
	if v.Playing() && v.Window().Len() >= 2 {
		v.signal()
	}
}

func (s *Service) notify(kind notify.Kind, v *Viewer, reason string) {
	ev := notify.Event{
		Kind:    kind,
		App:     v.Key.App,
		Stream:  v.Key.Stream,
		Session: v.Token,
		Reason:  reason,
		At:      s.now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, ev); err != nil {
			s.log.Warn("notification failed",
				slog.String("event", string(ev.Kind)),
				slog.String("session", ev.Session),
				slog.String("error", err.Error()))
		}
	}()
}

func (s *Service) viewer(key StreamKey, token string) (*Viewer, error) {
	v, ok := s.viewers[token]
	if !ok || v.Key != key {
		return nil, ErrSessionNotFound
	}
	return v, nil
}

// Playlist renders the session's playlist without waiting.
func (s *Service) Playlist(ctx context.Context, app, stream, token string) (string, error) {
	out, _, err := s.playlist(ctx, StreamKey{App: app, Stream: stream}, token)
	return out, err
}

// WaitPlaylist renders the session's playlist. While the session is not
// ready it waits up to PlayableWait for the playable notification before
// giving up with hls.ErrNotReady.
func (s *Service) WaitPlaylist(ctx context.Context, app, stream, token string) (string, error) {
	key := StreamKey{App: app, Stream: stream}
	out, ready, err := s.playlist(ctx, key, token)
	if !errors.Is(err, hls.ErrNotReady) {
		return out, err
	}

	wait, err := s.PlayableWait(app)
	if err != nil {
		return "", err
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ready:
	case <-t.C:
		return "", hls.ErrNotReady
	case <-ctx.Done():
		return "", ctx.Err()
	}

	out, _, err = s.playlist(ctx, key, token)
	return out, err
}

func (s *Service) playlist(ctx context.Context, key StreamKey, token string) (string, <-chan struct{}, error) {
	var (
		out   string
		ready <-chan struct{}
	)
	err := s.do(ctx, func() error {
		v, err := s.viewer(key, token)
		if err != nil {
			return err
		}
		ready = v.ready
		out, err = v.Playlist()
		return err
	})
	switch {
	case err == nil:
		return out, nil, nil
	case errors.Is(err, hls.ErrNotReady):
		return "", ready, err
	}
	return "", nil, err
}

// Fragment prepares the content of a fragment named "<stream>-<id>.ts" for
// the session. The caller must hand the content back through Release once
// the response is written.
func (s *Service) Fragment(ctx context.Context, app, stream, token, name string) (*hls.Content, error) {
	if !fragmentOf(name, stream) {
		return nil, hls.ErrNotFound
	}
	key := StreamKey{App: app, Stream: stream}

	res := make(chan *hls.Content, 1)
	err := s.do(ctx, func() error {
		var c *hls.Content
		defer func() { res <- c }()

		if err := ctx.Err(); err != nil {
			return err
		}
		v, err := s.viewer(key, token)
		if err != nil {
			return err
		}
		f, err := v.Find(name)
		if err != nil {
			return err
		}
		c = v.Prepare(f)
		return nil
	})
	if err != nil {
		// The task may still complete after the caller gave up.
		go func() {
			select {
			case c := <-res:
				if c != nil {
					s.Release(c)
				}
			case <-s.loop.Done():
			}
		}()
		return nil, err
	}
	return <-res, nil
}

func fragmentOf(name, stream string) bool {
	base, ok := strings.CutSuffix(name, ".ts")
	if !ok {
		return false
	}
	i := strings.LastIndexByte(base, '-')
	return i > 0 && base[:i] == stream
}

// Release returns a prepared fragment's reference on the event loop.
func (s *Service) Release(c *hls.Content) {
	s.loop.Submit(c.Release)
}

// Close detaches the session. Unknown or already closed sessions are not an
// error.
func (s *Service) Close(ctx context.Context, app, stream, token string) error {
	key := StreamKey{App: app, Stream: stream}
	return s.do(ctx, func() error {
		if v, err := s.viewer(key, token); err == nil {
			s.closeViewer(v, ReasonDetached)
		}
		return nil
	})
}

// Shutdown closes every session.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.do(ctx, func() error {
		all := make([]*Viewer, 0, len(s.viewers))
		for _, v := range s.viewers {
			all = append(all, v)
		}
		for _, v := range all {
			s.closeViewer(v, ReasonShutdown)
		}
		return nil
	})
}

// Gauges returns the current session, stream and pool counts.
func (s *Service) Gauges(ctx context.Context) (metrics.Gauges, error) {
	var g metrics.Gauges
	err := s.do(ctx, func() error {
		g.ActiveSessions = len(s.viewers)
		g.ActiveStreams = len(s.store.ListStreamKeys())
		for _, a := range s.apps {
			g.FragmentPoolFree += a.Pool.Stats().Free
		}
		return nil
	})
	if err != nil {
		return metrics.Gauges{}, err
	}
	return g, nil
}

func (s *Service) viewerLog(v *Viewer) *slog.Logger {
	return s.log.With(
		slog.String("app", v.Key.App),
		slog.String("stream", v.Key.Stream),
		slog.String("session", v.Token),
	)
}

func (s *Service) logStage(next StageHandler) StageHandler {
	return HandlerFunc(func(ev *Event) error {
		err := next.Handle(ev)
		switch {
		case err != nil:
			s.viewerLog(ev.Viewer).Warn(ev.Stage.String()+" failed", slog.String("error", err.Error()))
		case ev.Stage == StagePlay:
			s.viewerLog(ev.Viewer).Info("session attached")
		case ev.Stage == StageClose:
			s.viewerLog(ev.Viewer).Info("session closed", slog.String("reason", ev.Reason))
		}
		return err
	})
}

func countFrames(m *metrics.Metrics) Middleware {
	return func(next StageHandler) StageHandler {
		return HandlerFunc(func(ev *Event) error {
			m.IncFramesIngested()
			return next.Handle(ev)
		})
	}
}

func countClosed(m *metrics.Metrics) Middleware {
	return func(next StageHandler) StageHandler {
		return HandlerFunc(func(ev *Event) error {
			m.IncSessionsClosed(ev.Reason)
			return next.Handle(ev)
		})
	}
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, hls.ErrBackpressure):
		return ReasonBackpressure
	case errors.Is(err, hls.ErrPoolExhausted):
		return ReasonPoolExhausted
	}
	return ReasonError
}
