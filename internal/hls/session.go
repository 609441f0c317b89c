package hls

import (
	"time"

	"hls-live/internal/media"
)

// Session is one viewer's segmenter state: its fragment window, the
// fragment being filled, and the playable/idle bookkeeping.
//
// A Session is not safe for concurrent use. The live layer drives every
// session of a process from a single event loop goroutine.
type Session struct {
	Token  string
	Stream string

	app    *Application
	window *Window
	codecs media.Codecs
	header []byte

	opened  bool
	fragTS  uint64
	playing bool
	closed  bool

	lastActive time.Time
	now        func() time.Time
	onPlayable func(*Session)
	onClose    func(*Session, *Fragment)
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithClock replaces time.Now for idle accounting.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// OnPlayable registers a hook fired exactly once, when the window first
// holds the application's minimum number of fragments.
func OnPlayable(fn func(*Session)) SessionOption {
	return func(s *Session) { s.onPlayable = fn }
}

// OnFragmentClosed registers a hook fired after every fragment close, once
// the window has advanced.
func OnFragmentClosed(fn func(*Session, *Fragment)) SessionOption {
	return func(s *Session) { s.onClose = fn }
}

// NewSession attaches a viewer session for stream to the application scope.
func NewSession(app *Application, stream, token string, opts ...SessionOption) *Session {
	s := &Session{
		Token:  token,
		Stream: stream,
		app:    app,
		window: NewWindow(app.Config.WindowFragments()),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastActive = s.now()
	return s
}

// Application returns the scope the session belongs to.
func (s *Session) Application() *Application {
	return s.app
}

// Window returns the session's fragment window.
func (s *Session) Window() *Window {
	return s.window
}

// Playing reports whether the playable notification has fired.
func (s *Session) Playing() bool {
	return s.playing
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	return s.closed
}

// Opened reports whether a fragment is currently being filled.
func (s *Session) Opened() bool {
	return s.opened
}

// Touch records viewer or segmenter activity for idle accounting.
func (s *Session) Touch() {
	s.lastActive = s.now()
}

// IdleDeadline returns the moment the session expires without further
// activity.
func (s *Session) IdleDeadline() time.Time {
	return s.lastActive.Add(s.app.Config.IdleTimeout)
}

// IdleExpired reports whether the idle timeout has elapsed since the last
// fragment close or playlist request.
func (s *Session) IdleExpired() bool {
	return s.now().Sub(s.lastActive) > s.app.Config.IdleTimeout
}

// Update runs the boundary detector for the next frame and, if a fragment is
// open afterwards, appends the frame to it. Frames that arrive before the
// first boundary are skipped.
func (s *Session) Update(frame *media.Frame, codecs media.Codecs) error {
	if s.closed {
		return ErrSessionClosed
	}

	var boundary bool
	switch frame.Type {
	case media.Audio:
		// Audio only cuts until video parameters are known.
		boundary = !codecs.VideoHeader
	case media.Video:
		boundary = frame.Keyframe && (!codecs.AudioHeader || !s.opened)
	default:
		return ErrUnknownFrameType
	}
	s.codecs = codecs

	if err := s.updateFragment(frame.PTS, boundary); err != nil {
		return err
	}
	if !s.opened {
		return nil
	}
	return s.window.Active().push(frame)
}

// Close drains the window, releasing every fragment the session still
// references. It is idempotent.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if s.opened {
		s.window.Active().active = false
		s.opened = false
	}
	s.window.Drain()
}
