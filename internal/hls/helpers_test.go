package hls

import (
	"testing"
	"time"

	"hls-live/internal/media"
)

var (
	videoOnly = media.Codecs{Video: media.CodecH264, VideoHeader: true}
	audioOnly = media.Codecs{Audio: media.CodecAAC, AudioHeader: true}
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestApp(t *testing.T, cfg Config) *Application {
	t.Helper()
	app, err := NewApplication("live", cfg)
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}
	return app
}

func defaultTestApp(t *testing.T) *Application {
	t.Helper()
	return newTestApp(t, Config{FragmentLength: 5 * time.Second, PlaylistLength: 30 * time.Second})
}

func videoFrame(pts uint64, key bool) *media.Frame {
	return media.NewFrame(media.Video, pts, 40, key, []byte{0x47, byte(pts), byte(pts >> 8)})
}

func audioFrame(pts uint64) *media.Frame {
	return media.NewFrame(media.Audio, pts, 23, false, []byte{0x47, 0x01})
}

// feed hands each frame to the session the way the ingest path does: the
// caller's reference is dropped once the session has taken its own.
func feed(t *testing.T, s *Session, codecs media.Codecs, frames ...*media.Frame) {
	t.Helper()
	for _, f := range frames {
		if err := s.Update(f, codecs); err != nil {
			t.Fatalf("Update(pts=%d): %v", f.PTS, err)
		}
		f.Release()
	}
}

// keyframes feeds one video keyframe per pts value.
func keyframes(t *testing.T, s *Session, pts ...uint64) {
	t.Helper()
	for _, p := range pts {
		feed(t, s, videoOnly, videoFrame(p, true))
	}
}
