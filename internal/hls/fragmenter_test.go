package hls

import (
	"errors"
	"testing"
	"time"

	"hls-live/internal/media"
)

func TestFragmenter_plain_cuts_on_keyframe_after_target(t *testing.T) {
	s := NewSession(defaultTestApp(t), "cam", "tok")

	feed(t, s, videoOnly,
		videoFrame(0, true),
		videoFrame(2000, false),
		videoFrame(4000, false),
		videoFrame(6000, true),
	)

	w := s.Window()
	if w.Len() != 1 {
		t.Fatalf("expected exactly one closed fragment, got %d", w.Len())
	}
	f := w.Get(0)
	if f.ID != 0 || f.Duration != 6.0 {
		t.Errorf("closed fragment id=%d duration=%v, want id 0 duration 6.0", f.ID, f.Duration)
	}
	if f.Len() != 3 {
		t.Errorf("closed fragment holds %d frames, want 3", f.Len())
	}
	if a := w.Active(); a == nil || a.ID != 1 || !a.Active() {
		t.Errorf("expected open fragment 1, got %+v", a)
	}
}

func TestFragmenter_plain_suppresses_short_fragments(t *testing.T) {
	s := NewSession(defaultTestApp(t), "cam", "tok")

	keyframes(t, s, 0, 1000, 2000, 3000, 4000)
	if s.Window().Len() != 0 {
		t.Errorf("keyframes below target length must not cut, got %d fragments", s.Window().Len())
	}
	if got := s.Window().Active().Duration; got != 4.0 {
		t.Errorf("open fragment duration = %v, want 4.0", got)
	}
}

func TestFragmenter_aligned_snaps_to_buckets(t *testing.T) {
	app := newTestApp(t, Config{
		FragmentLength: 5 * time.Second,
		PlaylistLength: 30 * time.Second,
		Slicing:        SlicingAligned,
	})
	s := NewSession(app, "cam", "tok")

	keyframes(t, s, 0, 4800)
	if s.Window().Len() != 0 {
		t.Fatalf("keyframe in the same bucket must not cut, got %d fragments", s.Window().Len())
	}

	keyframes(t, s, 5200)
	if s.Window().Len() != 1 {
		t.Fatalf("keyframe in a new bucket must cut, got %d fragments", s.Window().Len())
	}
	if got := s.Window().Get(0).Duration; got != 4.8 {
		t.Errorf("aligned fragment duration = %v, want 4.8", got)
	}
}

func TestFragmenter_aligned_opens_at_first_keyframe(t *testing.T) {
	app := newTestApp(t, Config{
		FragmentLength: 5 * time.Second,
		PlaylistLength: 30 * time.Second,
		Slicing:        SlicingAligned,
	})
	s := NewSession(app, "cam", "tok")

	feed(t, s, videoOnly, videoFrame(3000, false), videoFrame(7000, true))
	if !s.Opened() {
		t.Fatal("first keyframe must open a fragment")
	}
	if f := s.Window().Active(); f.ID != 0 || f.Len() != 1 {
		t.Errorf("open fragment id=%d frames=%d, want id 0 holding the keyframe", f.ID, f.Len())
	}

	feed(t, s, videoOnly, videoFrame(9900, true), videoFrame(10100, true))
	if s.Window().Len() != 1 {
		t.Fatalf("expected one closed fragment, got %d", s.Window().Len())
	}
	if got := s.Window().Get(0).Duration; got != 2.9 {
		t.Errorf("duration = %v, want 2.9 (anchored at 7000)", got)
	}
}

func TestFragmenter_forced_split_is_discontinuous(t *testing.T) {
	s := NewSession(defaultTestApp(t), "cam", "tok")

	t.Run("beyond_max_fragment_length", func(t *testing.T) {
		feed(t, s, videoOnly, videoFrame(0, true), videoFrame(51000, false))
		if s.Window().Len() != 1 {
			t.Fatalf("expected forced close, got %d fragments", s.Window().Len())
		}
		if !s.Window().Active().Discontinuity {
			t.Error("fragment opened by a forced split must be discontinuous")
		}
	})

	t.Run("clock_regression", func(t *testing.T) {
		feed(t, s, videoOnly, videoFrame(50000, false))
		if s.Window().Len() != 1 {
			t.Fatalf("regression within slack must not cut, got %d fragments", s.Window().Len())
		}
		feed(t, s, videoOnly, videoFrame(48000, false))
		if s.Window().Len() != 2 {
			t.Fatalf("regression beyond slack must cut, got %d fragments", s.Window().Len())
		}
		if !s.Window().Active().Discontinuity {
			t.Error("fragment after clock regression must be discontinuous")
		}
	})
}

func TestFragmenter_regular_cut_is_continuous(t *testing.T) {
	s := NewSession(defaultTestApp(t), "cam", "tok")
	keyframes(t, s, 0, 5000)

	if !s.Window().Get(0).Discontinuity {
		t.Error("first fragment of a session starts a discontinuity")
	}
	if s.Window().Active().Discontinuity {
		t.Error("fragment opened on a keyframe boundary must not be discontinuous")
	}
}

func TestFragmenter_skips_frames_before_first_boundary(t *testing.T) {
	s := NewSession(defaultTestApp(t), "cam", "tok")

	f := videoFrame(0, false)
	if err := s.Update(f, videoOnly); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if s.Opened() {
		t.Error("non-keyframe must not open a fragment")
	}
	if f.Refs() != 1 {
		t.Errorf("skipped frame must not be retained, refs = %d", f.Refs())
	}
}

func TestFragmenter_audio_only_stream(t *testing.T) {
	s := NewSession(defaultTestApp(t), "radio", "tok")

	for pts := uint64(0); pts <= 10000; pts += 1000 {
		feed(t, s, audioOnly, audioFrame(pts))
	}
	if s.Window().Len() != 2 {
		t.Fatalf("expected two closed audio fragments, got %d", s.Window().Len())
	}
	if d := s.Window().Get(0).Duration; d != 5.0 {
		t.Errorf("audio fragment duration = %v, want 5.0", d)
	}
}

func TestFragmenter_audio_does_not_cut_video_stream(t *testing.T) {
	s := NewSession(defaultTestApp(t), "cam", "tok")
	av := media.Codecs{Video: media.CodecH264, Audio: media.CodecAAC, VideoHeader: true, AudioHeader: true}

	feed(t, s, av, videoFrame(0, true))
	for pts := uint64(1000); pts <= 9000; pts += 1000 {
		feed(t, s, av, audioFrame(pts))
	}
	if s.Window().Len() != 0 {
		t.Errorf("audio frames must not cut once video parameters are known, got %d", s.Window().Len())
	}
}

func TestFragmenter_content_length_matches_frames(t *testing.T) {
	s := NewSession(defaultTestApp(t), "cam", "tok")

	frames := []*media.Frame{
		media.NewFrame(media.Video, 0, 40, true, make([]byte, 188)),
		media.NewFrame(media.Video, 40, 40, false, make([]byte, 376)),
		media.NewFrame(media.Audio, 60, 23, false, make([]byte, 188*5)),
	}
	feed(t, s, videoOnly, frames...)

	f := s.Window().Active()
	sum := 0
	for _, fr := range f.Frames() {
		sum += fr.Len()
	}
	if sum != f.Length || f.Length != 188+376+188*5 {
		t.Errorf("fragment length %d, frames sum %d", f.Length, sum)
	}
	for _, fr := range frames {
		if fr.Refs() != 1 {
			t.Errorf("queued frame refs = %d, want 1 (held by the fragment)", fr.Refs())
		}
	}
}

func TestFragmenter_backpressure(t *testing.T) {
	app := newTestApp(t, Config{
		FragmentLength: 5 * time.Second,
		PlaylistLength: 30 * time.Second,
		QueueDepth:     2,
	})
	s := NewSession(app, "cam", "tok")
	feed(t, s, videoOnly, videoFrame(0, true), videoFrame(40, false))

	f := videoFrame(80, false)
	defer f.Release()
	if err := s.Update(f, videoOnly); !errors.Is(err, ErrBackpressure) {
		t.Fatalf("expected ErrBackpressure, got %v", err)
	}
	if f.Refs() != 1 {
		t.Errorf("rejected frame must not be retained, refs = %d", f.Refs())
	}
}

func TestFragmenter_pool_exhausted(t *testing.T) {
	app := newTestApp(t, Config{
		FragmentLength: 5 * time.Second,
		PlaylistLength: 30 * time.Second,
		MaxFragments:   1,
	})
	s := NewSession(app, "cam", "tok")
	keyframes(t, s, 0)

	f := videoFrame(5000, true)
	defer f.Release()
	if err := s.Update(f, videoOnly); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}
}

func TestFragmenter_unknown_frame_type(t *testing.T) {
	s := NewSession(defaultTestApp(t), "cam", "tok")
	f := media.NewFrame(media.Type(9), 0, 0, false, nil)
	if err := s.Update(f, videoOnly); !errors.Is(err, ErrUnknownFrameType) {
		t.Errorf("expected ErrUnknownFrameType, got %v", err)
	}
}

func TestSession_playable_fires_once(t *testing.T) {
	calls := 0
	s := NewSession(defaultTestApp(t), "cam", "tok", OnPlayable(func(*Session) { calls++ }))

	keyframes(t, s, 0, 5000)
	if s.Playing() || calls != 0 {
		t.Fatalf("one fragment must not be playable (playing=%v calls=%d)", s.Playing(), calls)
	}

	keyframes(t, s, 10000)
	if !s.Playing() || calls != 1 {
		t.Fatalf("second close must make the session playable (playing=%v calls=%d)", s.Playing(), calls)
	}

	keyframes(t, s, 15000, 20000, 25000, 30000, 35000, 40000, 45000)
	if calls != 1 {
		t.Errorf("playable hook fired %d times, want 1", calls)
	}
}

func TestSession_idle_timeout(t *testing.T) {
	cfg := Config{
		FragmentLength: 3 * time.Second,
		PlaylistLength: 30 * time.Second,
		IdleTimeout:    4 * time.Second,
	}

	t.Run("no_closes_expires", func(t *testing.T) {
		clk := newFakeClock()
		s := NewSession(newTestApp(t, cfg), "cam", "tok", WithClock(clk.now))
		keyframes(t, s, 0)

		clk.advance(5 * time.Second)
		if !s.IdleExpired() {
			t.Error("session without fragment closes for 5s must expire")
		}
	})

	t.Run("regular_closes_keep_alive", func(t *testing.T) {
		clk := newFakeClock()
		s := NewSession(newTestApp(t, cfg), "cam", "tok", WithClock(clk.now))
		keyframes(t, s, 0)

		for i := uint64(1); i <= 10; i++ {
			clk.advance(3 * time.Second)
			if s.IdleExpired() {
				t.Fatalf("session expired at iteration %d despite closes every 3s", i)
			}
			keyframes(t, s, i*3000)
		}
		if want := clk.now().Add(4 * time.Second); !s.IdleDeadline().Equal(want) {
			t.Errorf("IdleDeadline = %v, want %v", s.IdleDeadline(), want)
		}
	})
}

func TestSession_close_releases_everything(t *testing.T) {
	app := defaultTestApp(t)
	s := NewSession(app, "cam", "tok")

	held := videoFrame(0, true)
	held.Acquire()
	feed(t, s, videoOnly, held)
	keyframes(t, s, 5000, 10000)

	s.Close()
	s.Close()

	if st := app.Pool.Stats(); st.InUse != 0 || st.Free != st.Allocated {
		t.Errorf("pool after close: %+v", st)
	}
	if held.Refs() != 1 {
		t.Errorf("frame refs after close = %d, want 1", held.Refs())
	}
	f := videoFrame(15000, true)
	defer f.Release()
	if err := s.Update(f, videoOnly); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Update after close: got %v", err)
	}
}

func TestSession_fragment_closed_hook(t *testing.T) {
	var closed []uint64
	s := NewSession(defaultTestApp(t), "cam", "tok", OnFragmentClosed(func(_ *Session, f *Fragment) {
		if f.Active() {
			t.Error("hook saw an active fragment")
		}
		closed = append(closed, f.ID)
	}))

	keyframes(t, s, 0, 5000, 10000, 15000)
	if len(closed) != 3 || closed[0] != 0 || closed[2] != 2 {
		t.Errorf("closed = %v, want [0 1 2]", closed)
	}
}
