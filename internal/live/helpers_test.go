package live

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"hls-live/internal/eventloop"
	"hls-live/internal/hls"
	"hls-live/internal/ingest"
	"hls-live/internal/mpegts"
	"hls-live/internal/notify"
)

var camKey = StreamKey{App: "live", Stream: "cam"}

type harness struct {
	t      *testing.T
	svc    *Service
	app    *hls.Application
	log    *slog.Logger
	events chan notify.Event

	// pending holds events received while waiting for another one.
	pending []notify.Event
}

func newHarness(t *testing.T, cfg hls.Config, opts ...Option) *harness {
	t.Helper()

	loop := eventloop.New(0)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})

	app, err := hls.NewApplication("live", cfg, hls.WithHeader(mpegts.ProgramHeader))
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}

	h := &harness{
		t:      t,
		app:    app,
		log:    slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})),
		events: make(chan notify.Event, 64),
	}

	n := 0
	opts = append([]Option{
		WithTokenSource(func() string { n++; return fmt.Sprintf("t%d", n) }),
		WithNotifier(notify.NotifierFunc(func(_ context.Context, ev notify.Event) error {
			h.events <- ev
			return nil
		})),
	}, opts...)
	h.svc = NewService(loop, []*hls.Application{app}, h.log, nil, opts...)
	return h
}

func defaultConfig() hls.Config {
	return hls.Config{FragmentLength: 5 * time.Second, PlaylistLength: 30 * time.Second}
}

// onLoop runs fn on the event loop and waits for it.
func (h *harness) onLoop(fn func()) {
	h.t.Helper()
	if err := h.svc.loop.Do(context.Background(), fn); err != nil {
		h.t.Fatalf("loop: %v", err)
	}
}

func (h *harness) startPublish(key StreamKey) {
	h.t.Helper()
	var err error
	h.onLoop(func() { err = h.svc.startPublish(key) })
	if err != nil {
		h.t.Fatalf("startPublish: %v", err)
	}
}

func (h *harness) send(key StreamKey, msgs ...*ingest.Message) {
	h.t.Helper()
	for _, m := range msgs {
		var err error
		h.onLoop(func() { err = h.svc.ingest(key, m) })
		if err != nil {
			h.t.Fatalf("ingest pts=%d: %v", m.PTS, err)
		}
	}
}

func (h *harness) play(key StreamKey) string {
	h.t.Helper()
	token, err := h.svc.Play(context.Background(), key.App, key.Stream)
	if err != nil {
		h.t.Fatalf("Play: %v", err)
	}
	return token
}

// waitEvent returns the next event of kind for session. Sinks run on their
// own goroutines, so events of other sessions may arrive first; those are
// kept for later calls.
func (h *harness) waitEvent(kind notify.Kind, session string) notify.Event {
	h.t.Helper()
	for i, ev := range h.pending {
		if ev.Kind == kind && ev.Session == session {
			h.pending = append(h.pending[:i], h.pending[i+1:]...)
			return ev
		}
	}
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-h.events:
			if ev.Kind == kind && ev.Session == session {
				return ev
			}
			h.pending = append(h.pending, ev)
		case <-deadline:
			h.t.Fatalf("no %s event for %s", kind, session)
		}
	}
}

// drainEvents returns every event received so far and not yet consumed.
func (h *harness) drainEvents() []notify.Event {
	out := h.pending
	h.pending = nil
	for {
		select {
		case ev := <-h.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func videoHeader() *ingest.Message {
	return &ingest.Message{Kind: ingest.KindVideoHeader, Codec: "h264"}
}

func keyframe(pts uint64) *ingest.Message {
	return &ingest.Message{Kind: ingest.KindVideo, PTS: pts, Duration: 40, Keyframe: true, Payload: []byte{0x47, byte(pts >> 8)}}
}

func interframe(pts uint64) *ingest.Message {
	return &ingest.Message{Kind: ingest.KindVideo, PTS: pts, Duration: 40, Payload: []byte{0x47, 0x00, 0x01}}
}

func keyframes(pts ...uint64) []*ingest.Message {
	out := make([]*ingest.Message, len(pts))
	for i, p := range pts {
		out[i] = keyframe(p)
	}
	return out
}
