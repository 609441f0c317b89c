package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"hls-live/internal/ingest"
	"hls-live/internal/media"
)

// Publish makes the caller the stream's publisher and feeds every frame read
// from body into the stream until body ends. Only one publisher per stream
// is admitted; viewers stay attached when it leaves.
func (s *Service) Publish(ctx context.Context, app, stream string, body io.Reader) error {
	key := StreamKey{App: app, Stream: stream}
	if err := s.do(ctx, func() error { return s.startPublish(key) }); err != nil {
		return err
	}
	defer s.loop.Submit(func() { s.stopPublish(key) })

	r := ingest.NewReader(body, 0)
	for {
		m := new(ingest.Message)
		if err := r.Next(m); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrInvalidIngest, err)
		}
		if err := s.do(ctx, func() error { return s.ingest(key, m) }); err != nil {
			return err
		}
	}
}

func (s *Service) startPublish(key StreamKey) error {
	a, ok := s.apps[key.App]
	if !ok {
		return ErrUnknownApplication
	}
	st, ok := s.store.GetStream(key)
	if ok && st.Publishing {
		return ErrAlreadyPublishing
	}
	if !ok {
		st = newStreamState(key, a)
		s.store.SetStream(st)
	}
	st.Publishing = true
	st.Codecs = media.Codecs{}

	s.log.Info("publisher connected",
		slog.String("app", key.App),
		slog.String("stream", key.Stream),
		slog.Int("viewers", len(st.Viewers)))
	return nil
}

func (s *Service) stopPublish(key StreamKey) {
	st, ok := s.store.GetStream(key)
	if !ok {
		return
	}
	st.Publishing = false
	st.cache.reset()
	if st.idle() {
		s.store.DeleteStream(key)
	}
	s.log.Info("publisher disconnected",
		slog.String("app", key.App),
		slog.String("stream", key.Stream))
}

// ingest applies one publisher message on the event loop.
func (s *Service) ingest(key StreamKey, m *ingest.Message) error {
	st, ok := s.store.GetStream(key)
	if !ok || !st.Publishing {
		return ErrStreamNotFound
	}
	if m.IsHeader() {
		if err := m.Apply(&st.Codecs); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidIngest, err)
		}
		return nil
	}

	t, err := m.FrameType()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidIngest, err)
	}
	f := s.frames.Get(t, m.PTS, m.Duration, m.Keyframe, m.Payload)
	defer f.Release()
	return s.pipeline.Run(&Event{Stage: StageFrame, Stream: st, Frame: f})
}
