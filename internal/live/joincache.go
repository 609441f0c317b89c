package live

import (
	"hls-live/internal/hls"
	"hls-live/internal/media"
)

// joinCache keeps the frames a newly attached viewer needs to start at the
// live point: everything since the latest video keyframe, or the last
// playlist length of audio when the stream carries no video. A cached video
// group always starts with its keyframe.
type joinCache struct {
	frames    []*media.Frame
	audioSpan uint64 // ms
	max       int
}

func newJoinCache(cfg hls.Config) *joinCache {
	return &joinCache{
		audioSpan: uint64(cfg.PlaylistLength.Milliseconds()),
		max:       cfg.QueueDepth,
	}
}

// add caches f, taking a reference to it.
func (c *joinCache) add(f *media.Frame, codecs media.Codecs) {
	switch f.Type {
	case media.Video:
		if f.Keyframe {
			c.reset()
		} else if len(c.frames) == 0 {
			return
		}
	case media.Audio:
		if codecs.VideoHeader && len(c.frames) == 0 {
			return
		}
	default:
		return
	}

	if len(c.frames) >= c.max {
		if head := c.frames[0]; head.Type == media.Video && head.Keyframe {
			// The group outgrew the cache; a viewer cannot start without its
			// keyframe, so wait for the next one.
			c.reset()
			return
		}
		c.dropOldest(1)
	}
	c.frames = append(c.frames, f.Acquire())

	if f.Type == media.Audio && !codecs.VideoHeader {
		n := 0
		for n < len(c.frames) && f.PTS > c.frames[n].PTS && f.PTS-c.frames[n].PTS > c.audioSpan {
			n++
		}
		c.dropOldest(n)
	}
}

func (c *joinCache) dropOldest(n int) {
	if n == 0 {
		return
	}
	for _, f := range c.frames[:n] {
		f.Release()
	}
	rest := copy(c.frames, c.frames[n:])
	clear(c.frames[rest:])
	c.frames = c.frames[:rest]
}

// each calls fn for every cached frame, oldest first, stopping at the first
// error.
func (c *joinCache) each(fn func(*media.Frame) error) error {
	for _, f := range c.frames {
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func (c *joinCache) len() int {
	return len(c.frames)
}

// reset releases every cached frame.
func (c *joinCache) reset() {
	for i, f := range c.frames {
		f.Release()
		c.frames[i] = nil
	}
	c.frames = c.frames[:0]
}
