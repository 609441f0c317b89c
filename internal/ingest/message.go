// Package ingest implements the publisher wire format: a stream of
// msgpack-encoded frame messages, each preceded by a 4-byte big-endian
// length.
package ingest

import (
	"errors"
	"fmt"
	"strings"

	"hls-live/internal/media"
)

// Message kinds.
const (
	KindVideo       = "video"
	KindAudio       = "audio"
	KindVideoHeader = "video_header"
	KindAudioHeader = "audio_header"
)

var (
	ErrUnknownKind     = errors.New("unknown message kind")
	ErrUnknownCodec    = errors.New("unknown codec")
	ErrMessageTooLarge = errors.New("message exceeds size limit")
)

// Message is one ingest wire message. Timestamps are milliseconds.
type Message struct {
	Kind     string `msgpack:"kind"`
	PTS      uint64 `msgpack:"pts"`
	Duration uint64 `msgpack:"duration,omitempty"`
	Keyframe bool   `msgpack:"keyframe,omitempty"`
	Codec    string `msgpack:"codec,omitempty"`
	Payload  []byte `msgpack:"payload,omitempty"`
}

// IsHeader reports whether m carries codec parameters rather than media.
func (m *Message) IsHeader() bool {
	return m.Kind == KindVideoHeader || m.Kind == KindAudioHeader
}

// FrameType maps a media message kind to its frame type.
func (m *Message) FrameType() (media.Type, error) {
	switch m.Kind {
	case KindVideo:
		return media.Video, nil
	case KindAudio:
		return media.Audio, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, m.Kind)
}

// Apply folds a header message into the stream's codec context.
func (m *Message) Apply(c *media.Codecs) error {
	id, err := ParseCodec(m.Codec)
	if err != nil {
		return err
	}
	switch m.Kind {
	case KindVideoHeader:
		c.Video = id
		c.VideoHeader = true
	case KindAudioHeader:
		c.Audio = id
		c.AudioHeader = true
	default:
		return fmt.Errorf("%w: %q is not a header", ErrUnknownKind, m.Kind)
	}
	return nil
}

// ParseCodec maps a codec name ("h264", "hevc", "aac", ...) to its id.
func ParseCodec(s string) (media.CodecID, error) {
	switch strings.ToLower(s) {
	case "h264", "avc":
		return media.CodecH264, nil
	case "h265", "hevc":
		return media.CodecH265, nil
	case "aac":
		return media.CodecAAC, nil
	case "mp3":
		return media.CodecMP3, nil
	}
	return media.CodecNone, fmt.Errorf("%w: %q", ErrUnknownCodec, s)
}
