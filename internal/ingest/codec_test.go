package ingest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"hls-live/internal/media"
)

func TestReader_stream(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	in := []Message{
		{Kind: KindVideoHeader, Codec: "h264"},
		{Kind: KindVideo, PTS: 0, Duration: 40, Keyframe: true, Payload: []byte{0x47, 1, 2}},
		{Kind: KindAudio, PTS: 23, Duration: 23, Payload: []byte{0x47, 3}},
	}
	for i := range in {
		if err := w.Write(&in[i]); err != nil {
			t.Fatal(err)
		}
	}

	r := NewReader(&buf, 0)
	for i, want := range in {
		var got Message
		if err := r.Next(&got); err != nil {
			t.Fatalf("message %d: %v", i, err)
		}
		if got.Kind != want.Kind || got.PTS != want.PTS || got.Keyframe != want.Keyframe ||
			got.Codec != want.Codec || !bytes.Equal(got.Payload, want.Payload) {
			t.Errorf("message %d = %+v, want %+v", i, got, want)
		}
	}
	var m Message
	if err := r.Next(&m); err != io.EOF {
		t.Errorf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestReader_truncated(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf).Write(&Message{Kind: KindAudio, Payload: make([]byte, 32)})
	b := buf.Bytes()[:buf.Len()-4]

	var m Message
	if err := NewReader(bytes.NewReader(b), 0).Next(&m); err != io.ErrUnexpectedEOF {
		t.Errorf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestReader_too_large(t *testing.T) {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], 1<<20)

	var m Message
	err := NewReader(bytes.NewReader(prefix[:]), 1024).Next(&m)
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("expected ErrMessageTooLarge, got %v", err)
	}
}

func TestMessage_Apply(t *testing.T) {
	var c media.Codecs
	if err := (&Message{Kind: KindVideoHeader, Codec: "HEVC"}).Apply(&c); err != nil {
		t.Fatal(err)
	}
	if err := (&Message{Kind: KindAudioHeader, Codec: "aac"}).Apply(&c); err != nil {
		t.Fatal(err)
	}
	want := media.Codecs{Video: media.CodecH265, Audio: media.CodecAAC, VideoHeader: true, AudioHeader: true}
	if c != want {
		t.Errorf("codecs = %+v, want %+v", c, want)
	}

	if err := (&Message{Kind: KindAudioHeader, Codec: "opus"}).Apply(&c); !errors.Is(err, ErrUnknownCodec) {
		t.Errorf("expected ErrUnknownCodec, got %v", err)
	}
	if err := (&Message{Kind: KindVideo, Codec: "h264"}).Apply(&c); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

func TestMessage_FrameType(t *testing.T) {
	if ft, err := (&Message{Kind: KindAudio}).FrameType(); err != nil || ft != media.Audio {
		t.Errorf("audio = %v, %v", ft, err)
	}
	if _, err := (&Message{Kind: "data"}).FrameType(); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}
