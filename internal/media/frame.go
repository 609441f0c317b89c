package media

import "fmt"

// Type identifies the elementary stream a frame belongs to.
type Type uint8

const (
	Audio Type = iota + 1
	Video
)

func (t Type) String() string {
	switch t {
	case Audio:
		return "audio"
	case Video:
		return "video"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Frame is one encoded access unit shared by every fragment that queues it and
// by any in-flight response streaming it. The payload is immutable once the
// frame is handed out; ownership is tracked with Acquire/Release.
//
// Reference counts are not atomic. All Acquire and Release calls must happen
// on the goroutine that owns the live state (the event loop).
type Frame struct {
	Type     Type
	PTS      uint64 // milliseconds
	Duration uint64 // milliseconds
	Keyframe bool

	payload []byte
	refs    int
	pool    *Pool
}

// NewFrame returns an unpooled frame holding payload with a single reference.
// The caller must not modify payload afterwards.
func NewFrame(t Type, pts, duration uint64, keyframe bool, payload []byte) *Frame {
	return &Frame{
		Type:     t,
		PTS:      pts,
		Duration: duration,
		Keyframe: keyframe,
		payload:  payload,
		refs:     1,
	}
}

// Bytes returns the encoded payload. Callers must treat it as read-only.
func (f *Frame) Bytes() []byte {
	return f.payload
}

// Len returns the payload length in bytes.
func (f *Frame) Len() int {
	return len(f.payload)
}

// Refs returns the current reference count.
func (f *Frame) Refs() int {
	return f.refs
}

// Acquire takes an additional reference and returns f for chaining.
func (f *Frame) Acquire() *Frame {
	if f.refs <= 0 {
		panic("media: acquire of released frame")
	}
	f.refs++
	return f
}

// Release drops one reference. When the last reference goes away the frame is
// handed back to its pool, if it has one.
func (f *Frame) Release() {
	if f.refs <= 0 {
		panic("media: release of released frame")
	}
	f.refs--
	if f.refs > 0 {
		return
	}
	if f.pool != nil {
		f.pool.put(f)
	}
}
