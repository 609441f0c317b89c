package hls

import "errors"

var (
	// ErrNotReady is returned when a playlist is requested before the window
	// holds two fragments. Callers should retry later.
	ErrNotReady = errors.New("playlist not ready")

	// ErrNotFound is returned for malformed, stale or future fragment names.
	ErrNotFound = errors.New("fragment not found")

	// ErrBackpressure is returned when the open fragment's content queue is
	// full. The queue depth is too small for the ingest rate and the session
	// cannot continue.
	ErrBackpressure = errors.New("fragment content queue full")

	// ErrPoolExhausted is returned when the application pool may not hand out
	// another fragment record.
	ErrPoolExhausted = errors.New("fragment pool exhausted")

	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("session closed")

	// ErrUnknownFrameType is returned for frames that are neither audio nor video.
	ErrUnknownFrameType = errors.New("unknown frame type")
)
