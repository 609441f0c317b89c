package hls

import "hls-live/internal/media"

// Fragment is one addressable media segment: an ordered, bounded queue of
// shared frames plus the metadata the playlist advertises.
type Fragment struct {
	ID            uint64
	Duration      float64 // seconds
	Discontinuity bool
	Length        int // payload bytes queued

	active  bool
	refs    int
	lastPTS uint64

	content   []*media.Frame
	q         ring
	pos, last int

	pool *Pool
}

func newFragment(capacity int, pool *Pool) *Fragment {
	// One spare slot distinguishes a full queue from an empty one.
	return &Fragment{
		content: make([]*media.Frame, capacity+1),
		q:       ring(capacity + 1),
		pool:    pool,
	}
}

// Active reports whether the fragment is still being filled.
func (f *Fragment) Active() bool {
	return f.active
}

// Refs returns the current reference count.
func (f *Fragment) Refs() int {
	return f.refs
}

// Cap returns the content queue capacity in frames.
func (f *Fragment) Cap() int {
	return int(f.q) - 1
}

// Len returns the number of queued frames.
func (f *Fragment) Len() int {
	return f.q.distance(f.pos, f.last)
}

// Frames returns the queued frames in arrival order without consuming them.
func (f *Fragment) Frames() []*media.Frame {
	out := make([]*media.Frame, 0, f.Len())
	for i := f.pos; i != f.last; i = f.q.next(i) {
		out = append(out, f.content[i])
	}
	return out
}

// push appends a frame, taking a reference to it.
func (f *Fragment) push(frame *media.Frame) error {
	next := f.q.next(f.last)
	if next == f.pos {
		return ErrBackpressure
	}
	f.content[f.last] = frame.Acquire()
	f.last = next
	f.Length += frame.Len()
	f.lastPTS = frame.PTS
	return nil
}

// Acquire takes an additional reference, e.g. for an in-flight response.
func (f *Fragment) Acquire() {
	if f.refs <= 0 {
		panic("hls: acquire of released fragment")
	}
	f.refs++
}

// Release drops one reference. The last release returns the record to its
// pool, which releases every queued frame.
func (f *Fragment) Release() {
	if f.refs <= 0 {
		panic("hls: release of released fragment")
	}
	f.refs--
	if f.refs == 0 {
		f.pool.put(f)
	}
}

func (f *Fragment) reset() {
	for i := f.pos; i != f.last; i = f.q.next(i) {
		f.content[i].Release()
		f.content[i] = nil
	}
	f.pos, f.last = 0, 0
	f.ID = 0
	f.Duration = 0
	f.Discontinuity = false
	f.Length = 0
	f.active = false
	f.lastPTS = 0
}
