package media

// DefaultPoolSize bounds how many released frames a Pool keeps for reuse.
const DefaultPoolSize = 1024

// Pool recycles Frame records and their payload buffers so the ingest path
// does not allocate per access unit. Like Frame, it is owned by a single
// goroutine.
type Pool struct {
	free    []*Frame
	maxFree int
}

// NewPool returns a pool that retains at most maxFree released frames.
// If maxFree <= 0, DefaultPoolSize is used.
func NewPool(maxFree int) *Pool {
	if maxFree <= 0 {
		maxFree = DefaultPoolSize
	}
	return &Pool{maxFree: maxFree}
}

// Get returns a frame with one reference whose payload is a copy of payload.
func (p *Pool) Get(t Type, pts, duration uint64, keyframe bool, payload []byte) *Frame {
	var f *Frame
	if n := len(p.free); n > 0 {
		f = p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
	} else {
		f = &Frame{pool: p}
	}

	f.Type = t
	f.PTS = pts
	f.Duration = duration
	f.Keyframe = keyframe
	f.payload = append(f.payload[:0], payload...)
	f.refs = 1
	return f
}

// Free returns the number of frames waiting for reuse.
func (p *Pool) Free() int {
	return len(p.free)
}

func (p *Pool) put(f *Frame) {
	if len(p.free) >= p.maxFree {
		f.payload = nil
		return
	}
	p.free = append(p.free, f)
}
