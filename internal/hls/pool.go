package hls

// Pool is the fragment allocator of one application scope. Released
// fragments are kept on a free stack and handed out again, so rolling the
// window does not allocate on the ingest path.
type Pool struct {
	free      []*Fragment
	capacity  int
	limit     int
	inUse     int
	allocated int
}

// PoolStats is a snapshot of allocator counters.
type PoolStats struct {
	Free      int
	InUse     int
	Allocated int
}

// NewPool returns a pool of fragments whose content queues hold capacity
// frames. If limit > 0, at most limit fragments may be in use at once.
func NewPool(capacity, limit int) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{capacity: capacity, limit: limit}
}

// Acquire pops a free fragment, or allocates one, and returns it holding a
// single reference.
func (p *Pool) Acquire() (*Fragment, error) {
	if p.limit > 0 && p.inUse >= p.limit {
		return nil, ErrPoolExhausted
	}

	var f *Fragment
	if n := len(p.free); n > 0 {
		f = p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
	} else {
		f = newFragment(p.capacity, p)
		p.allocated++
	}

	p.inUse++
	f.refs = 1
	return f, nil
}

// Stats returns the current allocator counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{Free: len(p.free), InUse: p.inUse, Allocated: p.allocated}
}

// put is called by Fragment.Release once the last reference is gone.
func (p *Pool) put(f *Fragment) {
	f.reset()
	p.inUse--
	p.free = append(p.free, f)
}
