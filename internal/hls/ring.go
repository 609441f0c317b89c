package hls

// ring is the wraparound arithmetic shared by every circular index in the
// package: the window's slot array and each fragment's content queue.
type ring int

// slot maps a monotonic sequence number onto an index.
func (r ring) slot(n uint64) int {
	return int(n % uint64(r))
}

func (r ring) next(i int) int {
	return (i + 1) % int(r)
}

func (r ring) prev(i int) int {
	if i == 0 {
		return int(r) - 1
	}
	return i - 1
}

// distance returns how many steps forward separate from and to.
func (r ring) distance(from, to int) int {
	return (to - from + int(r)) % int(r)
}
