package hls

// Window is a session's fixed-capacity circular index of fragments. It
// advertises at most W fragments but keeps 2W+1 slots, so the fragment being
// filled and fragments still read after leaving the playlist never share a
// slot during a rollover.
//
// Every occupied slot holds one reference on its fragment. The reference is
// dropped when the slot is reused a full lap later or when the window drains.
type Window struct {
	slots  []*Fragment
	r      ring
	max    int
	nfrag  uint64
	nfrags int
}

// NewWindow returns an empty window advertising at most w fragments.
func NewWindow(w int) *Window {
	if w < 1 {
		w = 1
	}
	return &Window{
		slots: make([]*Fragment, 2*w+1),
		r:     ring(2*w + 1),
		max:   w,
	}
}

// Size returns W, the maximum number of advertised fragments.
func (w *Window) Size() int {
	return w.max
}

// Len returns the number of fragments currently advertised.
func (w *Window) Len() int {
	return w.nfrags
}

// First returns the id of the oldest advertised fragment (the playlist
// media sequence).
func (w *Window) First() uint64 {
	return w.nfrag
}

// NextID returns the id the next opened fragment receives.
func (w *Window) NextID() uint64 {
	return w.nfrag + uint64(w.nfrags)
}

// Get returns the fragment at logical offset n from the oldest, for
// 0 <= n < Len().
func (w *Window) Get(n int) *Fragment {
	return w.slots[w.r.slot(w.nfrag+uint64(n))]
}

// Active returns the slot the open fragment lives in, or nil.
func (w *Window) Active() *Fragment {
	return w.slots[w.r.slot(w.NextID())]
}

// Newest returns the most recently closed fragment, or nil.
func (w *Window) Newest() *Fragment {
	if w.nfrags == 0 {
		return nil
	}
	return w.slots[w.r.prev(w.r.slot(w.NextID()))]
}

// Advance accounts for a closed fragment: the window grows until it holds W
// fragments, after which the oldest one stops being advertised.
func (w *Window) Advance() {
	if w.nfrags == w.max {
		w.nfrag++
	} else {
		w.nfrags++
	}
}

// Install places f in the slot for NextID. A fragment left in that slot from
// the previous lap is released first; this bounds memory even when a slow
// reader never finishes.
func (w *Window) Install(f *Fragment) {
	i := w.r.slot(w.NextID())
	if old := w.slots[i]; old != nil {
		old.Release()
	}
	w.slots[i] = f
}

func (w *Window) vacate() {
	i := w.r.slot(w.NextID())
	if old := w.slots[i]; old != nil {
		w.slots[i] = nil
		old.Release()
	}
}

// Lookup resolves a fragment id. Ids beyond the open fragment, ids more than
// 2W+1 behind it, and slots since reused for another id all miss.
func (w *Window) Lookup(id uint64) (*Fragment, bool) {
	next := w.NextID()
	if id > next || next-id > uint64(w.r) {
		return nil, false
	}
	f := w.slots[w.r.slot(id)]
	if f == nil || f.ID != id {
		return nil, false
	}
	return f, true
}

// Drain releases every slot. It is idempotent.
func (w *Window) Drain() {
	for i, f := range w.slots {
		if f != nil {
			f.Release()
			w.slots[i] = nil
		}
	}
}
