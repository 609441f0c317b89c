package hls

// clockSlack is how far a timestamp may run backwards inside a fragment
// before the fragment is force-split as a discontinuity.
const clockSlack = 2000 // ms

// updateFragment decides whether the frame at ts closes the open fragment
// and opens the next one.
func (s *Session) updateFragment(ts uint64, boundary bool) error {
	cfg := &s.app.Config

	var (
		frag    *Fragment
		prev    float64
		force   bool
		discont = true
	)

	if s.opened {
		frag = s.window.Active()
		prev = frag.Duration

		d := int64(ts - s.fragTS)
		switch {
		case d > cfg.MaxFragmentLength.Milliseconds() || d < -clockSlack:
			force = true
		case d >= 0:
			frag.Duration = float64(d) / 1000
			discont = false
		default:
			discont = false
		}
	}

	switch cfg.Slicing {
	case SlicingPlain:
		if frag != nil && frag.Duration < cfg.FragmentLength.Seconds() {
			boundary = false
		}

	case SlicingAligned:
		length := uint64(cfg.FragmentLength.Milliseconds())
		same := s.fragTS/length == ts/length

		switch {
		case frag != nil && same:
			boundary = false
		case frag != nil && boundary && !force:
			// The first frame of a new bucket starts the next fragment; the
			// closing one covers only the frames it holds.
			frag.Duration = prev
		}
	}

	if !boundary && !force {
		return nil
	}

	s.closeFragment()
	return s.openFragment(ts, discont)
}

func (s *Session) closeFragment() {
	if !s.opened {
		return
	}
	s.opened = false
	f := s.window.Active()
	f.active = false
	s.window.Advance()
	s.lastActive = s.now()
	if s.onClose != nil {
		s.onClose(s, f)
	}

	if !s.playing && s.window.Len() >= s.app.Config.MinFragments {
		s.playing = true
		if s.onPlayable != nil {
			s.onPlayable(s)
		}
	}
}

func (s *Session) openFragment(ts uint64, discont bool) error {
	// Free the previous lap's occupant before allocating so a bounded pool
	// can hand the same record straight back.
	s.window.vacate()

	f, err := s.app.Pool.Acquire()
	if err != nil {
		return err
	}
	f.ID = s.window.NextID()
	f.Discontinuity = discont
	f.active = true
	s.window.Install(f)

	s.opened = true
	s.fragTS = ts
	return nil
}
