package hls

import (
	"strconv"
	"strings"
)

// ParseFragmentID extracts the id from a "<name>-<digits>.ts" fragment name,
// scanning back from the last '.' to the '-' before it.
func ParseFragmentID(name string) (uint64, bool) {
	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 {
		return 0, false
	}
	dash := strings.LastIndexByte(name[:dot], '-')
	if dash <= 0 {
		return 0, false
	}
	id, err := strconv.ParseUint(name[dash+1:dot], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Find resolves a requested fragment name to a fragment of this session's
// window. The slot's fragment must carry the requested id; a slot reused by
// a later lap is reported as ErrNotFound rather than served.
func (s *Session) Find(name string) (*Fragment, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	id, ok := ParseFragmentID(name)
	if !ok {
		return nil, ErrNotFound
	}
	f, ok := s.window.Lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	return f, nil
}
