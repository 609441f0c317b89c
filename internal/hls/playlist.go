package hls

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Entry is one fragment line of a playlist.
type Entry struct {
	Duration      float64
	Discontinuity bool
	URI           string
}

// FragmentURI builds the name a fragment is advertised under:
// <base><stream>-<id>.ts?session=<token>.
func FragmentURI(baseURL, stream string, id uint64, token string) string {
	return baseURL + stream + "-" + strconv.FormatUint(id, 10) + ".ts?session=" + token
}

// BuildLivePlaylist renders entries (oldest first) as an HLS media playlist
// starting at mediaSequence.
func BuildLivePlaylist(mediaSequence uint64, targetDuration int, event bool, entries []Entry) string {
	var b strings.Builder

	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	b.WriteString(fmt.Sprintf("#EXT-X-MEDIA-SEQUENCE:%d\n", mediaSequence))
	b.WriteString(fmt.Sprintf("#EXT-X-TARGETDURATION:%d\n", targetDuration))

	if event {
		b.WriteString("#EXT-X-PLAYLIST-TYPE: EVENT\n")
	}

	for _, e := range entries {
		if e.Discontinuity {
			b.WriteString("#EXT-X-DISCONTINUITY\n")
		}
		b.WriteString(fmt.Sprintf("#EXTINF:%.3f,\n", e.Duration))
		b.WriteString(e.URI)
		b.WriteString("\n")
	}

	return b.String()
}

// targetDuration returns the #EXT-X-TARGETDURATION value: the ceiling of the
// longest entry, never below the ceiling of the configured fragment length.
func targetDuration(entries []Entry, minSeconds float64) int {
	max := int(math.Ceil(minSeconds))
	for _, e := range entries {
		if d := int(math.Ceil(e.Duration)); d > max {
			max = d
		}
	}
	if max <= 0 {
		return 1
	}
	return max
}

// Playlist renders the session's current window. It returns ErrNotReady
// until the window holds two fragments.
func (s *Session) Playlist() (string, error) {
	if s.closed {
		return "", ErrSessionClosed
	}
	n := s.window.Len()
	if n < 2 {
		return "", ErrNotReady
	}
	s.Touch()

	cfg := &s.app.Config
	entries := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		f := s.window.Get(i)
		entries = append(entries, Entry{
			Duration:      f.Duration,
			Discontinuity: f.Discontinuity,
			URI:           FragmentURI(cfg.BaseURL, s.Stream, f.ID, s.Token),
		})
	}

	target := targetDuration(entries, cfg.FragmentLength.Seconds())
	return BuildLivePlaylist(s.window.First(), target, cfg.Type == PlaylistEvent, entries), nil
}
