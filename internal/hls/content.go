package hls

import "io"

// Chunk is one piece of a fragment response. Last marks the end of stream.
type Chunk struct {
	Data []byte
	Last bool
}

// Content is a prepared fragment response: the session's container header
// followed by every queued frame payload. It holds a fragment reference
// until Release.
type Content struct {
	frag     *Fragment
	chunks   []Chunk
	size     int64
	released bool
}

// Prepare builds the response for f and takes a reference on it for the
// response lifetime. The container header is built on first use from the
// codecs last seen by the session.
func (s *Session) Prepare(f *Fragment) *Content {
	if s.header == nil && s.app.header != nil {
		s.header = s.app.header(s.codecs.Video, s.codecs.Audio)
	}

	frames := f.Frames()
	c := &Content{
		frag:   f,
		chunks: make([]Chunk, 0, len(frames)+1),
	}
	if len(s.header) > 0 {
		c.chunks = append(c.chunks, Chunk{Data: s.header})
		c.size += int64(len(s.header))
	}
	for _, fr := range frames {
		c.chunks = append(c.chunks, Chunk{Data: fr.Bytes()})
		c.size += int64(fr.Len())
	}
	if n := len(c.chunks); n > 0 {
		c.chunks[n-1].Last = true
	}

	f.Acquire()
	return c
}

// Fragment returns the fragment the content was prepared from.
func (c *Content) Fragment() *Fragment {
	return c.frag
}

// Chunks returns the ordered response pieces.
func (c *Content) Chunks() []Chunk {
	return c.chunks
}

// Size returns the total response length in bytes.
func (c *Content) Size() int64 {
	return c.size
}

// WriteTo writes every chunk to w. It only reads immutable payloads and may
// run off the event loop while the reference is held.
func (c *Content) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, ch := range c.chunks {
		m, err := w.Write(ch.Data)
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Release drops the response's fragment reference. It is idempotent and must
// run on the event loop.
func (c *Content) Release() {
	if c.released {
		return
	}
	c.released = true
	c.frag.Release()
}
