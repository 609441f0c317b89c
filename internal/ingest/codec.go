package ingest

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// DefaultMaxMessageSize bounds a single message when no limit is given.
const DefaultMaxMessageSize = 8 << 20

// Reader decodes length-prefixed messages from a publisher stream.
type Reader struct {
	r       *bufio.Reader
	max     uint32
	lenBuf  [4]byte
	scratch []byte
}

// NewReader returns a Reader rejecting messages larger than max bytes.
func NewReader(r io.Reader, max int) *Reader {
	if max <= 0 {
		max = DefaultMaxMessageSize
	}
	return &Reader{r: bufio.NewReader(r), max: uint32(max)}
}

// Next decodes the next message into m. It returns io.EOF at a clean end of
// stream and io.ErrUnexpectedEOF when the stream ends inside a message.
// m.Payload is only valid until the following call.
func (r *Reader) Next(m *Message) error {
	if _, err := io.ReadFull(r.r, r.lenBuf[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(r.lenBuf[:])
	if n > r.max {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, n, r.max)
	}

	if cap(r.scratch) < int(n) {
		r.scratch = make([]byte, n)
	}
	buf := r.scratch[:n]
	if _, err := io.ReadFull(r.r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return err
	}

	*m = Message{}
	if err := msgpack.Unmarshal(buf, m); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}

// Writer encodes length-prefixed messages.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write encodes m with its length prefix.
func (w *Writer) Write(m *Message) error {
	b, err := msgpack.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(b)))
	if _, err := w.w.Write(prefix[:]); err != nil {
		return err
	}
	_, err = w.w.Write(b)
	return err
}
