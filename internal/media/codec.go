package media

// CodecID identifies an elementary stream codec.
type CodecID uint8

const (
	CodecNone CodecID = iota
	CodecH264
	CodecH265
	CodecAAC
	CodecMP3
)

func (c CodecID) String() string {
	switch c {
	case CodecH264:
		return "h264"
	case CodecH265:
		return "h265"
	case CodecAAC:
		return "aac"
	case CodecMP3:
		return "mp3"
	}
	return "none"
}

// Codecs is the codec context of an ingest source: the negotiated codec ids
// and whether each sequence header has been received.
type Codecs struct {
	Video       CodecID
	Audio       CodecID
	VideoHeader bool
	AudioHeader bool
}
