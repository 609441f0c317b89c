// Package mpegts builds the program tables that open every HLS fragment.
package mpegts

import (
	"encoding/binary"

	"hls-live/internal/media"
)

const (
	// PacketSize is the fixed transport stream packet length.
	PacketSize = 188
	// SyncByte starts every transport stream packet.
	SyncByte = 0x47

	PATPID   = 0x0000
	PMTPID   = 0x1001
	VideoPID = 0x0100
	AudioPID = 0x0101

	programNumber = 0x0001
	nullPID       = 0x1FFF
)

// Stream types carried in the PMT.
const (
	StreamTypeH264 = 0x1b
	StreamTypeH265 = 0x24
	StreamTypeAAC  = 0x0f
	StreamTypeMP3  = 0x03
)

// StreamType maps a codec id to its PMT stream type. ok is false for codecs
// that cannot be carried.
func StreamType(c media.CodecID) (st byte, ok bool) {
	switch c {
	case media.CodecH264:
		return StreamTypeH264, true
	case media.CodecH265:
		return StreamTypeH265, true
	case media.CodecAAC:
		return StreamTypeAAC, true
	case media.CodecMP3:
		return StreamTypeMP3, true
	}
	return 0, false
}

// ProgramHeader returns a PAT packet followed by a PMT packet describing the
// given elementary streams. The PCR rides on the video PID, or on the audio
// PID for audio-only programs. Its signature matches hls.HeaderFunc.
func ProgramHeader(video, audio media.CodecID) []byte {
	out := make([]byte, 0, 2*PacketSize)
	out = append(out, packet(PATPID, pat())...)
	out = append(out, packet(PMTPID, pmt(video, audio))...)
	return out
}

func pat() []byte {
	s := []byte{
		0x00,       // table_id
		0xb0, 0x00, // section_syntax_indicator, section_length (patched)
		0x00, 0x01, // transport_stream_id
		0xc1,       // version 0, current_next
		0x00, 0x00, // section_number, last_section_number
		byte(programNumber >> 8), byte(programNumber),
		0xe0 | byte(PMTPID>>8), byte(PMTPID & 0xff),
	}
	return finishSection(s)
}

func pmt(video, audio media.CodecID) []byte {
	vt, hasVideo := StreamType(video)
	at, hasAudio := StreamType(audio)

	pcr := uint16(nullPID)
	switch {
	case hasVideo:
		pcr = VideoPID
	case hasAudio:
		pcr = AudioPID
	}

	s := []byte{
		0x02,       // table_id
		0xb0, 0x00, // section_length (patched)
		byte(programNumber >> 8), byte(programNumber),
		0xc1,
		0x00, 0x00,
		0xe0 | byte(pcr>>8), byte(pcr),
		0xf0, 0x00, // program_info_length
	}
	if hasVideo {
		s = append(s, elementary(vt, VideoPID)...)
	}
	if hasAudio {
		s = append(s, elementary(at, AudioPID)...)
	}
	return finishSection(s)
}

func elementary(streamType byte, pid uint16) []byte {
	return []byte{streamType, 0xe0 | byte(pid>>8), byte(pid), 0xf0, 0x00}
}

// finishSection patches section_length and appends the CRC.
func finishSection(s []byte) []byte {
	n := len(s) - 3 + 4
	s[1] = 0xb0 | byte(n>>8)&0x0f
	s[2] = byte(n)
	return binary.BigEndian.AppendUint32(s, CRC32(s))
}

// packet wraps a PSI section into one transport stream packet with the
// payload unit start flag set and stuffing up to PacketSize.
func packet(pid uint16, section []byte) []byte {
	p := make([]byte, PacketSize)
	p[0] = SyncByte
	p[1] = 0x40 | byte(pid>>8)&0x1f
	p[2] = byte(pid)
	p[3] = 0x10 // payload only, continuity counter 0
	p[4] = 0x00 // pointer_field
	n := copy(p[5:], section)
	for i := 5 + n; i < PacketSize; i++ {
		p[i] = 0xff
	}
	return p
}
