package protocol

import (
	"errors"
	"fmt"
)

var ErrFrameTooLong = errors.New("frame too long")

// Frame is one decoded message block. An empty payload is an ack.
type Frame struct {
	Seq     uint8
	Payload []byte
	CRC     uint16
}

// IsAck reports whether the frame carries no message
func (f Frame) IsAck() bool {
	return len(f.Payload) == 0
}

// NextSeq advances a sequence number within the 0x10-0x1F window
func NextSeq(seq uint8) uint8 {
	return ((seq + 1) & SeqMask) | SeqDest
}

// AppendFrame appends a complete frame carrying payload to dst
func AppendFrame(dst []byte, seq uint8, payload []byte) ([]byte, error) {
	n := FrameMin + len(payload)
	if n > FrameMax {
		return dst, fmt.Errorf("%d bytes (max %d): %w", n, FrameMax, ErrFrameTooLong)
	}

	start := len(dst)
	dst = append(dst, uint8(n), seq)
	dst = append(dst, payload...)
	crc := CRC16(dst[start:])
	return append(dst, uint8(crc>>8), uint8(crc), SyncByte), nil
}

// EncodeFrame returns a complete frame carrying payload
func EncodeFrame(seq uint8, payload []byte) ([]byte, error) {
	return AppendFrame(make([]byte, 0, FrameMin+len(payload)), seq, payload)
}

// Decoder splits a byte stream into frames. Corrupt input is skipped by
// discarding up to the next sync byte.
type Decoder struct {
	buf       []byte
	synced    bool
	resyncs   int
	crcErrors int
}

// NewDecoder creates a decoder that expects to start on a frame boundary
func NewDecoder() *Decoder {
	return &Decoder{synced: true}
}

// Feed adds p to the stream and returns every frame completed by it
func (d *Decoder) Feed(p []byte) []Frame {
	d.buf = append(d.buf, p...)
	data := d.buf

	var frames []Frame
	for len(data) > 0 {
		if !d.synced {
			i := indexSync(data)
			if i < 0 {
				data = nil
				break
			}
			data = data[i+1:]
			d.synced = true
			continue
		}

		if data[0] == SyncByte {
			data = data[1:]
			continue
		}
		if len(data) < FrameMin {
			break
		}

		n := int(data[positionLen])
		if n < FrameMin || n > FrameMax {
			d.lose()
			continue
		}
		if len(data) < n {
			break
		}
		if data[n-trailerSync] != SyncByte {
			d.lose()
			continue
		}

		crc := uint16(data[n-trailerCRC])<<8 | uint16(data[n-trailerCRC+1])
		if crc != CRC16(data[:n-TrailerSize]) {
			d.crcErrors++
			d.lose()
			continue
		}

		payload := make([]byte, n-FrameMin)
		copy(payload, data[HeaderSize:n-TrailerSize])
		frames = append(frames, Frame{
			Seq:     data[positionSeq],
			Payload: payload,
			CRC:     crc,
		})
		data = data[n:]
	}

	d.buf = append(d.buf[:0], data...)
	return frames
}

func (d *Decoder) lose() {
	d.synced = false
	d.resyncs++
}

// Stats returns how often the decoder lost sync and how many of those were
// checksum failures
func (d *Decoder) Stats() (resyncs, crcErrors int) {
	return d.resyncs, d.crcErrors
}

// Reset drops buffered input
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.synced = true
}

func indexSync(data []byte) int {
	for i, b := range data {
		if b == SyncByte {
			return i
		}
	}
	return -1
}
