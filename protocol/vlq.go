package protocol

import "errors"

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
)

// vlqMaxBytes is the longest encoding of a 32-bit value
const vlqMaxBytes = 5

// AppendVLQ appends the variable length encoding of v to dst. Values in
// [-32, 96) take one byte; each further byte adds seven bits.
func AppendVLQ(dst []byte, v int32) []byte {
	if !(-(1<<26) <= v && v < (3<<26)) {
		dst = append(dst, byte((v>>28)&0x7F)|0x80)
	}
	if !(-(1<<19) <= v && v < (3<<19)) {
		dst = append(dst, byte((v>>21)&0x7F)|0x80)
	}
	if !(-(1<<12) <= v && v < (3<<12)) {
		dst = append(dst, byte((v>>14)&0x7F)|0x80)
	}
	if !(-(1<<5) <= v && v < (3<<5)) {
		dst = append(dst, byte((v>>7)&0x7F)|0x80)
	}
	return append(dst, byte(v&0x7F))
}

// DecodeVLQ decodes one value from data and advances data past it
func DecodeVLQ(data *[]byte) (int32, error) {
	buf := *data
	if len(buf) == 0 {
		return 0, ErrBufferTooSmall
	}

	c := uint32(buf[0])
	v := c & 0x7F
	if c&0x60 == 0x60 {
		// sign extend
		v |= ^uint32(0x1F)
	}

	n := 1
	for c&0x80 != 0 {
		if n == vlqMaxBytes {
			return 0, ErrInvalidVLQ
		}
		if n == len(buf) {
			return 0, ErrBufferTooSmall
		}
		c = uint32(buf[n])
		v = v<<7 | c&0x7F
		n++
	}

	*data = buf[n:]
	return int32(v), nil
}

// AppendVLQString appends a length prefixed string
func AppendVLQString(dst []byte, s string) []byte {
	dst = AppendVLQ(dst, int32(len(s)))
	return append(dst, s...)
}

// DecodeVLQString decodes a length prefixed string and advances data
func DecodeVLQString(data *[]byte) (string, error) {
	rest := *data
	n, err := DecodeVLQ(&rest)
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", ErrInvalidVLQ
	}
	if len(rest) < int(n) {
		return "", ErrBufferTooSmall
	}
	s := string(rest[:n])
	*data = rest[n:]
	return s, nil
}
