package message

import "encoding/binary"

// Option delta/length nibble extension markers (RFC 7252 section 3.1).
const (
	extOptByteCode   = 13
	extOptByteAddend = 13
	extOptWordCode   = 14
	extOptWordAddend = 269
	extOptReserved   = 15

	payloadMarker = 0xff
)

// extendOption splits a delta or length into its header nibble and extended
// value.
func extendOption(v int) (nibble, ext int) {
	if v < extOptByteAddend {
		return v, 0
	}
	if v < extOptWordAddend {
		return extOptByteCode, v - extOptByteAddend
	}
	return extOptWordCode, v - extOptWordAddend
}

// optionHeaderSize returns the encoded size of an option header for the given
// delta and value length.
func optionHeaderSize(delta, length int) int {
	size := 1
	size += extSize(delta)
	size += extSize(length)
	return size
}

func extSize(v int) int {
	switch nibble, _ := extendOption(v); nibble {
	case extOptByteCode:
		return 1
	case extOptWordCode:
		return 2
	}
	return 0
}

// writeOptionHeader encodes the delta/length nibbles and their extensions
// into buf, which must have room for optionHeaderSize(delta, length) bytes.
func writeOptionHeader(buf []byte, delta, length int) int {
	d, dx := extendOption(delta)
	l, lx := extendOption(length)

	buf[0] = byte(d)<<4 | byte(l)
	n := 1
	n += writeExt(buf[n:], d, dx)
	n += writeExt(buf[n:], l, lx)
	return n
}

func writeExt(buf []byte, nibble, ext int) int {
	switch nibble {
	case extOptByteCode:
		buf[0] = byte(ext)
		return 1
	case extOptWordCode:
		binary.BigEndian.PutUint16(buf[:2], uint16(ext))
		return 2
	}
	return 0
}

// parseExtOption resolves an extended delta or length nibble against the
// remaining data. It returns the resolved value and the number of extension
// bytes consumed, or ErrInvalidOption when the encoding is malformed.
func parseExtOption(nibble int, data []byte) (int, int, error) {
	switch nibble {
	case extOptByteCode:
		if len(data) < 1 {
			return 0, 0, ErrInvalidOption
		}
		return int(data[0]) + extOptByteAddend, 1, nil
	case extOptWordCode:
		if len(data) < 2 {
			return 0, 0, ErrInvalidOption
		}
		return int(binary.BigEndian.Uint16(data[:2])) + extOptWordAddend, 2, nil
	case extOptReserved:
		return 0, 0, ErrInvalidOption
	}
	return nibble, 0, nil
}

// encodeUint produces the shortest big-endian encoding of v; zero encodes to
// an empty value.
func encodeUint(v uint32) []byte {
	switch {
	case v == 0:
		return nil
	case v <= 0xff:
		return []byte{byte(v)}
	case v <= 0xffff:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(v))
		return b
	case v <= 0xffffff:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, v)
		return b[1:]
	}
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// decodeUint reads a variable-length big-endian uint option value.
func decodeUint(b []byte) uint32 {
	var tmp [4]byte
	if len(b) > 4 {
		b = b[len(b)-4:]
	}
	copy(tmp[4-len(b):], b)
	return binary.BigEndian.Uint32(tmp[:])
}
