package message

import (
	"encoding/binary"
	"fmt"
	"sort"
)

const fixedHeaderSize = 4

// MarshalTo encodes the message into buf and returns the number of bytes
// written. Options are sorted ascending by option number before encoding,
// since the wire format carries each option as a delta from the previous
// number. Returns ErrTokenTooLong or ErrBufferTooSmall on validation failure.
func (m *Message) MarshalTo(buf []byte) (int, error) {
	if len(m.Token) > MaxTokenSize {
		return 0, ErrTokenTooLong
	}
	if m.Type > Reset {
		return 0, fmt.Errorf("coap: message type %d out of range", m.Type)
	}
	if len(buf) < fixedHeaderSize+len(m.Token) {
		return 0, ErrBufferTooSmall
	}

	buf[0] = Version<<6 | byte(m.Type)<<4 | byte(len(m.Token))
	buf[1] = byte(m.Code)
	binary.BigEndian.PutUint16(buf[2:4], m.MessageID)
	n := fixedHeaderSize
	n += copy(buf[n:], m.Token)

	opts := m.sortedOptions()
	prev := 0
	for _, o := range opts {
		delta := int(o.ID) - prev
		hdr := optionHeaderSize(delta, len(o.Value))
		if n+hdr+len(o.Value) > len(buf) {
			return 0, ErrBufferTooSmall
		}
		n += writeOptionHeader(buf[n:], delta, len(o.Value))
		n += copy(buf[n:], o.Value)
		prev = int(o.ID)
	}

	if len(m.Payload) > 0 {
		if n+1+len(m.Payload) > len(buf) {
			return 0, ErrBufferTooSmall
		}
		buf[n] = payloadMarker
		n++
		n += copy(buf[n:], m.Payload)
	}

	return n, nil
}

// MarshalBinary encodes the message into a fresh buffer bounded by
// MaxMessageSize.
func (m *Message) MarshalBinary() ([]byte, error) {
	buf := make([]byte, MaxMessageSize)
	n, err := m.MarshalTo(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// UnmarshalBinary decodes a datagram into m. Token, option values and
// payload are copied out of data, so the caller may reuse its receive
// buffer.
func (m *Message) UnmarshalBinary(data []byte) error {
	if len(data) < fixedHeaderSize {
		return ErrTruncated
	}

	if version := data[0] >> 6; version != Version {
		return ErrUnsupportedVersion
	}
	m.Type = Type(data[0] >> 4 & 0x3)
	tokenLen := int(data[0] & 0xf)
	if tokenLen > MaxTokenSize {
		return ErrTokenTooLong
	}
	m.Code = Code(data[1])
	m.MessageID = binary.BigEndian.Uint16(data[2:4])

	data = data[fixedHeaderSize:]
	if tokenLen > len(data) {
		return ErrTruncated
	}
	m.Token = append([]byte(nil), data[:tokenLen]...)
	data = data[tokenLen:]

	m.Options = nil
	m.Payload = nil

	prev := 0
	for len(data) > 0 {
		if data[0] == payloadMarker {
			if len(data) == 1 {
				return ErrEmptyPayloadAfterMarker
			}
			m.Payload = append([]byte(nil), data[1:]...)
			return nil
		}

		deltaNibble := int(data[0] >> 4)
		lengthNibble := int(data[0] & 0xf)
		data = data[1:]

		delta, n, err := parseExtOption(deltaNibble, data)
		if err != nil {
			return err
		}
		data = data[n:]

		length, n, err := parseExtOption(lengthNibble, data)
		if err != nil {
			return err
		}
		data = data[n:]

		if length > len(data) {
			return ErrInvalidOption
		}
		id := prev + delta
		prev = id
		m.Options = append(m.Options, Option{
			ID:    OptionID(id),
			Value: append([]byte(nil), data[:length]...),
		})
		data = data[length:]
	}

	return nil
}

// sortedOptions returns the options in ascending option-number order,
// preserving the relative order of repeated instances of the same number.
func (m *Message) sortedOptions() []Option {
	if sort.SliceIsSorted(m.Options, func(i, j int) bool {
		return m.Options[i].ID < m.Options[j].ID
	}) {
		return m.Options
	}
	opts := append([]Option(nil), m.Options...)
	sort.SliceStable(opts, func(i, j int) bool {
		return opts[i].ID < opts[j].ID
	})
	return opts
}
