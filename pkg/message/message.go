// Package message implements the CoAP message model and its binary codec:
// the 4-byte fixed header, token, delta-encoded options and the 0xFF payload
// marker (RFC 7252 section 3).
package message

import (
	"fmt"
	"strings"
)

// Protocol constants. MaxMessageSize is a policy bound of this deployment,
// not a protocol limit.
const (
	Version        = 1
	MaxTokenSize   = 8
	MaxMessageSize = 256
)

// Type represents the message type carried in the fixed header.
type Type uint8

const (
	// Confirmable messages require a message-layer acknowledgement.
	Confirmable Type = 0
	// NonConfirmable messages do not.
	NonConfirmable Type = 1
	// Acknowledgement answers a confirmable message.
	Acknowledgement Type = 2
	// Reset indicates a permanent negative acknowledgement.
	Reset Type = 3
)

func (t Type) String() string {
	switch t {
	case Confirmable:
		return "Confirmable"
	case NonConfirmable:
		return "NonConfirmable"
	case Acknowledgement:
		return "Acknowledgement"
	case Reset:
		return "Reset"
	}
	return fmt.Sprintf("Unknown(0x%x)", uint8(t))
}

// Code is a request method or response status, packed as class.detail.
type Code uint8

// Request methods.
const (
	Empty  Code = 0
	GET    Code = 1
	POST   Code = 2
	PUT    Code = 3
	DELETE Code = 4
)

// Response statuses.
const (
	Created          Code = 65  // 2.01
	Deleted          Code = 66  // 2.02
	Valid            Code = 67  // 2.03
	Changed          Code = 68  // 2.04
	Content          Code = 69  // 2.05
	BadRequest       Code = 128 // 4.00
	Unauthorized     Code = 129 // 4.01
	BadOption        Code = 130 // 4.02
	Forbidden        Code = 131 // 4.03
	NotFound         Code = 132 // 4.04
	MethodNotAllowed Code = 133 // 4.05
	InternalError    Code = 160 // 5.00
)

// IsRequest reports whether the code is a request method.
func (c Code) IsRequest() bool {
	return c >= GET && c <= DELETE
}

func (c Code) String() string {
	switch c {
	case Empty:
		return "Empty"
	case GET:
		return "GET"
	case POST:
		return "POST"
	case PUT:
		return "PUT"
	case DELETE:
		return "DELETE"
	case Created:
		return "Created"
	case Deleted:
		return "Deleted"
	case Valid:
		return "Valid"
	case Changed:
		return "Changed"
	case Content:
		return "Content"
	case BadRequest:
		return "BadRequest"
	case Unauthorized:
		return "Unauthorized"
	case BadOption:
		return "BadOption"
	case Forbidden:
		return "Forbidden"
	case NotFound:
		return "NotFound"
	case MethodNotAllowed:
		return "MethodNotAllowed"
	case InternalError:
		return "InternalError"
	}
	return fmt.Sprintf("%d.%02d", uint8(c)>>5, uint8(c)&0x1f)
}

// OptionID identifies an option in a message.
type OptionID uint16

// Option numbers used by this deployment plus their RFC 7252 neighbours.
const (
	IfMatch       OptionID = 1
	URIHost       OptionID = 3
	ETag          OptionID = 4
	URIPort       OptionID = 7
	LocationPath  OptionID = 8
	URIPath       OptionID = 11
	ContentFormat OptionID = 12
	MaxAge        OptionID = 14
	URIQuery      OptionID = 15
	Accept        OptionID = 17
)

// MediaType is a Content-Format value.
type MediaType uint16

const (
	TextPlain MediaType = 0
	AppOctets MediaType = 42
	AppJSON   MediaType = 50
)

// Option is a single (number, value) pair. The value is the raw option bytes
// as they appear on the wire.
type Option struct {
	ID    OptionID
	Value []byte
}

// Message is a CoAP message. Options must be sorted ascending by option
// number before marshalling; MarshalTo sorts a copy, so callers may append
// in any order.
type Message struct {
	Type      Type
	Code      Code
	MessageID uint16
	Token     []byte
	Options   []Option
	Payload   []byte
}

// AddOption appends an option instance. Repeatable options such as URI-Path
// are added once per instance.
func (m *Message) AddOption(id OptionID, value []byte) {
	m.Options = append(m.Options, Option{ID: id, Value: value})
}

// SetPath replaces any URI-Path options with one option per segment, in
// traversal order.
func (m *Message) SetPath(segments []string) {
	opts := m.Options[:0]
	for _, o := range m.Options {
		if o.ID != URIPath {
			opts = append(opts, o)
		}
	}
	m.Options = opts
	for _, seg := range segments {
		m.AddOption(URIPath, []byte(seg))
	}
}

// Path returns the URI-Path segments in the order they appear.
func (m *Message) Path() []string {
	var segments []string
	for _, o := range m.Options {
		if o.ID == URIPath {
			segments = append(segments, string(o.Value))
		}
	}
	return segments
}

// PathString returns the path as a / separated string.
func (m *Message) PathString() string {
	return strings.Join(m.Path(), "/")
}

// SetContentFormat sets the Content-Format option, replacing any previous
// value. The value uses the shortest uint encoding, so text/plain is a
// zero-length option.
func (m *Message) SetContentFormat(mt MediaType) {
	opts := m.Options[:0]
	for _, o := range m.Options {
		if o.ID != ContentFormat {
			opts = append(opts, o)
		}
	}
	m.Options = opts
	m.AddOption(ContentFormat, encodeUint(uint32(mt)))
}

// ContentFormat returns the Content-Format option if present.
func (m *Message) ContentFormat() (MediaType, bool) {
	for _, o := range m.Options {
		if o.ID == ContentFormat {
			return MediaType(decodeUint(o.Value)), true
		}
	}
	return 0, false
}

func (m *Message) String() string {
	return fmt.Sprintf("Type: %v, Code: %v, MessageID: 0x%04x, Token: %x, Path: %s",
		m.Type, m.Code, m.MessageID, m.Token, m.PathString())
}
