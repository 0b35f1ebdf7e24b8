package message

import "errors"

// Encoding errors.
var (
	ErrTokenTooLong   = errors.New("coap: token exceeds 8 bytes")
	ErrBufferTooSmall = errors.New("coap: buffer too small for encoded message")
)

// Decoding errors.
var (
	ErrUnsupportedVersion      = errors.New("coap: unsupported protocol version")
	ErrTruncated               = errors.New("coap: message truncated")
	ErrInvalidOption           = errors.New("coap: malformed option encoding")
	ErrEmptyPayloadAfterMarker = errors.New("coap: payload marker with empty payload")
)
