package client

import (
	"strconv"

	"github.com/gridlite/coap-light/pkg/message"
)

// Resource paths exposed by the light bridge, in the object/instance/resource
// addressing scheme.
var (
	ToggleLightPath = []string{"42770", "0", "8"}
	OnOffStatePath  = []string{"42770", "0", "5"}
	OnTimePath      = []string{"42770", "0", "3"}
)

// PutToggle sends a PUT to the bridge's toggle resource.
func (s *Session) PutToggle() error {
	return s.Send(s.NewRequest(message.Confirmable, message.PUT, ToggleLightPath, nil))
}

// PutOnTime writes the on-time value, in seconds, as a text payload.
func (s *Session) PutOnTime(seconds int) error {
	payload := []byte(strconv.Itoa(seconds))
	return s.Send(s.NewRequest(message.Confirmable, message.PUT, OnTimePath, payload))
}

// GetOnOff requests the current on/off state. The reply payload is "1" or
// "0".
func (s *Session) GetOnOff() error {
	return s.Send(s.NewRequest(message.Confirmable, message.GET, OnOffStatePath, nil))
}
