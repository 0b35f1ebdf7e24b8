// Package device models the light controlled by this node. The actual
// output (a GPIO pin in the original deployment) is opaque to the engine:
// handlers only see the injected Light, which is the single shared mutable
// resource between the client and server paths.
package device

import (
	"bytes"
	"sync"

	"github.com/gridlite/coap-light/pkg/message"
	"github.com/gridlite/coap-light/pkg/router"
)

// Resource paths served by this node for the on/off object.
var (
	StatePath  = []string{"42769", "0", "1"}
	OnPath     = []string{"42769", "0", "2"}
	OffPath    = []string{"42769", "0", "3"}
	SwitchPath = []string{"42769", "0", "4"}
)

var (
	onPayload  = []byte("1")
	offPayload = []byte("0")
)

// Light is the mutex-protected on/off representation. A PUT arriving on the
// server path may race a read on the client path, so all access goes through
// the lock.
type Light struct {
	mu sync.Mutex
	on bool
}

// NewLight returns a light that is off.
func NewLight() *Light {
	return &Light{}
}

// On reports the current state.
func (l *Light) On() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on
}

// Set forces the state.
func (l *Light) Set(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.on = on
}

// Toggle flips the state and returns the new value.
func (l *Light) Toggle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.on = !l.on
	return l.on
}

// Register adds the on/off object's resources to r.
func (l *Light) Register(r *router.Router) error {
	for _, route := range []struct {
		path    []string
		method  message.Code
		handler router.Handler
	}{
		{StatePath, message.GET, l.stateGet},
		{StatePath, message.PUT, l.statePut},
		{OnPath, message.PUT, l.onPut},
		{OffPath, message.PUT, l.offPut},
		{SwitchPath, message.PUT, l.switchPut},
	} {
		if err := r.Register(route.path, route.method, route.handler); err != nil {
			return err
		}
	}
	return nil
}

func (l *Light) stateGet(_ []byte) (message.Code, []byte) {
	if l.On() {
		return message.Content, onPayload
	}
	return message.Content, offPayload
}

// statePut accepts exactly "0" or "1". Anything else, the empty payload
// included, is BadRequest and leaves the state untouched. Comparison is a
// bounded byte equality, never a copy sized by the input.
func (l *Light) statePut(payload []byte) (message.Code, []byte) {
	switch {
	case bytes.Equal(payload, offPayload):
		l.Set(false)
	case bytes.Equal(payload, onPayload):
		l.Set(true)
	default:
		return message.BadRequest, nil
	}
	return message.Changed, nil
}

func (l *Light) onPut(_ []byte) (message.Code, []byte) {
	l.Set(true)
	return message.Changed, nil
}

func (l *Light) offPut(_ []byte) (message.Code, []byte) {
	l.Set(false)
	return message.Changed, nil
}

func (l *Light) switchPut(_ []byte) (message.Code, []byte) {
	l.Toggle()
	return message.Changed, nil
}
