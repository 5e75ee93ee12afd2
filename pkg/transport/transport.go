// Package transport adapts a raw ccp.Bus to the master's needs: every
// CRO goes out tagged with the configured CAN identifier, and every
// inbound frame is filtered to the configured DTO identifier before
// being fanned out to the components that care about it (the command
// engine and the DAQ decoder).
package transport

import (
	"sync"

	"github.com/samsamfire/goccp"
)

// Adapter binds a ccp.Bus to one CRO/DTO identifier pair and multiplexes
// inbound DTO frames to any number of listeners, mirroring the way a
// CANopen BusManager fans frames out to per-COB-ID subscribers.
type Adapter struct {
	bus   ccp.Bus
	croID uint32
	dtoID uint32

	mu        sync.RWMutex
	listeners []ccp.FrameListener
}

// New builds an Adapter. The bus is not connected until Connect is called.
func New(bus ccp.Bus, croID, dtoID uint32) *Adapter {
	return &Adapter{bus: bus, croID: croID, dtoID: dtoID}
}

// Connect brings the underlying bus up and subscribes the adapter itself
// as the bus's single listener, so it can filter before fanning out.
func (a *Adapter) Connect(args ...any) error {
	if err := a.bus.Subscribe(a); err != nil {
		return &ccp.TransportError{Cause: err}
	}
	if err := a.bus.Connect(args...); err != nil {
		return &ccp.TransportError{Cause: err}
	}
	return nil
}

func (a *Adapter) Disconnect() error {
	if err := a.bus.Disconnect(); err != nil {
		return &ccp.TransportError{Cause: err}
	}
	return nil
}

// SendCRO serializes and transmits a CRO on the configured CRO identifier.
func (a *Adapter) SendCRO(cro ccp.CRO) error {
	if err := a.bus.Send(cro.Frame(a.croID)); err != nil {
		return &ccp.TransportError{Cause: err}
	}
	return nil
}

// AddListener registers a listener to receive every inbound DTO frame.
// Listeners are called synchronously, in registration order, on the
// bus's delivery goroutine; they must not block.
func (a *Adapter) AddListener(l ccp.FrameListener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, l)
}

// Handle implements ccp.FrameListener. It drops any frame that is not on
// the configured DTO identifier and fans everything else out.
func (a *Adapter) Handle(frame ccp.Frame) {
	if frame.ID != a.dtoID {
		return
	}
	a.mu.RLock()
	listeners := a.listeners
	a.mu.RUnlock()
	for _, l := range listeners {
		l.Handle(frame)
	}
}
