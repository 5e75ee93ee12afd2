// Package socketcan binds the master to a real Linux SocketCAN interface
// through brutella/can, the same driver the CANopen implementation this
// module grew out of uses for its own socketcan.go.
package socketcan

import (
	"github.com/brutella/can"

	"github.com/samsamfire/goccp"
)

// Bus wraps a brutella/can interface as a ccp.Bus.
type Bus struct {
	iface    *can.Bus
	listener ccp.FrameListener
}

// New opens the named SocketCAN interface (e.g. "can0"). The interface
// is not brought up until Connect is called.
func New(name string) (*Bus, error) {
	iface, err := can.NewBusForInterfaceWithName(name)
	if err != nil {
		return nil, err
	}
	return &Bus{iface: iface}, nil
}

func (b *Bus) Subscribe(listener ccp.FrameListener) error {
	b.listener = listener
	b.iface.Subscribe(b)
	return nil
}

func (b *Bus) Connect(...any) error {
	go b.iface.ConnectAndPublish()
	return nil
}

func (b *Bus) Disconnect() error {
	return b.iface.Disconnect()
}

func (b *Bus) Send(frame ccp.Frame) error {
	return b.iface.Publish(can.Frame{
		ID:     frame.ID,
		Length: frame.DLC,
		Flags:  frame.Flags,
		Data:   frame.Data,
	})
}

// Handle implements brutella/can's Handler interface, translating its
// frame type into ours before passing it to the registered listener.
func (b *Bus) Handle(frame can.Frame) {
	if b.listener == nil {
		return
	}
	b.listener.Handle(ccp.Frame{
		ID:    frame.ID,
		Flags: frame.Flags,
		DLC:   frame.Length,
		Data:  frame.Data,
	})
}
