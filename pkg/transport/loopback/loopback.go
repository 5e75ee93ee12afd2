// Package loopback implements an in-memory ccp.Bus for tests and local
// development, standing in for a SocketCAN interface without needing a
// kernel CAN stack or an external broker process. It is adapted from a
// TCP-socket virtual bus: the wire serialization there becomes a plain
// channel send here, since both ends live in the same process.
package loopback

import (
	"sync"

	"github.com/samsamfire/goccp"
)

// registry lets independently-constructed Bus values that share a name
// find each other, the way two processes connecting to the same virtual
// bus address would.
var registry = struct {
	mu   sync.Mutex
	buses map[string]*hub
}{buses: make(map[string]*hub)}

type hub struct {
	mu      sync.Mutex
	members []*Bus
}

// Bus is one endpoint on a named in-memory bus. Every Bus sharing a name
// receives every frame any member sends, including its own sender's
// other endpoints but never the sending endpoint itself.
type Bus struct {
	name     string
	h        *hub
	listener ccp.FrameListener
	frames   chan ccp.Frame
	closed   chan struct{}
	once     sync.Once
}

// New creates a loopback endpoint on the named bus, creating the bus if
// this is its first member.
func New(name string) *Bus {
	registry.mu.Lock()
	h, ok := registry.buses[name]
	if !ok {
		h = &hub{}
		registry.buses[name] = h
	}
	registry.mu.Unlock()

	b := &Bus{
		name:   name,
		h:      h,
		frames: make(chan ccp.Frame, 64),
		closed: make(chan struct{}),
	}
	h.mu.Lock()
	h.members = append(h.members, b)
	h.mu.Unlock()
	return b
}

func (b *Bus) Subscribe(listener ccp.FrameListener) error {
	b.listener = listener
	return nil
}

// Connect starts the delivery goroutine that invokes the listener for
// every frame received from other members.
func (b *Bus) Connect(...any) error {
	go b.deliver()
	return nil
}

func (b *Bus) deliver() {
	for {
		select {
		case f := <-b.frames:
			if b.listener != nil {
				b.listener.Handle(f)
			}
		case <-b.closed:
			return
		}
	}
}

func (b *Bus) Disconnect() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

// Send broadcasts frame to every other member of this named bus.
func (b *Bus) Send(frame ccp.Frame) error {
	b.h.mu.Lock()
	members := append([]*Bus(nil), b.h.members...)
	b.h.mu.Unlock()
	for _, m := range members {
		if m == b {
			continue
		}
		select {
		case m.frames <- frame:
		case <-m.closed:
		}
	}
	return nil
}
