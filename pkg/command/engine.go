// Package command implements the master-side command state machine: CTR
// ownership, one outstanding request at a time, CRM correlation by CTR,
// and per-command timeouts. It is grounded on sdo_client.go's
// request/response bookkeeping and on the notnil-canbus reference's
// channel-based "send, then select on a channel with a timeout" shape,
// which fits CCP's single-frame round trip better than the teacher's
// segmented block-transfer state machine.
package command

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/samsamfire/goccp"
	"github.com/samsamfire/goccp/internal/queue"
)

// DefaultTimeout is used when an Engine is constructed without an
// explicit per-instance timeout (CCP master default, 250ms).
const DefaultTimeout = 250 * time.Millisecond

// Sender is the subset of transport.Adapter the engine needs to send
// CROs; it is an interface so tests can substitute a fake.
type Sender interface {
	SendCRO(cro ccp.CRO) error
}

type pending struct {
	ctr  uint8
	cmd  ccp.CommandCode
	done chan result
}

type result struct {
	crm ccp.CRM
	err error
}

// Engine is the master-side command state machine bound to one
// Transport Adapter. It owns the CTR counter and the single
// outstanding-request slot; both are guarded by mu, the component's one
// synchronization point per the concurrency model.
type Engine struct {
	sender  Sender
	timeout time.Duration
	queue   *queue.Queue
	diag    *ccp.Diagnostics
	log     *log.Entry

	mu       sync.Mutex
	ctr      uint8
	inFlight *pending

	eventMu sync.RWMutex
	onEvent func(ccp.Event)
}

// Option customizes an Engine at construction.
type Option func(*Engine)

func WithTimeout(d time.Duration) Option { return func(e *Engine) { e.timeout = d } }
func WithDiagnostics(d *ccp.Diagnostics) Option {
	return func(e *Engine) { e.diag = d }
}
func WithLogger(entry *log.Entry) Option { return func(e *Engine) { e.log = entry } }

// New builds an Engine over sender (typically a *transport.Adapter) with
// the CCP default 250ms timeout unless overridden by WithTimeout. The
// returned Engine must be registered as a transport.Adapter listener (it
// implements ccp.FrameListener) so inbound CRMs and Events reach it.
func New(sender Sender, opts ...Option) *Engine {
	e := &Engine{
		sender:  sender,
		timeout: DefaultTimeout,
		queue:   queue.New(),
		diag:    &ccp.Diagnostics{},
		log:     log.NewEntry(log.StandardLogger()),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Diagnostics returns the counters this engine increments on anomalies.
func (e *Engine) Diagnostics() *ccp.Diagnostics { return e.diag }

// OnEvent registers the handler Event Messages (pid=0xFE) are routed to.
// Events never satisfy a pending request.
func (e *Engine) OnEvent(handler func(ccp.Event)) {
	e.eventMu.Lock()
	defer e.eventMu.Unlock()
	e.onEvent = handler
}

// Do sends cro (with CTR assigned by the engine, overriding any value
// already in cro.CTR) and blocks until the matching CRM arrives, the
// per-request timeout expires, ctx is cancelled, or the transport fails.
// Concurrent callers are serialized through the internal queue: a caller
// queued behind another observes FIFO send order and never overlaps
// another in-flight CRO.
func (e *Engine) Do(ctx context.Context, cro ccp.CRO) (ccp.CRM, error) {
	ticket := e.queue.Take()
	select {
	case <-ticket.Wait:
		defer ticket.Release()
	case <-ctx.Done():
		// Hand the turn on only once every ticket ahead has released, so
		// the caller behind this one never overlaps a CRO still in flight.
		go func() {
			<-ticket.Wait
			ticket.Release()
		}()
		return ccp.CRM{}, ccp.ErrCancelled
	}

	p := &pending{cmd: cro.Cmd, done: make(chan result, 1)}

	e.mu.Lock()
	p.ctr = e.ctr
	e.ctr++ // wraps 0xFF -> 0x00 via uint8 overflow
	cro.CTR = p.ctr
	e.inFlight = p
	e.mu.Unlock()

	if err := e.sender.SendCRO(cro); err != nil {
		e.clearIfCurrent(p)
		return ccp.CRM{}, &ccp.TransportError{Cause: err}
	}

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case res := <-p.done:
		return res.crm, res.err
	case <-timer.C:
		e.clearIfCurrent(p)
		return ccp.CRM{}, ccp.ErrTimeout
	case <-ctx.Done():
		e.clearIfCurrent(p)
		return ccp.CRM{}, ccp.ErrCancelled
	}
}

func (e *Engine) clearIfCurrent(p *pending) {
	e.mu.Lock()
	if e.inFlight == p {
		e.inFlight = nil
	}
	e.mu.Unlock()
}

// Handle implements ccp.FrameListener. It is the single writer to the
// pending-request completion slot, matching the concurrency model's
// "inbound pump is the only writer" rule.
func (e *Engine) Handle(frame ccp.Frame) {
	dto := ccp.DecodeDTO(frame)
	switch dto.Kind {
	case ccp.KindCRM:
		e.handleCRM(dto.CRM)
	case ccp.KindEvent:
		e.eventMu.RLock()
		handler := e.onEvent
		e.eventMu.RUnlock()
		if handler != nil {
			handler(dto.Event)
		}
	case ccp.KindDAQ:
		// DAQ-DTOs are the DAQ decoder's concern, not the command engine's.
	}
}

func (e *Engine) handleCRM(crm ccp.CRM) {
	e.mu.Lock()
	p := e.inFlight
	if p == nil || crm.CTR != p.ctr {
		e.mu.Unlock()
		e.diag.IncCRMMismatchedCTR()
		e.log.WithField("ctr", crm.CTR).Debug("ccp: discarding CRM with no matching pending request")
		return
	}
	e.inFlight = nil
	e.mu.Unlock()

	var err error
	if crm.ReturnCode != ccp.CRCAcknowledge {
		err = &ccp.SlaveError{Code: crm.ReturnCode, Command: p.cmd}
	}
	select {
	case p.done <- result{crm: crm, err: err}:
	default:
		// Abandoned slot (caller already timed out/cancelled): drop.
	}
}

var _ ccp.FrameListener = (*Engine)(nil)
