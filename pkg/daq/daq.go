// Package daq implements the DAQ Scheduler & Decoder: it partitions a
// set of Elements into ODTs via first-fit bin-packing, issues the
// commands that arm them on the slave, and decodes inbound DAQ-DTO
// frames into scaled engineering-unit samples. It is grounded on
// pdo_common.go's mapping/offset bookkeeping (PDO bin-packing into an
// 8-byte frame) generalized from one 8-byte PDO to N 7-byte ODTs, and on
// pdo_configurator.go's pattern of issuing one request per mapping
// entry for the arming sequence.
package daq

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/samsamfire/goccp"
	"github.com/samsamfire/goccp/pkg/element"
	"github.com/samsamfire/goccp/pkg/session"
)

// odtDataBytes is the per-ODT data capacity. An ODT's 8-byte DAQ-DTO
// frame reserves byte 0 for the ODT number, leaving 7 data bytes, but
// the packer only ever fills 6 of them: an element is placed only if
// doing so leaves offset 6 unused, so a full ODT never straddles into
// the frame's last byte.
const odtDataBytes = 7

// Entry binds one Element to its packed location: which ODT and at
// which byte offset inside that ODT's data area.
type Entry struct {
	Element element.Element
	ODT     int
	Offset  int
}

// Partition performs first-fit bin-packing of elements (in the order
// given; callers choose ordering) into ODTs of up to odtDataBytes bytes
// each. No element straddles an ODT boundary.
func Partition(elements []element.Element) [][]Entry {
	var odts [][]Entry
	offset := odtDataBytes // forces a new ODT on the first element

	for _, el := range elements {
		size := int(el.Size)
		if offset+size >= odtDataBytes {
			odts = append(odts, nil)
			offset = 0
		}
		idx := len(odts) - 1
		odts[idx] = append(odts[idx], Entry{Element: el, ODT: idx, Offset: offset})
		offset += size
	}
	return odts
}

// Sink receives decoded DAQ samples. OnSample is called on the
// transport's delivery goroutine and must not block.
type Sink interface {
	OnSample(elementName string, value float64, timestamp time.Time)
}

// Session is the subset of *session.Session the scheduler needs to arm
// and run a DAQ list.
type Session interface {
	GetDaqSize(ctx context.Context, daqList uint8, dtoID uint16) (session.DaqSize, error)
	SetDaqPtr(ctx context.Context, daqList, odt, elementIdx uint8) (ccp.CRM, error)
	WriteDaq(ctx context.Context, size, extension uint8, address uint32) (ccp.CRM, error)
	StartStop(ctx context.Context, mode ccp.StartStopMode, daqList, lastODT, eventChannel, prescaler uint8) (ccp.CRM, error)
	StartStopAll(ctx context.Context, mode ccp.StartStopMode) (ccp.CRM, error)
}

// Scheduler owns the ODT map for one DAQ list once armed: it partitions
// Elements into ODTs, arms the slave through Session, and decodes
// inbound DAQ-DTO frames. It implements ccp.FrameListener so it can be
// registered directly on a transport.Adapter alongside the command
// engine.
type Scheduler struct {
	session      Session
	diag         *ccp.Diagnostics
	sink         Sink
	log          *log.Entry
	daqList      uint8
	dtoID        uint16
	eventChannel uint8
	prescaler    uint8

	mu       sync.Mutex
	odts     [][]Entry
	firstPID uint8
	armed    bool
}

// Option customizes a Scheduler at construction.
type Option func(*Scheduler)

func WithDiagnostics(d *ccp.Diagnostics) Option { return func(s *Scheduler) { s.diag = d } }
func WithLogger(entry *log.Entry) Option        { return func(s *Scheduler) { s.log = entry } }
func WithEventChannel(ch uint8) Option          { return func(s *Scheduler) { s.eventChannel = ch } }
func WithPrescaler(p uint8) Option              { return func(s *Scheduler) { s.prescaler = p } }

// New builds a Scheduler for daqList, streamed on dtoID, delivering
// decoded samples to sink.
func New(sess Session, daqList uint8, dtoID uint16, sink Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		session:   sess,
		diag:      &ccp.Diagnostics{},
		sink:      sink,
		log:       log.NewEntry(log.StandardLogger()),
		daqList:   daqList,
		dtoID:     dtoID,
		prescaler: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Diagnostics returns the counters this scheduler increments on
// anomalies (unexpected PIDs, decode errors).
func (s *Scheduler) Diagnostics() *ccp.Diagnostics { return s.diag }

// Initialize discards any existing ODT map and partitions elements
// afresh. It does not talk to the slave; call Arm to install the map.
func (s *Scheduler) Initialize(elements []element.Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.odts = Partition(elements)
	s.armed = false
}

// Arm queries GET_DAQ_SIZE, checks the partitioned map fits, and issues
// SET_DAQ_PTR/WRITE_DAQ for every element in map order.
func (s *Scheduler) Arm(ctx context.Context) error {
	s.mu.Lock()
	odts := s.odts
	s.mu.Unlock()

	size, err := s.session.GetDaqSize(ctx, s.daqList, s.dtoID)
	if err != nil {
		return err
	}
	if len(odts) > int(size.NumODT) {
		requested := 0
		for _, entries := range odts {
			for _, e := range entries {
				requested += int(e.Element.Size)
			}
		}
		return &ccp.Capacity{RequestedBytes: requested, Available: int(size.NumODT) * odtDataBytes}
	}

	for odtIdx, entries := range odts {
		for elemIdx, e := range entries {
			if _, err := s.session.SetDaqPtr(ctx, s.daqList, uint8(odtIdx), uint8(elemIdx)); err != nil {
				return err
			}
			if _, err := s.session.WriteDaq(ctx, e.Element.Size, e.Element.Extension, e.Element.Address); err != nil {
				return err
			}
		}
	}

	s.mu.Lock()
	s.firstPID = size.FirstPID
	s.armed = true
	s.mu.Unlock()
	return nil
}

// Run prepares and starts the DAQ list: START_STOP(prepare) for this
// list followed by START_STOP_ALL(start).
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	lastODT := uint8(len(s.odts) - 1)
	s.mu.Unlock()

	if _, err := s.session.StartStop(ctx, ccp.DaqPrepare, s.daqList, lastODT, s.eventChannel, s.prescaler); err != nil {
		return err
	}
	_, err := s.session.StartStopAll(ctx, ccp.DaqStart)
	return err
}

// Stop sends START_STOP_ALL(stop). The ODT map is retained, so a
// subsequent Run without Initialize is valid.
func (s *Scheduler) Stop(ctx context.Context) error {
	_, err := s.session.StartStopAll(ctx, ccp.DaqStop)
	return err
}

// Handle implements ccp.FrameListener, decoding every inbound DAQ-DTO.
// It never returns an error to the caller: malformed or unexpected
// frames are counted in Diagnostics instead.
func (s *Scheduler) Handle(frame ccp.Frame) {
	dto := ccp.DecodeDTO(frame)
	if dto.Kind != ccp.KindDAQ {
		return
	}
	s.decode(dto.DAQ, time.Now())
}

func (s *Scheduler) decode(df ccp.DAQFrame, ts time.Time) {
	s.mu.Lock()
	odts := s.odts
	firstPID := s.firstPID
	armed := s.armed
	s.mu.Unlock()

	if !armed {
		return
	}
	idx := int(df.ODT) - int(firstPID)
	if idx < 0 || idx >= len(odts) {
		s.diag.IncUnexpectedPID()
		s.log.WithField("odt", df.ODT).Debug("ccp: DAQ-DTO with PID outside any armed range")
		return
	}
	for _, entry := range odts[idx] {
		size := int(entry.Element.Size)
		if entry.Offset+size > len(df.Data) {
			s.diag.IncDecodeErrors()
			continue
		}
		value := entry.Element.DecodeBytes(df.Data[entry.Offset : entry.Offset+size])
		s.sink.OnSample(entry.Element.Name, value, ts)
	}
}

var _ ccp.FrameListener = (*Scheduler)(nil)
