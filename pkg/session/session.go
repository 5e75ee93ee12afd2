// Package session implements the CCP lifecycle (connect, exchange id,
// seed/unlock, disconnect) and the mirrored MTA0/MTA1 registers used by
// UPLOAD/DOWNLOAD/CLEAR_MEMORY/MOVE, as thin typed wrappers over a
// command.Engine. It is grounded on pkg/config/general.go's
// NodeConfigurator (typed read/write wrappers over an SDO client) and on
// pdo_configurator.go's pattern of a stateful helper bound to one node.
package session

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/samsamfire/goccp"
)

// Engine is the subset of command.Engine a Session needs; an interface
// so tests can substitute a fake without touching the real transport.
type Engine interface {
	Do(ctx context.Context, cro ccp.CRO) (ccp.CRM, error)
	OnEvent(handler func(ccp.Event))
}

type mtaRegister struct {
	extension uint8
	address   uint32
}

// Session is the master-side lifecycle and MTA bookkeeping for one CCP
// slave. It exclusively owns the mutable session state and MTA mirrors.
type Session struct {
	engine  Engine
	order   ccp.ByteOrder
	station uint16
	log     *log.Entry
	onEvent func(ccp.Event)

	mu    sync.Mutex
	state ccp.SessionState
	mta0  mtaRegister
	mta1  mtaRegister
}

// Option customizes a Session at construction.
type Option func(*Session)

func WithLogger(entry *log.Entry) Option { return func(s *Session) { s.log = entry } }
func WithEventHandler(handler func(ccp.Event)) Option {
	return func(s *Session) { s.onEvent = handler }
}

// New builds a Session bound to engine, using byteOrder for multi-byte
// CRO fields (the CONNECT station address is always little-endian
// regardless, per the codec) and station as the slave's 16-bit address.
func New(engine Engine, byteOrder ccp.ByteOrder, station uint16, opts ...Option) *Session {
	s := &Session{
		engine:  engine,
		order:   byteOrder,
		station: station,
		log:     log.NewEntry(log.StandardLogger()),
		state:   ccp.Disconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	engine.OnEvent(s.handleEvent)
	return s
}

func (s *Session) handleEvent(e ccp.Event) {
	s.log.WithField("code", e.Code).Debug("ccp: event message received")
	if s.onEvent != nil {
		s.onEvent(e)
	}
}

// State returns the current lifecycle state.
func (s *Session) State() ccp.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state ccp.SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// isFatal reports whether err should drive the session to Faulted:
// transport failures, request timeouts, and a CRC_ERR of internal
// timeout all mean the slave (or the link to it) gave up mid-operation.
func isFatal(err error) bool {
	if err == nil {
		return false
	}
	var transportErr *ccp.TransportError
	if errors.As(err, &transportErr) {
		return true
	}
	if errors.Is(err, ccp.ErrTimeout) {
		return true
	}
	var slaveErr *ccp.SlaveError
	if errors.As(err, &slaveErr) && slaveErr.Code.IsFatal() {
		return true
	}
	return false
}

// guarded runs cro through the engine and latches the session into
// Faulted if the outcome is one of the three fatal kinds.
func (s *Session) guarded(ctx context.Context, cro ccp.CRO) (ccp.CRM, error) {
	crm, err := s.engine.Do(ctx, cro)
	if isFatal(err) {
		s.setState(ccp.FaultedState)
	}
	return crm, err
}

// requireNotDisconnected guards operations that are meaningless before
// CONNECT or after the session has latched Faulted.
func (s *Session) requireNotDisconnected() error {
	state := s.State()
	if state == ccp.Disconnected || state == ccp.FaultedState {
		return &ccp.ProtocolViolation{Expected: ccp.Connected, Actual: state}
	}
	return nil
}

// Connect sends CONNECT and moves Disconnected -> Connected.
func (s *Session) Connect(ctx context.Context) (ccp.CRM, error) {
	if state := s.State(); state != ccp.Disconnected {
		return ccp.CRM{}, &ccp.ProtocolViolation{Expected: ccp.Disconnected, Actual: state}
	}
	crm, err := s.guarded(ctx, ccp.ConnectCRO(0, s.station))
	if err == nil {
		s.setState(ccp.Connected)
	}
	return crm, err
}

// ExchangeID sends EXCHANGE_ID and moves Connected -> Ready.
func (s *Session) ExchangeID(ctx context.Context, masterData []byte) (ccp.CRM, error) {
	cro, err := ccp.ExchangeIDCRO(0, masterData)
	if err != nil {
		return ccp.CRM{}, err
	}
	if err := s.requireNotDisconnected(); err != nil {
		return ccp.CRM{}, err
	}
	crm, err := s.guarded(ctx, cro)
	if err == nil {
		s.promoteToReady()
	}
	return crm, err
}

// GetCCPVersion sends GET_CCP_VERSION, required after CONNECT on strict
// slaves, and also moves Connected -> Ready on success.
func (s *Session) GetCCPVersion(ctx context.Context, major, minor uint8) (ccp.CRM, error) {
	if err := s.requireNotDisconnected(); err != nil {
		return ccp.CRM{}, err
	}
	crm, err := s.guarded(ctx, ccp.GetCCPVersionCRO(0, major, minor))
	if err == nil {
		s.promoteToReady()
	}
	return crm, err
}

func (s *Session) promoteToReady() {
	s.mu.Lock()
	if s.state == ccp.Connected {
		s.state = ccp.Ready
	}
	s.mu.Unlock()
}

// GetSeed sends GET_SEED for the given resource mask; key derivation
// from the returned seed is left to the embedder.
func (s *Session) GetSeed(ctx context.Context, resource ccp.Resource) (ccp.CRM, error) {
	if err := s.requireNotDisconnected(); err != nil {
		return ccp.CRM{}, err
	}
	return s.guarded(ctx, ccp.GetSeedCRO(0, resource))
}

// Unlock sends UNLOCK with the key derived by the embedder from a prior
// GetSeed response.
func (s *Session) Unlock(ctx context.Context, key []byte) (ccp.CRM, error) {
	cro, err := ccp.UnlockCRO(0, key)
	if err != nil {
		return ccp.CRM{}, err
	}
	if err := s.requireNotDisconnected(); err != nil {
		return ccp.CRM{}, err
	}
	return s.guarded(ctx, cro)
}

// SetMTA sends SET_MTA and updates the mirrored MTA register on success.
func (s *Session) SetMTA(ctx context.Context, mtaNumber, extension uint8, address uint32) (ccp.CRM, error) {
	cro, err := ccp.SetMTACRO(0, s.order, mtaNumber, extension, address)
	if err != nil {
		return ccp.CRM{}, err
	}
	if err := s.requireNotDisconnected(); err != nil {
		return ccp.CRM{}, err
	}
	crm, err := s.guarded(ctx, cro)
	if err == nil {
		s.mu.Lock()
		reg := mtaRegister{extension: extension, address: address}
		if mtaNumber == 0 {
			s.mta0 = reg
		} else {
			s.mta1 = reg
		}
		s.mu.Unlock()
	}
	return crm, err
}

// Download sends DNLOAD or DNLOAD_6 (chosen by len(data)) and advances
// MTA0 by len(data) on success.
func (s *Session) Download(ctx context.Context, data []byte) (ccp.CRM, error) {
	cro, err := ccp.DownloadCRO(0, data)
	if err != nil {
		return ccp.CRM{}, err
	}
	if err := s.requireNotDisconnected(); err != nil {
		return ccp.CRM{}, err
	}
	crm, err := s.guarded(ctx, cro)
	if err == nil {
		s.mu.Lock()
		s.mta0.address += uint32(len(data))
		s.mu.Unlock()
	}
	return crm, err
}

// Upload sends UPLOAD for size bytes (<=5), returns the data read, and
// advances MTA0 by size on success.
func (s *Session) Upload(ctx context.Context, size uint8) ([]byte, error) {
	cro, err := ccp.UploadCRO(0, size)
	if err != nil {
		return nil, err
	}
	if err := s.requireNotDisconnected(); err != nil {
		return nil, err
	}
	crm, err := s.guarded(ctx, cro)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.mta0.address += uint32(size)
	s.mu.Unlock()
	return append([]byte(nil), crm.Data[:size]...), nil
}

// ShortUp sends SHORT_UP, an ad-hoc upload from an explicit address that
// never touches MTA0.
func (s *Session) ShortUp(ctx context.Context, size, extension uint8, address uint32) ([]byte, error) {
	cro, err := ccp.ShortUpCRO(0, s.order, size, extension, address)
	if err != nil {
		return nil, err
	}
	if err := s.requireNotDisconnected(); err != nil {
		return nil, err
	}
	crm, err := s.guarded(ctx, cro)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), crm.Data[:size]...), nil
}

// ClearMemory sends CLEAR_MEMORY for size bytes at the current MTA0.
func (s *Session) ClearMemory(ctx context.Context, size uint32) (ccp.CRM, error) {
	if err := s.requireNotDisconnected(); err != nil {
		return ccp.CRM{}, err
	}
	return s.guarded(ctx, ccp.ClearMemoryCRO(0, s.order, size))
}

// Move sends MOVE, copying size bytes from MTA0 to MTA1.
func (s *Session) Move(ctx context.Context, size uint32) (ccp.CRM, error) {
	if err := s.requireNotDisconnected(); err != nil {
		return ccp.CRM{}, err
	}
	return s.guarded(ctx, ccp.MoveCRO(0, s.order, size))
}

// DaqSize is the decoded GET_DAQ_SIZE response.
type DaqSize struct {
	NumODT   uint8
	FirstPID uint8
}

// GetDaqSize sends GET_DAQ_SIZE for daqList over dtoID.
func (s *Session) GetDaqSize(ctx context.Context, daqList uint8, dtoID uint16) (DaqSize, error) {
	if err := s.requireNotDisconnected(); err != nil {
		return DaqSize{}, err
	}
	crm, err := s.guarded(ctx, ccp.GetDaqSizeCRO(0, s.order, daqList, dtoID))
	if err != nil {
		return DaqSize{}, err
	}
	return DaqSize{NumODT: crm.Data[0], FirstPID: crm.Data[1]}, nil
}

// SetDaqPtr sends SET_DAQ_PTR, targeting the WRITE_DAQ that follows.
func (s *Session) SetDaqPtr(ctx context.Context, daqList, odt, elementIdx uint8) (ccp.CRM, error) {
	if err := s.requireNotDisconnected(); err != nil {
		return ccp.CRM{}, err
	}
	return s.guarded(ctx, ccp.SetDaqPtrCRO(0, daqList, odt, elementIdx))
}

// WriteDaq sends WRITE_DAQ, installing one element at the pointer set by
// the preceding SetDaqPtr.
func (s *Session) WriteDaq(ctx context.Context, size, extension uint8, address uint32) (ccp.CRM, error) {
	if err := s.requireNotDisconnected(); err != nil {
		return ccp.CRM{}, err
	}
	return s.guarded(ctx, ccp.WriteDaqCRO(0, s.order, size, extension, address))
}

// StartStop sends START_STOP for one DAQ list and tracks the
// Ready<->DAQRunning transition for start/stop modes.
func (s *Session) StartStop(ctx context.Context, mode ccp.StartStopMode, daqList, lastODT, eventChannel, prescaler uint8) (ccp.CRM, error) {
	if err := s.requireNotDisconnected(); err != nil {
		return ccp.CRM{}, err
	}
	crm, err := s.guarded(ctx, ccp.StartStopCRO(0, mode, daqList, lastODT, eventChannel, prescaler))
	if err == nil {
		s.applyDaqMode(mode)
	}
	return crm, err
}

// StartStopAll sends START_STOP_ALL, affecting every armed DAQ list.
func (s *Session) StartStopAll(ctx context.Context, mode ccp.StartStopMode) (ccp.CRM, error) {
	if err := s.requireNotDisconnected(); err != nil {
		return ccp.CRM{}, err
	}
	crm, err := s.guarded(ctx, ccp.StartStopAllCRO(0, mode))
	if err == nil {
		s.applyDaqMode(mode)
	}
	return crm, err
}

func (s *Session) applyDaqMode(mode ccp.StartStopMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch mode {
	case ccp.DaqStart:
		if s.state == ccp.Ready {
			s.state = ccp.DAQRunning
		}
	case ccp.DaqStop:
		if s.state == ccp.DAQRunning {
			s.state = ccp.Ready
		}
	}
}

// Disconnect sends DISCONNECT (skipped if the session is already
// Disconnected or Faulted, since the link is presumed unusable) and
// unconditionally resets local state to Disconnected, clearing the
// mirrored MTA registers so a later CONNECT starts clean.
func (s *Session) Disconnect(ctx context.Context, typ ccp.DisconnectType) error {
	state := s.State()
	var err error
	if state != ccp.Disconnected && state != ccp.FaultedState {
		_, err = s.engine.Do(ctx, ccp.DisconnectCRO(0, typ))
	}
	s.mu.Lock()
	s.state = ccp.Disconnected
	s.mta0 = mtaRegister{}
	s.mta1 = mtaRegister{}
	s.mu.Unlock()
	return err
}
