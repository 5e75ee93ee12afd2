package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samsamfire/goccp"
)

// fakeEngine lets tests script CRM responses per command kind without a
// real command.Engine or transport.
type fakeEngine struct {
	responses map[ccp.CommandCode]func(ccp.CRO) (ccp.CRM, error)
	calls     []ccp.CRO
	onEvent   func(ccp.Event)
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{responses: make(map[ccp.CommandCode]func(ccp.CRO) (ccp.CRM, error))}
}

func (f *fakeEngine) Do(ctx context.Context, cro ccp.CRO) (ccp.CRM, error) {
	f.calls = append(f.calls, cro)
	if handler, ok := f.responses[cro.Cmd]; ok {
		return handler(cro)
	}
	return ccp.CRM{CTR: cro.CTR}, nil
}

func (f *fakeEngine) OnEvent(handler func(ccp.Event)) { f.onEvent = handler }

func ack() (ccp.CRM, error) { return ccp.CRM{ReturnCode: ccp.CRCAcknowledge}, nil }

func TestSessionConnectLifecycle(t *testing.T) {
	eng := newFakeEngine()
	s := New(eng, ccp.BigEndian, 0x0037)
	assert.Equal(t, ccp.Disconnected, s.State())

	_, err := s.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ccp.Connected, s.State())

	// CONNECT's station address is always little-endian regardless of
	// the session's configured byte order.
	cro := eng.calls[0]
	assert.Equal(t, uint8(0x37), cro.Params[0])
	assert.Equal(t, uint8(0x00), cro.Params[1])

	_, err = s.ExchangeID(context.Background(), []byte("CCP"))
	require.NoError(t, err)
	assert.Equal(t, ccp.Ready, s.State())
}

func TestSessionConnectRejectedUnlessDisconnected(t *testing.T) {
	eng := newFakeEngine()
	s := New(eng, ccp.BigEndian, 0x0037)
	_, err := s.Connect(context.Background())
	require.NoError(t, err)

	_, err = s.Connect(context.Background())
	var violation *ccp.ProtocolViolation
	require.ErrorAs(t, err, &violation)
}

func TestSessionTimeoutFaultsSession(t *testing.T) {
	eng := newFakeEngine()
	eng.responses[ccp.CmdConnect] = func(ccp.CRO) (ccp.CRM, error) {
		return ccp.CRM{}, ccp.ErrTimeout
	}
	s := New(eng, ccp.BigEndian, 0x0037)
	_, err := s.Connect(context.Background())
	assert.ErrorIs(t, err, ccp.ErrTimeout)
	assert.Equal(t, ccp.FaultedState, s.State())
}

func TestSessionInternalTimeoutSlaveErrorFaults(t *testing.T) {
	eng := newFakeEngine()
	eng.responses[ccp.CmdConnect] = ack
	eng.responses[ccp.CmdUpload] = func(ccp.CRO) (ccp.CRM, error) {
		return ccp.CRM{}, &ccp.SlaveError{Code: ccp.CRCInternalTimeout, Command: ccp.CmdUpload}
	}
	s := New(eng, ccp.BigEndian, 0x0037)
	_, err := s.Connect(context.Background())
	require.NoError(t, err)
	s.setState(ccp.Ready)

	_, err = s.Upload(context.Background(), 4)
	require.Error(t, err)
	assert.Equal(t, ccp.FaultedState, s.State())
}

func TestSessionRecoverableSlaveErrorDoesNotFault(t *testing.T) {
	eng := newFakeEngine()
	eng.responses[ccp.CmdConnect] = ack
	eng.responses[ccp.CmdUnlock] = func(ccp.CRO) (ccp.CRM, error) {
		return ccp.CRM{}, &ccp.SlaveError{Code: ccp.CRCAccessDenied, Command: ccp.CmdUnlock}
	}
	s := New(eng, ccp.BigEndian, 0x0037)
	_, err := s.Connect(context.Background())
	require.NoError(t, err)

	_, err = s.Unlock(context.Background(), []byte{1, 2, 3})
	require.Error(t, err)
	assert.Equal(t, ccp.Connected, s.State())
}

func TestSessionMTAAdvancesAcrossUploads(t *testing.T) {
	eng := newFakeEngine()
	eng.responses[ccp.CmdConnect] = ack
	eng.responses[ccp.CmdSetMTA] = ack
	eng.responses[ccp.CmdUpload] = func(cro ccp.CRO) (ccp.CRM, error) {
		size := cro.Params[0]
		crm := ccp.CRM{ReturnCode: ccp.CRCAcknowledge}
		for i := uint8(0); i < size; i++ {
			crm.Data[i] = 0x10 + i
		}
		return crm, nil
	}
	s := New(eng, ccp.BigEndian, 0x0037)
	_, err := s.Connect(context.Background())
	require.NoError(t, err)
	s.setState(ccp.Ready)

	_, err = s.SetMTA(context.Background(), 0, 0, 0x4000AA56)
	require.NoError(t, err)

	first, err := s.Upload(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x10, 0x11, 0x12, 0x13}, first)
	assert.EqualValues(t, 0x4000AA5A, s.mta0.address)

	_, err = s.Upload(context.Background(), 2)
	require.NoError(t, err)
	assert.EqualValues(t, 0x4000AA5C, s.mta0.address)
}

func TestSessionDisconnectResetsFaulted(t *testing.T) {
	eng := newFakeEngine()
	eng.responses[ccp.CmdConnect] = func(ccp.CRO) (ccp.CRM, error) {
		return ccp.CRM{}, ccp.ErrTimeout
	}
	s := New(eng, ccp.BigEndian, 0x0037)
	_, _ = s.Connect(context.Background())
	require.Equal(t, ccp.FaultedState, s.State())

	err := s.Disconnect(context.Background(), ccp.DisconnectTemporary)
	require.NoError(t, err)
	assert.Equal(t, ccp.Disconnected, s.State())

	eng.responses[ccp.CmdConnect] = ack
	_, err = s.Connect(context.Background())
	require.NoError(t, err)
}

func TestSessionDaqLifecycle(t *testing.T) {
	eng := newFakeEngine()
	eng.responses[ccp.CmdConnect] = ack
	eng.responses[ccp.CmdStartStopAll] = ack
	s := New(eng, ccp.BigEndian, 0x0037)
	_, err := s.Connect(context.Background())
	require.NoError(t, err)
	s.setState(ccp.Ready)

	_, err = s.StartStopAll(context.Background(), ccp.DaqStart)
	require.NoError(t, err)
	assert.Equal(t, ccp.DAQRunning, s.State())

	_, err = s.StartStopAll(context.Background(), ccp.DaqStop)
	require.NoError(t, err)
	assert.Equal(t, ccp.Ready, s.State())
}

func TestSessionEventRoutedToHandler(t *testing.T) {
	eng := newFakeEngine()
	var got ccp.Event
	s := New(eng, ccp.BigEndian, 0x0037, WithEventHandler(func(e ccp.Event) { got = e }))
	eng.onEvent(ccp.Event{Code: 0x42})
	assert.EqualValues(t, 0x42, got.Code)
	_ = s
}
