package master

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samsamfire/goccp"
	"github.com/samsamfire/goccp/pkg/config"
	"github.com/samsamfire/goccp/pkg/element"
	"github.com/samsamfire/goccp/pkg/transport/loopback"
)

// fakeSlave sits on the other end of a loopback bus and acknowledges
// every CRO it receives, optionally emitting DAQ-DTOs once told to.
type fakeSlave struct {
	bus    *loopback.Bus
	croID  uint32
	dtoID  uint32
	numODT uint8
	first  uint8
}

func newFakeSlave(name string, croID, dtoID uint32) *fakeSlave {
	s := &fakeSlave{bus: loopback.New(name), croID: croID, dtoID: dtoID, numODT: 1, first: 0xF0}
	_ = s.bus.Subscribe(s)
	_ = s.bus.Connect()
	return s
}

func (s *fakeSlave) Handle(frame ccp.Frame) {
	if frame.ID != s.croID {
		return
	}
	cmd := ccp.CommandCode(frame.Data[0])
	ctr := frame.Data[1]

	var data [5]byte
	if cmd == ccp.CmdGetDaqSize {
		data[0] = s.numODT
		data[1] = s.first
	}
	crm := ccp.CRM{ReturnCode: ccp.CRCAcknowledge, CTR: ctr, Data: data}
	_ = s.bus.Send(ccp.NewFrame(s.dtoID, encodeCRM(crm)))
}

func (s *fakeSlave) sendDaq(odt uint8, data [7]byte) {
	var payload [8]byte
	payload[0] = odt
	copy(payload[1:], data[:])
	_ = s.bus.Send(ccp.NewFrame(s.dtoID, payload))
}

func encodeCRM(crm ccp.CRM) [8]byte {
	var data [8]byte
	data[0] = 0xFF
	data[1] = uint8(crm.ReturnCode)
	data[2] = crm.CTR
	copy(data[3:], crm.Data[:])
	return data
}

func newTestMaster(t *testing.T, sink *recordingSink) (*Master, *fakeSlave) {
	t.Helper()
	busName := t.Name()
	slave := newFakeSlave(busName, 0x300, 0x301)

	cfg := &config.Master{
		CROId:          0x300,
		DTOId:          0x301,
		StationAddress: 0x37,
		ByteOrder:      ccp.BigEndian,
		DefaultTimeout: 200 * time.Millisecond,
		DaqList:        0,
	}
	m := New(loopback.New(busName), cfg, sink, nil)
	return m, slave
}

type recordingSink struct {
	names  []string
	values []float64
}

func (r *recordingSink) OnSample(name string, value float64, _ time.Time) {
	r.names = append(r.names, name)
	r.values = append(r.values, value)
}

func TestMasterConnectLifecycle(t *testing.T) {
	m, _ := newTestMaster(t, &recordingSink{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, m.Connect(ctx))
	assert.Equal(t, ccp.Connected, m.Session.State())

	_, err := m.GetCCPVersion(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, ccp.Ready, m.Session.State())

	require.NoError(t, m.Disconnect(ctx, ccp.DisconnectTemporary))
	assert.Equal(t, ccp.Disconnected, m.Session.State())
}

func TestMasterUploadReturnsRequestedBytes(t *testing.T) {
	m, _ := newTestMaster(t, &recordingSink{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, m.Connect(ctx))
	_, err := m.SetMTA(ctx, 0, 0, 0x1000)
	require.NoError(t, err)

	data, err := m.Upload(ctx, 4)
	require.NoError(t, err)
	assert.Len(t, data, 4)
}

func TestMasterDaqRunAndDecode(t *testing.T) {
	el, err := element.New("rpm", 0x2000, 2, element.WithScale(0.1))
	require.NoError(t, err)

	sink := &recordingSink{}
	m, slave := newTestMaster(t, sink)
	m.DaqInitialize([]element.Element{el})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, m.Connect(ctx))
	_, err = m.GetCCPVersion(ctx, 2, 1)
	require.NoError(t, err)
	require.NoError(t, m.DaqRun(ctx))
	assert.Equal(t, ccp.DAQRunning, m.Session.State())

	slave.sendDaq(0xF0, [7]byte{0x01, 0x2C, 0, 0, 0, 0, 0})
	require.Eventually(t, func() bool { return len(sink.names) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "rpm", sink.names[0])
	assert.InDelta(t, 30.0, sink.values[0], 1e-9)

	require.NoError(t, m.DaqStop(ctx))
	assert.Equal(t, ccp.Ready, m.Session.State())
}

func TestMasterDiagnosticsExposed(t *testing.T) {
	m, _ := newTestMaster(t, &recordingSink{})
	snap := m.Diagnostics()
	assert.EqualValues(t, 0, snap.CRMMismatchedCTR)
}
