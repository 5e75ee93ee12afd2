// Package master wires a Bus, the Transport Adapter, the Command
// Engine, the Session Manager and the DAQ Scheduler into one
// ready-to-use CCP master instance. It is the analogue of the teacher's
// root canopen.Network: one object the embedder constructs once and
// drives through its public operations.
//
// It lives outside the root ccp package (rather than as ccp.Master, as
// first sketched) because pkg/command, pkg/session and pkg/daq all
// import the root package for its types and errors; a root-level Master
// importing them back would be an import cycle. This mirrors the
// teacher's own layering, where canopen's root package never imports
// pkg/network.
package master

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/samsamfire/goccp"
	"github.com/samsamfire/goccp/pkg/command"
	"github.com/samsamfire/goccp/pkg/config"
	"github.com/samsamfire/goccp/pkg/daq"
	"github.com/samsamfire/goccp/pkg/element"
	"github.com/samsamfire/goccp/pkg/session"
	"github.com/samsamfire/goccp/pkg/transport"
)

// Master is one master <-> slave CCP session bound to a single cro_id/
// dto_id pair. To talk to a second slave, construct a second Master.
type Master struct {
	Transport *transport.Adapter
	Engine    *command.Engine
	Session   *session.Session
	DAQ       *daq.Scheduler

	log *log.Entry
}

// New builds a Master from its static configuration, the Bus to use and
// the Sink that receives decoded DAQ samples. The bus is not connected
// until Connect is called.
func New(bus ccp.Bus, cfg *config.Master, sink daq.Sink, logger *log.Entry) *Master {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	diag := &ccp.Diagnostics{}

	adapter := transport.New(bus, cfg.CROId, cfg.DTOId)
	engine := command.New(adapter,
		command.WithTimeout(cfg.DefaultTimeout),
		command.WithDiagnostics(diag),
		command.WithLogger(logger.WithField("component", "command")),
	)
	sess := session.New(engine, cfg.ByteOrder, cfg.StationAddress,
		session.WithLogger(logger.WithField("component", "session")),
	)
	scheduler := daq.New(sess, cfg.DaqList, uint16(cfg.DTOId), sink,
		daq.WithDiagnostics(diag),
		daq.WithLogger(logger.WithField("component", "daq")),
	)

	adapter.AddListener(engine)
	adapter.AddListener(scheduler)

	if len(cfg.Elements) > 0 {
		scheduler.Initialize(cfg.Elements)
	}

	return &Master{
		Transport: adapter,
		Engine:    engine,
		Session:   sess,
		DAQ:       scheduler,
		log:       logger,
	}
}

// Diagnostics returns the shared per-session anomaly counters
// (crm_mismatched_ctr, unexpected_pid, decode_errors).
func (m *Master) Diagnostics() ccp.Snapshot { return m.Engine.Diagnostics().Snapshot() }

// Connect brings the transport up and issues CONNECT.
func (m *Master) Connect(ctx context.Context) error {
	if err := m.Transport.Connect(); err != nil {
		return err
	}
	_, err := m.Session.Connect(ctx)
	return err
}

// Disconnect issues DISCONNECT and tears down the transport.
func (m *Master) Disconnect(ctx context.Context, typ ccp.DisconnectType) error {
	err := m.Session.Disconnect(ctx, typ)
	if tErr := m.Transport.Disconnect(); tErr != nil && err == nil {
		err = tErr
	}
	return err
}

// GetCCPVersion, ExchangeID, GetSeed and Unlock are thin pass-throughs
// to the Session, kept here so embedders driving a Master don't need to
// reach into its Session field for the common lifecycle operations.
func (m *Master) GetCCPVersion(ctx context.Context, major, minor uint8) (ccp.CRM, error) {
	return m.Session.GetCCPVersion(ctx, major, minor)
}

func (m *Master) ExchangeID(ctx context.Context, masterData []byte) (ccp.CRM, error) {
	return m.Session.ExchangeID(ctx, masterData)
}

func (m *Master) GetSeed(ctx context.Context, resource ccp.Resource) (ccp.CRM, error) {
	return m.Session.GetSeed(ctx, resource)
}

func (m *Master) Unlock(ctx context.Context, key []byte) (ccp.CRM, error) {
	return m.Session.Unlock(ctx, key)
}

func (m *Master) SetMTA(ctx context.Context, mtaNumber, extension uint8, address uint32) (ccp.CRM, error) {
	return m.Session.SetMTA(ctx, mtaNumber, extension, address)
}

func (m *Master) Upload(ctx context.Context, size uint8) ([]byte, error) {
	return m.Session.Upload(ctx, size)
}

func (m *Master) ShortUp(ctx context.Context, size, extension uint8, address uint32) ([]byte, error) {
	return m.Session.ShortUp(ctx, size, extension, address)
}

func (m *Master) Download(ctx context.Context, data []byte) (ccp.CRM, error) {
	return m.Session.Download(ctx, data)
}

// DaqInitialize loads a fresh Element set into the DAQ scheduler,
// discarding any previously armed map.
func (m *Master) DaqInitialize(elements []element.Element) {
	m.DAQ.Initialize(elements)
}

// DaqRun arms the scheduler against the slave's reported DAQ size and
// starts acquisition.
func (m *Master) DaqRun(ctx context.Context) error {
	if err := m.DAQ.Arm(ctx); err != nil {
		return err
	}
	return m.DAQ.Run(ctx)
}

// DaqStop stops acquisition. The armed map is retained, so a subsequent
// DaqRun without DaqInitialize is valid.
func (m *Master) DaqStop(ctx context.Context) error {
	return m.DAQ.Stop(ctx)
}
