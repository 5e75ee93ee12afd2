// Command ccpmaster is a small interactive CCP master: it loads a
// calibration description file, connects to a slave over SocketCAN (or
// an in-memory loopback bus for local testing), runs through the
// CONNECT/GET_CCP_VERSION lifecycle, and optionally starts
// DAQ acquisition, printing every decoded sample. It is grounded on
// cmd/canopen/main.go's flag-based interface selection and state-driven
// main loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/samsamfire/goccp"
	"github.com/samsamfire/goccp/pkg/config"
	"github.com/samsamfire/goccp/pkg/master"
	"github.com/samsamfire/goccp/pkg/transport/loopback"
	"github.com/samsamfire/goccp/pkg/transport/socketcan"
)

const defaultInterface = "vcan0"

// stdoutSink prints every decoded DAQ sample as it arrives.
type stdoutSink struct{}

func (stdoutSink) OnSample(name string, value float64, ts time.Time) {
	fmt.Printf("%s  %-20s %v\n", ts.Format(time.RFC3339Nano), name, value)
}

func main() {
	log.SetLevel(log.InfoLevel)

	iface := flag.String("i", defaultInterface, "socketcan interface e.g. can0, vcan0; \"loopback:<name>\" for an in-memory bus")
	cfgPath := flag.String("c", "", "calibration description file (ini)")
	runDaq := flag.Bool("daq", false, "arm and start DAQ acquisition after connecting")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if *cfgPath == "" {
		fmt.Fprintln(os.Stderr, "ccpmaster: -c <calibration description file> is required")
		os.Exit(1)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.WithError(err).Fatal("ccpmaster: failed to load configuration")
	}

	bus, err := newBus(*iface)
	if err != nil {
		log.WithError(err).Fatal("ccpmaster: failed to open interface")
	}

	m := master.New(bus, cfg, stdoutSink{}, log.NewEntry(log.StandardLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("ccpmaster: signal received, disconnecting")
		cancel()
	}()

	connectCtx, connectCancel := context.WithTimeout(ctx, 2*time.Second)
	defer connectCancel()
	if err := m.Connect(connectCtx); err != nil {
		log.WithError(err).Fatal("ccpmaster: connect failed")
	}
	log.WithField("state", m.Session.State()).Info("ccpmaster: connected")

	if _, err := m.GetCCPVersion(connectCtx, 2, 1); err != nil {
		log.WithError(err).Warn("ccpmaster: GET_CCP_VERSION failed, continuing")
	}

	if *runDaq && len(cfg.Elements) > 0 {
		if err := m.DaqRun(connectCtx); err != nil {
			log.WithError(err).Fatal("ccpmaster: failed to start DAQ")
		}
		log.Info("ccpmaster: DAQ running, Ctrl-C to stop")
	}

	<-ctx.Done()

	disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer disconnectCancel()
	if m.Session.State() == ccp.DAQRunning {
		_ = m.DaqStop(disconnectCtx)
	}
	if err := m.Disconnect(disconnectCtx, ccp.DisconnectTemporary); err != nil {
		log.WithError(err).Warn("ccpmaster: disconnect failed")
	}

	snap := m.Diagnostics()
	log.WithFields(log.Fields{
		"crm_mismatched_ctr": snap.CRMMismatchedCTR,
		"unexpected_pid":     snap.UnexpectedPID,
		"decode_errors":      snap.DecodeErrors,
	}).Info("ccpmaster: diagnostics")
}

// newBus opens a real SocketCAN interface, or an in-memory loopback bus
// when iface is of the form "loopback:<name>" (used for local testing
// without a vcan0 interface set up).
func newBus(iface string) (ccp.Bus, error) {
	const loopbackPrefix = "loopback:"
	if len(iface) > len(loopbackPrefix) && iface[:len(loopbackPrefix)] == loopbackPrefix {
		return loopback.New(iface[len(loopbackPrefix):]), nil
	}
	return socketcan.New(iface)
}
