package ccp

import "sync/atomic"

// Diagnostics accumulates counters for anomalies a master sees across its
// lifetime. It is the CCP analogue of an EMCY history: there is no slave
// push channel for these conditions, so the master counts them itself and
// exposes them for a caller's own health checks or logging.
type Diagnostics struct {
	crmMismatchedCTR uint64
	unexpectedPID    uint64
	decodeErrors     uint64
}

func (d *Diagnostics) IncCRMMismatchedCTR() { atomic.AddUint64(&d.crmMismatchedCTR, 1) }
func (d *Diagnostics) IncUnexpectedPID()    { atomic.AddUint64(&d.unexpectedPID, 1) }
func (d *Diagnostics) IncDecodeErrors()     { atomic.AddUint64(&d.decodeErrors, 1) }

func (d *Diagnostics) CRMMismatchedCTR() uint64 { return atomic.LoadUint64(&d.crmMismatchedCTR) }
func (d *Diagnostics) UnexpectedPID() uint64    { return atomic.LoadUint64(&d.unexpectedPID) }
func (d *Diagnostics) DecodeErrors() uint64     { return atomic.LoadUint64(&d.decodeErrors) }

// Snapshot is a point-in-time copy of the counters, convenient for
// logging a single structured record.
type Snapshot struct {
	CRMMismatchedCTR uint64
	UnexpectedPID    uint64
	DecodeErrors     uint64
}

func (d *Diagnostics) Snapshot() Snapshot {
	return Snapshot{
		CRMMismatchedCTR: d.CRMMismatchedCTR(),
		UnexpectedPID:    d.UnexpectedPID(),
		DecodeErrors:     d.DecodeErrors(),
	}
}
