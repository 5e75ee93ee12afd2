package ccp

import (
	"errors"
	"fmt"
)

// Sentinel errors for request outcomes that carry no extra data.
var (
	ErrTimeout    = errors.New("ccp: request timed out waiting for CRM")
	ErrCancelled  = errors.New("ccp: request cancelled before a CRM arrived")
	ErrNotValid   = errors.New("ccp: frame is not a valid CCP DTO")
	ErrBusClosed  = errors.New("ccp: bus is not connected")
	ErrIllegalArg = errors.New("ccp: illegal argument")
)

// EncodeError is returned by a CRO builder when a parameter is out of
// range for the command kind (e.g. UPLOAD size > 5).
type EncodeError struct {
	Field  string
	Reason string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("ccp: encode %s: %s", e.Field, e.Reason)
}

// DecodeError is returned when a received frame cannot be parsed as the
// expected DTO shape.
type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("ccp: decode at byte %d: %s", e.Offset, e.Reason)
}

// TransportError wraps a failure from the Bus. Receiving one drives the
// session to Faulted.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ccp: transport error: %v", e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// SlaveError is returned when a CRM's CRC_ERR (command return code) is
// non-zero. Code is the raw CRC_ERR byte; Command identifies which CRO
// provoked it.
type SlaveError struct {
	Code    CommandReturnCode
	Command CommandCode
}

func (e *SlaveError) Error() string {
	return fmt.Sprintf("ccp: slave rejected %s: %s (x%02X)", e.Command, e.Code, uint8(e.Code))
}

// ProtocolViolation is returned when an operation is attempted in a
// session state that does not permit it.
type ProtocolViolation struct {
	Expected SessionState
	Actual   SessionState
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("ccp: expected session state %s, got %s", e.Expected, e.Actual)
}

// Capacity is returned by the DAQ partitioner when the Elements given do
// not fit in the ODTs the slave reports via GET_DAQ_SIZE.
type Capacity struct {
	RequestedBytes int
	Available      int
}

func (e *Capacity) Error() string {
	return fmt.Sprintf("ccp: DAQ list needs %d bytes, slave only reports %d available", e.RequestedBytes, e.Available)
}

// Faulted reports that the session has latched into the Faulted state
// and must be disconnected and reconnected before further use.
type Faulted struct {
	Cause error
}

func (e *Faulted) Error() string {
	return fmt.Sprintf("ccp: session faulted: %v", e.Cause)
}

func (e *Faulted) Unwrap() error { return e.Cause }
