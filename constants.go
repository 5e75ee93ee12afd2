package ccp

import "fmt"

// CommandCode is the CRO command byte (byte 0 of a CRO frame).
type CommandCode uint8

const (
	CmdConnect       CommandCode = 0x01
	CmdSetMTA        CommandCode = 0x02
	CmdDnload        CommandCode = 0x03
	CmdUpload        CommandCode = 0x04
	CmdGetCCPVersion CommandCode = 0x05
	CmdStartStop     CommandCode = 0x06
	CmdDisconnect    CommandCode = 0x07
	CmdStartStopAll  CommandCode = 0x08
	CmdGetSStatus    CommandCode = 0x0D
	CmdBuildChksum   CommandCode = 0x0E
	CmdShortUp       CommandCode = 0x0F
	CmdClearMemory   CommandCode = 0x10
	CmdGetSeed       CommandCode = 0x12
	CmdUnlock        CommandCode = 0x13
	CmdGetDaqSize    CommandCode = 0x14
	CmdSetDaqPtr     CommandCode = 0x15
	CmdWriteDaq      CommandCode = 0x16
	CmdExchangeID    CommandCode = 0x17
	CmdMove          CommandCode = 0x19
	CmdDnload6       CommandCode = 0x23
)

var commandNames = map[CommandCode]string{
	CmdConnect:       "CONNECT",
	CmdSetMTA:        "SET_MTA",
	CmdDnload:        "DNLOAD",
	CmdUpload:        "UPLOAD",
	CmdGetCCPVersion: "GET_CCP_VERSION",
	CmdStartStop:     "START_STOP",
	CmdDisconnect:    "DISCONNECT",
	CmdStartStopAll:  "START_STOP_ALL",
	CmdGetSStatus:    "GET_S_STATUS",
	CmdBuildChksum:   "BUILD_CHKSUM",
	CmdShortUp:       "SHORT_UP",
	CmdClearMemory:   "CLEAR_MEMORY",
	CmdGetSeed:       "GET_SEED",
	CmdUnlock:        "UNLOCK",
	CmdGetDaqSize:    "GET_DAQ_SIZE",
	CmdSetDaqPtr:     "SET_DAQ_PTR",
	CmdWriteDaq:      "WRITE_DAQ",
	CmdExchangeID:    "EXCHANGE_ID",
	CmdMove:          "MOVE",
	CmdDnload6:       "DNLOAD_6",
}

func (c CommandCode) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CMD(x%02X)", uint8(c))
}

// CommandReturnCode is the CRC_ERR byte of a CRM (byte 1).
type CommandReturnCode uint8

const (
	CRCAcknowledge          CommandReturnCode = 0x00
	CRCDaqOverload          CommandReturnCode = 0x01
	CRCCommandProcessorBusy CommandReturnCode = 0x10
	CRCDaqProcessorBusy     CommandReturnCode = 0x11
	CRCInternalTimeout      CommandReturnCode = 0x12
	CRCUnknownCommand       CommandReturnCode = 0x30
	CRCCommandSyntax        CommandReturnCode = 0x31
	CRCParameterOutOfRange  CommandReturnCode = 0x32
	CRCAccessDenied         CommandReturnCode = 0x33
	CRCOverload             CommandReturnCode = 0x34
	CRCAccessLocked         CommandReturnCode = 0x35
	CRCResourceUnavailable  CommandReturnCode = 0x36
)

var crcDescriptions = map[CommandReturnCode]string{
	CRCAcknowledge:          "acknowledge",
	CRCDaqOverload:          "DAQ overload",
	CRCCommandProcessorBusy: "command processor busy",
	CRCDaqProcessorBusy:     "DAQ processor busy",
	CRCInternalTimeout:      "internal timeout",
	CRCUnknownCommand:       "unknown command",
	CRCCommandSyntax:        "command syntax",
	CRCParameterOutOfRange:  "parameter out of range",
	CRCAccessDenied:         "access denied",
	CRCOverload:             "overload",
	CRCAccessLocked:         "access locked",
	CRCResourceUnavailable:  "resource/function unavailable",
}

func (c CommandReturnCode) String() string {
	if desc, ok := crcDescriptions[c]; ok {
		return desc
	}
	return fmt.Sprintf("unknown(x%02X)", uint8(c))
}

// IsFatal reports whether this CRC_ERR should drive the session to
// Faulted regardless of caller-visible recovery (internal timeout means
// the slave itself gave up on a pending operation).
func (c CommandReturnCode) IsFatal() bool {
	return c == CRCInternalTimeout
}

// SessionState is one state of the Session Manager's lifecycle.
type SessionState uint8

const (
	Disconnected SessionState = iota
	Connected
	Exchanging
	Ready
	DAQRunning
	FaultedState
)

var sessionStateNames = [...]string{
	"Disconnected",
	"Connected",
	"Exchanging",
	"Ready",
	"DAQRunning",
	"Faulted",
}

func (s SessionState) String() string {
	if int(s) < len(sessionStateNames) {
		return sessionStateNames[s]
	}
	return "Unknown"
}

// Resource identifies a protected resource for GET_SEED/UNLOCK.
type Resource uint8

const (
	ResourceCAL Resource = 1 << 0
	ResourceDAQ Resource = 1 << 1
	ResourcePGM Resource = 1 << 6
)

// DisconnectType selects temporary or permanent disconnect semantics.
type DisconnectType uint8

const (
	DisconnectTemporary DisconnectType = 0
	DisconnectPermanent DisconnectType = 1
)

// StartStopMode selects the mode parameter of START_STOP.
type StartStopMode uint8

const (
	DaqStop    StartStopMode = 0
	DaqStart   StartStopMode = 1
	DaqPrepare StartStopMode = 2
)
