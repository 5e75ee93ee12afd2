package ccp

// CRO is a master-to-slave Command Receive Object: [CMD, CTR, param0..param5].
type CRO struct {
	Cmd    CommandCode
	CTR    uint8
	Params [6]byte
}

// Frame serializes the CRO onto the wire using the given CAN identifier.
func (c CRO) Frame(id uint32) Frame {
	var data [8]byte
	data[0] = uint8(c.Cmd)
	data[1] = c.CTR
	copy(data[2:], c.Params[:])
	return NewFrame(id, data)
}

// CRM is a slave-to-master Command Return Message: [0xFF, CRC_ERR, CTR, return0..return4].
type CRM struct {
	ReturnCode CommandReturnCode
	CTR        uint8
	Data       [5]byte
}

// Event is a slave-to-master Event Message: [0xFE, EVENT_CODE, ...].
type Event struct {
	Code uint8
	Data [6]byte
}

// DAQFrame is an asynchronous DAQ-DTO: [ODT_NUM, data0..data6].
type DAQFrame struct {
	ODT  uint8
	Data [7]byte
}

// DTOKind discriminates the tagged-variant decode of an inbound DTO
// frame. Routing is a switch on Kind, not an interface hierarchy, so
// each branch can be handed to its owning component without any of them
// needing to know about the others' payload shapes.
type DTOKind uint8

const (
	KindCRM DTOKind = iota
	KindEvent
	KindDAQ
)

// DTO is the decoded, tagged result of DecodeDTO.
type DTO struct {
	Kind  DTOKind
	CRM   CRM
	Event Event
	DAQ   DAQFrame
}

// DecodeDTO inspects byte 0 of an inbound DTO frame and parses it into
// the matching variant. CRM/Event/DAQ all share one CAN identifier
// (dto_id); only the first payload byte tells them apart.
func DecodeDTO(f Frame) DTO {
	switch f.Data[0] {
	case 0xFF:
		return DTO{
			Kind: KindCRM,
			CRM: CRM{
				ReturnCode: CommandReturnCode(f.Data[1]),
				CTR:        f.Data[2],
				Data:       [5]byte{f.Data[3], f.Data[4], f.Data[5], f.Data[6], f.Data[7]},
			},
		}
	case 0xFE:
		return DTO{
			Kind: KindEvent,
			Event: Event{
				Code: f.Data[1],
				Data: [6]byte{f.Data[2], f.Data[3], f.Data[4], f.Data[5], f.Data[6], f.Data[7]},
			},
		}
	default:
		return DTO{
			Kind: KindDAQ,
			DAQ: DAQFrame{
				ODT:  f.Data[0],
				Data: [7]byte{f.Data[1], f.Data[2], f.Data[3], f.Data[4], f.Data[5], f.Data[6], f.Data[7]},
			},
		}
	}
}

// ConnectCRO builds a CONNECT command. The station address is always
// little-endian regardless of the master's configured ByteOrder.
func ConnectCRO(ctr uint8, station uint16) CRO {
	var p [6]byte
	LittleEndian.PutUint16(p[0:2], station)
	return CRO{Cmd: CmdConnect, CTR: ctr, Params: p}
}

// ExchangeIDCRO builds an EXCHANGE_ID command. masterData carries up to
// 6 bytes identifying the master; unused bytes are zero-filled.
func ExchangeIDCRO(ctr uint8, masterData []byte) (CRO, error) {
	if len(masterData) > 6 {
		return CRO{}, &EncodeError{Field: "masterData", Reason: "must be at most 6 bytes"}
	}
	var p [6]byte
	copy(p[:], masterData)
	return CRO{Cmd: CmdExchangeID, CTR: ctr, Params: p}, nil
}

// GetSeedCRO builds a GET_SEED command for the given resource mask.
func GetSeedCRO(ctr uint8, resource Resource) CRO {
	var p [6]byte
	p[0] = uint8(resource)
	return CRO{Cmd: CmdGetSeed, CTR: ctr, Params: p}
}

// UnlockCRO builds an UNLOCK command with up to 6 key bytes.
func UnlockCRO(ctr uint8, key []byte) (CRO, error) {
	if len(key) > 6 {
		return CRO{}, &EncodeError{Field: "key", Reason: "must be at most 6 bytes"}
	}
	var p [6]byte
	copy(p[:], key)
	return CRO{Cmd: CmdUnlock, CTR: ctr, Params: p}, nil
}

// GetCCPVersionCRO builds a GET_CCP_VERSION command.
func GetCCPVersionCRO(ctr uint8, major, minor uint8) CRO {
	var p [6]byte
	p[0], p[1] = major, minor
	return CRO{Cmd: CmdGetCCPVersion, CTR: ctr, Params: p}
}

// SetMTACRO builds a SET_MTA command. mtaNumber must be 0 or 1.
func SetMTACRO(ctr uint8, order ByteOrder, mtaNumber uint8, extension uint8, address uint32) (CRO, error) {
	if mtaNumber > 1 {
		return CRO{}, &EncodeError{Field: "mtaNumber", Reason: "must be 0 or 1"}
	}
	var p [6]byte
	p[0] = mtaNumber
	p[1] = extension
	order.PutUint32(p[2:6], address)
	return CRO{Cmd: CmdSetMTA, CTR: ctr, Params: p}, nil
}

// DownloadCRO builds a DNLOAD (size <= 5) or DNLOAD_6 (size == 6) command
// depending on data's length, per CCP's fixed 8-byte CRO layout.
func DownloadCRO(ctr uint8, data []byte) (CRO, error) {
	switch {
	case len(data) == 0 || len(data) > 6:
		return CRO{}, &EncodeError{Field: "data", Reason: "must be 1 to 6 bytes"}
	case len(data) == 6:
		var p [6]byte
		p[0] = 6
		// DNLOAD_6 sends 6 payload bytes directly after the size byte
		// would not fit; ASAM CCP instead reuses the data slots, so size
		// is implicit and all 6 params are the payload.
		copy(p[:], data)
		return CRO{Cmd: CmdDnload6, CTR: ctr, Params: p}, nil
	default:
		var p [6]byte
		p[0] = uint8(len(data))
		copy(p[1:], data)
		return CRO{Cmd: CmdDnload, CTR: ctr, Params: p}, nil
	}
}

// UploadCRO builds an UPLOAD command. size must be <= 5 (a CRM only
// carries 5 return bytes).
func UploadCRO(ctr uint8, size uint8) (CRO, error) {
	if size > 5 {
		return CRO{}, &EncodeError{Field: "size", Reason: "must be at most 5"}
	}
	var p [6]byte
	p[0] = size
	return CRO{Cmd: CmdUpload, CTR: ctr, Params: p}, nil
}

// ShortUpCRO builds a SHORT_UP command: an ad-hoc upload from an
// explicit address that does not touch MTA0.
func ShortUpCRO(ctr uint8, order ByteOrder, size uint8, extension uint8, address uint32) (CRO, error) {
	if size > 5 {
		return CRO{}, &EncodeError{Field: "size", Reason: "must be at most 5"}
	}
	var p [6]byte
	p[0] = size
	p[1] = extension
	order.PutUint32(p[2:6], address)
	return CRO{Cmd: CmdShortUp, CTR: ctr, Params: p}, nil
}

// ClearMemoryCRO builds a CLEAR_MEMORY command for `size` bytes at the
// current MTA0.
func ClearMemoryCRO(ctr uint8, order ByteOrder, size uint32) CRO {
	var p [6]byte
	order.PutUint32(p[0:4], size)
	return CRO{Cmd: CmdClearMemory, CTR: ctr, Params: p}
}

// MoveCRO builds a MOVE command copying `size` bytes from MTA0 to MTA1.
func MoveCRO(ctr uint8, order ByteOrder, size uint32) CRO {
	var p [6]byte
	order.PutUint32(p[0:4], size)
	return CRO{Cmd: CmdMove, CTR: ctr, Params: p}
}

// GetDaqSizeCRO builds a GET_DAQ_SIZE command for the given DAQ list and
// the DTO identifier the slave should use for it.
func GetDaqSizeCRO(ctr uint8, order ByteOrder, daqList uint8, dtoID uint16) CRO {
	var p [6]byte
	p[0] = daqList
	order.PutUint16(p[2:4], dtoID)
	return CRO{Cmd: CmdGetDaqSize, CTR: ctr, Params: p}
}

// SetDaqPtrCRO builds a SET_DAQ_PTR command addressing one (daqList,
// odt, elementIdx) slot for the WRITE_DAQ that follows.
func SetDaqPtrCRO(ctr uint8, daqList uint8, odt uint8, elementIdx uint8) CRO {
	var p [6]byte
	p[0] = daqList
	p[1] = odt
	p[2] = elementIdx
	return CRO{Cmd: CmdSetDaqPtr, CTR: ctr, Params: p}
}

// WriteDaqCRO builds a WRITE_DAQ command installing one element at the
// pointer set by the preceding SET_DAQ_PTR.
func WriteDaqCRO(ctr uint8, order ByteOrder, size uint8, extension uint8, address uint32) CRO {
	var p [6]byte
	p[0] = size
	p[1] = extension
	order.PutUint32(p[2:6], address)
	return CRO{Cmd: CmdWriteDaq, CTR: ctr, Params: p}
}

// StartStopCRO builds a START_STOP command arming or running one DAQ list.
func StartStopCRO(ctr uint8, mode StartStopMode, daqList uint8, lastODT uint8, eventChannel uint8, prescaler uint8) CRO {
	var p [6]byte
	p[0] = uint8(mode)
	p[1] = daqList
	p[2] = lastODT
	p[3] = eventChannel
	p[4] = prescaler
	return CRO{Cmd: CmdStartStop, CTR: ctr, Params: p}
}

// StartStopAllCRO builds a START_STOP_ALL command affecting every armed
// DAQ list on the slave.
func StartStopAllCRO(ctr uint8, mode StartStopMode) CRO {
	var p [6]byte
	p[0] = uint8(mode)
	return CRO{Cmd: CmdStartStopAll, CTR: ctr, Params: p}
}

// DisconnectCRO builds a DISCONNECT command.
func DisconnectCRO(ctr uint8, typ DisconnectType) CRO {
	var p [6]byte
	p[0] = uint8(typ)
	return CRO{Cmd: CmdDisconnect, CTR: ctr, Params: p}
}
