// Package element describes the measurement quantities a DAQ list can
// carry: their wire size, physical location and the linear scaling that
// converts a raw DAQ byte sequence into an engineering-unit value. It is
// the CCP analogue of an object dictionary variable, but without an A2L
// type database behind it: every field a caller needs is given directly.
package element

import "github.com/samsamfire/goccp"

// Element is one measurement quantity a DAQ list can transmit.
type Element struct {
	Name      string
	Address   uint32
	Extension uint8
	Size      uint8 // 1, 2 or 4 bytes
	Signed    bool
	ByteOrder ccp.ByteOrder
	Scale     float64
	Offset    float64
}

// New builds an Element, applying the defaults of an unscaled raw value
// (Scale=1.0, Offset=0.0, Extension=0) and validating the wire size.
func New(name string, address uint32, size uint8, opts ...Option) (Element, error) {
	switch size {
	case 1, 2, 4:
	default:
		return Element{}, &ccp.EncodeError{Field: "size", Reason: "must be 1, 2 or 4 bytes"}
	}
	e := Element{
		Name:    name,
		Address: address,
		Size:    size,
		Scale:   1.0,
		Offset:  0.0,
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e, nil
}

// Option customizes an Element at construction.
type Option func(*Element)

func WithExtension(ext uint8) Option { return func(e *Element) { e.Extension = ext } }
func WithSigned(signed bool) Option  { return func(e *Element) { e.Signed = signed } }
func WithByteOrder(order ccp.ByteOrder) Option {
	return func(e *Element) { e.ByteOrder = order }
}
func WithScale(scale float64) Option { return func(e *Element) { e.Scale = scale } }
func WithOffset(offset float64) Option {
	return func(e *Element) { e.Offset = offset }
}

// Decode converts a raw wire value (already extracted from its DAQ slot
// at the configured byte order and sign) into an engineering-unit value.
func (e Element) Decode(raw int64) float64 {
	return float64(raw)*e.Scale + e.Offset
}

// DecodeBytes extracts this element's value from a DAQ slot (already
// sliced to e.Size bytes) using its own signedness and byte order, then
// applies Decode's linear scaling.
func (e Element) DecodeBytes(data []byte) float64 {
	var raw int64
	switch e.Size {
	case 1:
		if e.Signed {
			raw = int64(int8(data[0]))
		} else {
			raw = int64(data[0])
		}
	case 2:
		v := e.ByteOrder.Uint16(data)
		if e.Signed {
			raw = int64(int16(v))
		} else {
			raw = int64(v)
		}
	case 4:
		v := e.ByteOrder.Uint32(data)
		if e.Signed {
			raw = int64(int32(v))
		} else {
			raw = int64(v)
		}
	}
	return e.Decode(raw)
}
