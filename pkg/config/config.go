// Package config loads a master's static configuration — the CRO/DTO
// identifiers, station address, byte order, default timeout, and the
// Element set to acquire — from an ini-format calibration description
// file, the CCP-side analogue of an EDS. It is grounded on
// pkg/od/parser_v1.go's use of gopkg.in/ini.v1 to load a CANopen EDS.
package config

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/ini.v1"

	"github.com/samsamfire/goccp"
	"github.com/samsamfire/goccp/pkg/element"
)

// Master is the static configuration for one ccp master instance.
type Master struct {
	CROId          uint32
	DTOId          uint32
	StationAddress uint16
	ByteOrder      ccp.ByteOrder
	DefaultTimeout time.Duration
	DaqList        uint8
	Elements       []element.Element
}

// Load parses an ini-format calibration description file: a [master]
// section for the transport/session parameters, and one [element "name"]
// section per acquired signal.
func Load(path string) (*Master, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("ccp: config: %w", err)
	}
	return loadFromFile(f)
}

func loadFromFile(f *ini.File) (*Master, error) {
	master := f.Section("master")

	croID, err := parseHexOrDec(master.Key("cro_id").MustString("0x300"))
	if err != nil {
		return nil, fmt.Errorf("ccp: config: cro_id: %w", err)
	}
	dtoID, err := parseHexOrDec(master.Key("dto_id").MustString("0x301"))
	if err != nil {
		return nil, fmt.Errorf("ccp: config: dto_id: %w", err)
	}
	station, err := parseHexOrDec(master.Key("station_address").MustString("0"))
	if err != nil {
		return nil, fmt.Errorf("ccp: config: station_address: %w", err)
	}
	order := ccp.BigEndian
	if master.Key("byte_order").MustString("big") == "little" {
		order = ccp.LittleEndian
	}
	timeoutMs := master.Key("default_timeout_ms").MustInt(250)
	daqList := master.Key("daq_list").MustInt(0)

	m := &Master{
		CROId:          uint32(croID),
		DTOId:          uint32(dtoID),
		StationAddress: uint16(station),
		ByteOrder:      order,
		DefaultTimeout: time.Duration(timeoutMs) * time.Millisecond,
		DaqList:        uint8(daqList),
	}

	for _, section := range f.Sections() {
		name, ok := elementSectionName(section.Name())
		if !ok {
			continue
		}
		el, err := parseElementSection(name, section, order)
		if err != nil {
			return nil, fmt.Errorf("ccp: config: element %q: %w", name, err)
		}
		m.Elements = append(m.Elements, el)
	}
	return m, nil
}

// elementSectionName extracts name from a section titled `element "name"`.
func elementSectionName(section string) (string, bool) {
	const prefix = `element "`
	if len(section) < len(prefix)+1 || section[:len(prefix)] != prefix || section[len(section)-1] != '"' {
		return "", false
	}
	return section[len(prefix) : len(section)-1], true
}

func parseElementSection(name string, section *ini.Section, defaultOrder ccp.ByteOrder) (element.Element, error) {
	address, err := parseHexOrDec(section.Key("address").String())
	if err != nil {
		return element.Element{}, fmt.Errorf("address: %w", err)
	}
	size := section.Key("size").MustInt(0)

	order := defaultOrder
	if v := section.Key("byte_order").String(); v == "little" {
		order = ccp.LittleEndian
	} else if v == "big" {
		order = ccp.BigEndian
	}

	opts := []element.Option{
		element.WithExtension(uint8(section.Key("extension").MustInt(0))),
		element.WithSigned(section.Key("signed").MustBool(false)),
		element.WithByteOrder(order),
		element.WithScale(section.Key("scale").MustFloat64(1.0)),
		element.WithOffset(section.Key("offset").MustFloat64(0.0)),
	}
	return element.New(name, uint32(address), uint8(size), opts...)
}

// parseHexOrDec parses "0x..." as hex and everything else as decimal,
// matching the EDS convention samsamfire/gocanopen's parser follows for
// index/cobid fields.
func parseHexOrDec(s string) (uint64, error) {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return strconv.ParseUint(s[2:], 16, 32)
	}
	return strconv.ParseUint(s, 10, 32)
}
