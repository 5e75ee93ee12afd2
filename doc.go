// Package ccp implements the master-side core of the CAN Calibration
// Protocol (CCP): the CRO/DTO frame codec, the CAN frame and bus
// abstractions shared by every sub-package, and the typed error kinds
// returned by the command, session and DAQ layers.
//
// Higher-level behavior — the command engine, session lifecycle and DAQ
// scheduler/decoder — lives in pkg/command, pkg/session and pkg/daq so
// that this package stays free of cyclic imports, the same layering the
// CANopen implementation this module grew out of uses between its root
// package and pkg/network.
package ccp
