// Package cdc implements the USB Communications Device Class (CDC) for the
// usbengine device core.
//
// This package provides CDC-ACM (Abstract Control Model) functionality for
// implementing USB serial devices. CDC-ACM is the standard class for USB
// to serial adapters and virtual COM ports.
//
// # Architecture
//
// A CDC-ACM device consists of two interfaces:
//
//   - Control Interface (Communications Class): handles CDC-specific
//     requests like SET_LINE_CODING and SET_CONTROL_LINE_STATE, and owns
//     the interrupt IN notification endpoint.
//   - Data Interface (Data Class): handles bulk data transfer via IN and
//     OUT endpoints.
//
// One ACM value drives both interfaces.
//
// # Usage
//
//	acm := cdc.NewACM(controlInterfaceNumber, dataInterfaceNumber)
//	acm.SetOnLineCodingChange(func(lc *cdc.LineCoding) { ... })
//	acm.SetOnReceive(func(data []byte) { ... })
//
//	if err := acm.Attach(b, notifyMaxPacketSize, dataMaxPacketSize, notifyInterval); err != nil {
//		// handle allocation failure
//	}
//
//	classes := []device.Class{acm}
//	for {
//		dev.Poll(classes)
//	}
//
//	n, err := acm.Write(data)
//
// # CDC Descriptors
//
// The package includes the functional descriptors required by CDC-ACM:
//
//   - Header Functional Descriptor
//   - Call Management Functional Descriptor
//   - ACM Functional Descriptor
//   - Union Functional Descriptor
package cdc
