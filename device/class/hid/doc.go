// Package hid implements the USB Human Interface Device (HID) class for the
// usbengine device core.
//
// This package provides HID functionality for implementing USB input devices
// such as keyboards, mice, gamepads, and other human interface devices.
//
// # Architecture
//
// A HID device consists of a single HID interface with:
//
//   - An Interrupt IN endpoint for sending input reports to the host
//   - An optional Interrupt OUT endpoint for receiving output reports
//   - HID class descriptors (HID descriptor, Report descriptor)
//
// # Zero-Allocation Design
//
// This implementation follows zero-allocation patterns:
//
//   - Fixed-size buffers for HID reports
//   - Caller-provided buffers for data transfer
//   - Report descriptors are stored by reference, not copied
//
// # Usage
//
// To create a HID keyboard interface:
//
//	keyboard := hid.New(interfaceNumber, hid.KeyboardReportDescriptor)
//	keyboard.SetOnOutputReport(func(data []byte) {
//	    // handle LED state from host
//	})
//
//	if err := keyboard.Attach(b, 8, 0, 10); err != nil {
//		// handle allocation failure
//	}
//
//	classes := []device.Class{keyboard}
//	for {
//		dev.Poll(classes)
//	}
//
//	report := &hid.KeyboardReport{}
//	report.SetKey(hid.KeyA)
//	keyboard.SendKeyboardReport(report)
//
// # Report Descriptors
//
// The package includes common report descriptors:
//
//   - KeyboardReportDescriptor: Standard 8-byte keyboard report
//   - MouseReportDescriptor: Standard 4-byte mouse report (3 buttons, X/Y/wheel)
//
// Custom report descriptors can be created using the HID report descriptor
// specification and passed to [New].
package hid
