// Package device implements a non-blocking, single-threaded USB 2.0
// device-side protocol engine: the chapter 9 control pipe state machine
// and the top-level poll loop that drives it.
//
// It is platform-agnostic and interacts with hardware via the [bus.Bus]
// interface defined in the [github.com/ardnew/usbengine/device/bus] package.
// Bus exposes non-blocking endpoint allocation, FIFO I/O, and event polling,
// so platform vendors can provide concrete implementations without touching
// the device core.
//
// # Architecture
//
//   - [Device] drives one bus poll cycle against a class list
//   - [ControlPipe] implements the endpoint-zero SETUP/DATA/STATUS machine
//   - [Class] is the contract every USB class implementation satisfies
//   - [descriptor.Provider] supplies descriptor bytes for GET_DESCRIPTOR
//
// # Execution Model
//
// There are no goroutines and no blocking calls anywhere in this package.
// A caller drives the engine by calling [Device.Poll] from its own loop,
// typically once per interrupt or once per superloop iteration on a
// microcontroller with no OS underneath it.
//
// # Device States
//
// The engine implements the four control-pipe-visible USB 2.0 device
// states:
//
//	Default → Addressed → Configured
//	             ↕
//	          Suspend
//
// # Zero-Allocation Design
//
// The engine is designed for bare-metal and TinyGo compatibility with
// minimal heap allocations. Key patterns include:
//
//   - Serialization via MarshalTo(buf) instead of allocating Bytes()
//   - Parse functions with output parameters instead of returning pointers
//   - Fixed-size arrays instead of maps for endpoints, interfaces, strings
//   - Caller-provided buffers for descriptor generation
//
// # Class Drivers
//
// The [Class] interface enables USB class implementations:
//
//	type Class interface {
//	    Reset()
//	    Poll()
//	    ControlIn(xfer *Responder)
//	    ControlOut(xfer *Responder)
//	    EndpointSetup(addr bus.EndpointAddress)
//	    EndpointOut(addr bus.EndpointAddress)
//	    EndpointInComplete(addr bus.EndpointAddress)
//	}
//
// Built-in support includes:
//
//   - [github.com/ardnew/usbengine/device/class/hid] - Human Interface Device
//   - [github.com/ardnew/usbengine/device/class/cdc] - Communications Device Class (CDC-ACM)
//   - [github.com/ardnew/usbengine/device/class/msc] - Mass Storage Class (Bulk-Only Transport)
//
// # Example
//
//	provider := descriptor.NewProvider(descriptor.Device{
//	    USBVersion: 0x0200,
//	    VendorID:   0xCAFE,
//	    ProductID:  0xBABE,
//	}, config, 64)
//	dev := device.NewDevice(simBus, provider)
//	for {
//	    dev.Poll(classes)
//	}
//
// A simulated bus for testing is available in
// [github.com/ardnew/usbengine/device/bus/sim].
package device
