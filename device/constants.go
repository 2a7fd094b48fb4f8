package device

import "fmt"

// State represents the device's position in the USB 2.0 chapter 9 state
// diagram, restricted to the four values the control pipe distinguishes.
// Attached/Powered are bus-level conditions the hardware bus tracks
// before the device core's Poll is ever called; by the time Poll runs,
// the device is always at least in StateDefault.
type State uint8

// Device states.
const (
	StateDefault    State = iota // reset and addressed 0, awaiting enumeration
	StateAddressed               // SET_ADDRESS accepted and applied
	StateConfigured              // SET_CONFIGURATION accepted
	StateSuspend                 // suspend signaling observed on the bus
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDefault:
		return "default"
	case StateAddressed:
		return "addressed"
	case StateConfigured:
		return "configured"
	case StateSuspend:
		return "suspend"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// ConfigurationValue is the only configuration value a device ever
// accepts or reports; multiple simultaneous configurations are not
// supported.
const ConfigurationValue = 1

// DefaultAlternateSetting is the only alternate setting SET_INTERFACE
// accepts. Alternate settings are reserved in the wire format but not
// otherwise implemented.
const DefaultAlternateSetting = 0

// MaxEndpoints is the number of endpoint numbers available per direction
// (0-15).
const MaxEndpoints = 16
