// Package pairing implements the coordinator side of a Zigbee-style
// permit-join admission protocol: a bounded discovery cache, a
// three-state binding controller, and the fixed-layout wire codec
// that ties the two together.
package pairing

import "fmt"

// MAC is a 6-byte hardware address, compared by value.
type MAC [6]byte

// String renders the address as uppercase colon-separated hex, e.g. "AA:BB:CC:DD:EE:FF".
func (m MAC) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", m[0], m[1], m[2], m[3], m[4], m[5])
}

// IsZero reports whether m is the all-zero address.
func (m MAC) IsZero() bool {
	return m == MAC{}
}

// DeviceType classifies a tower node's hardware role.
type DeviceType uint8

const (
	DeviceUnknown DeviceType = iota
	DeviceTower
	DeviceSensor
	DeviceLightNode
	DeviceCoordinator
)

func (d DeviceType) String() string {
	switch d {
	case DeviceUnknown:
		return "unknown"
	case DeviceTower:
		return "tower"
	case DeviceSensor:
		return "sensor"
	case DeviceLightNode:
		return "light_node"
	case DeviceCoordinator:
		return "coordinator"
	}
	return fmt.Sprintf("device(%d)", uint8(d))
}

// Capability bits, one per sensor/actuator a node may carry. Remaining
// bits in the 16-bit mask are reserved.
const (
	CapDHT uint16 = 1 << iota
	CapLightSensor
	CapPumpRelay
	CapGrowLight
	CapRGBW
	CapDeepSleep
	CapButton
	CapI2CTemp
	CapPresenceSensor
	CapBattery
)

// Capabilities is a bitmask over the Cap* constants.
type Capabilities uint16

func (c Capabilities) Has(bit uint16) bool { return c&Capabilities(bit) != 0 }

// FirmwareVersion packs major/minor/patch into the wire's 32-bit field:
// (major<<24) | (minor<<16) | patch, patch occupying the low 16 bits.
type FirmwareVersion struct {
	Major, Minor uint8
	Patch        uint16
}

// Pack encodes v as the wire's packed 32-bit representation.
func (v FirmwareVersion) Pack() uint32 {
	return uint32(v.Major)<<24 | uint32(v.Minor)<<16 | uint32(v.Patch)
}

// UnpackFirmwareVersion decodes a packed 32-bit value.
func UnpackFirmwareVersion(packed uint32) FirmwareVersion {
	return FirmwareVersion{
		Major: uint8(packed >> 24),
		Minor: uint8(packed >> 16),
		Patch: uint16(packed & 0xFFFF),
	}
}

func (v FirmwareVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// NodeState is the per-entry lifecycle state tracked by the discovery table.
type NodeState uint8

const (
	StateDiscovered NodeState = iota
	StateOfferSent
	StateBinding
	StateBound
	StateRejected
	StateFailed
)

func (s NodeState) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateOfferSent:
		return "offer_sent"
	case StateBinding:
		return "binding"
	case StateBound:
		return "bound"
	case StateRejected:
		return "rejected"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// DiscoveredNode is a single entry in the discovery table (C3).
type DiscoveredNode struct {
	MAC             MAC
	DeviceType      DeviceType
	FirmwareVersion FirmwareVersion
	Capabilities    Capabilities
	LastNonce       uint32
	LastSequence    uint16
	LastSeenMS      uint64
	RSSI            int8
	State           NodeState
	OfferToken      uint32
}

// String renders a compact debug line.
func (n *DiscoveredNode) String() string {
	return fmt.Sprintf("%s[%s type=%s fw=%s state=%s offer=%08x]",
		n.MAC, n.DeviceType, n.DeviceType, n.FirmwareVersion, n.State, n.OfferToken)
}

// BindingAttempt is the singleton in-flight binding tracked by the state machine (C4).
type BindingAttempt struct {
	NodeMAC         MAC
	OfferToken      uint32
	AssignedTowerID uint16
	StartedMS       uint64
	AcceptReceived  bool
	Active          bool
	CorrelationID   string // opaque per-attempt ID for log correlation
}

// Identity is fixed at coordinator startup.
type Identity struct {
	CoordinatorMAC MAC
	CoordinatorID  uint16
	FarmID         uint16
	NextTowerID    uint16 // monotonically assigned, starts at 1
}

// Result classifies how a binding attempt concluded. Used both as the
// argument to BindingCompleted and as a label on binding latency stats.
type Result uint8

const (
	ResultSuccess Result = iota
	ResultTimeout
	ResultNodeRejected
	ResultNodeAborted
	ResultInternalError
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultTimeout:
		return "timeout"
	case ResultNodeRejected:
		return "node_rejected"
	case ResultNodeAborted:
		return "node_aborted"
	case ResultInternalError:
		return "internal_error"
	}
	return fmt.Sprintf("result(%d)", uint8(r))
}

// ObserveOutcome is returned by the discovery table's Observe operation.
type ObserveOutcome uint8

const (
	Inserted ObserveOutcome = iota
	Refreshed
	DuplicateDropped
	RejectedCapacityFull
)

func (o ObserveOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Refreshed:
		return "refreshed"
	case DuplicateDropped:
		return "duplicate_dropped"
	case RejectedCapacityFull:
		return "rejected_capacity_full"
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}
