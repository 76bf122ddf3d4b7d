package pairing

// Sender is the coordinator's transport-facing capability: it must be
// able to unicast an encoded frame to a specific node and broadcast one
// to the network. Implementations report delivery at the socket layer
// only; the protocol itself has no link-level ack.
type Sender interface {
	SendUnicast(mac MAC, frame []byte) bool
	SendBroadcast(frame []byte) bool
}

// EventSink receives lifecycle notifications as the state machine moves
// through a pairing attempt. Implementations must not block; slow
// consumers should buffer internally.
type EventSink interface {
	// PermitJoinChanged reports the window opening or closing.
	// remainingMS is the clamped duration just armed when enabled is
	// true, and 0 when enabled is false.
	PermitJoinChanged(enabled bool, remainingMS uint64)
	NodeDiscovered(node DiscoveredNode, outcome ObserveOutcome)
	BindingStarted(attempt BindingAttempt)
	BindingCompleted(attempt BindingAttempt, result Result)
}

// Clock supplies monotonic milliseconds. Production code uses a
// wall-clock-backed implementation; tests use a fake that advances
// explicitly.
type Clock interface {
	NowMS() uint64
}

// RNG supplies the offer tokens (and, with StrongKeys, the Confirm key
// salt) the protocol needs. Values
// need not be cryptographically secure, only collision-resistant across
// a single permit-join window.
type RNG interface {
	Uint32() uint32
}

// NoopEventSink discards every notification. Useful as a default when a
// caller doesn't care about observability hooks.
type NoopEventSink struct{}

func (NoopEventSink) PermitJoinChanged(enabled bool, remainingMS uint64) {}
func (NoopEventSink) NodeDiscovered(DiscoveredNode, ObserveOutcome)      {}
func (NoopEventSink) BindingStarted(BindingAttempt)                     {}
func (NoopEventSink) BindingCompleted(BindingAttempt, Result)            {}
