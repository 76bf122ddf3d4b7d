package pairing

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Default protocol timings, all in milliseconds.
const (
	DefaultPermitJoinWindowMS = 60_000
	DefaultMaxPermitJoinMS    = 300_000
	DefaultBindingTimeoutMS   = 10_000
)

// ControllerState is the coordinator-wide pairing mode.
type ControllerState uint8

const (
	Operational ControllerState = iota
	DiscoveryActive
	Binding
)

func (s ControllerState) String() string {
	switch s {
	case Operational:
		return "operational"
	case DiscoveryActive:
		return "discovery_active"
	case Binding:
		return "binding"
	}
	return "unknown"
}

// Controller is the coordinator-side pairing state machine (C4) driving
// the discovery table (C3) and the wire codec (C1) through a Sender
// (C5). Only one binding attempt may be in flight at a time; permit-join
// stays open across that attempt so other nodes can keep announcing.
type Controller struct {
	identity Identity
	table    *DiscoveryTable
	sender   Sender
	sink     EventSink
	clock    Clock
	rng      RNG

	state       ControllerState
	permitTimer DeadlineTimer
	bindTimer   DeadlineTimer

	attempt BindingAttempt
	stats   *BindingStats

	permitJoinWindowMS uint64
	maxPermitJoinMS    uint64
	bindingTimeoutMS   uint64
	strongKeys         bool
}

// ControllerConfig bundles the collaborators and timing overrides a
// Controller needs. Zero-value timing fields fall back to defaults.
type ControllerConfig struct {
	Identity           Identity
	Table              *DiscoveryTable
	Sender             Sender
	Sink               EventSink
	Clock              Clock
	RNG                RNG
	PermitJoinWindowMS uint64
	MaxPermitJoinMS    uint64
	BindingTimeoutMS   uint64

	// StrongKeys switches the Confirm message's key material from the
	// spec's default (all-zero, "encryption not in use") to an
	// HKDF-SHA256 derivation seeded by the RNG. Neither mode
	// authenticates the advertisement itself.
	StrongKeys bool
}

// NewController builds a Controller in the Operational state.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.Sink == nil {
		cfg.Sink = NoopEventSink{}
	}
	if cfg.Table == nil {
		cfg.Table = NewDiscoveryTable(DefaultMaxDiscoveredNodes, DefaultDiscoveryTTLMS)
	}
	if cfg.Identity.NextTowerID == 0 {
		cfg.Identity.NextTowerID = 1
	}
	c := &Controller{
		identity:           cfg.Identity,
		table:              cfg.Table,
		sender:             cfg.Sender,
		sink:               cfg.Sink,
		clock:              cfg.Clock,
		rng:                cfg.RNG,
		state:              Operational,
		stats:              NewBindingStats(),
		permitJoinWindowMS: orDefault(cfg.PermitJoinWindowMS, DefaultPermitJoinWindowMS),
		maxPermitJoinMS:    orDefault(cfg.MaxPermitJoinMS, DefaultMaxPermitJoinMS),
		bindingTimeoutMS:   orDefault(cfg.BindingTimeoutMS, DefaultBindingTimeoutMS),
		strongKeys:         cfg.StrongKeys,
	}
	return c
}

func orDefault(v, def uint64) uint64 {
	if v == 0 {
		return def
	}
	return v
}

// SetSender attaches (or replaces) the transport used to emit frames.
// Split from NewController so a transport that needs the controller as
// its inbound-frame handler can be constructed first.
func (c *Controller) SetSender(sender Sender) {
	c.sender = sender
}

// State returns the current controller state.
func (c *Controller) State() ControllerState { return c.state }

// Table exposes the discovery table for read-only UI/API use.
func (c *Controller) Table() *DiscoveryTable { return c.table }

// Identity returns the coordinator's current identity, including the
// live NextTowerID allocator value.
func (c *Controller) Identity() Identity { return c.identity }

// Stats exposes the binding latency/outcome histogram.
func (c *Controller) Stats() *BindingStats { return c.stats }

// EnablePermitJoin opens (or extends) the discovery window, clamped to
// maxPermitJoinMS; a zero duration opens the default window. A no-op
// while a binding attempt is active, since the table must stay stable
// for the duration of that attempt.
func (c *Controller) EnablePermitJoin(durationMS uint64) {
	if c.state == Binding {
		return
	}
	if durationMS == 0 {
		durationMS = c.permitJoinWindowMS
	}
	if durationMS > c.maxPermitJoinMS {
		durationMS = c.maxPermitJoinMS
	}
	now := c.clock.NowMS()
	c.permitTimer.Set(now, durationMS)
	c.state = DiscoveryActive
	c.sink.PermitJoinChanged(true, durationMS)
}

// DisablePermitJoin is the cancellation primitive: it completes any
// in-flight binding with InternalError (without sending a Reject to the
// peer — the window is closing, not the peer being rejected), purges
// every non-Bound discovery entry, and returns to Operational.
func (c *Controller) DisablePermitJoin() {
	if c.state == Operational {
		return
	}
	if c.attempt.Active {
		c.table.UpdateState(c.attempt.NodeMAC, StateFailed)
		c.finishAttempt(ResultInternalError)
	}
	c.permitTimer.Clear()
	c.table.RemoveNotBound()
	c.state = Operational
	c.sink.PermitJoinChanged(false, 0)
}

// OnAdvertisement processes an inbound Advertisement frame. Outside the
// permit-join window the advertisement is silently dropped per spec:
// the network does not nack unsolicited traffic.
func (c *Controller) OnAdvertisement(a Advertisement, rssi int8) ObserveOutcome {
	if c.state == Operational {
		return RejectedCapacityFull
	}
	now := c.clock.NowMS()
	outcome := c.table.Observe(a.MAC, a.DeviceType, a.FirmwareVersion, a.Capabilities, a.Nonce, a.Sequence, rssi, now)
	if node := c.table.Find(a.MAC); node != nil {
		c.sink.NodeDiscovered(*node, outcome)
	}
	return outcome
}

// Approve begins a binding attempt with a discovered node: it sends an
// Offer and enters Binding. If the send-offer hook reports failure the
// attempt is rolled back silently (entry returned to Discovered, no
// binding_completed emitted) rather than treated as a protocol outcome.
func (c *Controller) Approve(mac MAC, correlationID string) error {
	if c.state != DiscoveryActive {
		return errBindingInProgress
	}
	node := c.table.Find(mac)
	if node == nil {
		return errUnknownNode
	}
	if node.State == StateBound {
		return errNodeNotDiscoverable
	}
	if c.sender == nil {
		return errNoSender
	}

	now := c.clock.NowMS()
	towerID := c.identity.NextTowerID
	token := c.rng.Uint32()

	offer := Offer{
		Version:        ProtocolVersion,
		CoordMAC:       c.identity.CoordinatorMAC,
		CoordID:        c.identity.CoordinatorID,
		FarmID:         c.identity.FarmID,
		OfferedTowerID: towerID,
		NonceEcho:      node.LastNonce,
		OfferToken:     token,
	}
	if ok := c.sender.SendUnicast(mac, EncodeOffer(offer)); !ok {
		return errSendFailed
	}

	c.table.UpdateState(mac, StateOfferSent)
	c.table.SetOfferToken(mac, token)

	c.attempt = BindingAttempt{
		NodeMAC:         mac,
		OfferToken:      token,
		AssignedTowerID: towerID,
		StartedMS:       now,
		Active:          true,
		CorrelationID:   correlationID,
	}
	c.bindTimer.Set(now, c.bindingTimeoutMS)
	c.state = Binding
	c.sink.BindingStarted(c.attempt)
	return nil
}

// Reject declines a node unconditionally: it sends Reject(reason) and
// removes the node from the table. If the node is the current binding
// peer, the attempt completes with NodeRejected first.
func (c *Controller) Reject(mac MAC, reason ReasonCode) {
	token := uint32(0)
	wasBindingPeer := c.attempt.Active && c.attempt.NodeMAC == mac
	if wasBindingPeer {
		token = c.attempt.OfferToken
	}

	if c.sender != nil {
		c.sender.SendUnicast(mac, EncodeReject(Reject{
			SenderMAC:  c.identity.CoordinatorMAC,
			Reason:     reason,
			OfferToken: token,
		}))
	}

	if wasBindingPeer {
		c.finishAttempt(ResultNodeRejected)
	}
	c.table.Remove(mac)
}

// OnAccept processes an inbound Accept frame. Guards are all-of (peer
// MAC, token, tower ID); any mismatch leaves the attempt pending,
// untouched, to await either a correct Accept or the binding timeout.
func (c *Controller) OnAccept(a Accept) bool {
	if c.state != Binding || !c.attempt.Active {
		return false
	}
	if a.NodeMAC != c.attempt.NodeMAC {
		return false
	}
	if a.OfferToken != c.attempt.OfferToken {
		return false
	}
	if a.AcceptedTowerID != c.attempt.AssignedTowerID {
		return false
	}

	c.attempt.AcceptReceived = true
	c.table.UpdateState(a.NodeMAC, StateBinding)

	if c.sender == nil {
		c.table.UpdateState(a.NodeMAC, StateFailed)
		c.finishAttempt(ResultInternalError)
		return false
	}

	key := c.deriveKey(a.NodeMAC, a.OfferToken)
	ok := c.sender.SendUnicast(a.NodeMAC, EncodeConfirm(Confirm{
		CoordMAC:      c.identity.CoordinatorMAC,
		TowerID:       c.attempt.AssignedTowerID,
		EncryptionKey: key,
	}))
	if !ok {
		c.table.UpdateState(a.NodeMAC, StateFailed)
		c.finishAttempt(ResultInternalError)
		return false
	}

	c.table.UpdateState(a.NodeMAC, StateBound)
	c.identity.NextTowerID++
	c.finishAttempt(ResultSuccess)
	return true
}

// OnAbort processes an inbound Abort frame. A zero binding token is
// treated as a wildcard match, matching the guard "token matches OR
// binding token was 0".
func (c *Controller) OnAbort(a Abort) bool {
	if c.state != Binding || !c.attempt.Active {
		return false
	}
	if a.SenderMAC != c.attempt.NodeMAC {
		return false
	}
	if a.OfferToken != c.attempt.OfferToken && c.attempt.OfferToken != 0 {
		return false
	}
	c.finishAttempt(ResultNodeAborted)
	c.table.Remove(a.SenderMAC)
	return true
}

// Tick is the periodic driver (C6): it expires the permit-join window
// and the binding timeout, and sweeps stale discovery entries. Call it
// at a steady cadence (the reference coordinator uses 250ms) from a
// single goroutine.
func (c *Controller) Tick() {
	now := c.clock.NowMS()

	if c.state == DiscoveryActive && c.permitTimer.Expired(now) {
		c.DisablePermitJoin()
	}

	if c.state == Binding && c.bindTimer.Expired(now) {
		if c.sender != nil {
			c.sender.SendUnicast(c.attempt.NodeMAC, EncodeReject(Reject{
				SenderMAC:  c.identity.CoordinatorMAC,
				Reason:     ReasonTimeout,
				OfferToken: c.attempt.OfferToken,
			}))
		}
		c.table.UpdateState(c.attempt.NodeMAC, StateFailed)
		c.finishAttempt(ResultTimeout)
	}

	skip := MAC{}
	if c.attempt.Active {
		skip = c.attempt.NodeMAC
	}
	c.table.Sweep(now, skip)
}

// finishAttempt records the outcome, releases the Binding lock, and
// returns the controller to DiscoveryActive (if the permit-join window
// is still open) or Operational.
func (c *Controller) finishAttempt(result Result) {
	attempt := c.attempt
	attempt.Active = false
	c.stats.Record(result, c.clock.NowMS()-attempt.StartedMS)
	c.sink.BindingCompleted(attempt, result)

	c.attempt = BindingAttempt{}
	c.bindTimer.Clear()

	if c.permitTimer.Running() {
		c.state = DiscoveryActive
	} else {
		c.state = Operational
	}
}

// deriveKey produces the 16-byte key material handed out in Confirm.
// The spec's default is a zeroed key ("when encryption is not in use");
// with StrongKeys set it's an HKDF-SHA256 expansion seeded with fresh
// RNG salt per attempt. Neither mode authenticates the advertisement.
func (c *Controller) deriveKey(mac MAC, token uint32) [16]byte {
	var key [16]byte
	if !c.strongKeys {
		return key
	}

	secret := make([]byte, 10)
	copy(secret[:6], mac[:])
	secret[6] = byte(token)
	secret[7] = byte(token >> 8)
	secret[8] = byte(token >> 16)
	secret[9] = byte(token >> 24)

	salt := make([]byte, 4)
	saltWord := c.rng.Uint32()
	salt[0] = byte(saltWord)
	salt[1] = byte(saltWord >> 8)
	salt[2] = byte(saltWord >> 16)
	salt[3] = byte(saltWord >> 24)

	r := hkdf.New(sha256.New, secret, salt, []byte("hydropair-confirm-key"))
	io.ReadFull(r, key[:])
	return key
}
