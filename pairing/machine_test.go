package pairing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/batchlors/hydropair/pairing"
)

// fakeClock lets tests advance monotonic time explicitly.
type fakeClock struct{ ms uint64 }

func (c *fakeClock) NowMS() uint64 { return c.ms }
func (c *fakeClock) advance(d uint64) { c.ms += d }

// fakeRNG returns a fixed sequence of values, falling back to 1 once
// exhausted so a non-zero token is always produced.
type fakeRNG struct {
	values []uint32
	i      int
}

func (r *fakeRNG) Uint32() uint32 {
	if r.i >= len(r.values) {
		return 1
	}
	v := r.values[r.i]
	r.i++
	return v
}

// fakeSender records every frame sent and can be told to fail the next
// send, to exercise the C5 transport-failure paths.
type fakeSender struct {
	unicasts [][]byte
	fail     bool
}

func (s *fakeSender) SendUnicast(mac pairing.MAC, frame []byte) bool {
	if s.fail {
		return false
	}
	s.unicasts = append(s.unicasts, frame)
	return true
}

func (s *fakeSender) SendBroadcast(frame []byte) bool {
	return !s.fail
}

// recordingSink captures every event sink callback for assertions.
type recordingSink struct {
	permitChanges   []bool
	lastRemainingMS uint64
	started         []pairing.BindingAttempt
	completed       []completedEvent
}

type completedEvent struct {
	attempt pairing.BindingAttempt
	result  pairing.Result
}

func (s *recordingSink) PermitJoinChanged(enabled bool, remainingMS uint64) {
	s.permitChanges = append(s.permitChanges, enabled)
	s.lastRemainingMS = remainingMS
}
func (s *recordingSink) NodeDiscovered(pairing.DiscoveredNode, pairing.ObserveOutcome) {}
func (s *recordingSink) BindingStarted(a pairing.BindingAttempt) {
	s.started = append(s.started, a)
}
func (s *recordingSink) BindingCompleted(a pairing.BindingAttempt, r pairing.Result) {
	s.completed = append(s.completed, completedEvent{a, r})
}

func newTestController(t *testing.T, clock *fakeClock, rng *fakeRNG, sender *fakeSender, sink *recordingSink) *pairing.Controller {
	t.Helper()
	return pairing.NewController(pairing.ControllerConfig{
		Identity: pairing.Identity{
			CoordinatorMAC: pairing.MAC{0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA},
			CoordinatorID:  0x1000,
			FarmID:         0x0001,
			NextTowerID:    1,
		},
		Clock:            clock,
		RNG:              rng,
		Sender:           sender,
		Sink:             sink,
		BindingTimeoutMS: 10_000,
	})
}

var nodeMAC = pairing.MAC{0x10, 0x20, 0x30, 0x40, 0x50, 0x60}

// Scenario 1 — Happy path.
func TestScenario1_HappyPath(t *testing.T) {
	clock := &fakeClock{}
	rng := &fakeRNG{values: []uint32{0xCAFEBABE}}
	sender := &fakeSender{}
	sink := &recordingSink{}
	c := newTestController(t, clock, rng, sender, sink)

	c.EnablePermitJoin(60_000)
	assert.EqualValues(t, 60_000, sink.lastRemainingMS)
	c.OnAdvertisement(pairing.Advertisement{MAC: nodeMAC, Nonce: 0xDEADBEEF, Sequence: 1}, -50)

	require.NoError(t, c.Approve(nodeMAC, "corr-1"))
	require.Len(t, sender.unicasts, 1)

	offer, err := pairing.Decode(sender.unicasts[0])
	require.NoError(t, err)
	offerMsg := offer.(*pairing.Offer)
	assert.EqualValues(t, 1, offerMsg.OfferedTowerID)
	assert.EqualValues(t, 0xDEADBEEF, offerMsg.NonceEcho)
	assert.NotZero(t, offerMsg.OfferToken)

	ok := c.OnAccept(pairing.Accept{NodeMAC: nodeMAC, OfferToken: offerMsg.OfferToken, AcceptedTowerID: 1})
	require.True(t, ok)

	require.Len(t, sender.unicasts, 2)
	confirm, err := pairing.Decode(sender.unicasts[1])
	require.NoError(t, err)
	confirmMsg := confirm.(*pairing.Confirm)
	assert.EqualValues(t, 1, confirmMsg.TowerID)
	assert.Equal(t, [16]byte{}, confirmMsg.EncryptionKey)

	assert.Equal(t, pairing.DiscoveryActive, c.State())
	node := c.Table().Find(nodeMAC)
	require.NotNil(t, node)
	assert.Equal(t, pairing.StateBound, node.State)

	assert.EqualValues(t, 2, c.Identity().NextTowerID)

	require.Len(t, sink.completed, 1)
	assert.Equal(t, pairing.ResultSuccess, sink.completed[0].result)
}

// Scenario 2 — Token mismatch, then binding timeout.
func TestScenario2_TokenMismatchThenTimeout(t *testing.T) {
	clock := &fakeClock{}
	rng := &fakeRNG{values: []uint32{0x12345678}}
	sender := &fakeSender{}
	sink := &recordingSink{}
	c := newTestController(t, clock, rng, sender, sink)

	c.EnablePermitJoin(60_000)
	c.OnAdvertisement(pairing.Advertisement{MAC: nodeMAC, Nonce: 1, Sequence: 1}, -50)
	require.NoError(t, c.Approve(nodeMAC, "corr"))

	offer, _ := pairing.Decode(sender.unicasts[0])
	token := offer.(*pairing.Offer).OfferToken

	ok := c.OnAccept(pairing.Accept{NodeMAC: nodeMAC, OfferToken: token + 1, AcceptedTowerID: 1})
	assert.False(t, ok)
	assert.Empty(t, sink.completed)
	assert.Equal(t, pairing.Binding, c.State())

	clock.advance(10_000)
	c.Tick()

	require.Len(t, sink.completed, 1)
	assert.Equal(t, pairing.ResultTimeout, sink.completed[0].result)
	assert.Equal(t, pairing.DiscoveryActive, c.State())

	require.Len(t, sender.unicasts, 2)
	reject, err := pairing.Decode(sender.unicasts[1])
	require.NoError(t, err)
	rejectMsg := reject.(*pairing.Reject)
	assert.Equal(t, pairing.ReasonTimeout, rejectMsg.Reason)
}

// Scenario 3 — Capacity full + TTL eviction.
func TestScenario3_CapacityFullThenTTLEviction(t *testing.T) {
	clock := &fakeClock{}
	table := pairing.NewDiscoveryTable(32, 30_000)
	for i := 0; i < 32; i++ {
		m := pairing.MAC{0, 0, 0, 0, 0, byte(i)}
		outcome := table.Observe(m, pairing.DeviceSensor, 0, 0, 1, 1, -50, 0)
		require.Equal(t, pairing.Inserted, outcome)
	}

	fresh := pairing.MAC{1, 2, 3, 4, 5, 6}
	outcome := table.Observe(fresh, pairing.DeviceSensor, 0, 0, 1, 1, -50, 30_001)
	assert.Equal(t, pairing.Inserted, outcome)
	assert.Equal(t, 32, table.Len())
	assert.NotNil(t, table.Find(fresh))
	_ = clock
}

// Scenario 4 — Disable during binding.
func TestScenario4_DisableDuringBinding(t *testing.T) {
	clock := &fakeClock{}
	rng := &fakeRNG{values: []uint32{0xAABBCCDD}}
	sender := &fakeSender{}
	sink := &recordingSink{}
	c := newTestController(t, clock, rng, sender, sink)

	c.EnablePermitJoin(60_000)
	c.OnAdvertisement(pairing.Advertisement{MAC: nodeMAC, Nonce: 1, Sequence: 1}, -50)
	require.NoError(t, c.Approve(nodeMAC, "corr"))
	require.Len(t, sender.unicasts, 1) // only the Offer so far

	c.DisablePermitJoin()

	require.Len(t, sink.completed, 1)
	assert.Equal(t, pairing.ResultInternalError, sink.completed[0].result)
	assert.Len(t, sender.unicasts, 1, "no Reject should be sent to the peer")
	assert.Nil(t, c.Table().Find(nodeMAC), "non-Bound entries must be purged")
	assert.Equal(t, pairing.Operational, c.State())
	assert.EqualValues(t, 0, sink.lastRemainingMS)
}

// Scenario 5 — Duplicate advertisement.
func TestScenario5_DuplicateAdvertisementDropped(t *testing.T) {
	clock := &fakeClock{}
	rng := &fakeRNG{}
	sender := &fakeSender{}
	sink := &recordingSink{}
	c := newTestController(t, clock, rng, sender, sink)

	c.EnablePermitJoin(60_000)
	first := c.OnAdvertisement(pairing.Advertisement{MAC: nodeMAC, Nonce: 7, Sequence: 3}, -50)
	require.Equal(t, pairing.Inserted, first)

	clock.advance(500)
	second := c.OnAdvertisement(pairing.Advertisement{MAC: nodeMAC, Nonce: 7, Sequence: 3}, -40)
	assert.Equal(t, pairing.DuplicateDropped, second)

	node := c.Table().Find(nodeMAC)
	require.NotNil(t, node)
	assert.EqualValues(t, 0, node.LastSeenMS, "duplicate must not update last_seen_ms")
}

// Scenario 6 — Reject in flight.
func TestScenario6_RejectInFlight(t *testing.T) {
	clock := &fakeClock{}
	rng := &fakeRNG{values: []uint32{0x55667788}}
	sender := &fakeSender{}
	sink := &recordingSink{}
	c := newTestController(t, clock, rng, sender, sink)

	c.EnablePermitJoin(60_000)
	c.OnAdvertisement(pairing.Advertisement{MAC: nodeMAC, Nonce: 1, Sequence: 1}, -50)
	require.NoError(t, c.Approve(nodeMAC, "corr"))

	c.Reject(nodeMAC, pairing.ReasonUserRejected)

	require.Len(t, sender.unicasts, 2)
	reject, err := pairing.Decode(sender.unicasts[1])
	require.NoError(t, err)
	rejectMsg := reject.(*pairing.Reject)
	assert.Equal(t, pairing.ReasonUserRejected, rejectMsg.Reason)

	require.Len(t, sink.completed, 1)
	assert.Equal(t, pairing.ResultNodeRejected, sink.completed[0].result)
	assert.Nil(t, c.Table().Find(nodeMAC), "rejected node must be removed from the table")
	assert.Equal(t, pairing.DiscoveryActive, c.State())
}
