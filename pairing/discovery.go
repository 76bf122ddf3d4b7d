package pairing

// DefaultMaxDiscoveredNodes is the default table capacity (spec §3).
const DefaultMaxDiscoveredNodes = 32

// DefaultDiscoveryTTLMS is the default eviction age for stale entries.
const DefaultDiscoveryTTLMS = 30_000

// DiscoveryTable is a bounded, array-backed set of observed nodes keyed
// by hardware address. At N=32 a linear scan over a small fixed-capacity
// array beats the bookkeeping of a hash map.
type DiscoveryTable struct {
	entries  []DiscoveredNode
	capacity int
	ttlMS    uint64
}

// NewDiscoveryTable returns a table with the given capacity and TTL.
func NewDiscoveryTable(capacity int, ttlMS uint64) *DiscoveryTable {
	if capacity <= 0 {
		capacity = DefaultMaxDiscoveredNodes
	}
	if ttlMS == 0 {
		ttlMS = DefaultDiscoveryTTLMS
	}
	return &DiscoveryTable{
		entries:  make([]DiscoveredNode, 0, capacity),
		capacity: capacity,
		ttlMS:    ttlMS,
	}
}

func (t *DiscoveryTable) indexOf(mac MAC) int {
	for i := range t.entries {
		if t.entries[i].MAC == mac {
			return i
		}
	}
	return -1
}

// Observe records an advertisement, applying the insertion policy from
// spec §4.3: refresh an existing entry unless the (nonce, sequence) pair
// is an exact duplicate, otherwise insert if there's room or a stale
// entry can be evicted.
func (t *DiscoveryTable) Observe(
	mac MAC,
	deviceType DeviceType,
	firmwareVersion uint32,
	capabilities uint16,
	nonce uint32,
	sequence uint16,
	rssi int8,
	nowMS uint64,
) ObserveOutcome {
	if i := t.indexOf(mac); i >= 0 {
		e := &t.entries[i]
		if e.LastSequence == sequence && e.LastNonce == nonce {
			return DuplicateDropped
		}
		e.LastNonce = nonce
		e.LastSequence = sequence
		e.LastSeenMS = nowMS
		e.RSSI = rssi
		e.DeviceType = deviceType
		e.FirmwareVersion = UnpackFirmwareVersion(firmwareVersion)
		e.Capabilities = Capabilities(capabilities)
		return Refreshed
	}

	newEntry := DiscoveredNode{
		MAC:             mac,
		DeviceType:      deviceType,
		FirmwareVersion: UnpackFirmwareVersion(firmwareVersion),
		Capabilities:    Capabilities(capabilities),
		LastNonce:       nonce,
		LastSequence:    sequence,
		LastSeenMS:      nowMS,
		RSSI:            rssi,
		State:           StateDiscovered,
		OfferToken:      0,
	}

	if len(t.entries) < t.capacity {
		t.entries = append(t.entries, newEntry)
		return Inserted
	}

	if victim := t.oldestStale(nowMS); victim >= 0 {
		t.entries[victim] = newEntry
		return Inserted
	}

	return RejectedCapacityFull
}

// oldestStale returns the index of the stalest entry older than the TTL,
// or -1 if none qualify.
func (t *DiscoveryTable) oldestStale(nowMS uint64) int {
	best := -1
	var bestAge uint64
	for i := range t.entries {
		age := nowMS - t.entries[i].LastSeenMS
		if age < t.ttlMS {
			continue
		}
		if best == -1 || age > bestAge {
			best = i
			bestAge = age
		}
	}
	return best
}

// Find returns a pointer to the entry for mac, or nil.
func (t *DiscoveryTable) Find(mac MAC) *DiscoveredNode {
	if i := t.indexOf(mac); i >= 0 {
		return &t.entries[i]
	}
	return nil
}

// UpdateState sets the state of the entry for mac, if present.
func (t *DiscoveryTable) UpdateState(mac MAC, state NodeState) {
	if e := t.Find(mac); e != nil {
		e.State = state
	}
}

// SetOfferToken sets the offer token of the entry for mac, if present.
func (t *DiscoveryTable) SetOfferToken(mac MAC, token uint32) {
	if e := t.Find(mac); e != nil {
		e.OfferToken = token
	}
}

// Remove deletes the entry for mac, if present. Order of the remaining
// entries is not preserved.
func (t *DiscoveryTable) Remove(mac MAC) {
	if i := t.indexOf(mac); i >= 0 {
		last := len(t.entries) - 1
		t.entries[i] = t.entries[last]
		t.entries = t.entries[:last]
	}
}

// ClearAll empties the table.
func (t *DiscoveryTable) ClearAll() {
	t.entries = t.entries[:0]
}

// RemoveNotBound removes every entry not currently in StateBound. Used
// when the permit-join window closes or a binding is cancelled.
func (t *DiscoveryTable) RemoveNotBound() {
	kept := t.entries[:0]
	for _, e := range t.entries {
		if e.State == StateBound {
			kept = append(kept, e)
		}
	}
	t.entries = kept
}

// Sweep evicts entries whose LastSeenMS is older than the discovery TTL.
// Entries in StateBound and entries matching skip (typically the MAC of
// an in-flight binding) are never evicted.
func (t *DiscoveryTable) Sweep(nowMS uint64, skip MAC) {
	kept := t.entries[:0]
	for _, e := range t.entries {
		age := nowMS - e.LastSeenMS
		if age >= t.ttlMS && e.MAC != skip && e.State != StateBound {
			continue
		}
		kept = append(kept, e)
	}
	t.entries = kept
}

// Len returns the current number of entries.
func (t *DiscoveryTable) Len() int {
	return len(t.entries)
}

// Snapshot returns a copy of every entry, for display or metrics.
func (t *DiscoveryTable) Snapshot() []DiscoveredNode {
	out := make([]DiscoveredNode, len(t.entries))
	copy(out, t.entries)
	return out
}
