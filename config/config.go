// Package config loads and persists the coordinator's on-disk
// configuration: its fixed identity, protocol timing overrides, and
// the handful of fields allowed to survive a restart (next tower ID and
// bound-node names).
package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/batchlors/hydropair/pairing"
)

// DefaultFile is the config path used when the host doesn't override it.
const DefaultFile = "coordinator.yaml"

// Timing holds protocol timing overrides, in milliseconds. A zero field
// means "use the pairing package default".
type Timing struct {
	PermitJoinWindowMS uint64 `yaml:"permit_join_window_ms,omitempty"`
	MaxPermitJoinMS    uint64 `yaml:"max_permit_join_ms,omitempty"`
	BindingTimeoutMS   uint64 `yaml:"binding_timeout_ms,omitempty"`
	DiscoveryTTLMS     uint64 `yaml:"discovery_ttl_ms,omitempty"`
	MaxDiscoveredNodes int    `yaml:"max_discovered_nodes,omitempty"`
}

// data is the plain (comment-free) view of the document, used for
// typed access; c.yaml is the round-tripped view used when writing.
type data struct {
	CoordinatorMAC string            `yaml:"coordinator_mac"`
	CoordinatorID  uint16            `yaml:"coordinator_id"`
	FarmID         uint16            `yaml:"farm_id"`
	StrongKeys     bool              `yaml:"strong_keys,omitempty"`
	Timing         Timing            `yaml:"timing,omitempty"`
	NextTowerID    uint16            `yaml:"next_tower_id,omitempty"`
	Names          map[string]string `yaml:"names,omitempty"` // bound node MAC -> operator-given name
}

// Config is the coordinator's live configuration. It is safe for
// concurrent use: the host's pairing event sink records bound-node names
// and the next tower ID while other goroutines may read or Write it.
type Config struct {
	mu   sync.RWMutex
	data data
	yaml yaml.Node // decoded document, preserving comments, for round-trip writes
}

// Load reads and parses fn. A missing file is reported via os.IsNotExist
// on the returned error so callers can treat it as a warning, not a
// fatal condition, matching the teacher's conf.load behavior.
func Load(fn string) (*Config, error) {
	raw, err := os.ReadFile(fn)
	if err != nil {
		return nil, err
	}

	c := &Config{}
	if err := yaml.Unmarshal(raw, &c.yaml); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", fn, err)
	}
	if err := yaml.Unmarshal(raw, &c.data); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", fn, err)
	}
	return c, nil
}

// New returns an empty Config suitable for a fresh install, seeded with
// identity.
func New(identity pairing.Identity) *Config {
	c := &Config{
		data: data{
			CoordinatorMAC: identity.CoordinatorMAC.String(),
			CoordinatorID:  identity.CoordinatorID,
			FarmID:         identity.FarmID,
			NextTowerID:    1,
			Names:          make(map[string]string),
		},
	}
	return c
}

// Identity converts the loaded configuration into a pairing.Identity.
func (c *Config) Identity() (pairing.Identity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	mac, err := parseMAC(c.data.CoordinatorMAC)
	if err != nil {
		return pairing.Identity{}, fmt.Errorf("config: coordinator_mac: %w", err)
	}
	nextTowerID := c.data.NextTowerID
	if nextTowerID == 0 {
		nextTowerID = 1
	}
	return pairing.Identity{
		CoordinatorMAC: mac,
		CoordinatorID:  c.data.CoordinatorID,
		FarmID:         c.data.FarmID,
		NextTowerID:    nextTowerID,
	}, nil
}

// Timing returns the configured timing overrides.
func (c *Config) Timing() Timing {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Timing
}

// StrongKeys reports whether HKDF-derived Confirm keys were requested.
func (c *Config) StrongKeys() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.StrongKeys
}

// NameFor returns the operator-given name for a bound node, or "" if
// none has been recorded.
func (c *Config) NameFor(mac pairing.MAC) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Names[mac.String()]
}

// SetName records (or updates) the name for a bound node.
func (c *Config) SetName(mac pairing.MAC, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data.Names == nil {
		c.data.Names = make(map[string]string)
	}
	c.data.Names[mac.String()] = name
}

// SetNextTowerID persists the coordinator's next tower ID allocator
// state, per spec.md §6.3.
func (c *Config) SetNextTowerID(id uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.NextTowerID = id
}

// Write persists the config to fn, preserving any comments present in
// the document it was loaded from. Writes are atomic via a temp file
// plus rename, matching the teacher's conf.write.
func (c *Config) Write(fn string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	root := c.documentRoot()
	c.setScalar(root, "coordinator_mac", c.data.CoordinatorMAC)
	c.setScalar(root, "coordinator_id", fmt.Sprintf("%d", c.data.CoordinatorID))
	c.setScalar(root, "farm_id", fmt.Sprintf("%d", c.data.FarmID))
	c.setScalar(root, "next_tower_id", fmt.Sprintf("%d", c.data.NextTowerID))

	names := c.namesNode(root)
	for mac, name := range c.data.Names {
		c.setScalar(names, mac, name)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fn), "."+filepath.Base(fn)+"*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	enc := yaml.NewEncoder(tmp)
	enc.SetIndent(2)
	if err := enc.Encode(&c.yaml); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), fn)
}

// documentRoot returns the top-level mapping node, creating it if the
// document is empty.
func (c *Config) documentRoot() *yaml.Node {
	if len(c.yaml.Content) == 0 {
		c.yaml.Kind = yaml.DocumentNode
		mapping := &yaml.Node{Kind: yaml.MappingNode}
		c.yaml.Content = append(c.yaml.Content, mapping)
	}
	return c.yaml.Content[0]
}

// namesNode finds (or creates) the "names" mapping under root.
func (c *Config) namesNode(root *yaml.Node) *yaml.Node {
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "names" {
			return root.Content[i+1]
		}
	}
	key := &yaml.Node{Kind: yaml.ScalarNode, Value: "names", Tag: "!!str"}
	val := &yaml.Node{Kind: yaml.MappingNode}
	root.Content = append(root.Content, key, val)
	return val
}

// setScalar sets key=value under mapping, appending a new pair if key
// isn't already present. The value is left untagged and unquoted so the
// encoder resolves it: numbers are written as YAML integers and decode
// back into the typed fields on Load.
func (c *Config) setScalar(mapping *yaml.Node, key, value string) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1].Value = value
			mapping.Content[i+1].Tag = ""
			mapping.Content[i+1].Style = 0
			return
		}
	}
	yk := &yaml.Node{Kind: yaml.ScalarNode, Value: key, Tag: "!!str", Style: yaml.DoubleQuotedStyle}
	yv := &yaml.Node{Kind: yaml.ScalarNode, Value: value}
	mapping.Content = append(mapping.Content, yk, yv)
}

func parseMAC(s string) (pairing.MAC, error) {
	var mac pairing.MAC
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return mac, fmt.Errorf("want 6 colon-separated octets, got %d", len(parts))
	}
	for i, p := range parts {
		b, err := hex.DecodeString(p)
		if err != nil || len(b) != 1 {
			return mac, fmt.Errorf("invalid octet %q", p)
		}
		mac[i] = b[0]
	}
	return mac, nil
}

// LogMissing logs fn's absence as a warning (not fatal), matching the
// teacher's handling of a missing config.yaml on first run.
func LogMissing(fn string, err error) {
	if os.IsNotExist(err) {
		slog.Warn("configuration file does not exist, starting fresh", "fn", fn)
		return
	}
	slog.Error("unable to load configuration file", "fn", fn, "err", err)
}
