package api

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/batchlors/hydropair/pairing"
)

// parseMAC accepts the colon-hex form returned by pairing.MAC.String.
func parseMAC(s string) (pairing.MAC, error) {
	var mac pairing.MAC
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return mac, fmt.Errorf("mac: want 6 colon-separated octets, got %d", len(parts))
	}
	for i, p := range parts {
		b, err := hex.DecodeString(p)
		if err != nil || len(b) != 1 {
			return mac, fmt.Errorf("mac: invalid octet %q", p)
		}
		mac[i] = b[0]
	}
	return mac, nil
}
