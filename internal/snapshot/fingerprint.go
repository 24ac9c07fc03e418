package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/jaekwon-dev/tapewatch/internal/contracts"
)

// Fingerprint computes the stable content hash of a cycle's decisions:
// SHA-256 over the ordered (instrument_id, tag) pairs. Feature summaries and
// timestamps are audit metadata and deliberately excluded, so two cycles
// with identical tags hash identically even when taken at different times.
// ⭐ SSOT: the fingerprint format is defined here only.
func Fingerprint(result *contracts.CycleResult) string {
	h := sha256.New()
	for _, rec := range result.Ordered() {
		fmt.Fprintf(h, "%s=%s\n", rec.InstrumentID, rec.Tag)
	}
	return hex.EncodeToString(h.Sum(nil))
}
