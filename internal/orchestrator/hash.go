package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/module"
)

// CanonicalHash computes SHA-256 over the sorted-key representation of a
// record. syncHash is SHA256(canonical(P)), where canonical sorts keys.
func CanonicalHash(data module.Data) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v\n", k, data[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}
