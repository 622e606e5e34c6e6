package pheromone

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// PayloadHash returns a stable, short digest of payload suitable for merge
// matching on (trail, type, payload_hash). encoding/json sorts map keys at
// every structural level, so two payloads with the same keys in different
// orders hash identically.
func PayloadHash(payload map[string]any) string {
	data, err := json.Marshal(payload)
	if err != nil {
		// Payloads are caller-constructed JSON-compatible maps; a marshal
		// failure here means a non-serializable value snuck in. Hash the
		// error text so mismatched/invalid payloads never silently collide
		// with a valid empty-payload hash.
		data = []byte(err.Error())
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
