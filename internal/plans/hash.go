package plans

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/google/uuid"
)

// Bucket maps a (plan guid, health code) pair onto 1..100, deterministically.
//
// When both strings are well-formed UUIDs the seed is the sum of their
// least-significant 64-bit halves, which keeps historical A/B assignments
// stable for UUID-keyed deployments. Anything else falls back to an FNV-64a
// mix of both strings, so non-UUID identifiers never fail.
func Bucket(planGUID, healthCode string) int {
	return int(bucketSeed(planGUID, healthCode)%100) + 1
}

func bucketSeed(planGUID, healthCode string) uint64 {
	pu, perr := uuid.Parse(planGUID)
	hu, herr := uuid.Parse(healthCode)
	if perr == nil && herr == nil {
		return lsb64(pu) + lsb64(hu)
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(planGUID))
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write([]byte(healthCode))
	return h.Sum64()
}

func lsb64(u uuid.UUID) uint64 {
	return binary.BigEndian.Uint64(u[8:])
}
