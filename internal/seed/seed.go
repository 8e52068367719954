// internal/seed/seed.go
//
// Deterministic PRNG used for cross-client puzzle agreement.
// Every client that computes a daily puzzle must land on the same answer
// without a server round trip, so both the string hash and the generator
// are fixed bit-for-bit:
//
//   Hash32:  h = h*31 + byte over the UTF-8 bytes (32-bit wraparound).
//   Next:    mulberry32 — one integer mixing step per draw:
//              state += 0x6D2B79F5
//              t := state
//              t = (t ^ t>>15) * (t | 1)
//              t ^= t + (t ^ t>>7) * (t | 61)
//              draw = float64(t ^ t>>14) / 2^32
//
// No system entropy, no floating-point accumulation; the only float
// operation is the final division, which is exact for 32-bit inputs.
package seed

// Hash32 hashes key to a 32-bit seed. Order-dependent: "ab" and "ba"
// hash differently.
func Hash32(key string) uint32 {
	var h uint32
	for i := 0; i < len(key); i++ {
		h = h*31 + uint32(key[i])
	}
	return h
}

// Source is a mulberry32 generator. The zero value is a valid generator
// seeded with 0; use New to seed from a string key.
type Source struct {
	state uint32
}

// New returns a Source seeded from key via Hash32.
func New(key string) *Source {
	return &Source{state: Hash32(key)}
}

// Next returns the next draw in [0, 1) and advances the state.
func (s *Source) Next() float64 {
	s.state += 0x6D2B79F5
	t := s.state
	t = (t ^ t>>15) * (t | 1)
	t ^= t + (t^t>>7)*(t|61)
	return float64(t^t>>14) / 4294967296.0
}
