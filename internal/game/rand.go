package game

// Deterministic sequence generator. Every outcome, curve and timeline in this
// package draws from one of these, so the same round id always replays the
// same round.

const (
	lcgMultiplier = 1103515245
	lcgIncrement  = 12345
	lcgModulus    = 1 << 31
)

// Sequence is a linear congruential generator over a 2^31 modulus. Same seed,
// same stream, always. Never reseeded mid-round.
type Sequence struct {
	state int64
}

// NewSequence creates a generator from a 32-bit seed.
func NewSequence(seed int32) *Sequence {
	s := int64(seed)
	if s < 0 {
		s = -s
	}
	return &Sequence{state: s % lcgModulus}
}

// Next advances the generator and returns a value in [0, 1).
func (s *Sequence) Next() float64 {
	s.state = (s.state*lcgMultiplier + lcgIncrement) % lcgModulus
	return float64(s.state) / float64(lcgModulus)
}

// NextIndex returns a uniform index in [0, n).
func (s *Sequence) NextIndex(n int) int {
	i := int(s.Next() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// DeriveSeed maps a round identifier onto the base seed. Identical ids always
// reproduce identical rounds; distinct ids diverge with high probability.
func DeriveSeed(baseSeed int32, roundID string) int32 {
	return baseSeed ^ hashRoundID(roundID)
}

// hashRoundID is a 32-bit rolling polynomial hash, order-dependent, overflow
// wrapped, taken as absolute value.
func hashRoundID(id string) int32 {
	var h int32
	for _, c := range id {
		h = h*31 + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return int32(v % lcgModulus)
}
