package sbmark

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// payload sizes are drawn uniformly from [MinPayloadSize, MaxPayloadSize)
const (
	MinPayloadSize = 1024
	MaxPayloadSize = 100 * 1024 * 1024
)

type PayloadSource interface {
	Generate() []byte
}

// PayloadGenerator produces randomly sized buffers of random bytes.
// It is not safe for concurrent use, every worker owns one.
type PayloadGenerator struct {
	src      *rand.ChaCha8
	rnd      *rand.Rand
	min, max int
}

func NewPayloadGenerator(src *rand.ChaCha8) *PayloadGenerator {
	return newPayloadGenerator(src, MinPayloadSize, MaxPayloadSize)
}

func newPayloadGenerator(src *rand.ChaCha8, minSize, maxSize int) *PayloadGenerator {
	return &PayloadGenerator{
		src: src,
		rnd: rand.New(src),
		min: minSize,
		max: maxSize,
	}
}

func (g *PayloadGenerator) nextSize() int {
	return g.min + g.rnd.IntN(g.max-g.min)
}

func (g *PayloadGenerator) Generate() []byte {
	buf := make([]byte, g.nextSize())
	_, _ = g.src.Read(buf)
	return buf
}

// workerSeed derives the seed of a worker's random source. A zero base seed
// yields a non-reproducible seed from crypto/rand.
func workerSeed(base uint64, worker int) (seed [32]byte) {
	if base == 0 {
		_, _ = crand.Read(seed[:])
		return seed
	}
	binary.LittleEndian.PutUint64(seed[0:], base)
	binary.LittleEndian.PutUint64(seed[8:], uint64(worker))
	return seed
}
