package roll

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/dice"
)

// randomRoller is the production dice.Roller, seeded from crypto/rand
type randomRoller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomRoller creates a roller seeded with high-entropy randomness
func NewRandomRoller() dice.Roller {
	var b [8]byte
	seed := time.Now().UnixNano()
	if _, err := crand.Read(b[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(b[:]))
	}
	return &randomRoller{rng: rand.New(rand.NewSource(seed))}
}

// NewSeededRoller creates a roller with a fixed seed for reproducible rolls
func NewSeededRoller(seed int64) dice.Roller {
	return &randomRoller{rng: rand.New(rand.NewSource(seed))}
}

// Roll returns a single die result in [1, size]
func (r *randomRoller) Roll(size int) (int, error) {
	if size <= 0 {
		return 0, fmt.Errorf("die size must be positive, got %d", size)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(size) + 1, nil
}

// RollN returns count die results, each in [1, size]
func (r *randomRoller) RollN(count, size int) ([]int, error) {
	if count <= 0 {
		return nil, fmt.Errorf("dice count must be positive, got %d", count)
	}
	if size <= 0 {
		return nil, fmt.Errorf("die size must be positive, got %d", size)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	results := make([]int, count)
	for i := range results {
		results[i] = r.rng.Intn(size) + 1
	}
	return results, nil
}
