package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu   sync.Mutex
	mono io.Reader

	// seq backs the numeric id space. Seeded with wall-clock millis so ids
	// from separate runs don't collide in a shared journal.
	seq atomic.Int64
)

func init() {
	// Seed a PRNG from crypto/rand so ULID entropy is unpredictable.
	// ulid.Monotonic keeps IDs generated within the same millisecond
	// lexicographically increasing.
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)

	seq.Store(time.Now().UnixMilli())
}

// New returns a ULID string (time-sortable identifier), used for run ids
// and journal rows.
func New() string {
	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), mono)
	if err != nil {
		// Errors are extremely unlikely unless time goes backwards or entropy fails.
		panic(err)
	}
	return id.String()
}

// Next returns a unique numeric id. Exchange order and group ids are int64
// on the wire, so the simulator and exit-order bookkeeping use these.
func Next() int64 {
	return seq.Add(1)
}
