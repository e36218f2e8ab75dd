package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New: ULID от текущего времени.
func New() string { return NewAt(time.Now()) }

// NewAt: ULID с меткой t. Внутри одной миллисекунды id растут монотонно,
// поэтому ключи журнала в хранилище идут в порядке записи.
func NewAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()

	v, err := ulid.New(ulid.Timestamp(t.UTC()), mono)
	if err != nil {
		// монотонный генератор переполнился в пределах миллисекунды
		v = ulid.MustNew(ulid.Timestamp(t.UTC()), cryptoRand.Reader)
	}
	return v.String()
}

// ClientOrder: newClientOrderId для биржи (до 36 символов).
func ClientOrder(kind string) string {
	return "sb-" + kind + "-" + New()
}
