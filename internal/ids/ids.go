package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewRequestID returns a lexicographically sortable identifier used to correlate
// log lines and error bodies belonging to one request.
func NewRequestID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewEntityID returns a random UUID for persisted records.
func NewEntityID() string {
	return uuid.NewString()
}

// CanonicalEntityID parses id in any form uuid.Parse accepts (upper case,
// braced, urn:uuid:, undashed) and returns the lower-case dashed form that
// records are stored under. ok is false for anything that is not a UUID.
func CanonicalEntityID(id string) (canonical string, ok bool) {
	if id == "" {
		return "", false
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return u.String(), true
}
