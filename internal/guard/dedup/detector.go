// Package dedup suppresses identical mutating requests within a short TTL.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"parley-server/internal/guard/ttlcache"
)

// evictFraction of entries dropped, oldest first, when the size cap is hit.
const evictFraction = 0.10

// volatileFields are top-level payload keys excluded from the fingerprint:
// they change between otherwise identical retries.
var volatileFields = map[string]bool{
	"timestamp":  true,
	"ts":         true,
	"nonce":      true,
	"request_id": true,
	"id":         true,
}

// Detector fingerprints (actor, resource, normalized payload) and remembers
// each fingerprint for a TTL.
type Detector struct {
	ttl        time.Duration
	maxEntries int
	store      *ttlcache.Cache[time.Time]
	now        func() time.Time
}

func NewDetector(ttl time.Duration, maxEntries int) *Detector {
	return &Detector{
		ttl:        ttl,
		maxEntries: maxEntries,
		store:      ttlcache.New[time.Time](),
		now:        time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (d *Detector) SetClock(now func() time.Time) {
	d.now = now
	d.store.SetClock(now)
}

// CheckAndRecord reports true when an identical request was seen within the
// TTL. A duplicate does not refresh the original sighting; a unique request is
// recorded with the current time.
func (d *Detector) CheckAndRecord(actor, resource string, payload []byte) bool {
	key := d.fingerprint(actor, resource, payload)

	if _, seen := d.store.Get(key); seen {
		return true
	}

	now := d.now()
	d.store.Set(key, now, now.Add(d.ttl))

	if d.store.Len() > d.maxEntries {
		d.store.EvictOldest(evictFraction)
	}
	return false
}

// Sweep reclaims entries older than the TTL.
func (d *Detector) Sweep() int {
	return d.store.Sweep()
}

func (d *Detector) Len() int {
	return d.store.Len()
}

func (d *Detector) fingerprint(actor, resource string, payload []byte) string {
	sum := sha256.Sum256([]byte(actor + "\x00" + resource + "\x00" + normalize(payload)))
	return hex.EncodeToString(sum[:])
}

// normalize drops volatile top-level fields from a JSON object payload and
// re-serializes it with sorted keys. Non-object payloads hash as-is.
func normalize(payload []byte) string {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" {
		return ""
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return trimmed
	}

	keys := make([]string, 0, len(obj))
	for key := range obj {
		if volatileFields[key] {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		b.WriteString(key)
		b.WriteByte('=')
		b.Write(obj[key])
		b.WriteByte(';')
	}
	return b.String()
}
