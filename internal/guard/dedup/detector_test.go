package dedup

import (
	"fmt"
	"testing"
	"time"
)

func newTestDetector(ttl time.Duration, maxEntries int) (*Detector, *time.Time) {
	detector := NewDetector(ttl, maxEntries)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	detector.SetClock(func() time.Time { return now })
	return detector, &now
}

func TestDuplicateWithinTTL(t *testing.T) {
	detector, now := newTestDetector(5*time.Second, 100)

	payload := []byte(`{"content":"Hello"}`)
	if detector.CheckAndRecord("user-1", "POST /v1/conversations/c1/messages", payload) {
		t.Fatal("first request reported as duplicate")
	}
	*now = now.Add(time.Second)
	if !detector.CheckAndRecord("user-1", "POST /v1/conversations/c1/messages", payload) {
		t.Fatal("identical request within TTL not reported as duplicate")
	}
}

func TestAcceptedAfterTTL(t *testing.T) {
	detector, now := newTestDetector(5*time.Second, 100)

	payload := []byte(`{"content":"Hello"}`)
	detector.CheckAndRecord("user-1", "send", payload)

	*now = now.Add(6 * time.Second)
	if detector.CheckAndRecord("user-1", "send", payload) {
		t.Fatal("request after TTL reported as duplicate")
	}
}

func TestDuplicateDoesNotRefreshSighting(t *testing.T) {
	detector, now := newTestDetector(5*time.Second, 100)

	payload := []byte(`{"content":"Hello"}`)
	detector.CheckAndRecord("user-1", "send", payload)

	*now = now.Add(4 * time.Second)
	if !detector.CheckAndRecord("user-1", "send", payload) {
		t.Fatal("expected duplicate at 4s")
	}
	// 6s after the first sighting; the duplicate at 4s must not have extended it.
	*now = now.Add(2 * time.Second)
	if detector.CheckAndRecord("user-1", "send", payload) {
		t.Fatal("original sighting should have expired")
	}
}

func TestDistinctActorsNotDuplicates(t *testing.T) {
	detector, _ := newTestDetector(5*time.Second, 100)

	payload := []byte(`{"content":"Hello"}`)
	detector.CheckAndRecord("user-1", "send", payload)
	if detector.CheckAndRecord("user-2", "send", payload) {
		t.Fatal("same payload from another actor reported as duplicate")
	}
}

func TestVolatileFieldsIgnored(t *testing.T) {
	detector, _ := newTestDetector(5*time.Second, 100)

	detector.CheckAndRecord("user-1", "send", []byte(`{"content":"Hello","timestamp":1700000000}`))
	if !detector.CheckAndRecord("user-1", "send", []byte(`{"content":"Hello","timestamp":1700000099}`)) {
		t.Fatal("payloads differing only in volatile fields must match")
	}
	if detector.CheckAndRecord("user-1", "send", []byte(`{"content":"Bye","timestamp":1700000000}`)) {
		t.Fatal("different content reported as duplicate")
	}
}

func TestKeyOrderIrrelevant(t *testing.T) {
	detector, _ := newTestDetector(5*time.Second, 100)

	detector.CheckAndRecord("user-1", "send", []byte(`{"a":1,"b":2}`))
	if !detector.CheckAndRecord("user-1", "send", []byte(`{"b":2,"a":1}`)) {
		t.Fatal("key order must not affect the fingerprint")
	}
}

func TestSizeCapEvictsOldest(t *testing.T) {
	detector, now := newTestDetector(time.Hour, 10)

	for i := 0; i < 11; i++ {
		payload := []byte(fmt.Sprintf(`{"content":"msg %d"}`, i))
		detector.CheckAndRecord("user-1", "send", payload)
		*now = now.Add(time.Millisecond)
	}

	if detector.Len() > 10 {
		t.Fatalf("Len() = %d, want <= 10 after cap eviction", detector.Len())
	}
	// The newest entry must survive eviction.
	if !detector.CheckAndRecord("user-1", "send", []byte(`{"content":"msg 10"}`)) {
		t.Fatal("newest entry was evicted")
	}
}

func TestSweepReclaimsExpired(t *testing.T) {
	detector, now := newTestDetector(time.Second, 100)

	detector.CheckAndRecord("user-1", "send", []byte(`{"content":"a"}`))
	detector.CheckAndRecord("user-1", "send", []byte(`{"content":"b"}`))

	*now = now.Add(2 * time.Second)
	if removed := detector.Sweep(); removed != 2 {
		t.Fatalf("Sweep() = %d, want 2", removed)
	}
}
