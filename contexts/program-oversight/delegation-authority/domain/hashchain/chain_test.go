package hashchain

import (
	"testing"
	"time"

	"ouvrage/contexts/program-oversight/delegation-authority/domain/entities"
)

func buildChain(t *testing.T, algorithm Algorithm, count int) (string, []entities.DelegationEvent) {
	t.Helper()

	createdAt := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	grantor := entities.Person{PersonID: "person-grantor", Name: "Awa Diop", Role: "director"}
	agent := entities.Person{PersonID: "person-agent", Name: "Mamadou Fall", Role: "bureau-chief"}

	decisionHash, err := GenesisHash("delegation-1", grantor, agent, createdAt, algorithm)
	if err != nil {
		t.Fatalf("genesis hash failed: %v", err)
	}

	previous := decisionHash
	events := make([]entities.DelegationEvent, 0, count)
	for i := 0; i < count; i++ {
		eventID, err := NewEventID()
		if err != nil {
			t.Fatalf("new event id failed: %v", err)
		}
		event := entities.DelegationEvent{
			EventID:      eventID,
			DelegationID: "delegation-1",
			EventType:    entities.EventTypeSubmitted,
			Actor:        agent,
			Summary:      "chain test event",
			Details:      map[string]string{"index": string(rune('a' + i))},
			PreviousHash: previous,
			CreatedAt:    createdAt.Add(time.Duration(i+1) * time.Minute),
		}
		eventHash, err := ComputeEventHash(EventPayload(event), previous, algorithm)
		if err != nil {
			t.Fatalf("compute event hash failed: %v", err)
		}
		event.EventHash = eventHash
		events = append(events, event)
		previous = eventHash
	}
	return decisionHash, events
}

func TestComputeEventHashIsDeterministic(t *testing.T) {
	_, events := buildChain(t, AlgorithmSHA3256, 1)
	event := events[0]

	recomputed, err := ComputeEventHash(EventPayload(event), event.PreviousHash, AlgorithmSHA3256)
	if err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	if recomputed != event.EventHash {
		t.Fatalf("hash not deterministic: %s vs %s", recomputed, event.EventHash)
	}
}

func TestComputeEventHashRejectsUnknownAlgorithm(t *testing.T) {
	if _, err := ComputeEventHash(map[string]any{"k": "v"}, "prev", Algorithm("md5")); err == nil {
		t.Fatalf("expected error for unknown algorithm")
	}
}

func TestVerifyChainEmptyIsValid(t *testing.T) {
	decisionHash, _ := buildChain(t, AlgorithmSHA3256, 0)

	result, err := VerifyChain(decisionHash, AlgorithmSHA3256, nil)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !result.Valid || result.BrokenAt != -1 || result.EventsChecked != 0 {
		t.Fatalf("expected valid empty chain, got %+v", result)
	}
}

func TestVerifyChainAcceptsIntactChain(t *testing.T) {
	decisionHash, events := buildChain(t, AlgorithmSHA3256, 4)

	result, err := VerifyChain(decisionHash, AlgorithmSHA3256, events)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid chain, broken at %d", result.BrokenAt)
	}
	if result.EventsChecked != 4 {
		t.Fatalf("expected 4 events checked, got %d", result.EventsChecked)
	}
}

func TestVerifyChainDetectsTamperedPayload(t *testing.T) {
	decisionHash, events := buildChain(t, AlgorithmSHA3256, 3)
	events[1].Summary = "altered after the fact"

	result, err := VerifyChain(decisionHash, AlgorithmSHA3256, events)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if result.Valid {
		t.Fatalf("expected broken chain")
	}
	if result.BrokenAt != 1 {
		t.Fatalf("expected break at index 1, got %d", result.BrokenAt)
	}
	if result.BrokenEventID != events[1].EventID {
		t.Fatalf("expected broken event %s, got %s", events[1].EventID, result.BrokenEventID)
	}
}

func TestVerifyChainDetectsBrokenLink(t *testing.T) {
	decisionHash, events := buildChain(t, AlgorithmSHA3256, 3)
	events[2].PreviousHash = events[0].EventHash

	result, err := VerifyChain(decisionHash, AlgorithmSHA3256, events)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if result.Valid || result.BrokenAt != 2 {
		t.Fatalf("expected break at index 2, got %+v", result)
	}
}

func TestVerifyChainNormalizesEmptyAlgorithm(t *testing.T) {
	decisionHash, events := buildChain(t, DefaultAlgorithm, 2)

	result, err := VerifyChain(decisionHash, "", events)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid chain under normalized algorithm")
	}
	if result.Algorithm != DefaultAlgorithm {
		t.Fatalf("expected %s, got %s", DefaultAlgorithm, result.Algorithm)
	}
}

func TestVerifyChainSupportsSHA256Fallback(t *testing.T) {
	decisionHash, events := buildChain(t, AlgorithmSHA256, 2)

	result, err := VerifyChain(decisionHash, AlgorithmSHA256, events)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid sha256 chain")
	}

	mismatch, err := VerifyChain(decisionHash, AlgorithmSHA3256, events)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if mismatch.Valid {
		t.Fatalf("sha3-256 must not validate a sha256 chain")
	}
}

func TestShortHash(t *testing.T) {
	if got := ShortHash("abcdef0123456789"); got != "abcdef012345" {
		t.Fatalf("unexpected short hash %q", got)
	}
	if got := ShortHash("abc"); got != "abc" {
		t.Fatalf("short input must pass through, got %q", got)
	}
}

func TestCompareHashes(t *testing.T) {
	if !CompareHashes("deadbeef", "deadbeef") {
		t.Fatalf("equal hashes must compare true")
	}
	if CompareHashes("deadbeef", "deadbeee") {
		t.Fatalf("different hashes must compare false")
	}
	if CompareHashes("deadbeef", "deadbee") {
		t.Fatalf("different lengths must compare false")
	}
}
