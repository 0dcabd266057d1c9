package hashchain

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"

	"ouvrage/contexts/program-oversight/delegation-authority/domain/entities"
)

// Algorithm identifies the digest used by a chain. It is recorded on the
// delegation at genesis time; VerifyChain re-derives hashes with the
// algorithm in force when the chain was created, never the runtime default.
type Algorithm string

const (
	AlgorithmSHA3256 Algorithm = "sha3-256"
	AlgorithmSHA256  Algorithm = "sha256"

	DefaultAlgorithm = AlgorithmSHA3256
)

func newHasher(algorithm Algorithm) (hash.Hash, error) {
	switch algorithm {
	case AlgorithmSHA3256, "":
		return sha3.New256(), nil
	case AlgorithmSHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("hashchain: unknown algorithm %q", algorithm)
	}
}

// Normalize maps the empty algorithm onto the default so stored chains
// created before the metadata field existed still verify.
func Normalize(algorithm Algorithm) Algorithm {
	if algorithm == "" {
		return DefaultAlgorithm
	}
	return algorithm
}

// ComputeEventHash hashes the canonical payload bytes concatenated with the
// previous hash. There is no null previous hash: the first event of a chain
// is anchored on the delegation's decision hash.
func ComputeEventHash(payload map[string]any, previousHash string, algorithm Algorithm) (string, error) {
	canonical, err := CanonicalJSON(payload)
	if err != nil {
		return "", err
	}
	hasher, err := newHasher(algorithm)
	if err != nil {
		return "", err
	}
	hasher.Write(canonical)
	hasher.Write([]byte(previousHash))
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// GenesisHash derives the decision hash that anchors a chain before any
// event exists.
func GenesisHash(delegationID string, grantor entities.Person, agent entities.Person, createdAt time.Time, algorithm Algorithm) (string, error) {
	payload := map[string]any{
		"delegation_id": delegationID,
		"grantor_id":    grantor.PersonID,
		"grantor_name":  grantor.Name,
		"agent_id":      agent.PersonID,
		"agent_name":    agent.Name,
		"created_at":    createdAt.UTC().Format(time.RFC3339),
	}
	canonical, err := CanonicalJSON(payload)
	if err != nil {
		return "", err
	}
	hasher, err := newHasher(algorithm)
	if err != nil {
		return "", err
	}
	hasher.Write(canonical)
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// EventPayload is the hashed projection of an event. Both the write path and
// chain verification must use the same projection, so it lives here.
func EventPayload(event entities.DelegationEvent) map[string]any {
	payload := map[string]any{
		"event_id":      event.EventID,
		"delegation_id": event.DelegationID,
		"event_type":    event.EventType,
		"actor": map[string]any{
			"id":   event.Actor.PersonID,
			"name": event.Actor.Name,
			"role": event.Actor.Role,
		},
		"summary":    event.Summary,
		"created_at": event.CreatedAt.UTC().Format(time.RFC3339),
	}

	details := map[string]any{}
	for key, value := range event.Details {
		details[key] = value
	}
	payload["details"] = details

	if event.Evaluation != nil {
		risks := make([]any, 0, len(event.Evaluation.Risks))
		for _, risk := range event.Evaluation.Risks {
			risks = append(risks, map[string]any{
				"type":     risk.Type,
				"severity": string(risk.Severity),
				"message":  risk.Message,
			})
		}
		payload["evaluation"] = map[string]any{
			"verdict":           string(event.Evaluation.Verdict),
			"reasons":           toAnySlice(event.Evaluation.Reasons),
			"required_controls": toAnySlice(event.Evaluation.RequiredControls),
			"risks":             risks,
			"matched_policy_id": event.Evaluation.MatchedPolicyID,
		}
	}
	return payload
}

func toAnySlice(values []string) []any {
	out := make([]any, 0, len(values))
	for _, value := range values {
		out = append(out, value)
	}
	return out
}

// VerifyResult reports a chain walk. BrokenAt is -1 while the chain is
// intact; once a break is found every later event is untrusted as well.
type VerifyResult struct {
	Valid         bool
	BrokenAt      int
	BrokenEventID string
	Algorithm     Algorithm
	EventsChecked int
}

// VerifyChain recomputes every event hash from its own payload and the
// previous event's stored hash (the decision hash for the first event) and
// compares against the stored value. An empty chain is valid by definition.
func VerifyChain(decisionHash string, algorithm Algorithm, events []entities.DelegationEvent) (VerifyResult, error) {
	algorithm = Normalize(algorithm)
	result := VerifyResult{
		Valid:     true,
		BrokenAt:  -1,
		Algorithm: algorithm,
	}

	previous := decisionHash
	for index, event := range events {
		result.EventsChecked++

		if !CompareHashes(event.PreviousHash, previous) {
			return brokenAt(result, index, event.EventID), nil
		}
		expected, err := ComputeEventHash(EventPayload(event), previous, algorithm)
		if err != nil {
			return VerifyResult{}, err
		}
		if !CompareHashes(expected, event.EventHash) {
			return brokenAt(result, index, event.EventID), nil
		}
		previous = event.EventHash
	}
	return result, nil
}

func brokenAt(result VerifyResult, index int, eventID string) VerifyResult {
	result.Valid = false
	result.BrokenAt = index
	result.BrokenEventID = eventID
	return result
}

// NewEventID returns a collision-resistant, roughly time-ordered identifier
// so natural chain order survives storage layers with coarse clocks.
func NewEventID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

const shortHashLength = 12

// ShortHash truncates a hash for display.
func ShortHash(hash string) string {
	if len(hash) <= shortHashLength {
		return hash
	}
	return hash[:shortHashLength]
}

// CompareHashes is length-stable: it never exits early on the first
// differing byte, so comparison cost does not leak the mismatch position.
func CompareHashes(a string, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
