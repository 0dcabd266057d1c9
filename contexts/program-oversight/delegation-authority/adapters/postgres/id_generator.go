package postgresadapter

import (
	"context"

	"github.com/google/uuid"

	"ouvrage/contexts/program-oversight/delegation-authority/domain/hashchain"
)

// EventIDGenerator issues roughly time-ordered identifiers (UUIDv7) so the
// natural storage order of events matches chain order.
type EventIDGenerator struct{}

func (EventIDGenerator) NewID(_ context.Context) (string, error) {
	id, err := hashchain.NewEventID()
	if err != nil {
		return uuid.NewString(), nil
	}
	return id, nil
}
