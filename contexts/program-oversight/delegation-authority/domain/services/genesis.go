package services

import (
	"ouvrage/contexts/program-oversight/delegation-authority/domain/entities"
	domainerrors "ouvrage/contexts/program-oversight/delegation-authority/domain/errors"
	"ouvrage/contexts/program-oversight/delegation-authority/domain/hashchain"
)

// InitializeChain fixes the chain anchor on a freshly created delegation:
// the digest algorithm is recorded as per-chain metadata and the decision
// hash doubles as head hash while no event exists. Verification re-derives
// with the recorded algorithm, never the runtime default.
func InitializeChain(delegation *entities.Delegation, algorithm hashchain.Algorithm) error {
	if delegation == nil || delegation.DelegationID == "" {
		return domainerrors.ErrValidation
	}
	algorithm = hashchain.Normalize(algorithm)
	decisionHash, err := hashchain.GenesisHash(
		delegation.DelegationID,
		delegation.Grantor,
		delegation.Agent,
		delegation.CreatedAt,
		algorithm,
	)
	if err != nil {
		return err
	}
	delegation.HashAlgorithm = string(algorithm)
	delegation.DecisionHash = decisionHash
	delegation.HeadHash = decisionHash
	return nil
}
