// Package delegationauthority contains the Ouvrage delegation authority
// core: the policy evaluation engine that judges whether a proposed
// financial or administrative action is covered by a grant of authority,
// the hash-chained audit log that makes each grant's history tamper
// evident, and the orchestrator that couples status transitions to chain
// extension.
//
// The module keeps domain/application logic decoupled from runtime/platform
// concerns through ports and adapter composition.
package delegationauthority
