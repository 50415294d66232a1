// Package sync propagates role assignments between the licensing
// (organization) context and the dashboard (project) context.
//
// # Overview
//
// A role change made in one context is recorded as a SyncEvent and applied
// to the other context asynchronously. The local mapping is authoritative
// the instant it is computed; synchronization is an eventually-consistent
// repair concern and never blocks or rolls back the originating action.
//
// Events move through a small state machine:
//
//	PENDING -> PROCESSING -> COMPLETED
//	PENDING -> PROCESSING -> PENDING (retry, attempt+1) -> ... -> FAILED
//
// FAILED is terminal and requires operator attention; failed events are
// retained for audit and can be re-queued explicitly. Completed events are
// never mutated again.
//
// # Conflict resolution
//
// When two pending events target the same (user, project) with different
// payloads, the one whose payload carries the higher effective hierarchy
// wins; ties go to the earlier event. Losers are marked COMPLETED and
// superseded; they stay in the audit trail, pointing at the winner.
//
// # Idempotency
//
// Applying the same event twice (for example after a crash mid-apply) is
// harmless: the worker records applied event ids and checks them before
// mutating the target context.
package sync
