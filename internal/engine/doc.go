// Package engine implements the ownership policy engine.
//
// The engine processes one batch of repository changes per invocation:
// the changes introduced by a single commit. For every changed path it
// decides whether the change was made by an authorized party and, if not,
// computes and applies the exact repair so the repository converges back
// to a policy-compliant state.
//
// ARCHITECTURE:
//
// Single pass, single writer:
// One invocation runs to completion before any state is persisted. The
// registry is loaded once by the caller, mutated exclusively by this
// engine, and saved at most once at the end of the run. There is no
// internal concurrency; the only blocking calls are to the version-control
// collaborator and they run to completion, fail-fast, before the engine
// proceeds.
//
// Batch flow:
//  1. Loop guard: a commit authored by the correction bot is skipped
//     entirely, preventing infinite correction loops.
//  2. Classification: the raw changed-path set is filtered for hidden
//     paths, and delete/add pairs with matching content digests are
//     reclassified as moves (classify.go).
//  3. Authorization: each classified change is judged against the
//     registry's ownership model (authorize.go).
//  4. Reconciliation: authorized changes update registry metadata;
//     denied changes are repaired in the working tree, leaving the
//     registry untouched (reconcile.go).
//  5. Hygiene: directories left with no visible content are removed.
//  6. Persistence: the registry is saved if dirty, and a single
//     correction commit covers all staged repairs, if any.
//
// Policy denials are designed outcomes, not errors: every denial results
// in either a successful repair or a fatal abort. The engine never exits
// cleanly while an unauthorized change is still live in the repository.
package engine
