package engine

import (
	"time"
)

// Kind classifies a change after move recovery. It extends the
// version-control layer's kinds with Moved: a delete/add pair whose
// content digests matched. Moved stays distinct from Renamed because the
// two arrive through different detectors, even though they are authorized
// by the same rules.
type Kind string

const (
	KindAdded    Kind = "added"
	KindModified Kind = "modified"
	KindDeleted  Kind = "deleted"
	KindRenamed  Kind = "renamed"
	KindMoved    Kind = "moved"
)

// Change is one classified change. OldPath is set for renames and moves.
// Changes are ephemeral: produced by the classifier, consumed within the
// run, never persisted.
type Change struct {
	Kind    Kind
	Path    string
	OldPath string
}

// Grant names which authorization rule admitted a change.
type Grant string

const (
	// GrantCreation: new files are always authorized; the creator
	// becomes the content owner.
	GrantCreation Grant = "creation"

	// GrantOwner: the actor is the record's content owner.
	GrantOwner Grant = "content_owner"

	// GrantOverride: a one-shot administrative override was consumed.
	GrantOverride Grant = "admin_override"

	// GrantStructural: the actor structurally owns the source subtree
	// and the destination is theirs or unclaimed (moves only).
	GrantStructural Grant = "structural_owner"
)

// Outcome is the per-path result of reconciliation.
type Outcome string

const (
	// OutcomeRegistered: a new file was recorded in the registry.
	OutcomeRegistered Outcome = "registered"

	// OutcomeUpdated: an authorized edit, rename, or move advanced the
	// registry record.
	OutcomeUpdated Outcome = "updated"

	// OutcomeRemoved: an authorized deletion removed the record.
	OutcomeRemoved Outcome = "removed"

	// OutcomeNoop: a reported modification whose digest matches the
	// stored checksum; no check, no mutation, no correction.
	OutcomeNoop Outcome = "noop"

	// OutcomeUntracked: a deletion of a path the registry never knew;
	// allowed silently.
	OutcomeUntracked Outcome = "untracked"

	// OutcomeDenied: the change violated the ownership policy and was
	// repaired.
	OutcomeDenied Outcome = "denied"
)

// Repair names the reversal applied to a denied change.
type Repair string

const (
	RepairNone       Repair = ""
	RepairRestored   Repair = "restored"    // prior-revision content re-materialized
	RepairDeletedNew Repair = "deleted_new" // unauthorized new path removed
	RepairUndidMove  Repair = "undid_move"  // source restored, destination removed
)

// Decision is the audit record for one classified change.
type Decision struct {
	Kind    Kind
	Path    string
	OldPath string
	Outcome Outcome
	Grant   Grant
	Reason  string
	Repair  Repair
}

// RunResult accumulates everything one invocation did. It is threaded
// through the batch driver and returned to the caller; the engine keeps no
// shared mutable state between runs.
type RunResult struct {
	RunID    string
	Actor    string
	Commit   string
	Parent   string
	Started  time.Time
	Finished time.Time

	// Skipped is true when the loop guard recognized the triggering
	// commit as the bot's own correction.
	Skipped    bool
	SkipReason string

	Decisions []Decision

	// Corrections lists the paths repaired, plus hygiene removals.
	Corrections []string

	// RemovedFolders lists directories deleted by the hygiene pass.
	RemovedFolders []string

	RegistrySaved bool
	Committed     bool
	Pushed        bool
}

// Corrected reports whether any repair or hygiene action occurred; a
// correction commit is issued iff this is true.
func (r *RunResult) Corrected() bool {
	return len(r.Corrections) > 0
}

// Denials counts denied decisions.
func (r *RunResult) Denials() int {
	n := 0
	for _, d := range r.Decisions {
		if d.Outcome == OutcomeDenied {
			n++
		}
	}
	return n
}
