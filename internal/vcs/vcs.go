// Package vcs defines the narrow version-control collaborator consumed by
// the enforcement engine, an exec-git implementation of it, and an
// in-memory fake that simulates arbitrary revision histories so the policy
// engine is testable without a real git backend.
package vcs

import (
	"context"
	"errors"
)

// EmptyTreeRev is git's well-known empty tree object. Diffing against it
// yields every path as an addition, which is how the first commit in a
// repository's history is processed.
const EmptyTreeRev = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// ErrNotFound reports that a path does not exist at the requested revision
// or in the working tree.
var ErrNotFound = errors.New("vcs: path not found")

// ChangeKind is the change classification reported by the version-control
// layer. Detected moves are a higher-level classification and live in the
// engine, not here.
type ChangeKind string

const (
	Added    ChangeKind = "added"
	Modified ChangeKind = "modified"
	Deleted  ChangeKind = "deleted"
	Renamed  ChangeKind = "renamed"
)

// Change is one changed path in a batch. OldPath is set only for renames.
type Change struct {
	Kind    ChangeKind
	Path    string
	OldPath string
}

// CommitMeta identifies who authored a commit and what it said.
type CommitMeta struct {
	AuthorName  string
	AuthorEmail string
	Message     string
}

// Signature is the identity used to author correction commits.
type Signature struct {
	Name  string
	Email string
}

// Repo is the version-control collaborator. The engine consumes exactly
// this surface; everything else about the backing tool is out of scope.
//
// All blocking calls run to completion and fail fast; the engine never
// retries them.
type Repo interface {
	// ChangedPaths lists the changes between two revisions with native
	// rename detection enabled.
	ChangedPaths(ctx context.Context, from, to string) ([]Change, error)

	// ParentRevision resolves the parent of a revision. ok is false when
	// the revision has no parent (first commit); callers diff against
	// EmptyTreeRev in that case.
	ParentRevision(ctx context.Context, rev string) (parent string, ok bool, err error)

	// CommitMetadata returns author and message for a revision.
	CommitMetadata(ctx context.Context, rev string) (CommitMeta, error)

	// ReadAtRevision returns a file's content at a revision, or
	// ErrNotFound if the path did not exist there.
	ReadAtRevision(ctx context.Context, rev, path string) ([]byte, error)

	// Materialize overwrites the working-tree file with its content at
	// rev and stages the result, failing if the path is absent at rev.
	Materialize(ctx context.Context, rev, path string) error

	// Stage adds a working-tree path to the pending correction.
	Stage(ctx context.Context, path string) error

	// RemoveAndStage deletes a working-tree path and stages the deletion.
	RemoveAndStage(ctx context.Context, path string) error

	// Commit records all staged corrections as one commit authored by sig.
	Commit(ctx context.Context, message string, sig Signature) error

	// Push publishes the correction commit.
	Push(ctx context.Context) error

	// ReadFile returns the current working-tree content of a path, or
	// ErrNotFound if it does not exist.
	ReadFile(path string) ([]byte, error)

	// VisibleFiles lists all working-tree files whose path has no hidden
	// segment, in lexicographic order.
	VisibleFiles() ([]string, error)

	// RemoveEmptyDirs deletes directories left with no visible content,
	// bottom-up, and returns the directories removed.
	RemoveEmptyDirs() ([]string, error)
}
