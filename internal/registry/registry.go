// Package registry implements the durable ownership registry.
//
// The registry is the single source of truth for authorization decisions.
// It maps repository paths to content-ownership records and folder paths to
// structural-ownership records, and is held exclusively for the duration of
// one enforcement run: loaded once at the start, persisted once at the end
// if anything changed.
//
// INVARIANTS:
//   - A file record exists iff the path exists in the repository under
//     policy-compliant history.
//   - A folder's structural owner, once set, is never overwritten.
//   - Structural ownership is inherited downward: a folder with no explicit
//     record answers with the nearest ancestor's owner.
package registry

import (
	"path"
	"sort"
	"time"

	"github.com/wardenhq/warden/internal/identity"
)

// FileRecord tracks content ownership and integrity for one file.
//
// Checksum is the content digest at the last authorized state; it is what
// move detection matches deletions against, so it must only be advanced by
// authorized edits.
type FileRecord struct {
	Owner    string    `yaml:"owner"`
	Created  time.Time `yaml:"created"`
	Modified time.Time `yaml:"modified"`
	Checksum string    `yaml:"checksum"`

	// AdminOverride is a one-shot grant: when true, the designated
	// administrator may bypass ownership checks for a single change.
	// The engine clears it on consumption.
	AdminOverride bool `yaml:"admin_override,omitempty"`

	// Extra preserves fields this version does not understand, so a newer
	// registry writer's data survives a round trip through an older one.
	Extra map[string]any `yaml:",inline"`
}

// FolderRecord tracks structural ownership for one folder subtree.
type FolderRecord struct {
	StructuralOwner string    `yaml:"structural_owner"`
	Created         time.Time `yaml:"created"`

	Extra map[string]any `yaml:",inline"`
}

// Registry is the root aggregate over file and folder records.
//
// Not safe for concurrent use: the engine is single-writer by design and the
// invoking environment serializes runs against the same repository.
type Registry struct {
	files   map[string]*FileRecord
	folders map[string]*FolderRecord
	dirty   bool
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		files:   make(map[string]*FileRecord),
		folders: make(map[string]*FolderRecord),
	}
}

// Dirty reports whether the registry has been mutated since load.
func (r *Registry) Dirty() bool { return r.dirty }

// File returns the record for a path, if one exists.
func (r *Registry) File(p string) (*FileRecord, bool) {
	rec, ok := r.files[p]
	return rec, ok
}

// PutFile inserts or replaces the record for a path.
func (r *Registry) PutFile(p string, rec *FileRecord) {
	r.files[p] = rec
	r.dirty = true
}

// RemoveFile deletes the record for a path. Removing an absent path is a
// no-op and does not mark the registry dirty.
func (r *Registry) RemoveFile(p string) {
	if _, ok := r.files[p]; !ok {
		return
	}
	delete(r.files, p)
	r.dirty = true
}

// ClearOverride drops the one-shot override flag on a path's record.
func (r *Registry) ClearOverride(p string) {
	rec, ok := r.files[p]
	if !ok || !rec.AdminOverride {
		return
	}
	rec.AdminOverride = false
	r.dirty = true
}

// Touch updates the checksum and modified timestamp on an existing record.
func (r *Registry) Touch(p, checksum string, now time.Time) {
	rec, ok := r.files[p]
	if !ok {
		return
	}
	rec.Checksum = checksum
	rec.Modified = now
	r.dirty = true
}

// StructuralOwner walks ancestor folders from the immediate parent to the
// root and returns the first explicit structural owner found.
func (r *Registry) StructuralOwner(p string) (string, bool) {
	for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if rec, ok := r.folders[dir]; ok {
			return rec.StructuralOwner, true
		}
	}
	return "", false
}

// Folder returns the explicit record for a folder path, if one exists.
func (r *Registry) Folder(p string) (*FolderRecord, bool) {
	rec, ok := r.folders[p]
	return rec, ok
}

// RegisterFolderChain claims structural ownership along a file's ancestor
// chain. Walking root to leaf, a folder is claimed for actor only when it
// has no record of its own and no ancestor owns one: ownership is claimed
// once, by whoever first creates a file anywhere under an unclaimed subtree,
// and never re-claimed by a later creator deeper in that subtree.
//
// Returns the folders that were claimed, in root-to-leaf order.
func (r *Registry) RegisterFolderChain(filePath, actor string, now time.Time) []string {
	var chain []string
	for dir := path.Dir(filePath); dir != "." && dir != "/"; dir = path.Dir(dir) {
		chain = append(chain, dir)
	}
	// chain is leaf-to-root; claim top-down. Ancestors of a single path
	// sort lexicographically from root to leaf.
	sort.Strings(chain)

	var claimed []string
	for _, dir := range chain {
		if _, ok := r.folders[dir]; ok {
			continue
		}
		if _, owned := r.StructuralOwner(path.Join(dir, "_")); owned {
			continue
		}
		r.folders[dir] = &FolderRecord{
			StructuralOwner: identity.Normalize(actor),
			Created:         now,
		}
		r.dirty = true
		claimed = append(claimed, dir)
	}
	return claimed
}

// Paths returns all registered file paths in lexicographic order.
func (r *Registry) Paths() []string {
	paths := make([]string, 0, len(r.files))
	for p := range r.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// FolderPaths returns all registered folder paths in lexicographic order.
func (r *Registry) FolderPaths() []string {
	paths := make([]string, 0, len(r.folders))
	for p := range r.folders {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of file records.
func (r *Registry) Len() int { return len(r.files) }
