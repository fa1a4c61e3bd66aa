package vcs

import (
	"context"
	"errors"
	"path"
	"sort"
	"strings"
)

// FakeRepo is an in-memory Repo that simulates revision histories for
// engine tests. It models commits as full trees, a mutable working tree,
// and a staging area, and records every commit and push it is asked to
// perform.
//
// Fault injection fields let tests exercise the fatal paths.
type FakeRepo struct {
	revs    map[string]*fakeRev
	working map[string][]byte
	dirs    map[string]bool
	staged  map[string]bool

	// Renames lists old->new pairs the native rename detector would have
	// recognized. Matching delete/add pairs in a diff are reported as one
	// Renamed change.
	Renames map[string]string

	// Commits and Pushes record correction activity.
	Commits []FakeCommit
	Pushes  int

	// FailCommit and FailPush force the corresponding call to error.
	FailCommit bool
	FailPush   bool
}

// FakeCommit is one recorded correction commit.
type FakeCommit struct {
	Message string
	Author  Signature
	Staged  []string
}

type fakeRev struct {
	parent string
	tree   map[string][]byte
	meta   CommitMeta
}

var _ Repo = (*FakeRepo)(nil)

// NewFakeRepo returns an empty fake with no history.
func NewFakeRepo() *FakeRepo {
	return &FakeRepo{
		revs:    make(map[string]*fakeRev),
		working: make(map[string][]byte),
		dirs:    make(map[string]bool),
		staged:  make(map[string]bool),
		Renames: make(map[string]string),
	}
}

// AddCommit registers a revision with a full tree snapshot and resets the
// working tree to that snapshot. Parent may be empty for the first commit.
func (f *FakeRepo) AddCommit(rev, parent string, meta CommitMeta, tree map[string]string) {
	t := make(map[string][]byte, len(tree))
	for p, content := range tree {
		t[p] = []byte(content)
	}
	f.revs[rev] = &fakeRev{parent: parent, tree: t, meta: meta}

	f.working = make(map[string][]byte, len(t))
	for p, content := range t {
		f.working[p] = append([]byte(nil), content...)
		f.trackDirs(p)
	}
}

func (f *FakeRepo) trackDirs(p string) {
	for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
		f.dirs[dir] = true
	}
}

// WorkingFileExists reports whether a path is present in the working tree.
func (f *FakeRepo) WorkingFileExists(p string) bool {
	_, ok := f.working[p]
	return ok
}

// Staged returns the staged paths in lexicographic order.
func (f *FakeRepo) StagedPaths() []string {
	var out []string
	for p := range f.staged {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (f *FakeRepo) tree(rev string) (map[string][]byte, error) {
	if rev == EmptyTreeRev {
		return map[string][]byte{}, nil
	}
	r, ok := f.revs[rev]
	if !ok {
		return nil, errors.New("fake: unknown revision " + rev)
	}
	return r.tree, nil
}

// ChangedPaths computes an added/modified/deleted diff between two
// revision trees, then folds Renames pairs into Renamed changes the way
// git's native detector would. Output is ordered lexicographically by path.
func (f *FakeRepo) ChangedPaths(_ context.Context, from, to string) ([]Change, error) {
	fromTree, err := f.tree(from)
	if err != nil {
		return nil, err
	}
	toTree, err := f.tree(to)
	if err != nil {
		return nil, err
	}

	added := make(map[string]bool)
	deleted := make(map[string]bool)
	var changes []Change

	var paths []string
	seen := make(map[string]bool)
	for p := range fromTree {
		paths = append(paths, p)
		seen[p] = true
	}
	for p := range toTree {
		if !seen[p] {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	for _, p := range paths {
		before, inFrom := fromTree[p]
		after, inTo := toTree[p]
		switch {
		case !inFrom && inTo:
			added[p] = true
		case inFrom && !inTo:
			deleted[p] = true
		case string(before) != string(after):
			changes = append(changes, Change{Kind: Modified, Path: p})
		}
	}

	for oldPath, newPath := range f.Renames {
		if deleted[oldPath] && added[newPath] {
			changes = append(changes, Change{Kind: Renamed, OldPath: oldPath, Path: newPath})
			delete(deleted, oldPath)
			delete(added, newPath)
		}
	}
	for _, p := range paths {
		if added[p] {
			changes = append(changes, Change{Kind: Added, Path: p})
		}
		if deleted[p] {
			changes = append(changes, Change{Kind: Deleted, Path: p})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

// ParentRevision follows the recorded parent link.
func (f *FakeRepo) ParentRevision(_ context.Context, rev string) (string, bool, error) {
	r, ok := f.revs[rev]
	if !ok {
		return "", false, errors.New("fake: unknown revision " + rev)
	}
	if r.parent == "" {
		return "", false, nil
	}
	return r.parent, true, nil
}

// CommitMetadata returns the recorded metadata.
func (f *FakeRepo) CommitMetadata(_ context.Context, rev string) (CommitMeta, error) {
	r, ok := f.revs[rev]
	if !ok {
		return CommitMeta{}, errors.New("fake: unknown revision " + rev)
	}
	return r.meta, nil
}

// ReadAtRevision reads from a revision tree.
func (f *FakeRepo) ReadAtRevision(_ context.Context, rev, p string) ([]byte, error) {
	tree, err := f.tree(rev)
	if err != nil {
		return nil, err
	}
	content, ok := tree[p]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), content...), nil
}

// Materialize restores a path from a revision into the working tree and
// stages it.
func (f *FakeRepo) Materialize(ctx context.Context, rev, p string) error {
	content, err := f.ReadAtRevision(ctx, rev, p)
	if err != nil {
		return err
	}
	f.working[p] = content
	f.trackDirs(p)
	f.staged[p] = true
	return nil
}

// Stage records a path as staged.
func (f *FakeRepo) Stage(_ context.Context, p string) error {
	f.staged[p] = true
	return nil
}

// RemoveAndStage deletes a working-tree path and stages the deletion. The
// parent directory survives (possibly empty), mirroring a real filesystem.
func (f *FakeRepo) RemoveAndStage(_ context.Context, p string) error {
	delete(f.working, p)
	f.staged[p] = true
	return nil
}

// Commit records the staged set and clears it.
func (f *FakeRepo) Commit(_ context.Context, message string, sig Signature) error {
	if f.FailCommit {
		return errors.New("fake: commit rejected")
	}
	f.Commits = append(f.Commits, FakeCommit{Message: message, Author: sig, Staged: f.StagedPaths()})
	f.staged = make(map[string]bool)
	return nil
}

// Push counts pushes.
func (f *FakeRepo) Push(_ context.Context) error {
	if f.FailPush {
		return errors.New("fake: push rejected")
	}
	f.Pushes++
	return nil
}

// ReadFile reads from the working tree.
func (f *FakeRepo) ReadFile(p string) ([]byte, error) {
	content, ok := f.working[p]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), content...), nil
}

// VisibleFiles lists non-hidden working-tree paths in lexicographic order.
func (f *FakeRepo) VisibleFiles() ([]string, error) {
	var out []string
	for p := range f.working {
		if hiddenPath(p) {
			continue
		}
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// RemoveEmptyDirs drops tracked directories that no longer contain any
// working file, deepest first.
func (f *FakeRepo) RemoveEmptyDirs() ([]string, error) {
	var dirs []string
	for d := range f.dirs {
		dirs = append(dirs, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))

	var removed []string
	for _, dir := range dirs {
		if hiddenPath(dir) {
			continue
		}
		occupied := false
		prefix := dir + "/"
		for p := range f.working {
			if strings.HasPrefix(p, prefix) {
				occupied = true
				break
			}
		}
		for d := range f.dirs {
			if strings.HasPrefix(d, prefix) {
				occupied = true
				break
			}
		}
		if occupied {
			continue
		}
		delete(f.dirs, dir)
		removed = append(removed, dir)
	}
	sort.Strings(removed)
	return removed, nil
}

func hiddenPath(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
