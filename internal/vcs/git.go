package vcs

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Git is the exec-based Repo implementation. It shells out to the git
// porcelain, which is the only interface the hosting environment provides.
type Git struct {
	// Root is the repository working directory.
	Root string
}

var _ Repo = (*Git)(nil)

// NewGit returns a Git collaborator rooted at dir.
func NewGit(dir string) *Git {
	return &Git{Root: dir}
}

func (g *Git) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", g.Root}, args...)...)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(errOut.String()))
	}
	return out.Bytes(), nil
}

// ChangedPaths diffs two revisions with rename detection (-M) and parses
// the name-status output.
func (g *Git) ChangedPaths(ctx context.Context, from, to string) ([]Change, error) {
	out, err := g.run(ctx, "diff", "--name-status", "-M", from, to)
	if err != nil {
		return nil, err
	}
	return ParseNameStatus(string(out))
}

// ParseNameStatus parses `git diff --name-status` output. Rename lines
// carry a similarity score (e.g. R087) and two paths; everything else is a
// single status letter and one path.
func ParseNameStatus(out string) ([]Change, error) {
	var changes []Change
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		status := parts[0]
		switch {
		case strings.HasPrefix(status, "R"):
			if len(parts) < 3 {
				return nil, fmt.Errorf("malformed rename line: %q", line)
			}
			changes = append(changes, Change{Kind: Renamed, OldPath: parts[1], Path: parts[2]})
		case status == "A" || status == "M" || status == "D":
			if len(parts) < 2 {
				return nil, fmt.Errorf("malformed diff line: %q", line)
			}
			kind := map[string]ChangeKind{"A": Added, "M": Modified, "D": Deleted}[status]
			changes = append(changes, Change{Kind: kind, Path: parts[1]})
		default:
			// Copies, type changes and unmerged entries do not occur in
			// the linear push histories this engine processes; surface
			// them instead of guessing.
			return nil, fmt.Errorf("unsupported diff status %q in line %q", status, line)
		}
	}
	return changes, nil
}

// ParentRevision resolves rev^, reporting ok=false for a parentless commit.
func (g *Git) ParentRevision(ctx context.Context, rev string) (string, bool, error) {
	out, err := g.run(ctx, "rev-parse", "--verify", "--quiet", rev+"^")
	if err != nil {
		// rev-parse --verify fails when the commit has no parent. That is
		// the first-commit bootstrap case, not an error.
		return "", false, nil
	}
	return strings.TrimSpace(string(out)), true, nil
}

// CommitMetadata reads author name, email, and subject for a revision.
func (g *Git) CommitMetadata(ctx context.Context, rev string) (CommitMeta, error) {
	out, err := g.run(ctx, "log", "-1", "--format=%an%x00%ae%x00%s", rev)
	if err != nil {
		return CommitMeta{}, err
	}
	parts := strings.SplitN(strings.TrimRight(string(out), "\n"), "\x00", 3)
	if len(parts) < 3 {
		return CommitMeta{}, fmt.Errorf("unexpected log output for %s: %q", rev, out)
	}
	return CommitMeta{AuthorName: parts[0], AuthorEmail: parts[1], Message: parts[2]}, nil
}

// ReadAtRevision returns rev:path content via git show.
func (g *Git) ReadAtRevision(ctx context.Context, rev, path string) ([]byte, error) {
	out, err := g.run(ctx, "show", rev+":"+path)
	if err != nil {
		return nil, ErrNotFound
	}
	return out, nil
}

// Materialize checks out path at rev into the working tree and stages it.
func (g *Git) Materialize(ctx context.Context, rev, path string) error {
	if _, err := g.run(ctx, "checkout", rev, "--", path); err != nil {
		return err
	}
	return g.Stage(ctx, path)
}

// Stage adds path to the index.
func (g *Git) Stage(ctx context.Context, path string) error {
	_, err := g.run(ctx, "add", "--", path)
	return err
}

// RemoveAndStage deletes the working-tree file and stages the deletion.
// Staging a deleted path with `git add` records the removal.
func (g *Git) RemoveAndStage(ctx context.Context, path string) error {
	if err := os.Remove(filepath.Join(g.Root, filepath.FromSlash(path))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return g.Stage(ctx, path)
}

// Commit records staged changes with the given author signature.
func (g *Git) Commit(ctx context.Context, message string, sig Signature) error {
	_, err := g.run(ctx,
		"-c", "user.name="+sig.Name,
		"-c", "user.email="+sig.Email,
		"commit", "-m", message)
	return err
}

// Push publishes to the default remote.
func (g *Git) Push(ctx context.Context) error {
	_, err := g.run(ctx, "push")
	return err
}

// ReadFile reads a working-tree file.
func (g *Git) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(g.Root, filepath.FromSlash(path)))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, err
}

// VisibleFiles walks the working tree, skipping any path with a hidden
// (dot-prefixed) segment, and returns slash-separated paths sorted
// lexicographically.
func (g *Git) VisibleFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(g.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if p != g.Root && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			rel, err := filepath.Rel(g.Root, p)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// RemoveEmptyDirs walks the tree bottom-up and removes directories whose
// visible contents are empty. Hidden directories are left alone.
func (g *Git) RemoveEmptyDirs() ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(g.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || p == g.Root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		dirs = append(dirs, p)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Deepest first, so removing a leaf can empty its parent.
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))

	var removed []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		visible := false
		for _, e := range entries {
			if !strings.HasPrefix(e.Name(), ".") {
				visible = true
				break
			}
		}
		if visible {
			continue
		}
		if err := os.Remove(dir); err != nil {
			// Hidden leftovers keep the directory on disk; not a failure.
			continue
		}
		rel, err := filepath.Rel(g.Root, dir)
		if err != nil {
			continue
		}
		removed = append(removed, filepath.ToSlash(rel))
	}
	sort.Strings(removed)
	return removed, nil
}
