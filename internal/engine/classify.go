package engine

import (
	"sort"

	"github.com/wardenhq/warden/internal/digest"
	"github.com/wardenhq/warden/internal/vcs"
)

// policed reports whether a path is subject to enforcement. Hidden paths
// are outside the policy, except for the explicit allow-list in the
// policy document (trees like the audit chronicle are hidden by naming
// convention but must stay policed).
func (e *Engine) policed(path string) bool {
	return e.pol.Policed(path)
}

// classify filters the raw changed-path set and recovers moves the native
// rename detector missed.
//
// Move recovery: for every deleted path with a recorded checksum, the
// digests of not-yet-matched added paths are compared for exact equality.
// Both sides are visited in lexicographic path order and the first match
// wins, which makes the duplicate-content tie-break deterministic.
func (e *Engine) classify(raw []vcs.Change) []Change {
	var filtered []vcs.Change
	for _, ch := range raw {
		switch ch.Kind {
		case vcs.Renamed:
			// A rename is policed when either endpoint is; filtering it
			// only because the destination is hidden would let content
			// leave policed territory unexamined.
			if !e.policed(ch.Path) && !e.policed(ch.OldPath) {
				e.log.Debug("skipping hidden path", "path", ch.Path, "old_path", ch.OldPath)
				continue
			}
		default:
			if !e.policed(ch.Path) {
				e.log.Debug("skipping hidden path", "path", ch.Path)
				continue
			}
		}
		filtered = append(filtered, ch)
	}

	moves := e.detectMoves(filtered)

	var out []Change
	for _, ch := range filtered {
		switch ch.Kind {
		case vcs.Deleted:
			if dest, ok := moves[ch.Path]; ok {
				out = append(out, Change{Kind: KindMoved, Path: dest, OldPath: ch.Path})
				continue
			}
			out = append(out, Change{Kind: KindDeleted, Path: ch.Path})
		case vcs.Added:
			if matchedDest(moves, ch.Path) {
				continue
			}
			out = append(out, Change{Kind: KindAdded, Path: ch.Path})
		case vcs.Modified:
			out = append(out, Change{Kind: KindModified, Path: ch.Path})
		case vcs.Renamed:
			out = append(out, Change{Kind: KindRenamed, Path: ch.Path, OldPath: ch.OldPath})
		}
	}
	return out
}

// detectMoves matches deletions against additions by stored checksum and
// returns deleted path -> added path for every recovered move.
func (e *Engine) detectMoves(changes []vcs.Change) map[string]string {
	var deletions, additions []string
	for _, ch := range changes {
		switch ch.Kind {
		case vcs.Deleted:
			deletions = append(deletions, ch.Path)
		case vcs.Added:
			additions = append(additions, ch.Path)
		}
	}
	if len(deletions) == 0 || len(additions) == 0 {
		return nil
	}
	sort.Strings(deletions)
	sort.Strings(additions)

	digests := make(map[string]string, len(additions))
	matched := make(map[string]bool, len(additions))
	moves := make(map[string]string)

	for _, del := range deletions {
		rec, ok := e.reg.File(del)
		if !ok || rec.Checksum == "" {
			continue
		}
		for _, add := range additions {
			if matched[add] {
				continue
			}
			d, ok := digests[add]
			if !ok {
				d = e.workingDigest(add)
				digests[add] = d
			}
			if d != "" && d == rec.Checksum {
				moves[del] = add
				matched[add] = true
				e.log.Info("detected move", "from", del, "to", add)
				break
			}
		}
	}
	return moves
}

func matchedDest(moves map[string]string, path string) bool {
	for _, dest := range moves {
		if dest == path {
			return true
		}
	}
	return false
}

// workingDigest fingerprints a working-tree file. Digest failure for one
// path is recoverable: the file is treated as having no digest and the
// batch continues.
func (e *Engine) workingDigest(path string) string {
	content, err := e.repo.ReadFile(path)
	if err != nil {
		e.log.Warn("could not fingerprint file", "path", path, "error", err)
		return ""
	}
	return digest.Bytes(content)
}
