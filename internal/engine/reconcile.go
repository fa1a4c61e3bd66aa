package engine

import (
	"errors"

	"github.com/wardenhq/warden/internal/registry"
	"github.com/wardenhq/warden/internal/vcs"
)

// process reconciles one classified change: authorized changes advance the
// registry, denied changes are repaired in the working tree and the
// registry record is left exactly as it was before the batch.
func (b *batch) process(ch Change) error {
	switch ch.Kind {
	case KindAdded:
		b.handleAdd(ch.Path)
		return nil
	case KindModified:
		return b.handleModify(ch)
	case KindDeleted:
		return b.handleDelete(ch)
	case KindRenamed, KindMoved:
		return b.handleMove(ch)
	}
	return nil
}

// handleAdd records a newly observed file. Creation is always authorized:
// there is no pre-existing owner to violate. The creator becomes content
// owner and claims any unowned folder chain above the path.
func (b *batch) handleAdd(path string) {
	now := b.e.clock()
	if claimed := b.e.reg.RegisterFolderChain(path, b.actor, now); len(claimed) > 0 {
		b.e.log.Info("claimed folder ownership", "folders", claimed, "owner", b.actor)
	}
	b.e.reg.PutFile(path, &registry.FileRecord{
		Owner:    b.actor,
		Created:  now,
		Modified: now,
		Checksum: b.e.workingDigest(path),
	})
	b.decide(Decision{Kind: KindAdded, Path: path, Outcome: OutcomeRegistered, Grant: GrantCreation})
	b.e.log.Info("registered new file", "path", path, "owner", b.actor)
}

func (b *batch) handleModify(ch Change) error {
	rec, ok := b.e.reg.File(ch.Path)
	if !ok {
		// Never registered: converge by treating it as newly observed.
		b.e.log.Warn("modified file not in registry, registering", "path", ch.Path)
		b.handleAdd(ch.Path)
		return nil
	}

	current := b.e.workingDigest(ch.Path)
	if current == rec.Checksum {
		b.decide(Decision{Kind: KindModified, Path: ch.Path, Outcome: OutcomeNoop})
		return nil
	}

	v := b.e.authorizeContent(rec, b.actor)
	if !v.OK {
		if err := b.restore(ch.Path); err != nil {
			return err
		}
		b.deny(ch, v, RepairRestored)
		return nil
	}

	if v.Grant == GrantOverride {
		b.e.reg.ClearOverride(ch.Path)
		b.e.log.Info("admin override consumed", "path", ch.Path, "admin", b.actor)
	}
	b.e.reg.Touch(ch.Path, current, b.e.clock())
	b.decide(Decision{Kind: KindModified, Path: ch.Path, Outcome: OutcomeUpdated, Grant: v.Grant})
	return nil
}

func (b *batch) handleDelete(ch Change) error {
	rec, ok := b.e.reg.File(ch.Path)
	if !ok {
		b.decide(Decision{Kind: KindDeleted, Path: ch.Path, Outcome: OutcomeUntracked})
		return nil
	}

	v := b.e.authorizeContent(rec, b.actor)
	if !v.OK {
		if err := b.restore(ch.Path); err != nil {
			return err
		}
		b.deny(ch, v, RepairRestored)
		return nil
	}

	// The one-shot flag is consumed even when the record it lived on is
	// removed with it.
	if v.Grant == GrantOverride {
		b.e.log.Info("admin override consumed", "path", ch.Path, "admin", b.actor)
	}
	b.e.reg.RemoveFile(ch.Path)
	b.decide(Decision{Kind: KindDeleted, Path: ch.Path, Outcome: OutcomeRemoved, Grant: v.Grant})
	return nil
}

// handleMove reconciles both native renames and digest-detected moves.
func (b *batch) handleMove(ch Change) error {
	rec, ok := b.e.reg.File(ch.OldPath)
	if !ok {
		// Source was never registered; the destination is simply a newly
		// observed file.
		b.e.log.Warn("moved file not in registry, registering destination",
			"old_path", ch.OldPath, "path", ch.Path)
		b.handleAdd(ch.Path)
		return nil
	}

	v := b.e.authorizeMove(ch.OldPath, ch.Path, rec, b.actor)
	if !v.OK {
		if err := b.restore(ch.OldPath); err != nil {
			return err
		}
		if err := b.e.repo.RemoveAndStage(b.ctx, ch.Path); err != nil {
			return runErr(ErrCodeRestoreFailed, ch.Path, err)
		}
		b.deny(ch, v, RepairUndidMove)
		return nil
	}

	if v.Grant == GrantOverride {
		b.e.log.Info("admin override consumed",
			"path", ch.OldPath, "admin", b.actor)
	}

	now := b.e.clock()
	if claimed := b.e.reg.RegisterFolderChain(ch.Path, b.actor, now); len(claimed) > 0 {
		b.e.log.Info("claimed folder ownership", "folders", claimed, "owner", b.actor)
	}

	// The destination record carries over the content owner and original
	// creation time; the override flag never travels.
	b.e.reg.PutFile(ch.Path, &registry.FileRecord{
		Owner:    rec.Owner,
		Created:  rec.Created,
		Modified: now,
		Checksum: b.e.workingDigest(ch.Path),
		Extra:    rec.Extra,
	})
	b.e.reg.RemoveFile(ch.OldPath)
	b.decide(Decision{Kind: ch.Kind, Path: ch.Path, OldPath: ch.OldPath, Outcome: OutcomeUpdated, Grant: v.Grant})
	return nil
}

// restore re-materializes a path's prior-revision content into the working
// tree. A path absent at the prior revision has no history to restore, so
// the unauthorized new file is deleted instead.
func (b *batch) restore(path string) error {
	err := b.e.repo.Materialize(b.ctx, b.parent, path)
	if err == nil {
		return nil
	}
	if errors.Is(err, vcs.ErrNotFound) {
		if err := b.e.repo.RemoveAndStage(b.ctx, path); err != nil {
			return runErr(ErrCodeRestoreFailed, path, err)
		}
		return nil
	}
	return runErr(ErrCodeRestoreFailed, path, err)
}

func (b *batch) decide(d Decision) {
	b.res.Decisions = append(b.res.Decisions, d)
}

func (b *batch) deny(ch Change, v Verdict, repair Repair) {
	d := Decision{
		Kind:    ch.Kind,
		Path:    ch.Path,
		OldPath: ch.OldPath,
		Outcome: OutcomeDenied,
		Reason:  v.Reason,
		Repair:  repair,
	}
	b.res.Decisions = append(b.res.Decisions, d)

	corrected := ch.Path
	if ch.OldPath != "" {
		corrected = ch.OldPath
	}
	b.res.Corrections = append(b.res.Corrections, corrected)
	b.e.log.Warn("unauthorized change repaired",
		"path", ch.Path, "kind", string(ch.Kind), "actor", b.actor, "reason", v.Reason)
}
