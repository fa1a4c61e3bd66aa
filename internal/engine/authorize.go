package engine

import (
	"fmt"

	"github.com/wardenhq/warden/internal/identity"
	"github.com/wardenhq/warden/internal/registry"
)

// Verdict is the outcome of one authorization check.
type Verdict struct {
	OK     bool
	Grant  Grant
	Reason string // denial reason, for audit/logging
}

// authorizeContent decides whether actor may modify or delete the file
// behind rec. Rules in priority order: one-shot administrative override,
// then content ownership. Structural ownership never grants content
// rights.
func (e *Engine) authorizeContent(rec *registry.FileRecord, actor string) Verdict {
	if rec.AdminOverride && identity.Known(e.pol.Admin) && identity.Equal(actor, e.pol.Admin) {
		return Verdict{OK: true, Grant: GrantOverride}
	}
	if identity.Known(actor) && identity.Equal(actor, rec.Owner) {
		return Verdict{OK: true, Grant: GrantOwner}
	}
	return Verdict{Reason: fmt.Sprintf("content owner %q", rec.Owner)}
}

// authorizeMove decides whether actor may move the file behind rec from
// oldPath to newPath. The content rules apply first; failing those, a
// structural owner may reorganize within territory they control: they must
// own the source subtree, and the destination subtree must be theirs or
// not yet claimed. Structural authority over a move grants no
// content-editing rights.
func (e *Engine) authorizeMove(oldPath, newPath string, rec *registry.FileRecord, actor string) Verdict {
	if v := e.authorizeContent(rec, actor); v.OK {
		return v
	}

	src, srcOK := e.reg.StructuralOwner(oldPath)
	dst, dstOK := e.reg.StructuralOwner(newPath)

	if srcOK && identity.Known(actor) && identity.Equal(actor, src) &&
		(!dstOK || identity.Equal(actor, dst)) {
		return Verdict{OK: true, Grant: GrantStructural}
	}

	return Verdict{Reason: fmt.Sprintf(
		"content owner %q, source structural owner %q, destination structural owner %q",
		rec.Owner, orNone(src, srcOK), orNone(dst, dstOK))}
}

func orNone(owner string, ok bool) string {
	if !ok {
		return "none"
	}
	return owner
}
