// Package policy holds the enforcement configuration: who the
// administrator is, what identity the correction bot commits under, where
// the registry and audit log live, and which hidden paths remain policed.
//
// Configuration comes from two places: a CUE policy document checked into
// the repository (validated against an embedded schema) and a small
// environment overlay carrying the per-invocation inputs the hosting
// automation provides.
package policy

import "strings"

// Policy is the validated enforcement configuration.
type Policy struct {
	// Admin is the designated administrator identity, compared
	// case-insensitively against commit authors when a one-shot override
	// flag is present on a record.
	Admin string `json:"admin"`

	// Bot identifies the automation that authors correction commits. The
	// loop guard matches all three fields: a commit authored with this
	// name and email whose message starts with MessagePrefix short-circuits
	// the run entirely.
	Bot BotIdentity `json:"bot"`

	// RegistryPath is where the ownership registry document is stored.
	RegistryPath string `json:"registryPath"`

	// AuditPath is where the SQLite audit log is stored. Empty disables
	// audit logging.
	AuditPath string `json:"auditPath"`

	// PolicedHidden lists hidden top-level folders that must remain
	// policed despite the hidden-path naming convention. This is a
	// deliberate, explicit exception, not a general rule.
	PolicedHidden []string `json:"policedHidden"`
}

// BotIdentity is the automated actor's credentials and message marker.
type BotIdentity struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	MessagePrefix string `json:"messagePrefix"`
}

// Policed reports whether a path is subject to enforcement. A path with
// any hidden segment (one starting with ".") is exempt unless it falls
// under one of the PolicedHidden roots.
func (p *Policy) Policed(path string) bool {
	for _, root := range p.PolicedHidden {
		if path == root || strings.HasPrefix(path, root+"/") {
			return true
		}
	}
	for _, seg := range strings.Split(path, "/") {
		if strings.HasPrefix(seg, ".") {
			return false
		}
	}
	return true
}

// Default returns the built-in policy used when no document exists. Admin
// is empty, so no override is ever honored until a document names one.
func Default() *Policy {
	return &Policy{
		Bot: BotIdentity{
			Name:          "Warden Bot",
			Email:         "warden@warden.bot",
			MessagePrefix: "warden:",
		},
		RegistryPath:  ".warden/registry.yml",
		AuditPath:     ".warden/audit.db",
		PolicedHidden: []string{".chronicle"},
	}
}
