package policy

import (
	"github.com/caarlos0/env/v11"
)

// Invocation carries the per-run inputs supplied by the hosting
// automation through the process environment. CLI flags override these.
type Invocation struct {
	// Actor is the commit author identity being policed. When empty, the
	// engine falls back to the author recorded on the commit itself.
	Actor string `env:"WARDEN_ACTOR"`

	// Commit is the revision whose batch of changes is processed.
	Commit string `env:"WARDEN_COMMIT" envDefault:"HEAD"`

	// RegistryPath overrides the policy document's registry location.
	RegistryPath string `env:"WARDEN_REGISTRY"`

	// AuditPath overrides the policy document's audit log location.
	AuditPath string `env:"WARDEN_AUDIT"`

	// Token is passed through to the version-control transport; the
	// engine never interprets it.
	Token string `env:"WARDEN_TOKEN,unset"`
}

// FromEnv parses the invocation overlay from the process environment.
func FromEnv() (Invocation, error) {
	var inv Invocation
	err := env.Parse(&inv)
	return inv, err
}
