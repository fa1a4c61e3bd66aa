package cli

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/audit"
	"github.com/wardenhq/warden/internal/engine"
	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/registry"
	"github.com/wardenhq/warden/internal/vcs"
)

// defaultPolicyPath is where the policy document lives, relative to the
// repository root.
const defaultPolicyPath = ".warden/policy.cue"

// EnforceOptions holds flags for the enforce command.
type EnforceOptions struct {
	*RootOptions
	RepoDir      string
	PolicyPath   string
	Actor        string
	Commit       string
	RegistryPath string
	AuditPath    string

	// Repo allows substituting the version-control collaborator (for
	// testing). If nil, defaults to exec-git over RepoDir.
	Repo vcs.Repo

	// EngineOptions are threaded through to the engine (for testing with a
	// fixed clock or run ID).
	EngineOptions []engine.Option
}

// NewEnforceCommand creates the enforce command.
func NewEnforceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EnforceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "enforce",
		Short: "Enforce ownership policy over one commit's changes",
		Long: `Enforce examines the batch of changes introduced by a commit, reverts
every change its author was not authorized to make, removes folders left
empty, records the run in the audit log, and pushes a single correction
commit when anything was repaired.

Inputs come from flags, the WARDEN_* environment overlay, and the policy
document, in that precedence order.

Example:
  warden enforce --actor tanya --commit HEAD
  WARDEN_ACTOR=tanya warden enforce --repo /srv/shared-docs`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnforce(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RepoDir, "repo", ".", "path to the policed repository")
	cmd.Flags().StringVar(&opts.PolicyPath, "policy", "", "path to the policy document (default <repo>/"+defaultPolicyPath+")")
	cmd.Flags().StringVar(&opts.Actor, "actor", "", "identity being policed (default: commit author)")
	cmd.Flags().StringVar(&opts.Commit, "commit", "", "revision whose changes are enforced (default HEAD)")
	cmd.Flags().StringVar(&opts.RegistryPath, "registry", "", "override the registry file location")
	cmd.Flags().StringVar(&opts.AuditPath, "audit", "", "override the audit log location (empty string in policy disables)")

	return cmd
}

func runEnforce(opts *EnforceOptions, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel}))

	inv, err := policy.FromEnv()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid environment", err)
	}

	policyPath := opts.PolicyPath
	if policyPath == "" {
		policyPath = filepath.Join(opts.RepoDir, defaultPolicyPath)
	}
	pol, err := policy.Load(policyPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load policy", err)
	}

	actor := firstNonEmpty(opts.Actor, inv.Actor)
	commit := firstNonEmpty(opts.Commit, inv.Commit, "HEAD")
	registryPath := resolvePath(opts.RepoDir, firstNonEmpty(opts.RegistryPath, inv.RegistryPath, pol.RegistryPath))
	auditPath := firstNonEmpty(opts.AuditPath, inv.AuditPath, pol.AuditPath)
	if auditPath != "" {
		auditPath = resolvePath(opts.RepoDir, auditPath)
	}

	reg := registry.Load(registryPath, log)
	log.Info("registry loaded", "path", registryPath, "files", reg.Len())

	repo := opts.Repo
	if repo == nil {
		repo = vcs.NewGit(opts.RepoDir)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	eng := engine.New(repo, reg, pol, registryPath, log, opts.EngineOptions...)
	res, runErr := eng.Run(ctx, actor, commit)

	// The audit log records what the run did, including partial work
	// before a fatal error. Recording failures are logged, never fatal:
	// repairs that already landed must not be reported as a failed run.
	if auditPath != "" {
		recordRun(ctx, auditPath, res, log)
	}

	f := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if err := f.SuccessText(renderReport(res), buildReportPayload(res)); err != nil {
		return WrapExitError(ExitCommandError, "failed to render report", err)
	}

	if runErr != nil {
		return WrapExitError(ExitFailure, "enforcement failed", runErr)
	}
	return nil
}

func recordRun(ctx context.Context, path string, res *engine.RunResult, log *slog.Logger) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Error("audit log unavailable", "path", path, "error", err)
		return
	}
	l, err := audit.Open(path)
	if err != nil {
		log.Error("audit log unavailable", "path", path, "error", err)
		return
	}
	defer l.Close()
	if err := l.Record(ctx, res); err != nil {
		log.Error("audit record failed", "run_id", res.RunID, "error", err)
	}
}

func resolvePath(repoDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(repoDir, p)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
