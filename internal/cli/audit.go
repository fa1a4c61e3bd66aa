package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/audit"
	"github.com/wardenhq/warden/internal/policy"
)

// AuditOptions holds flags for the audit subcommands.
type AuditOptions struct {
	*RootOptions
	RepoDir    string
	PolicyPath string
	AuditPath  string
	Limit      int
	RunID      string
}

// NewAuditCommand creates the audit command group.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the enforcement audit log",
	}

	cmd.PersistentFlags().StringVar(&opts.RepoDir, "repo", ".", "path to the policed repository")
	cmd.PersistentFlags().StringVar(&opts.PolicyPath, "policy", "", "path to the policy document (default <repo>/"+defaultPolicyPath+")")
	cmd.PersistentFlags().StringVar(&opts.AuditPath, "audit", "", "override the audit log location")

	cmd.AddCommand(newAuditTailCommand(opts))

	return cmd
}

func newAuditTailCommand(opts *AuditOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print recent enforcement runs",
		Long: `Tail prints recent enforcement runs, newest first. With --run it prints
every decision recorded for that run instead.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditTail(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "number of runs to show")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show decisions for one run")

	return cmd
}

func runAuditTail(opts *AuditOptions, cmd *cobra.Command) error {
	auditPath := opts.AuditPath
	if auditPath == "" {
		policyPath := opts.PolicyPath
		if policyPath == "" {
			policyPath = filepath.Join(opts.RepoDir, defaultPolicyPath)
		}
		pol, err := policy.Load(policyPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load policy", err)
		}
		if pol.AuditPath == "" {
			return NewExitError(ExitCommandError, "audit logging is disabled by policy")
		}
		auditPath = resolvePath(opts.RepoDir, pol.AuditPath)
	}

	if _, err := os.Stat(auditPath); err != nil {
		return WrapExitError(ExitCommandError, "audit log not found", err)
	}
	log, err := audit.Open(auditPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open audit log", err)
	}
	defer log.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	if opts.RunID != "" {
		decisions, err := log.Decisions(ctx, opts.RunID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read decisions", err)
		}
		var b strings.Builder
		for _, d := range decisions {
			path := d.Path
			if d.OldPath != "" {
				path = d.OldPath + " -> " + d.Path
			}
			fmt.Fprintf(&b, "%-9s %-44s %s\n", d.Kind, path, describeOutcome(d))
		}
		if len(decisions) == 0 {
			b.WriteString("no decisions recorded\n")
		}
		return f.SuccessText(b.String(), decisions)
	}

	runs, err := log.RecentRuns(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read runs", err)
	}
	var b strings.Builder
	for _, r := range runs {
		status := "clean"
		switch {
		case r.Skipped:
			status = "skipped"
		case r.Corrections > 0:
			status = fmt.Sprintf("%d corrections", r.Corrections)
		}
		fmt.Fprintf(&b, "%s  %s  %-20s %-10s %s\n",
			r.Started.Format(time.RFC3339), r.RunID, r.Actor, shortRev(r.Commit), status)
	}
	if len(runs) == 0 {
		b.WriteString("no runs recorded\n")
	}
	return f.SuccessText(b.String(), runs)
}

func shortRev(rev string) string {
	if len(rev) > 10 {
		return rev[:10]
	}
	return rev
}
