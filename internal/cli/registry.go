package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/registry"
	"github.com/wardenhq/warden/internal/vcs"
)

// RegistryOptions holds flags shared by the registry subcommands.
type RegistryOptions struct {
	*RootOptions
	RepoDir      string
	PolicyPath   string
	RegistryPath string

	// Repo allows substituting the version-control collaborator (for
	// testing). If nil, defaults to exec-git over RepoDir.
	Repo vcs.Repo
}

// NewRegistryCommand creates the registry command group.
func NewRegistryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegistryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the ownership registry",
	}

	cmd.PersistentFlags().StringVar(&opts.RepoDir, "repo", ".", "path to the policed repository")
	cmd.PersistentFlags().StringVar(&opts.PolicyPath, "policy", "", "path to the policy document (default <repo>/"+defaultPolicyPath+")")
	cmd.PersistentFlags().StringVar(&opts.RegistryPath, "registry", "", "override the registry file location")

	cmd.AddCommand(newRegistryShowCommand(opts))
	cmd.AddCommand(newRegistryVerifyCommand(opts))

	return cmd
}

func newRegistryShowCommand(opts *RegistryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show [path]",
		Short: "Print registry state",
		Long: `Show prints the ownership registry: every file record and every folder
record, or a single file record when a path argument is given.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runRegistryShow(opts, cmd, path)
		},
	}
}

func newRegistryVerifyCommand(opts *RegistryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that the registry matches the working tree",
		Long: `Verify checks the sync property the enforcement engine maintains: every
registry entry has a working-tree file and every policed file has a
registry entry. Drift in either direction is reported and the command
exits non-zero.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegistryVerify(opts, cmd)
		},
	}
}

func (o *RegistryOptions) load(cmd *cobra.Command) (*policy.Policy, *registry.Registry, error) {
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))

	policyPath := o.PolicyPath
	if policyPath == "" {
		policyPath = filepath.Join(o.RepoDir, defaultPolicyPath)
	}
	pol, err := policy.Load(policyPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load policy", err)
	}

	registryPath := resolvePath(o.RepoDir, firstNonEmpty(o.RegistryPath, pol.RegistryPath))
	return pol, registry.Load(registryPath, log), nil
}

type fileRecordView struct {
	Path          string    `json:"path"`
	Owner         string    `json:"owner"`
	Created       time.Time `json:"created"`
	Modified      time.Time `json:"modified"`
	Checksum      string    `json:"checksum"`
	AdminOverride bool      `json:"admin_override,omitempty"`
}

type folderRecordView struct {
	Path            string    `json:"path"`
	StructuralOwner string    `json:"structural_owner"`
	Created         time.Time `json:"created"`
}

type registryView struct {
	Files   []fileRecordView   `json:"files"`
	Folders []folderRecordView `json:"folders"`
}

func runRegistryShow(opts *RegistryOptions, cmd *cobra.Command, path string) error {
	_, reg, err := opts.load(cmd)
	if err != nil {
		return err
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	if path != "" {
		rec, ok := reg.File(path)
		if !ok {
			return NewExitError(ExitFailure, fmt.Sprintf("no registry record for %q", path))
		}
		view := fileRecordView{
			Path: path, Owner: rec.Owner, Created: rec.Created,
			Modified: rec.Modified, Checksum: rec.Checksum, AdminOverride: rec.AdminOverride,
		}
		return f.SuccessText(renderFileRecord(view), view)
	}

	view := registryView{}
	for _, p := range reg.Paths() {
		rec, _ := reg.File(p)
		view.Files = append(view.Files, fileRecordView{
			Path: p, Owner: rec.Owner, Created: rec.Created,
			Modified: rec.Modified, Checksum: rec.Checksum, AdminOverride: rec.AdminOverride,
		})
	}
	for _, p := range reg.FolderPaths() {
		rec, _ := reg.Folder(p)
		view.Folders = append(view.Folders, folderRecordView{
			Path: p, StructuralOwner: rec.StructuralOwner, Created: rec.Created,
		})
	}
	return f.SuccessText(renderRegistry(view), view)
}

func renderFileRecord(v fileRecordView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", v.Path)
	fmt.Fprintf(&b, "  owner     %s\n", v.Owner)
	fmt.Fprintf(&b, "  created   %s\n", v.Created.Format(time.RFC3339))
	fmt.Fprintf(&b, "  modified  %s\n", v.Modified.Format(time.RFC3339))
	fmt.Fprintf(&b, "  checksum  %s\n", v.Checksum)
	if v.AdminOverride {
		b.WriteString("  admin_override pending\n")
	}
	return b.String()
}

func renderRegistry(v registryView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "files (%d):\n", len(v.Files))
	for _, rec := range v.Files {
		marker := ""
		if rec.AdminOverride {
			marker = "  [override pending]"
		}
		fmt.Fprintf(&b, "  %-44s owner=%s%s\n", rec.Path, rec.Owner, marker)
	}
	fmt.Fprintf(&b, "folders (%d):\n", len(v.Folders))
	for _, rec := range v.Folders {
		fmt.Fprintf(&b, "  %-44s structural_owner=%s\n", rec.Path, rec.StructuralOwner)
	}
	return b.String()
}

type driftReport struct {
	Missing  []string `json:"missing,omitempty"`  // registered but absent from the tree
	Orphaned []string `json:"orphaned,omitempty"` // policed file with no record
}

func runRegistryVerify(opts *RegistryOptions, cmd *cobra.Command) error {
	pol, reg, err := opts.load(cmd)
	if err != nil {
		return err
	}

	repo := opts.Repo
	if repo == nil {
		repo = vcs.NewGit(opts.RepoDir)
	}
	visible, err := repo.VisibleFiles()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list working tree", err)
	}

	onDisk := make(map[string]bool, len(visible))
	for _, p := range visible {
		if pol.Policed(p) {
			onDisk[p] = true
		}
	}

	var drift driftReport
	for _, p := range reg.Paths() {
		if !onDisk[p] {
			drift.Missing = append(drift.Missing, p)
		}
		delete(onDisk, p)
	}
	for p := range onDisk {
		drift.Orphaned = append(drift.Orphaned, p)
	}
	sort.Strings(drift.Orphaned)

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	if len(drift.Missing) == 0 && len(drift.Orphaned) == 0 {
		if err := f.SuccessText(fmt.Sprintf("registry in sync: %d files\n", reg.Len()), drift); err != nil {
			return WrapExitError(ExitCommandError, "failed to render report", err)
		}
		return nil
	}

	var b strings.Builder
	for _, p := range drift.Missing {
		fmt.Fprintf(&b, "missing from tree: %s\n", p)
	}
	for _, p := range drift.Orphaned {
		fmt.Fprintf(&b, "not registered:    %s\n", p)
	}
	if err := f.SuccessText(b.String(), drift); err != nil {
		return WrapExitError(ExitCommandError, "failed to render report", err)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("registry drift: %d missing, %d unregistered",
		len(drift.Missing), len(drift.Orphaned)))
}
