package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/internal/audit"
	"github.com/wardenhq/warden/internal/digest"
	"github.com/wardenhq/warden/internal/engine"
	"github.com/wardenhq/warden/internal/registry"
	"github.com/wardenhq/warden/internal/vcs"
)

var testClock = engine.FixedClock(time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC))

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedRegistry writes a registry file with one record owned by maya.
func seedRegistry(t *testing.T, repoDir, path, content string) {
	t.Helper()
	reg := registry.New()
	reg.PutFile(path, &registry.FileRecord{
		Owner:    "maya",
		Created:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Modified: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Checksum: digest.Bytes([]byte(content)),
	})
	require.NoError(t, reg.Save(filepath.Join(repoDir, ".warden", "registry.yml")))
}

func newTestCommand() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	cmd := &cobra.Command{}
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd, out, errOut
}

func TestEnforceRestoresUnauthorizedEdit(t *testing.T) {
	tmp := t.TempDir()
	repo := vcs.NewFakeRepo()
	repo.AddCommit("base", "", vcs.CommitMeta{AuthorName: "maya"},
		map[string]string{"docs/guide.md": "original"})
	repo.AddCommit("head", "base", vcs.CommitMeta{AuthorName: "tanya", AuthorEmail: "tanya@example.com", Message: "edit"},
		map[string]string{"docs/guide.md": "tampered"})
	seedRegistry(t, tmp, "docs/guide.md", "original")

	cmd, out, _ := newTestCommand()
	opts := &EnforceOptions{
		RootOptions:   &RootOptions{Format: "text"},
		RepoDir:       tmp,
		Actor:         "tanya",
		Commit:        "head",
		Repo:          repo,
		EngineOptions: []engine.Option{engine.WithClock(testClock)},
	}
	require.NoError(t, runEnforce(opts, cmd))

	assert.Contains(t, out.String(), "DENIED")
	assert.Contains(t, out.String(), "restored")

	content, err := repo.ReadFile("docs/guide.md")
	require.NoError(t, err)
	assert.Equal(t, "original", string(content))

	require.Len(t, repo.Commits, 1)
	assert.Equal(t, "warden: enforced ownership policy", repo.Commits[0].Message)
	assert.Equal(t, "Warden Bot", repo.Commits[0].Author.Name)
	assert.Equal(t, 1, repo.Pushes)

	// The run lands in the audit log at the policy's default location.
	log, err := audit.Open(filepath.Join(tmp, ".warden", "audit.db"))
	require.NoError(t, err)
	defer log.Close()
	runs, err := log.RecentRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "tanya", runs[0].Actor)
	assert.Equal(t, 1, runs[0].Corrections)
	assert.True(t, runs[0].Committed)
}

func TestEnforceRegistersNewFiles(t *testing.T) {
	tmp := t.TempDir()
	repo := vcs.NewFakeRepo()
	repo.AddCommit("head", "", vcs.CommitMeta{AuthorName: "Tanya", AuthorEmail: "tanya@example.com", Message: "initial import"},
		map[string]string{"docs/intro.md": "hello", "docs/setup.md": "steps"})

	cmd, out, _ := newTestCommand()
	opts := &EnforceOptions{
		RootOptions:   &RootOptions{Format: "text"},
		RepoDir:       tmp,
		Commit:        "head",
		Repo:          repo,
		EngineOptions: []engine.Option{engine.WithClock(testClock)},
	}
	require.NoError(t, runEnforce(opts, cmd))

	assert.Contains(t, out.String(), "registered")
	assert.Empty(t, repo.Commits, "a clean run must not produce a correction commit")

	reg := registry.Load(filepath.Join(tmp, ".warden", "registry.yml"), discardLogger())
	assert.Equal(t, 2, reg.Len())
	rec, ok := reg.File("docs/intro.md")
	require.True(t, ok)
	assert.Equal(t, "tanya", rec.Owner)
}

func TestEnforceJSONOutput(t *testing.T) {
	tmp := t.TempDir()
	repo := vcs.NewFakeRepo()
	repo.AddCommit("head", "", vcs.CommitMeta{AuthorName: "tanya", Message: "initial"},
		map[string]string{"notes.md": "hi"})

	cmd, out, _ := newTestCommand()
	opts := &EnforceOptions{
		RootOptions:   &RootOptions{Format: "json"},
		RepoDir:       tmp,
		Commit:        "head",
		Repo:          repo,
		EngineOptions: []engine.Option{engine.WithClock(testClock)},
	}
	require.NoError(t, runEnforce(opts, cmd))

	var resp struct {
		Status string        `json:"status"`
		Data   reportPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Decisions, 1)
	assert.Equal(t, "registered", resp.Data.Decisions[0].Outcome)
	assert.True(t, resp.Data.RegistrySaved)
}

func TestEnforcePushFailureIsFatal(t *testing.T) {
	tmp := t.TempDir()
	repo := vcs.NewFakeRepo()
	repo.AddCommit("base", "", vcs.CommitMeta{AuthorName: "maya"},
		map[string]string{"docs/guide.md": "original"})
	repo.AddCommit("head", "base", vcs.CommitMeta{AuthorName: "tanya", Message: "edit"},
		map[string]string{"docs/guide.md": "tampered"})
	repo.FailPush = true
	seedRegistry(t, tmp, "docs/guide.md", "original")

	cmd, _, _ := newTestCommand()
	opts := &EnforceOptions{
		RootOptions:   &RootOptions{Format: "text"},
		RepoDir:       tmp,
		Actor:         "tanya",
		Commit:        "head",
		Repo:          repo,
		EngineOptions: []engine.Option{engine.WithClock(testClock)},
	}
	err := runEnforce(opts, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	// Partial work is still audited: the commit landed before the push failed.
	log, openErr := audit.Open(filepath.Join(tmp, ".warden", "audit.db"))
	require.NoError(t, openErr)
	defer log.Close()
	runs, readErr := log.RecentRuns(context.Background(), 5)
	require.NoError(t, readErr)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Committed)
}

func TestEnforceLoopGuardSkips(t *testing.T) {
	tmp := t.TempDir()
	repo := vcs.NewFakeRepo()
	repo.AddCommit("base", "", vcs.CommitMeta{AuthorName: "maya"},
		map[string]string{"docs/guide.md": "original"})
	repo.AddCommit("head", "base",
		vcs.CommitMeta{AuthorName: "Warden Bot", AuthorEmail: "warden@warden.bot", Message: "warden: enforced ownership policy"},
		map[string]string{"docs/guide.md": "corrected"})

	cmd, out, _ := newTestCommand()
	opts := &EnforceOptions{
		RootOptions:   &RootOptions{Format: "text"},
		RepoDir:       tmp,
		Commit:        "head",
		Repo:          repo,
		EngineOptions: []engine.Option{engine.WithClock(testClock)},
	}
	require.NoError(t, runEnforce(opts, cmd))

	assert.Contains(t, out.String(), "skipped")
	assert.Empty(t, repo.Commits)
}

func TestEnforceEnvOverlay(t *testing.T) {
	tmp := t.TempDir()
	repo := vcs.NewFakeRepo()
	repo.AddCommit("head", "", vcs.CommitMeta{AuthorName: "ignored author", Message: "initial"},
		map[string]string{"notes.md": "hi"})

	t.Setenv("WARDEN_ACTOR", "Tanya")
	t.Setenv("WARDEN_COMMIT", "head")

	cmd, _, _ := newTestCommand()
	opts := &EnforceOptions{
		RootOptions:   &RootOptions{Format: "text"},
		RepoDir:       tmp,
		Repo:          repo,
		EngineOptions: []engine.Option{engine.WithClock(testClock)},
	}
	require.NoError(t, runEnforce(opts, cmd))

	reg := registry.Load(filepath.Join(tmp, ".warden", "registry.yml"), discardLogger())
	rec, ok := reg.File("notes.md")
	require.True(t, ok)
	assert.Equal(t, "tanya", rec.Owner)
}
