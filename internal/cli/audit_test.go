package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/internal/audit"
	"github.com/wardenhq/warden/internal/engine"
)

func seedAuditLog(t *testing.T, path string) {
	t.Helper()
	log, err := audit.Open(path)
	require.NoError(t, err)
	defer log.Close()

	started := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	res := &engine.RunResult{
		RunID:    "run-1",
		Actor:    "tanya",
		Commit:   "abc1234def",
		Parent:   "0000000",
		Started:  started,
		Finished: started.Add(time.Second),
		Decisions: []engine.Decision{
			{Kind: engine.KindModified, Path: "docs/guide.md", Outcome: engine.OutcomeDenied,
				Reason: "not the owner", Repair: engine.RepairRestored},
		},
		Corrections: []string{"docs/guide.md"},
		Committed:   true,
	}
	require.NoError(t, log.Record(context.Background(), res))
}

func TestAuditTailListsRuns(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "audit.db")
	seedAuditLog(t, dbPath)

	cmd, out, _ := newTestCommand()
	opts := &AuditOptions{RootOptions: &RootOptions{Format: "text"}, AuditPath: dbPath, Limit: 20}
	require.NoError(t, runAuditTail(opts, cmd))

	assert.Contains(t, out.String(), "run-1")
	assert.Contains(t, out.String(), "tanya")
	assert.Contains(t, out.String(), "1 corrections")
}

func TestAuditTailShowsDecisions(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "audit.db")
	seedAuditLog(t, dbPath)

	cmd, out, _ := newTestCommand()
	opts := &AuditOptions{RootOptions: &RootOptions{Format: "text"}, AuditPath: dbPath, Limit: 20, RunID: "run-1"}
	require.NoError(t, runAuditTail(opts, cmd))

	assert.Contains(t, out.String(), "docs/guide.md")
	assert.Contains(t, out.String(), "DENIED (restored): not the owner")
}

func TestAuditTailMissingLog(t *testing.T) {
	cmd, _, _ := newTestCommand()
	opts := &AuditOptions{
		RootOptions: &RootOptions{Format: "text"},
		AuditPath:   filepath.Join(t.TempDir(), "absent.db"),
		Limit:       20,
	}
	err := runAuditTail(opts, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
