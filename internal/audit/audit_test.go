package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/internal/engine"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func sampleRun(id string, started time.Time) *engine.RunResult {
	return &engine.RunResult{
		RunID:    id,
		Actor:    "tanya",
		Commit:   "abc123",
		Parent:   "def456",
		Started:  started,
		Finished: started.Add(50 * time.Millisecond),
		Decisions: []engine.Decision{
			{Kind: engine.KindAdded, Path: "docs/intro.md", Outcome: engine.OutcomeRegistered, Grant: engine.GrantCreation},
			{Kind: engine.KindModified, Path: "docs/guide.md", Outcome: engine.OutcomeDenied,
				Reason: "not the content owner", Repair: engine.RepairRestored},
		},
		Corrections: []string{"docs/guide.md"},
		Committed:   true,
	}
}

func TestRecordAndReadBack(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	require.NoError(t, l.Record(ctx, sampleRun("run-1", started)))

	runs, err := l.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)
	assert.Equal(t, "tanya", runs[0].Actor)
	assert.Equal(t, "abc123", runs[0].Commit)
	assert.True(t, runs[0].Started.Equal(started))
	assert.False(t, runs[0].Skipped)
	assert.Equal(t, 1, runs[0].Corrections)
	assert.True(t, runs[0].Committed)

	decisions, err := l.Decisions(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.Equal(t, engine.KindAdded, decisions[0].Kind)
	assert.Equal(t, "docs/intro.md", decisions[0].Path)
	assert.Equal(t, engine.OutcomeRegistered, decisions[0].Outcome)
	assert.Equal(t, engine.GrantCreation, decisions[0].Grant)
	assert.Equal(t, engine.OutcomeDenied, decisions[1].Outcome)
	assert.Equal(t, engine.RepairRestored, decisions[1].Repair)
	assert.Equal(t, "not the content owner", decisions[1].Reason)
}

func TestRecentRunsOrderAndLimit(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		require.NoError(t, l.Record(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Minute))))
	}

	runs, err := l.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].RunID)
	assert.Equal(t, "run-b", runs[1].RunID)
}

func TestRecordSkippedRun(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	res := &engine.RunResult{
		RunID:      "run-skip",
		Actor:      "warden bot",
		Commit:     "abc123",
		Started:    time.Now().UTC(),
		Finished:   time.Now().UTC(),
		Skipped:    true,
		SkipReason: "own correction commit",
	}
	require.NoError(t, l.Record(ctx, res))

	runs, err := l.RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Skipped)
	assert.Zero(t, runs[0].Corrections)

	decisions, err := l.Decisions(ctx, "run-skip")
	require.NoError(t, err)
	assert.Empty(t, decisions)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	l1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l1.Record(context.Background(), sampleRun("run-1", time.Now().UTC())))
	require.NoError(t, l1.Close())

	l2, err := Open(path)
	require.NoError(t, err)
	defer l2.Close()

	runs, err := l2.RecentRuns(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	l, err := Open(path)
	require.NoError(t, err)
	_, err = l.db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, l.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestDuplicateRunIDRejected(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	res := sampleRun("run-1", time.Now().UTC())
	require.NoError(t, l.Record(ctx, res))
	assert.Error(t, l.Record(ctx, res))
}
