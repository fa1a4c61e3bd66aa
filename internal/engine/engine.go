package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/internal/identity"
	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/registry"
	"github.com/wardenhq/warden/internal/vcs"
)

// Engine is the batch driver. It owns the registry for the duration of
// one run and orchestrates classification, authorization, reconciliation,
// hygiene, persistence, and the correction commit.
type Engine struct {
	repo         vcs.Repo
	reg          *registry.Registry
	pol          *policy.Policy
	registryPath string
	log          *slog.Logger
	clock        Clock
	newRunID     func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock substitutes the timestamp source. Tests use FixedClock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithRunID substitutes the run identifier generator. Tests use a fixed
// function; production uses random UUIDs.
func WithRunID(fn func() string) Option {
	return func(e *Engine) { e.newRunID = fn }
}

// New creates an Engine over a repository collaborator, a loaded registry,
// and a validated policy. registryPath is where Save persists the registry
// at the end of a mutating run.
func New(repo vcs.Repo, reg *registry.Registry, pol *policy.Policy, registryPath string, log *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		repo:         repo,
		reg:          reg,
		pol:          pol,
		registryPath: registryPath,
		log:          log.With("component", "engine"),
		clock:        SystemClock,
		newRunID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run processes the batch of changes introduced by commit, acting as
// actor. An empty actor falls back to the commit's recorded author name.
//
// Run returns the accumulated RunResult. A non-nil error is always a
// fatal RunError; the result returned alongside it reflects work completed
// before the abort, including repairs already staged.
func (e *Engine) Run(ctx context.Context, actor, commit string) (*RunResult, error) {
	res := &RunResult{
		RunID:   e.newRunID(),
		Commit:  commit,
		Started: e.clock(),
	}

	meta, err := e.repo.CommitMetadata(ctx, commit)
	if err != nil {
		return res, runErr(ErrCodeCollaborator, "", err)
	}

	// Loop guard: never enforce against the bot's own correction commit.
	if meta.AuthorName == e.pol.Bot.Name &&
		meta.AuthorEmail == e.pol.Bot.Email &&
		strings.HasPrefix(meta.Message, e.pol.Bot.MessagePrefix) {
		res.Skipped = true
		res.SkipReason = "correction commit by " + e.pol.Bot.Name
		res.Finished = e.clock()
		e.log.Info("skipping enforcement", "reason", res.SkipReason, "commit", commit)
		return res, nil
	}

	if actor == "" {
		actor = meta.AuthorName
	}
	res.Actor = identity.Normalize(actor)

	parent, ok, err := e.repo.ParentRevision(ctx, commit)
	if err != nil {
		return res, runErr(ErrCodeCollaborator, "", err)
	}
	if !ok {
		parent = vcs.EmptyTreeRev
	}
	res.Parent = parent

	raw, err := e.repo.ChangedPaths(ctx, parent, commit)
	if err != nil {
		return res, runErr(ErrCodeCollaborator, "", err)
	}

	changes := e.classify(raw)
	e.log.Info("processing batch",
		"run_id", res.RunID, "actor", res.Actor, "commit", commit, "changes", len(changes))

	b := &batch{e: e, ctx: ctx, actor: res.Actor, parent: parent, res: res}
	for _, ch := range changes {
		if err := b.process(ch); err != nil {
			res.Finished = e.clock()
			return res, err
		}
	}

	if err := e.finish(ctx, res); err != nil {
		res.Finished = e.clock()
		return res, err
	}

	res.Finished = e.clock()
	return res, nil
}

// finish runs the hygiene pass, persists the registry, and issues the
// single correction commit when anything was repaired.
func (e *Engine) finish(ctx context.Context, res *RunResult) error {
	removed, err := e.repo.RemoveEmptyDirs()
	if err != nil {
		return runErr(ErrCodeRestoreFailed, "", err)
	}
	if len(removed) > 0 {
		res.RemovedFolders = removed
		res.Corrections = append(res.Corrections, removed...)
		e.log.Info("removed empty folders", "count", len(removed))
	}

	if e.reg.Dirty() {
		if err := e.reg.Save(e.registryPath); err != nil {
			return runErr(ErrCodeRegistrySave, e.registryPath, err)
		}
		res.RegistrySaved = true
		e.log.Info("registry saved", "path", e.registryPath)
	}

	if !res.Corrected() {
		e.log.Info("no corrections needed")
		return nil
	}

	msg := e.pol.Bot.MessagePrefix + " enforced ownership policy"
	sig := vcs.Signature{Name: e.pol.Bot.Name, Email: e.pol.Bot.Email}
	if err := e.repo.Commit(ctx, msg, sig); err != nil {
		return runErr(ErrCodeCommitFailed, "", err)
	}
	res.Committed = true

	if err := e.repo.Push(ctx); err != nil {
		return runErr(ErrCodePushFailed, "", err)
	}
	res.Pushed = true

	e.log.Info("corrections committed", "corrections", len(res.Corrections))
	return nil
}

// batch threads per-run state through the reconciliation handlers, so the
// engine itself carries no mutable run state.
type batch struct {
	e      *Engine
	ctx    context.Context
	actor  string
	parent string
	res    *RunResult
}
