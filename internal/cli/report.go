package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/wardenhq/warden/internal/engine"
)

// reportPayload is the JSON shape of a run report.
type reportPayload struct {
	RunID          string           `json:"run_id"`
	Actor          string           `json:"actor,omitempty"`
	Commit         string           `json:"commit"`
	Parent         string           `json:"parent,omitempty"`
	Started        time.Time        `json:"started"`
	Finished       time.Time        `json:"finished"`
	Skipped        bool             `json:"skipped,omitempty"`
	SkipReason     string           `json:"skip_reason,omitempty"`
	Decisions      []decisionRecord `json:"decisions,omitempty"`
	Corrections    []string         `json:"corrections,omitempty"`
	RemovedFolders []string         `json:"removed_folders,omitempty"`
	RegistrySaved  bool             `json:"registry_saved"`
	Committed      bool             `json:"committed"`
	Pushed         bool             `json:"pushed"`
}

type decisionRecord struct {
	Kind    string `json:"kind"`
	Path    string `json:"path"`
	OldPath string `json:"old_path,omitempty"`
	Outcome string `json:"outcome"`
	Grant   string `json:"grant,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Repair  string `json:"repair,omitempty"`
}

func buildReportPayload(res *engine.RunResult) reportPayload {
	p := reportPayload{
		RunID:          res.RunID,
		Actor:          res.Actor,
		Commit:         res.Commit,
		Parent:         res.Parent,
		Started:        res.Started,
		Finished:       res.Finished,
		Skipped:        res.Skipped,
		SkipReason:     res.SkipReason,
		Corrections:    res.Corrections,
		RemovedFolders: res.RemovedFolders,
		RegistrySaved:  res.RegistrySaved,
		Committed:      res.Committed,
		Pushed:         res.Pushed,
	}
	for _, d := range res.Decisions {
		p.Decisions = append(p.Decisions, decisionRecord{
			Kind:    string(d.Kind),
			Path:    d.Path,
			OldPath: d.OldPath,
			Outcome: string(d.Outcome),
			Grant:   string(d.Grant),
			Reason:  d.Reason,
			Repair:  string(d.Repair),
		})
	}
	return p
}

// renderReport produces the human-readable run narrative.
func renderReport(res *engine.RunResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "run %s\n", res.RunID)
	fmt.Fprintf(&b, "commit %s", res.Commit)
	if res.Parent != "" {
		fmt.Fprintf(&b, " (parent %s)", res.Parent)
	}
	b.WriteString("\n")

	if res.Skipped {
		fmt.Fprintf(&b, "skipped: %s\n", res.SkipReason)
		return b.String()
	}

	fmt.Fprintf(&b, "actor %s\n", res.Actor)

	if len(res.Decisions) == 0 {
		b.WriteString("no policed changes\n")
	}
	for _, d := range res.Decisions {
		path := d.Path
		if d.OldPath != "" {
			path = d.OldPath + " -> " + d.Path
		}
		fmt.Fprintf(&b, "  %-9s %-44s %s\n", d.Kind, path, describeOutcome(d))
	}

	if denials := res.Denials(); denials > 0 {
		fmt.Fprintf(&b, "denied: %d\n", denials)
	}
	if len(res.RemovedFolders) > 0 {
		fmt.Fprintf(&b, "removed empty folders: %s\n", strings.Join(res.RemovedFolders, ", "))
	}
	if res.RegistrySaved {
		b.WriteString("registry: saved\n")
	}
	switch {
	case res.Pushed:
		fmt.Fprintf(&b, "corrections: %d (committed, pushed)\n", len(res.Corrections))
	case res.Committed:
		fmt.Fprintf(&b, "corrections: %d (committed)\n", len(res.Corrections))
	case len(res.Corrections) > 0:
		fmt.Fprintf(&b, "corrections: %d\n", len(res.Corrections))
	default:
		b.WriteString("clean: no corrections needed\n")
	}

	return b.String()
}

func describeOutcome(d engine.Decision) string {
	switch d.Outcome {
	case engine.OutcomeDenied:
		s := "DENIED"
		if d.Repair != engine.RepairNone {
			s += " (" + string(d.Repair) + ")"
		}
		if d.Reason != "" {
			s += ": " + d.Reason
		}
		return s
	default:
		s := string(d.Outcome)
		if d.Grant != "" {
			s += " (" + string(d.Grant) + ")"
		}
		return s
	}
}
