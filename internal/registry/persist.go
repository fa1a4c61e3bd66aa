package registry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// document is the on-disk registry layout: a key/value document with the
// file records under "files" and folder records under "folders".
type document struct {
	Files   map[string]*FileRecord   `yaml:"files"`
	Folders map[string]*FolderRecord `yaml:"folders"`
}

// header is regenerated at the top of every save. The registry is machine
// managed; the comment exists for humans who open the file.
const header = `# File Ownership Registry
# Tracks ownership and integrity of all policed files in the repository.
# 'files' section: content ownership (who can edit file contents)
# 'folders' section: structural ownership (who can move/rename within folder trees)
# DO NOT EDIT MANUALLY - managed automatically by the warden enforcement engine.

`

// Load reads the registry from path. Load fails soft: a missing or corrupt
// registry yields an empty registry and a warning, never an error, because
// the policy must still run on a first-ever batch.
func Load(path string, log *slog.Logger) *Registry {
	reg := New()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("registry unreadable, starting empty", "path", path, "error", err)
		}
		return reg
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		log.Warn("registry unparseable, starting empty", "path", path, "error", err)
		return reg
	}

	if doc.Files != nil {
		reg.files = doc.Files
	}
	if doc.Folders != nil {
		reg.folders = doc.Folders
	}
	return reg
}

// Save persists the registry to path, creating parent directories as
// needed. Save is the only write path for the durable registry; the engine
// calls it at most once per run, after all mutations.
func (r *Registry) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}

	out, err := yaml.Marshal(document{Files: r.files, Folders: r.folders})
	if err != nil {
		return fmt.Errorf("save registry: %w", err)
	}

	if err := os.WriteFile(path, append([]byte(header), out...), 0o644); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	r.dirty = false
	return nil
}
