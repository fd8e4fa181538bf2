// Package statestore implements the State Store collaborator as a real
// filesystem-backed store — unlike the Backend/Git/Decomposer
// collaborators, this one is not a stub.
//
// Directory layout:
//
//	<root>/project_<id>/project.json
//	<root>/project_<id>/logs.jsonl
//	<root>/project_<id>/artifacts/task_<task_id>/generated/
package statestore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/swarmforge/swarmforge/internal/domain"
	"github.com/swarmforge/swarmforge/internal/log"
)

// Store is the State Store collaborator contract.
type Store interface {
	SaveProject(state *domain.ProjectState) error
	LoadProject(id string) (*domain.ProjectState, error)
	AppendLog(id string, entry string) error
	GetArtifactsDir(projectID, taskID string) (string, error)
}

// FileStore implements Store by serializing ProjectState as a flat JSON
// object directly under <root>/project_<id>/project.json.
type FileStore struct {
	root string
}

// New constructs a FileStore rooted at root, creating it if necessary.
func New(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("statestore: creating root %q: %w", root, err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) projectDir(id string) string {
	return filepath.Join(s.root, fmt.Sprintf("project_%s", id))
}

// SaveProject serializes state to <root>/project_<id>/project.json,
// creating the project directory if absent (the artifacts subtree is
// created by GetArtifactsDir).
// Callers save after each phase/task transition, not on every field
// touch.
func (s *FileStore) SaveProject(state *domain.ProjectState) error {
	dir := s.projectDir(state.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("statestore: creating project dir: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("statestore: marshaling project %s: %w", state.ID, err)
	}

	path := filepath.Join(dir, "project.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec // G306: readable project state, not a secret
		return fmt.Errorf("statestore: writing project %s: %w", state.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("statestore: finalizing project %s: %w", state.ID, err)
	}

	log.Debug(log.CatStore, "project saved", "project_id", state.ID, "phase", state.Phase)
	return nil
}

// LoadProject reads and unmarshals <root>/project_<id>/project.json.
func (s *FileStore) LoadProject(id string) (*domain.ProjectState, error) {
	path := filepath.Join(s.projectDir(id), "project.json")
	data, err := os.ReadFile(path) //nolint:gosec // G304: id-derived path under an operator-controlled root
	if err != nil {
		return nil, fmt.Errorf("statestore: loading project %s: %w", id, err)
	}

	var state domain.ProjectState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("statestore: unmarshaling project %s: %w", id, err)
	}
	return &state, nil
}

// logEntry is one line of the append-only logs.jsonl file.
type logEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Entry     string    `json:"entry"`
}

// AppendLog appends entry as a JSON line to
// <root>/project_<id>/logs.jsonl, creating the project directory if
// necessary.
func (s *FileStore) AppendLog(id string, entry string) error {
	dir := s.projectDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("statestore: creating project dir: %w", err)
	}

	path := filepath.Join(dir, "logs.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G304/G306: operator-controlled log path
	if err != nil {
		return fmt.Errorf("statestore: opening log for project %s: %w", id, err)
	}
	defer f.Close()

	line, err := json.Marshal(logEntry{Timestamp: time.Now(), Entry: entry})
	if err != nil {
		return fmt.Errorf("statestore: marshaling log entry: %w", err)
	}

	w := bufio.NewWriter(f)
	if _, err := w.Write(line); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}

// GetArtifactsDir returns (creating if absent)
// <root>/project_<id>/artifacts/task_<task_id>/generated/, the directory
// the TechLead passes to the Backend collaborator as its output
// directory.
func (s *FileStore) GetArtifactsDir(projectID, taskID string) (string, error) {
	dir := filepath.Join(s.projectDir(projectID), "artifacts", fmt.Sprintf("task_%s", taskID), "generated")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("statestore: creating artifacts dir: %w", err)
	}
	return dir, nil
}

var _ Store = (*FileStore)(nil)
