// Package gitdriver implements the Git driver collaborator:
// CreateBranch/CommitChanges/PushBranch/CreatePR, "external to the
// core" but required to exist and be idempotent by branch
// name so the TechLead's execution pipeline is testable end-to-end.
package gitdriver

import (
	"fmt"
	"sync"

	"github.com/swarmforge/swarmforge/internal/domain"
	"github.com/swarmforge/swarmforge/internal/git"
	"github.com/swarmforge/swarmforge/internal/log"
)

// Driver is the Git hosting collaborator contract.
type Driver interface {
	CreateBranch(task *domain.Task) (string, error)
	CommitChanges(task *domain.Task, filePaths []string) error
	PushBranch(name string) error
	CreatePR(task *domain.Task) (url string, number int, err error)
}

// Fake is an in-memory/local-directory stand-in that simulates branch and
// PR bookkeeping without touching a real remote or hosting API.
// Branch naming and PR allocation
// are idempotent per branch name, per the collaborator contract.
type Fake struct {
	mu       sync.Mutex
	branches map[string]bool
	prByTask map[string]prRecord
	nextPR   int
}

type prRecord struct {
	url    string
	number int
}

// NewFake constructs a Fake Git driver with PR numbering starting at 100.
func NewFake() *Fake {
	return &Fake{
		branches: make(map[string]bool),
		prByTask: make(map[string]prRecord),
		nextPR:   100,
	}
}

// CreateBranch derives a deterministic branch name from the task id and
// records it. Calling CreateBranch twice for the same task returns the
// same branch name without error (idempotent by branch name).
func (f *Fake) CreateBranch(task *domain.Task) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := fmt.Sprintf("swarm/%s", task.ID)
	f.branches[name] = true
	log.Debug(log.CatTechLead, "fake git: branch ensured", "branch", name, "task_id", task.ID)
	return name, nil
}

// CommitChanges records that filePaths were committed to task's branch.
// The fake does not persist file contents itself (the State Store owns
// that); it only validates the branch exists.
func (f *Fake) CommitChanges(task *domain.Task, filePaths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if task.Branch == "" || !f.branches[task.Branch] {
		return fmt.Errorf("gitdriver: cannot commit to unknown branch %q", task.Branch)
	}
	log.Debug(log.CatTechLead, "fake git: commit recorded", "branch", task.Branch, "files", len(filePaths))
	return nil
}

// PushBranch is a no-op confirming the branch was created (no remote to
// push to in the fake).
func (f *Fake) PushBranch(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.branches[name] {
		return fmt.Errorf("gitdriver: cannot push unknown branch %q", name)
	}
	return nil
}

// CreatePR allocates (or returns the existing) PR number and URL for
// task's branch, idempotent by task id so a re-submitted PR_FEEDBACK
// iteration reuses the same PR.
func (f *Fake) CreatePR(task *domain.Task) (string, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if rec, ok := f.prByTask[task.ID]; ok {
		return rec.url, rec.number, nil
	}

	number := f.nextPR
	f.nextPR++
	url := fmt.Sprintf("https://git.local/swarmforge/pulls/%d", number)
	f.prByTask[task.ID] = prRecord{url: url, number: number}
	log.Info(log.CatTechLead, "fake git: PR created", "task_id", task.ID, "pr_number", number)
	return url, number, nil
}

// Local drives a real, local git repository (no hosting API, so
// CreatePR still fakes the hosted PR record) via internal/git's
// RealExecutor, using one checkout with one branch per task.
type Local struct {
	exec *git.RealExecutor

	mu       sync.Mutex
	prByTask map[string]prRecord
	nextPR   int
}

// NewLocal builds a Local driver operating in repoDir.
func NewLocal(repoDir string) *Local {
	return &Local{
		exec:     git.NewRealExecutor(repoDir),
		prByTask: make(map[string]prRecord),
		nextPR:   100,
	}
}

// CreateBranch creates (or checks out, if it already exists) a branch
// named from the task id.
func (l *Local) CreateBranch(task *domain.Task) (string, error) {
	name := fmt.Sprintf("swarm/%s", task.ID)
	if err := l.exec.CreateTaskBranch(name); err != nil {
		return "", fmt.Errorf("gitdriver: create branch %q: %w", name, err)
	}
	return name, nil
}

// CommitChanges stages and commits filePaths with a generated message.
func (l *Local) CommitChanges(task *domain.Task, filePaths []string) error {
	msg := fmt.Sprintf("swarmforge: %s", task.Description)
	if _, err := l.exec.StageAndCommit(filePaths, msg); err != nil {
		return fmt.Errorf("gitdriver: commit for task %s: %w", task.ID, err)
	}
	return nil
}

// PushBranch pushes name to origin.
func (l *Local) PushBranch(name string) error {
	if err := l.exec.PushBranch(name); err != nil {
		return fmt.Errorf("gitdriver: push %q: %w", name, err)
	}
	return nil
}

// CreatePR fakes the hosted PR record (no GitHub/GitLab API is wired),
// idempotent by task id.
func (l *Local) CreatePR(task *domain.Task) (string, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec, ok := l.prByTask[task.ID]; ok {
		return rec.url, rec.number, nil
	}
	number := l.nextPR
	l.nextPR++
	url := fmt.Sprintf("https://git.local/swarmforge/pulls/%d", number)
	l.prByTask[task.ID] = prRecord{url: url, number: number}
	return url, number, nil
}

var (
	_ Driver = (*Fake)(nil)
	_ Driver = (*Local)(nil)
)
