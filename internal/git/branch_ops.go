package git

import (
	"fmt"
)

// CreateTaskBranch creates and checks out a new branch named name from the
// repository's current HEAD. Idempotent by branch name: if the branch
// already exists, it is checked out rather than recreated.
func (e *RealExecutor) CreateTaskBranch(name string) error {
	if e.BranchExists(name) {
		return e.runGit("checkout", name)
	}
	return e.runGit("checkout", "-b", name)
}

// StageAndCommit stages exactly paths (relative to the repo root) and
// commits them with message. Returns the new commit hash.
func (e *RealExecutor) StageAndCommit(paths []string, message string) (string, error) {
	if len(paths) == 0 {
		return "", fmt.Errorf("git: no paths to commit")
	}
	args := append([]string{"add", "--"}, paths...)
	if err := e.runGit(args...); err != nil {
		return "", err
	}
	if err := e.runGit("commit", "-m", message); err != nil {
		return "", err
	}
	return e.runGitOutput("rev-parse", "HEAD")
}

// PushBranch pushes branch to the "origin" remote, setting the upstream on
// first push.
func (e *RealExecutor) PushBranch(branch string) error {
	return e.runGit("push", "--set-upstream", "origin", branch)
}
