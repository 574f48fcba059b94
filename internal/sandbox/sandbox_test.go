package sandbox

import (
	"os"
	"path/filepath"
	"testing"
)

func TestComputeAllowPathsIncludesCommandCwdAndRoots(t *testing.T) {
	tmp := t.TempDir()
	cwd := filepath.Join(tmp, "workspace")
	extra := filepath.Join(tmp, "extra")
	if err := os.MkdirAll(cwd, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(extra, 0o755); err != nil {
		t.Fatal(err)
	}

	policy := Policy{Kind: WorkspaceWrite, WritableRoots: []string{extra}, ExcludeTmpdirEnvVar: true}
	paths := ComputeAllowPaths(policy, cwd, cwd, nil)

	if _, ok := paths.Allow[cwd]; !ok {
		t.Errorf("expected cwd %q in allow set: %v", cwd, paths.Allow)
	}
	if _, ok := paths.Allow[extra]; !ok {
		t.Errorf("expected extra root %q in allow set: %v", extra, paths.Allow)
	}
	if len(paths.Deny) != 0 {
		t.Errorf("expected no deny paths, got %v", paths.Deny)
	}
}

func TestComputeAllowPathsDeniesGitDirInsideRoot(t *testing.T) {
	tmp := t.TempDir()
	cwd := filepath.Join(tmp, "workspace")
	gitDir := filepath.Join(cwd, ".git")
	if err := os.MkdirAll(gitDir, 0o755); err != nil {
		t.Fatal(err)
	}

	policy := Policy{Kind: WorkspaceWrite, ExcludeTmpdirEnvVar: true}
	paths := ComputeAllowPaths(policy, cwd, cwd, nil)

	if _, ok := paths.Deny[gitDir]; !ok {
		t.Errorf("expected .git dir %q to be denied: %v", gitDir, paths.Deny)
	}
}

func TestIsWritableRespectsDenyOverAllow(t *testing.T) {
	tmp := t.TempDir()
	cwd := filepath.Join(tmp, "workspace")
	gitDir := filepath.Join(cwd, ".git")
	if err := os.MkdirAll(gitDir, 0o755); err != nil {
		t.Fatal(err)
	}

	policy := Policy{Kind: WorkspaceWrite, ExcludeTmpdirEnvVar: true}
	paths := ComputeAllowPaths(policy, cwd, cwd, nil)

	if !IsWritable(paths, filepath.Join(cwd, "main.go")) {
		t.Error("expected a file under cwd to be writable")
	}
	if IsWritable(paths, filepath.Join(gitDir, "HEAD")) {
		t.Error("expected a file under .git to be denied")
	}
}

func TestClassifyDestructiveAlwaysWins(t *testing.T) {
	if got := Classify("git status && rm -rf /"); got != Destructive {
		t.Errorf("expected Destructive, got %v", got)
	}
}

func TestClassifyAlwaysAllowed(t *testing.T) {
	if got := Classify("git status"); got != AlwaysAllowed {
		t.Errorf("expected AlwaysAllowed, got %v", got)
	}
}

func TestClassifyIndeterminateOnCommandSubstitution(t *testing.T) {
	if got := Classify("echo $(whoami)"); got != Indeterminate {
		t.Errorf("expected Indeterminate, got %v", got)
	}
}

func TestEvaluateDestructiveAlwaysAsksEvenWithNeverPolicy(t *testing.T) {
	got := Evaluate(Policy{Kind: WorkspaceWrite}, Never, Destructive, nil, "rm -rf /")
	if got != AskFirst {
		t.Errorf("expected AskFirst for destructive command, got %v", got)
	}
}

func TestEvaluateApprovedCacheSkipsRepeatPrompt(t *testing.T) {
	cache := NewApprovedCache()
	cache.ApproveForSession("npm install")

	got := Evaluate(Policy{Kind: WorkspaceWrite}, OnRequest, KnownMutating, cache, "npm install")
	if got != RunNow {
		t.Errorf("expected RunNow for previously approved command, got %v", got)
	}
}

func TestEvaluateOnRequestAsksForUnrecognizedCommand(t *testing.T) {
	got := Evaluate(Policy{Kind: WorkspaceWrite}, OnRequest, RequiresApproval, nil, "some-unknown-tool --flag")
	if got != AskFirst {
		t.Errorf("expected AskFirst, got %v", got)
	}
}
