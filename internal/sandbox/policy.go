// Package sandbox computes what a tool call is allowed to touch: which
// filesystem paths a command may write to, whether it needs network
// access, and whether it needs to pause for human approval before it
// runs at all.
package sandbox

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// PolicyKind tags the SandboxPolicy variant in effect for a turn.
type PolicyKind string

const (
	// ReadOnly permits no filesystem writes and no network access.
	ReadOnly PolicyKind = "read_only"
	// WorkspaceWrite permits writes under the command's cwd and any
	// configured WritableRoots, always denying the .git directory/file
	// inside each root.
	WorkspaceWrite PolicyKind = "workspace_write"
	// DangerFullAccess permits writes and network access anywhere.
	DangerFullAccess PolicyKind = "danger_full_access"
	// ExternalSandbox delegates enforcement entirely to an out-of-process
	// sandbox primitive (container, VM, gVisor) this package never models.
	ExternalSandbox PolicyKind = "external_sandbox"
)

// Policy is the closed sum type spec.md names SandboxPolicy. Fields
// outside the active Kind are ignored.
type Policy struct {
	Kind PolicyKind

	// WorkspaceWrite fields.
	WritableRoots       []string
	NetworkAccess       bool
	ExcludeTmpdirEnvVar bool
	ExcludeSlashTmp     bool
}

// AllowDenyPaths is the result of resolving a Policy against a concrete
// command working directory: Allow holds every path writes may target,
// Deny holds paths carved back out of an allowed root (currently only
// .git entries).
type AllowDenyPaths struct {
	Allow map[string]struct{}
	Deny  map[string]struct{}
}

func newAllowDenyPaths() AllowDenyPaths {
	return AllowDenyPaths{Allow: map[string]struct{}{}, Deny: map[string]struct{}{}}
}

func (p AllowDenyPaths) addAllow(path string) {
	if _, err := os.Stat(path); err == nil {
		p.Allow[path] = struct{}{}
	}
}

func (p AllowDenyPaths) addDeny(path string) {
	if _, err := os.Stat(path); err == nil {
		p.Deny[path] = struct{}{}
	}
}

// ComputeAllowPaths resolves policy's writable roots against policyCwd
// (the directory policy-relative roots are joined against) and the
// concrete commandCwd a tool call is about to run in, always adding
// commandCwd itself as an allowed root and always denying a .git entry
// (file or directory) found inside any allowed root. This mirrors the
// allow/deny computation a sandboxing layer performs before permitting a
// workspace-write command to proceed.
func ComputeAllowPaths(policy Policy, policyCwd, commandCwd string, env map[string]string) AllowDenyPaths {
	paths := newAllowDenyPaths()
	if policy.Kind != WorkspaceWrite {
		return paths
	}

	addRoot := func(root string) {
		candidate := root
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(policyCwd, candidate)
		}
		canonical, err := filepath.EvalSymlinks(candidate)
		if err != nil {
			canonical = candidate
		}
		paths.addAllow(canonical)

		gitEntry := filepath.Join(canonical, ".git")
		paths.addDeny(gitEntry)
	}

	addRoot(commandCwd)
	for _, root := range policy.WritableRoots {
		addRoot(root)
	}

	if !policy.ExcludeTmpdirEnvVar {
		for _, key := range []string{"TEMP", "TMP"} {
			if v, ok := env[key]; ok && v != "" {
				paths.addAllow(v)
			} else if v := os.Getenv(key); v != "" {
				paths.addAllow(v)
			}
		}
	}
	if !policy.ExcludeSlashTmp && !policy.ExcludeTmpdirEnvVar {
		paths.addAllow("/tmp")
	}

	return paths
}

// IsWritable reports whether target falls under one of paths' allowed
// roots and under none of its denied ones. A denied path (or anything
// beneath it) always wins over an allowed ancestor.
func IsWritable(paths AllowDenyPaths, target string) bool {
	abs, err := filepath.Abs(target)
	if err != nil {
		abs = target
	}

	for deny := range paths.Deny {
		if withinRoot(abs, deny) {
			return false
		}
	}
	for allow := range paths.Allow {
		if withinRoot(abs, allow) {
			return true
		}
	}
	return false
}

func withinRoot(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	matched, _ := doublestar.Match("**", filepath.ToSlash(rel))
	return matched && rel != ".." && !hasParentEscape(rel)
}

func hasParentEscape(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.'
}
