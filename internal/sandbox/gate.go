package sandbox

import "sync"

// Gate is the tool layer's entry point into this package: it holds the
// active policy plus the per-session approved-command cache, and answers
// the two questions a tool handler needs before it touches anything —
// "can this write go here" and "does this command need to ask first".
type Gate struct {
	mu        sync.RWMutex
	policy    Policy
	approval  ApprovalPolicy
	policyCwd string
	cache     *ApprovedCache
}

// NewGate returns a Gate enforcing policy/approval, rooted at policyCwd
// for resolving relative writable roots.
func NewGate(policy Policy, approval ApprovalPolicy, policyCwd string) *Gate {
	return &Gate{policy: policy, approval: approval, policyCwd: policyCwd, cache: NewApprovedCache()}
}

// Policy returns the gate's current sandbox policy.
func (g *Gate) Policy() Policy {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.policy
}

// SetPolicy replaces the active sandbox policy, e.g. when a plan-mode
// turn hands off to a workspace-write turn.
func (g *Gate) SetPolicy(policy Policy) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.policy = policy
}

// CheckWrite reports whether target is writable under the gate's policy
// when commands run from commandCwd.
func (g *Gate) CheckWrite(commandCwd, target string) bool {
	g.mu.RLock()
	policy, policyCwd := g.policy, g.policyCwd
	g.mu.RUnlock()

	if policy.Kind == DangerFullAccess || policy.Kind == ExternalSandbox {
		return true
	}
	if policy.Kind == ReadOnly {
		return false
	}
	paths := ComputeAllowPaths(policy, policyCwd, commandCwd, nil)
	return IsWritable(paths, target)
}

// CheckCommand classifies command and returns the approval requirement
// under the gate's current policy, approval posture, and approved cache.
func (g *Gate) CheckCommand(command string) (Classification, Requirement) {
	g.mu.RLock()
	policy, approval := g.policy, g.approval
	g.mu.RUnlock()

	class := Classify(command)
	req := Evaluate(policy, approval, class, g.cache, command)
	return class, req
}

// ApproveCommand records command as approved for the remainder of the
// session, so a subsequent identical call skips the prompt.
func (g *Gate) ApproveCommand(command string) {
	g.cache.ApproveForSession(command)
}
