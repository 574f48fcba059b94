package tool

import (
	"github.com/coreturn/coreturn/internal/sandbox"
	"github.com/coreturn/coreturn/internal/tool/ui"
)

// gate is the active sandbox gate tools consult before writing to the
// filesystem. It defaults to nil, which skips the check entirely — set
// by the scheduler for a real turn; left unset in tests and any
// standalone tool invocation that predates sandbox enforcement.
var gate *sandbox.Gate

// SetSandboxGate installs the gate tool handlers consult for
// workspace-write enforcement. Passing nil disables enforcement.
func SetSandboxGate(g *sandbox.Gate) {
	gate = g
}

// checkWritable returns a non-nil error result if the active gate denies
// a write to path from cwd. Callers should return it immediately.
func checkWritable(toolName, cwd, path string) (ui.ToolResult, bool) {
	if gate == nil {
		return ui.ToolResult{}, false
	}
	if gate.CheckWrite(cwd, path) {
		return ui.ToolResult{}, false
	}
	return ui.NewErrorResult(toolName, "refusing to write outside the sandboxed workspace: "+path), true
}
