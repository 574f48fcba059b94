package agent

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/coreturn/coreturn/internal/client"
	"github.com/coreturn/coreturn/internal/core"
	"github.com/coreturn/coreturn/internal/history"
	"github.com/coreturn/coreturn/internal/log"
	"github.com/coreturn/coreturn/internal/message"
	"github.com/coreturn/coreturn/internal/permission"
	"github.com/coreturn/coreturn/internal/provider"
	"github.com/coreturn/coreturn/internal/sandbox"
	"github.com/coreturn/coreturn/internal/system"
	"github.com/coreturn/coreturn/internal/task"
	"github.com/coreturn/coreturn/internal/tool"
)

// Executor runs agent LLM loops by driving a nested core.Scheduler, the
// same Turn Scheduler the parent conversation uses.
type Executor struct {
	provider      provider.LLMProvider
	cwd           string
	parentModelID string // Parent conversation's model ID (used by IdentityInherit)
	sandbox       *sandbox.Gate
}

// NewExecutor creates a new agent executor.
// parentModelID is the model used by the parent conversation (for inheritance).
// Subagents get their own sandbox gate, writable-rooted at cwd, so a
// DontAsk agent can mutate its own workspace but a plan-mode or default
// agent still has Bash commands classified and gated the same way the
// parent conversation does.
func NewExecutor(llmProvider provider.LLMProvider, cwd string, parentModelID string) *Executor {
	return &Executor{
		provider:      llmProvider,
		cwd:           cwd,
		parentModelID: parentModelID,
		sandbox: sandbox.NewGate(
			sandbox.Policy{Kind: sandbox.WorkspaceWrite, WritableRoots: []string{cwd}},
			sandbox.OnRequest,
			cwd,
		),
	}
}

// GetParentModelID returns the parent model ID
func (e *Executor) GetParentModelID() string {
	return e.parentModelID
}

// Run executes an agent request and returns the result. For background
// agents, this is called from a goroutine (see RunBackground).
func (e *Executor) Run(ctx context.Context, req AgentRequest) (*AgentResult, error) {
	start := time.Now()

	config, ok := DefaultRegistry.Get(req.Agent)
	if !ok {
		return nil, fmt.Errorf("unknown agent type: %s", req.Agent)
	}

	modelID := e.resolveModelID(config, req.Model)

	maxTurns := config.MaxTurns
	if req.MaxTurns > 0 {
		maxTurns = req.MaxTurns
	}
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	// A MaxTurns of 0 in the request or the config means "not set" and has
	// already been replaced by DefaultMaxTurns above, so this early return
	// is not reached; a zero-turn run cannot be requested.
	if req.MaxTurns == 0 && maxTurns == 0 {
		return &AgentResult{AgentName: config.Name, Success: true, Duration: time.Since(start)}, nil
	}

	log.Logger().Info("Starting agent execution",
		zap.String("agent", config.Name),
		zap.String("description", req.Description),
		zap.Int("maxTurns", maxTurns),
	)

	loop, sched := e.buildScheduler(config, req, modelID)

	runCtx, cancelRun := e.withTimeBudget(ctx, config, sched)
	defer cancelRun()

	input := core.UserInput{Text: req.Prompt}
	var lastResult *core.Result
	turn := 0

	for turn < maxTurns {
		select {
		case <-runCtx.Done():
			return e.cancelledResult(config, loop, turn, start, runCtx.Err()), runCtx.Err()
		default:
		}

		result, err := sched.RunTurn(runCtx, input)
		if err != nil {
			if runCtx.Err() != nil {
				return e.cancelledResult(config, loop, turn, start, runCtx.Err()), runCtx.Err()
			}
			return nil, fmt.Errorf("agent turn failed: %w", err)
		}
		turn++
		lastResult = result
		input = core.UserInput{} // subsequent turns continue the same history, no new user message

		if req.OnProgress != nil {
			e.reportTurnProgress(req.OnProgress, sched, turn)
		}

		if result.StopReason == "end_turn" {
			log.Logger().Info("Agent completed",
				zap.Int("turns", turn),
				zap.Int("inputTokens", loop.Tokens().InputTokens),
				zap.Int("outputTokens", loop.Tokens().OutputTokens),
			)
			return &AgentResult{
				AgentName:  config.Name,
				Success:    true,
				Content:    result.Content,
				Messages:   result.Messages,
				TurnCount:  turn,
				TokenUsage: loop.Tokens(),
				Duration:   time.Since(start),
			}, nil
		}
	}

	log.Logger().Warn("Agent reached max turns", zap.Int("maxTurns", maxTurns))

	content := ""
	var messages []message.Message
	if lastResult != nil {
		content = lastResult.Content
		messages = lastResult.Messages
	}
	return &AgentResult{
		AgentName:  config.Name,
		Success:    false,
		Content:    content,
		Messages:   messages,
		TurnCount:  turn,
		TokenUsage: loop.Tokens(),
		Duration:   time.Since(start),
		Error:      fmt.Sprintf("reached maximum turns (%d)", maxTurns),
	}, nil
}

func (e *Executor) cancelledResult(config *AgentConfig, loop *core.Loop, turn int, start time.Time, err error) *AgentResult {
	return &AgentResult{
		AgentName:  config.Name,
		Success:    false,
		TurnCount:  turn,
		TokenUsage: loop.Tokens(),
		Duration:   time.Since(start),
		Error:      fmt.Sprintf("agent cancelled: %v", err),
	}
}

// reportTurnProgress summarizes the tool calls the just-finished turn
// dispatched, using the tracked history rather than re-deriving it from
// a hand-rolled per-call callback inside the tool dispatch path.
func (e *Executor) reportTurnProgress(onProgress ProgressCallback, sched *core.Scheduler, turn int) {
	snap := sched.History().Snapshot()
	for i := len(snap) - 1; i >= 0; i-- {
		msg := snap[i].Message
		if msg.Role != message.RoleAssistant {
			continue
		}
		if len(msg.ToolCalls) == 0 {
			return
		}
		for _, tc := range msg.ToolCalls {
			params, _ := message.ParseToolInput(tc.Input)
			onProgress(e.formatToolProgress(tc.Name, params))
		}
		return
	}
}

// buildScheduler constructs a core.Loop (tool set, permission mode, sandbox
// gate) scoped to this agent's config and wraps it in a Scheduler, the
// same Turn Scheduler the parent conversation drives.
func (e *Executor) buildScheduler(config *AgentConfig, req AgentRequest, modelID string) (*core.Loop, *core.Scheduler) {
	c := &client.Client{Provider: e.provider, Model: modelID}

	sys := &system.System{
		Client: c,
		Cwd:    e.cwd,
		Extra:  []string{e.buildAgentPromptExtra(config, req)},
	}
	if config.PermissionMode == PermissionPlan {
		sys.PlanMode = true
	}

	toolSet := &tool.Set{Access: e.toolAccessConfig(config)}

	loop := &core.Loop{
		System:              sys,
		Client:              c,
		Tool:                toolSet,
		Permission:          e.permissionChecker(config),
		Sandbox:             e.sandbox,
		AutoApproveCommands: config.PermissionMode == PermissionDontAsk,
	}

	hist := history.New()
	if req.ForkContext && len(req.ParentMessages) > 0 {
		hist.RecordBatch("fork", history.Source{Kind: history.SourceAssistant}, req.ParentMessages)
	}

	sched := core.NewScheduler(loop, hist)
	return loop, sched
}

// toolAccessConfig converts the agent's ToolAccess config into the tool
// package's own allow/deny shape.
func (e *Executor) toolAccessConfig(config *AgentConfig) *tool.AccessConfig {
	mode := tool.AccessDenylist
	if config.Tools.Mode == ToolAccessAllowlist {
		mode = tool.AccessAllowlist
	}
	return &tool.AccessConfig{Mode: mode, Allow: config.Tools.Allow, Deny: config.Tools.Deny}
}

// permissionChecker maps an agent's PermissionMode onto a permission.Checker.
// There is no interactive approval channel for subagents, so AcceptEdits
// and the default mode both auto-permit here; Bash commands still pass
// through the Loop's Sandbox gate, which is where real approval-worthy
// commands are actually rejected rather than silently allowed.
func (e *Executor) permissionChecker(config *AgentConfig) permission.Checker {
	switch config.PermissionMode {
	case PermissionPlan:
		return permission.ReadOnly()
	default:
		return permission.PermitAll()
	}
}

// withTimeBudget applies config.MaxTimeSeconds/GracePeriodSeconds: the
// scheduler's in-flight turn is asked to cancel (synthesizing cancelled
// tool results) once MaxTimeSeconds elapses, and the context is hard
// cancelled once the grace period on top of that also elapses.
func (e *Executor) withTimeBudget(ctx context.Context, config *AgentConfig, sched *core.Scheduler) (context.Context, context.CancelFunc) {
	if config.MaxTimeSeconds <= 0 {
		return context.WithCancel(ctx)
	}

	grace := config.GracePeriodSeconds
	hardCtx, hardCancel := context.WithTimeout(ctx,
		time.Duration(config.MaxTimeSeconds+grace)*time.Second)

	timer := time.AfterFunc(time.Duration(config.MaxTimeSeconds)*time.Second, func() {
		sched.Cancel()
	})
	cancel := func() {
		timer.Stop()
		hardCancel()
	}
	return hardCtx, cancel
}

// resolveModelID determines the model to use via ModelIdentity resolution:
// an explicit request override wins outright; otherwise the agent config's
// Model string (parsed as a Role/Spec/Inherit identity) resolves against
// the parent conversation's model, falling back to FallbackModel.
func (e *Executor) resolveModelID(config *AgentConfig, requestModel string) string {
	if requestModel != "" {
		return requestModel
	}
	identity := ParseModelIdentity(config.Model)
	return identity.Resolve(e.parentModelID, FallbackModel)
}

// formatToolProgress creates a progress message for a tool call
func (e *Executor) formatToolProgress(toolName string, params map[string]any) string {
	switch toolName {
	case "Read":
		if path, ok := params["file_path"].(string); ok {
			return fmt.Sprintf("Reading: %s", path)
		}
	case "Glob":
		if pattern, ok := params["pattern"].(string); ok {
			return fmt.Sprintf("Finding: %s", pattern)
		}
	case "Grep":
		if pattern, ok := params["pattern"].(string); ok {
			return fmt.Sprintf("Searching: %s", pattern)
		}
	case "WebFetch":
		if url, ok := params["url"].(string); ok {
			return fmt.Sprintf("Fetching: %s", url)
		}
	case "WebSearch":
		if query, ok := params["query"].(string); ok {
			return fmt.Sprintf("Searching web: %s", query)
		}
	case "Bash":
		if cmd, ok := params["command"].(string); ok {
			if len(cmd) > 50 {
				cmd = cmd[:47] + "..."
			}
			return fmt.Sprintf("Running: %s", cmd)
		}
	}
	return fmt.Sprintf("Executing: %s", toolName)
}

// buildAgentPromptExtra builds the agent-specific system prompt section.
// Environment/platform/date are assembled by system.BuildPrompt itself;
// this only contributes the agent identity, task, mode, and custom
// instructions as one more Extra section.
func (e *Executor) buildAgentPromptExtra(config *AgentConfig, req AgentRequest) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## Agent Type: %s\n", config.Name))
	sb.WriteString(config.GetSystemPrompt())
	if config.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(config.Description)
	}
	sb.WriteString("\n\n## Your Task\n")
	sb.WriteString(req.Prompt)
	sb.WriteString("\n\n")

	switch config.PermissionMode {
	case PermissionPlan:
		sb.WriteString("## Mode: Read-Only\n")
		sb.WriteString("You are in read-only mode. Do not attempt to modify any files.\n\n")
	case PermissionDontAsk:
		sb.WriteString("## Mode: Autonomous\n")
		sb.WriteString("You have full autonomy to complete your task, including running commands and editing files.\n\n")
	}

	sb.WriteString("## Guidelines\n")
	sb.WriteString("- Focus on completing your assigned task efficiently\n")
	sb.WriteString("- Return a clear summary when your task is complete\n")
	sb.WriteString("- If you encounter errors, report them clearly\n")
	sb.WriteString(fmt.Sprintf("- Platform: %s\n", runtime.GOOS))

	return sb.String()
}

// RunBackground executes an agent in the background and returns the task
// tracking it.
func (e *Executor) RunBackground(req AgentRequest) (*task.AgentTask, error) {
	config, ok := DefaultRegistry.Get(req.Agent)
	if !ok {
		return nil, fmt.Errorf("unknown agent type: %s", req.Agent)
	}

	ctx, cancel := context.WithCancel(context.Background())

	agentTask := task.NewAgentTask(task.GenerateID(), config.Name, req.Description, ctx, cancel)
	task.DefaultManager.RegisterTask(agentTask)

	req.OnProgress = func(msg string) {
		agentTask.AppendProgress(msg)
	}

	go func() {
		defer cancel()

		result, err := e.Run(ctx, req)
		if err != nil {
			agentTask.AppendOutput([]byte(fmt.Sprintf("Error: %v\n", err)))
			agentTask.Complete(err)
			return
		}

		if result.Content != "" {
			agentTask.AppendOutput([]byte(result.Content))
		}
		agentTask.UpdateProgress(result.TurnCount, result.TokenUsage.TotalTokens)

		if result.Success {
			agentTask.Complete(nil)
		} else {
			agentTask.Complete(fmt.Errorf("%s", result.Error))
		}
	}()

	return agentTask, nil
}
