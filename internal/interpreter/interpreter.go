// internal/interpreter/interpreter.go

// Package interpreter converts natural language test steps into typed
// browser actions. The AI path is preferred when a language model is
// configured; keyword heuristics are the always-available floor. Both paths
// guarantee exactly one action per step.
package interpreter

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/testflow-cli/api/schemas"
)

// Interpreter is the facade over the AI and rule-based strategies.
type Interpreter struct {
	llm    schemas.LLMClient
	ai     *AIInterpreter
	rules  *RuleInterpreter
	logger *zap.Logger
}

// New builds an interpreter. The llm may be a disabled client; the rules
// then carry every sequence.
func New(llm schemas.LLMClient, logger *zap.Logger) *Interpreter {
	interpLogger := logger.Named("interpreter")
	return &Interpreter{
		llm:    llm,
		ai:     NewAIInterpreter(llm, interpLogger),
		rules:  NewRuleInterpreter(interpLogger),
		logger: interpLogger,
	}
}

// InterpretSteps converts the steps to an action sequence of the same
// length. The whole sequence falls back to rule-based parsing only when the
// AI path is unavailable or produced nothing at all; a partially degraded AI
// sequence (some steps as waits) is kept as is.
func (i *Interpreter) InterpretSteps(ctx context.Context, steps []schemas.TestStep) []schemas.InterpretedAction {
	var actions []schemas.InterpretedAction

	if i.llm.Enabled() {
		i.logger.Info("Using AI interpretation.", zap.Int("steps", len(steps)))
		actions = i.ai.InterpretSteps(ctx, steps)
		if len(actions) == 0 {
			i.logger.Warn("AI interpretation returned empty, falling back to rule-based parsing.")
		}
	} else {
		i.logger.Info("Using rule-based parsing (configure an LLM API key to enable AI).", zap.Int("steps", len(steps)))
	}

	if len(actions) == 0 {
		actions = i.rules.Interpret(steps)
	}

	// Execution needs at least one action to produce a meaningful record.
	if len(actions) == 0 {
		actions = append(actions, schemas.InterpretedAction{
			Params:      schemas.WaitParams{TimeoutMs: 1000},
			Description: "Default action",
			Reasoning:   "no steps to interpret",
		})
	}

	i.logger.Info("Interpretation complete.", zap.Int("actions", len(actions)))
	return actions
}
