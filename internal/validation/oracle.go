// internal/validation/oracle.go

// Package validation decides whether a step's expected result is satisfied
// by the page the browser actually shows. The oracle prefers an AI judgment
// and falls back to a substring check; it never returns an error, because a
// broken oracle must read as a failed validation, not a crashed run.
package validation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/testflow-cli/api/schemas"
	"github.com/xkilldash9x/testflow-cli/internal/config"
	"github.com/xkilldash9x/testflow-cli/internal/interpreter"
	"github.com/xkilldash9x/testflow-cli/internal/llmutil"
)

const validateSystemPrompt = `You are an expert test validation engineer. Your job is to determine if an expected result is present on a web page.

Given:
1. An expected result description (natural language)
2. The current page content (text from the page)
3. Context about what action was just performed

Determine if the expected result is satisfied by the current page state.

Think like a human tester:
- If expected says "field X should show value Y", check if field X exists and shows Y
- If expected says "dropdown should have option Z", check if that option is present
- Be intelligent about variations (e.g., "longitudinal welding" vs "Longitudinal Welding")
- Consider context - if we just filled a field, the value should be there
- Ignore minor formatting differences (spaces, case, punctuation)

Return ONLY a valid JSON object:
{
  "passed": true/false,
  "confidence": 0.0-1.0,
  "message": "Clear explanation of validation result",
  "reasoning": "Your step-by-step reasoning",
  "extracted_value": "What value/text you found (if applicable)"
}

Be strict but reasonable - the page must actually show what's expected.`

// Context describes the step whose outcome is being judged.
type Context struct {
	ActionPerformed schemas.ActionKind
	StepDescription string
}

// Oracle is the hybrid AI/rule validation engine.
type Oracle struct {
	llm    schemas.LLMClient
	cache  *Cache
	logger *zap.Logger
	cfg    config.ValidationConfig
}

// NewOracle builds the oracle. The llm may be a disabled client.
func NewOracle(llm schemas.LLMClient, cfg config.ValidationConfig, logger *zap.Logger) *Oracle {
	return &Oracle{
		llm:    llm,
		cache:  NewCache(cfg.CacheSize),
		logger: logger.Named("validation"),
		cfg:    cfg,
	}
}

// Validate judges the expected result against the page content. An empty
// expected result passes trivially with full confidence.
func (o *Oracle) Validate(ctx context.Context, expected, pageContent string, vctx Context) schemas.ValidationResult {
	expectedText, _ := interpreter.StripHTML(expected)
	if strings.TrimSpace(expectedText) == "" {
		return schemas.ValidationResult{
			Passed:     true,
			Confidence: 1.0,
			Message:    "No expected result to validate",
			Reasoning:  "step defines no expected result",
		}
	}

	key := Key(expectedText, pageContent)
	if cached, ok := o.cache.Get(key); ok {
		o.logger.Debug("Validation cache hit.", zap.Bool("passed", cached.Passed))
		return cached
	}

	var result schemas.ValidationResult
	if o.llm.Enabled() {
		aiResult, err := o.validateWithAI(ctx, expectedText, pageContent, vctx)
		if err != nil {
			o.logger.Error("AI validation failed, using substring fallback.", zap.Error(err))
			result = substringMatch(expectedText, pageContent)
			result.Confidence = 0.3
			result.Message = fmt.Sprintf("AI validation error, used fallback: %v", err)
			result.Reasoning = "Fallback to substring match due to AI error"
		} else {
			result = *aiResult
		}
	} else {
		result = substringMatch(expectedText, pageContent)
	}

	if result.Passed {
		o.logger.Info("Validation passed.",
			zap.Float64("confidence", result.Confidence),
			zap.String("message", result.Message))
	} else {
		o.logger.Warn("Validation failed.",
			zap.Float64("confidence", result.Confidence),
			zap.String("message", result.Message))
	}
	if result.Reasoning != "" {
		o.logger.Debug("Validation reasoning.", zap.String("reasoning", result.Reasoning))
	}

	o.cache.Put(key, result)
	return result
}

func (o *Oracle) validateWithAI(ctx context.Context, expected, pageContent string, vctx Context) (*schemas.ValidationResult, error) {
	content := pageContent
	if max := o.cfg.MaxPageContent; max > 0 && len(content) > max {
		content = content[:max]
	}

	userPrompt := fmt.Sprintf(`Expected Result: %s

Page Content:
%s

Context:
- Last Action: %s
- Step Description: %s

Does the page satisfy this expected result? Analyze carefully and respond.`,
		expected, content, vctx.ActionPerformed, vctx.StepDescription)

	raw, err := o.llm.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: validateSystemPrompt,
		UserPrompt:   userPrompt,
		Options: schemas.GenerationOptions{
			Temperature:     0.1,
			ForceJSONFormat: true,
			MaxTokens:       500,
		},
	})
	if err != nil {
		return nil, err
	}

	return llmutil.ParseJSONResponse[schemas.ValidationResult](raw)
}

// substringMatch is the rule-based floor: a case-insensitive containment
// check over the page content.
func substringMatch(expected, pageContent string) schemas.ValidationResult {
	expectedClean := strings.ToLower(strings.TrimSpace(expected))
	pageClean := strings.ToLower(strings.TrimSpace(pageContent))
	passed := strings.Contains(pageClean, expectedClean)

	message := "Expected result validated successfully"
	confidence := 0.5
	if !passed {
		message = fmt.Sprintf("Expected result not found: %s", truncateForMessage(expected, 100))
		confidence = 0.3
	}
	return schemas.ValidationResult{
		Passed:     passed,
		Confidence: confidence,
		Message:    message,
		Reasoning:  "Rule-based validation (simple substring match)",
	}
}

func truncateForMessage(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// FormatSnapshot renders a page snapshot as the canonical text block both
// validation paths consume.
func FormatSnapshot(snap *schemas.PageSnapshot) string {
	if snap == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("Visible Text:\n")
	b.WriteString(snap.VisibleText)
	b.WriteString("\n\nForm Fields:\n")
	for _, field := range snap.FormFields {
		label := field.Label
		if label == "" {
			label = "Unlabeled"
		}
		value := field.Value
		if value == "" {
			value = "empty"
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", label, field.Type, value)
	}

	b.WriteString("\nDropdowns:\n")
	for _, dd := range snap.Dropdowns {
		label := dd.Label
		if label == "" {
			label = dd.Name
		}
		if label == "" {
			label = "Unlabeled"
		}
		selected := dd.SelectedText
		if selected == "" {
			selected = "None"
		}
		options := make([]string, 0, len(dd.Options))
		for _, opt := range dd.Options {
			options = append(options, opt.Text)
		}
		fmt.Fprintf(&b, "- %s dropdown:\n", label)
		fmt.Fprintf(&b, "  Selected: %s\n", selected)
		fmt.Fprintf(&b, "  Options: %s\n", strings.Join(options, ", "))
	}

	fmt.Fprintf(&b, "\nButtons: %s\n", strings.Join(snap.Buttons, ", "))
	return b.String()
}
