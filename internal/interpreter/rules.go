// internal/interpreter/rules.go
package interpreter

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/testflow-cli/api/schemas"
)

var (
	// fullURLRegex matches an absolute URL anywhere in the raw step text.
	fullURLRegex = regexp.MustCompile(`https?://[^\s<>"]+`)
	// relPathRegex matches a relative path like /abp or /calibration.
	relPathRegex = regexp.MustCompile(`/[a-zA-Z0-9_-]+`)
	// baseURLRegex extracts protocol://host from an absolute URL.
	baseURLRegex = regexp.MustCompile(`^(https?://[^/]+)`)
	// quotedTargetRegex extracts a quoted or backticked element label.
	quotedTargetRegex = regexp.MustCompile("[`\"']([^`\"']+)[`\"']")
)

// RuleInterpreter converts steps to actions with keyword heuristics. It is
// the deterministic floor under the AI interpreter: always available, never
// wrong about its own rules, and deliberately conservative. A step it cannot
// classify becomes a wait so the sequence keeps its one-to-one shape.
type RuleInterpreter struct {
	logger *zap.Logger
}

// NewRuleInterpreter creates the rule-based fallback interpreter.
func NewRuleInterpreter(logger *zap.Logger) *RuleInterpreter {
	return &RuleInterpreter{logger: logger.Named("rules")}
}

// Interpret maps every step to exactly one action.
func (r *RuleInterpreter) Interpret(steps []schemas.TestStep) []schemas.InterpretedAction {
	actions := make([]schemas.InterpretedAction, 0, len(steps))
	baseURL := ""

	for idx, step := range steps {
		cleanText, links := StripHTML(step.Content)
		lower := strings.ToLower(cleanText)

		action := schemas.InterpretedAction{
			Params:       schemas.WaitParams{TimeoutMs: 1000},
			Description:  truncate(cleanText, 100),
			Expected:     step.Expected,
			Reasoning:    "rule-based parsing",
			OriginalStep: step.Content,
		}

		switch {
		case strings.Contains(lower, "navigate") || strings.Contains(lower, "open") || strings.Contains(lower, "go to"):
			url := r.resolveURL(step.Content, cleanText, links, baseURL)
			if url == "" {
				r.logger.Debug("Navigation step without a URL, using wait.", zap.Int("step", idx+1))
				break
			}
			// The first absolute navigation pins the base URL for the rest
			// of the sequence.
			if baseURL == "" && strings.HasPrefix(url, "http") {
				if m := baseURLRegex.FindStringSubmatch(url); m != nil {
					baseURL = m[1]
					r.logger.Info("Base URL set.", zap.String("base_url", baseURL))
				}
			}
			action.Params = schemas.NavigateParams{URL: url}
			r.logger.Debug("Navigate action.", zap.Int("step", idx+1), zap.String("url", url))

		case strings.Contains(lower, "click") || strings.Contains(lower, "select"):
			if m := quotedTargetRegex.FindStringSubmatch(cleanText); m != nil {
				action.Params = schemas.ClickParams{Text: m[1]}
				r.logger.Debug("Click action.", zap.Int("step", idx+1), zap.String("text", m[1]))
			} else {
				r.logger.Debug("Click step without a quoted target, using wait.", zap.Int("step", idx+1))
			}

		default:
			r.logger.Debug("Generic step, using wait.", zap.Int("step", idx+1))
		}

		actions = append(actions, action)
	}

	return actions
}

// resolveURL finds the navigation target: an HTML link wins, then an absolute
// URL in the raw text, then a relative path joined with the base URL when one
// is known.
func (r *RuleInterpreter) resolveURL(rawText, cleanText string, links []string, baseURL string) string {
	if len(links) > 0 {
		return links[0]
	}
	if url := fullURLRegex.FindString(rawText); url != "" {
		return url
	}
	if path := relPathRegex.FindString(cleanText); path != "" {
		if baseURL != "" {
			return strings.TrimRight(baseURL, "/") + path
		}
		return path
	}
	return ""
}
