// internal/testcase/testrail.go

// Package testcase fetches manual test cases from TestRail.
package testcase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/testflow-cli/api/schemas"
	"github.com/xkilldash9x/testflow-cli/internal/config"
)

// ErrNotConfigured reports missing TestRail credentials. Callers can surface
// it as a configuration problem rather than a fetch failure.
var ErrNotConfigured = errors.New("testrail credentials not configured")

// TestRailSource fetches test cases through the TestRail v2 API.
type TestRailSource struct {
	cfg        config.TestRailConfig
	httpClient *http.Client
	logger     *zap.Logger
}

var _ schemas.TestCaseSource = (*TestRailSource)(nil)

// NewTestRailSource creates the source.
func NewTestRailSource(cfg config.TestRailConfig, logger *zap.Logger) *TestRailSource {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TestRailSource{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("testrail"),
	}
}

// caseResponse is the subset of the get_case payload the pipeline needs.
// TestRail has stored its steps under three different field names over the
// years; all three are accepted.
type caseResponse struct {
	ID                   json.Number     `json:"id"`
	Title                string          `json:"title"`
	CustomStepsSeparated json.RawMessage `json:"custom_steps_separated"`
	CustomSteps          json.RawMessage `json:"custom_steps"`
	Steps                json.RawMessage `json:"steps"`
}

// wireStep tolerates the step field aliases seen in the wild.
type wireStep struct {
	Content        string `json:"content"`
	Description    string `json:"description"`
	Step           string `json:"step"`
	Expected       string `json:"expected"`
	ExpectedResult string `json:"expected_result"`
}

// FetchTestCase retrieves one test case by ID, retrying transient API
// failures with exponential backoff.
func (s *TestRailSource) FetchTestCase(ctx context.Context, caseID string) (*schemas.TestCase, error) {
	if s.cfg.URL == "" || s.cfg.Username == "" || s.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	url := fmt.Sprintf("%s/index.php?/api/v2/get_case/%s", strings.TrimRight(s.cfg.URL, "/"), caseID)
	s.logger.Debug("Fetching test case.", zap.String("case_id", caseID), zap.String("url", url))

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 1 * time.Minute

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.SetBasicAuth(s.cfg.Username, s.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			s.logger.Warn("TestRail request failed, retrying...", zap.Error(err))
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			s.logger.Warn("TestRail returned retryable status.", zap.Int("status", resp.StatusCode))
			return fmt.Errorf("testrail API status %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("testrail API status %d: %s", resp.StatusCode, body))
		}
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("failed to fetch test case %s: %w", caseID, err)
	}

	var payload caseResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode test case %s: %w", caseID, err)
	}

	title := payload.Title
	if title == "" {
		title = fmt.Sprintf("Test Case %s", caseID)
	}

	steps := decodeSteps(payload.CustomStepsSeparated)
	if len(steps) == 0 {
		steps = decodeSteps(payload.CustomSteps)
	}
	if len(steps) == 0 {
		steps = decodeSteps(payload.Steps)
	}

	s.logger.Info("Test case fetched.",
		zap.String("case_id", caseID),
		zap.String("title", title),
		zap.Int("steps", len(steps)))

	return &schemas.TestCase{
		ID:    caseID,
		Title: title,
		Steps: steps,
	}, nil
}

// decodeSteps accepts either a structured step list or a plain text blob.
func decodeSteps(raw json.RawMessage) []schemas.TestStep {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var wire []wireStep
	if err := json.Unmarshal(raw, &wire); err == nil {
		steps := make([]schemas.TestStep, 0, len(wire))
		for _, w := range wire {
			content := w.Content
			if content == "" {
				content = w.Description
			}
			if content == "" {
				content = w.Step
			}
			expected := w.Expected
			if expected == "" {
				expected = w.ExpectedResult
			}
			steps = append(steps, schemas.TestStep{Content: content, Expected: expected})
		}
		return steps
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil && strings.TrimSpace(text) != "" {
		return []schemas.TestStep{{Content: text}}
	}
	return nil
}
