// -- cmd/run.go --
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/testflow-cli/api/schemas"
	"github.com/xkilldash9x/testflow-cli/internal/browser"
	"github.com/xkilldash9x/testflow-cli/internal/executor"
	"github.com/xkilldash9x/testflow-cli/internal/interpreter"
	"github.com/xkilldash9x/testflow-cli/internal/llmclient"
	"github.com/xkilldash9x/testflow-cli/internal/observability"
	"github.com/xkilldash9x/testflow-cli/internal/store"
	"github.com/xkilldash9x/testflow-cli/internal/testcase"
	"github.com/xkilldash9x/testflow-cli/internal/validation"
)

var runParallel int

var runCmd = &cobra.Command{
	Use:   "run <case-id> [case-id...]",
	Short: "Execute TestRail test cases in the browser.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runTestCases(args)
	},
}

func init() {
	runCmd.Flags().IntVarP(&runParallel, "parallel", "p", 1, "number of test cases to execute concurrently")
	rootCmd.AddCommand(runCmd)
}

func runTestCases(caseIDs []string) error {
	logger := observability.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// LLM provider; a missing API key yields the disabled client and the
	// rule-based strategies carry the run.
	llm, err := llmclient.NewClient(cfg.LLM, logger)
	if err != nil {
		return err
	}
	defer llm.Close()

	source := testcase.NewTestRailSource(cfg.TestRail, logger)

	var runStore schemas.RunStore
	if cfg.Database.DSN != "" {
		pool, poolErr := pgxpool.New(ctx, cfg.Database.DSN)
		if poolErr != nil {
			return fmt.Errorf("failed to create database pool: %w", poolErr)
		}
		defer pool.Close()

		st, storeErr := store.New(ctx, pool, logger)
		if storeErr != nil {
			return storeErr
		}
		if migrateErr := st.Migrate(ctx); migrateErr != nil {
			return migrateErr
		}
		runStore = st
	} else {
		logger.Info("No database DSN configured; run persistence disabled.")
	}

	browsers := browser.NewManager(cfg.Browser, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if shutdownErr := browsers.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("Browser shutdown reported an error.", zap.Error(shutdownErr))
		}
	}()

	hub := executor.NewProgressHub(logger)
	hub.Register(executor.NewLogSink(logger))

	exec := executor.New(
		source,
		runStore,
		interpreter.New(llm, logger),
		validation.NewOracle(llm, cfg.Validation, logger),
		browsers,
		hub,
		logger,
	)

	parallel := runParallel
	if parallel < 1 {
		parallel = 1
	}

	var mu sync.Mutex
	failed := 0

	g, runCtx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for _, caseID := range caseIDs {
		g.Go(func() error {
			result, runErr := exec.Run(runCtx, caseID)
			if runErr != nil {
				return fmt.Errorf("case %s: %w", caseID, runErr)
			}

			mu.Lock()
			defer mu.Unlock()
			if result.Status == schemas.RunFailed {
				failed++
			}
			printResult(result)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d test cases failed", failed, len(caseIDs))
	}
	return nil
}

func printResult(result *executor.Result) {
	fmt.Printf("\n%s: %s\n", result.TestName, result.Status)
	fmt.Printf("Steps: %d total, %d passed, %d failed\n", result.TotalSteps, result.PassedSteps, result.FailedSteps)
	fmt.Printf("Duration: %s\n", result.Duration.Round(time.Millisecond))
	if result.ScreenshotsPath != "" {
		fmt.Printf("Screenshots: %s\n", result.ScreenshotsPath)
	}
}
