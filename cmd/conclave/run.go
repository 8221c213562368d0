package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/conclave-run/conclave/internal/agentrun"
	"github.com/conclave-run/conclave/internal/config"
	"github.com/conclave-run/conclave/internal/debatelog"
	"github.com/conclave-run/conclave/internal/judge"
	"github.com/conclave-run/conclave/internal/orchestrator"
)

var (
	runConfigPath string
	runTimeout    time.Duration
	runCwd        string
	runJudgeModel string
)

var runCmd = &cobra.Command{
	Use:   "run [question]",
	Short: "Drive one debate to consensus",
	Long: `run loads a roster from --config, dispatches the question through
the propose/critique/revise/vote loop, and prints the round-by-round
summary and final outcome.`,
	Args: cobra.ExactArgs(1),
	RunE: runDebate,
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "conclave.yaml", "path to the run configuration")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "overall wall-clock budget for the run (0 = no deadline)")
	runCmd.Flags().StringVar(&runCwd, "cwd", "", "working directory passed to action-execute agents")
	runCmd.Flags().StringVar(&runJudgeModel, "judge-model", "", "model used by the optional tie-break judge")
	rootCmd.AddCommand(runCmd)
}

func runDebate(cmd *cobra.Command, args []string) error {
	question := args[0]

	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	registry := agentrun.NewRegistry()
	token := agentrun.NewCancelToken()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(cmd.OutOrStdout(), "\nInterrupt received, cancelling debate...")
		token.Cancel()
		// Phase one of the two-phase kill only: this signals every
		// registered process with SIGTERM. Phase two (the SIGKILL after
		// the grace period) is not issued here — each in-flight
		// agentrun.Invoke call polls token.Cancelled() on its own 50ms
		// ticker and runs its own SIGTERM-then-SIGKILL sequence once it
		// observes cancellation, so escalation happens per-process inside
		// Invoke rather than a second sweep from the registry.
		registry.KillAll(syscall.SIGTERM)
	}()

	runID := uuid.New().String()
	logger := debatelog.NewTerminalLogger(cmd.OutOrStdout())
	logger.BlockTitle(fmt.Sprintf("CONCLAVE RUN %s", runID))

	j := judge.New(os.Getenv("ANTHROPIC_API_KEY"), runJudgeModel)

	it := orchestrator.Iterator{
		Cfg:      cfg,
		Registry: registry,
		Token:    token,
		Logger:   logger,
		Timeout:  defaultAgentTimeout(cfg),
		Cwd:      runCwd,
		Judge:    j,
	}

	outcome := it.Run(ctx, question)
	printOutcome(cmd, outcome)

	if outcome.State == orchestrator.StateDoneFatal {
		return outcome.Err
	}
	return nil
}

// defaultAgentTimeout picks the per-call timeout Invoke falls back to when
// an agent's own TimeoutMS is absent or smaller (agentrun.Invoke already
// takes the max of the two, so a conservative ceiling is safe here).
func defaultAgentTimeout(cfg config.RunConfig) time.Duration {
	longest := 30 * time.Second
	for _, a := range cfg.Roster {
		ms := time.Duration(a.TimeoutMS) * time.Millisecond
		if ms > longest {
			longest = ms
		}
	}
	return longest
}

func printOutcome(cmd *cobra.Command, o orchestrator.Outcome) {
	out := cmd.OutOrStdout()
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow, color.Bold).SprintFunc()
	red := color.New(color.FgRed, color.Bold).SprintFunc()

	fmt.Fprintf(out, "\n%s\n\n", cyan("=== OUTCOME ==="))

	switch o.State {
	case orchestrator.StateDoneConsensus:
		fmt.Fprintf(out, "%s winner=%s score=%.2f\n", green("CONSENSUS"), o.WinnerID, o.Score)
		fmt.Fprintf(out, "\n%s\n", o.Answer.Proposal)
		if o.Executed {
			fmt.Fprintf(out, "\n%s\n%s\n", green("action executed:"), o.ExecOutput)
		}
	case orchestrator.StateDoneNoConsensus:
		fmt.Fprintf(out, "%s best=%s score=%.2f\n", yellow("NO CONSENSUS"), o.WinnerID, o.Score)
		fmt.Fprintf(out, "\n%s\n", o.Answer.Proposal)
	case orchestrator.StateDoneInterrupted:
		fmt.Fprintf(out, "%s\n", yellow("INTERRUPTED"))
	case orchestrator.StateDoneFatal:
		fmt.Fprintf(out, "%s %v\n", red("FATAL"), o.Err)
	}
}
