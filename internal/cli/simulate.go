package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/andres-erbsen/clock"
	"github.com/rovshanmuradov/launchpad/internal/engine"
	"github.com/rovshanmuradov/launchpad/internal/scenario"
	"github.com/rovshanmuradov/launchpad/internal/utils/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <scenario.yaml>",
	Short: "Replay a launch scenario on a simulated clock",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimulate,
}

var metricsFile string

func init() {
	simulateCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file when done")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	env, err := setup(ctx, false)
	if err != nil {
		return err
	}
	defer env.close()

	sc, err := scenario.NewLoader(env.log.Logger).Load(args[0])
	if err != nil {
		return err
	}

	mock := clock.NewMock()
	eng, err := engine.New(ctx, env.cfg, mock, env.store, env.log.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(ctx); err != nil {
			env.log.LogError("Failed to stop engine", err)
		}
	}()

	collector := metrics.NewCollector()
	eng.Instrument(collector)

	report, runErr := scenario.NewRunner(eng, mock, env.log.Logger).Run(ctx, sc)
	if report != nil {
		printReport(cmd.OutOrStdout(), report)
	}
	if metricsFile != "" {
		if err := collector.WriteFile(metricsFile); err != nil {
			env.log.LogError("Failed to write metrics", err, zap.String("path", metricsFile))
		}
	}
	if runErr != nil {
		return runErr
	}
	env.named("simulate").Info("Simulation finished",
		zap.String("scenario", report.Name),
		zap.Int("launches", len(eng.Launches())))
	return nil
}

func printReport(out io.Writer, report *scenario.Report) {
	fmt.Fprintf(out, "Scenario: %s\n\n", report.Name)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tTIME\tOP\tAMOUNT\tERROR")
	for _, s := range report.Steps {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", s.Index, s.Time.Format("2006-01-02 15:04:05"), s.Op, s.Amount, s.Error)
	}
	_ = w.Flush()

	if len(report.Tokens) > 0 {
		fmt.Fprintln(out, "\nTokens:")
		for label, addr := range report.Tokens {
			fmt.Fprintf(out, "  %-10s %s\n", label, addr)
		}
	}
	if len(report.Balances) > 0 {
		fmt.Fprintln(out, "\nFinal asset balances:")
		for name, bal := range report.Balances {
			fmt.Fprintf(out, "  %-10s %d\n", name, bal)
		}
	}
}
