package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gobeaver/routekit"
)

var runFlags struct {
	report   string
	metrics  string
	noVerify bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sweep the source directory once",
	RunE:  runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.report, "report", "", "Write an xlsx run report to this path")
	f.StringVar(&runFlags.metrics, "metrics", "", "Write Prometheus textfile metrics to this path")
	f.BoolVar(&runFlags.noVerify, "no-verify", false, "Skip checksum verification of secondary copies")
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	if f.Changed("report") {
		cfg.ReportFile = runFlags.report
	}
	if f.Changed("metrics") {
		cfg.MetricsFile = runFlags.metrics
	}
	if runFlags.noVerify {
		cfg.VerifyCopies = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	closeLog, err := initLogging(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	s, err := newSweeper(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	rep := s.sweep(cmd.Context())
	printSummary(cmd, rep)

	if n := rep.Failures(); n > 0 {
		return fmt.Errorf("%d of %d items need attention", n, len(rep.Items))
	}
	return cmd.Context().Err()
}

func printSummary(cmd *cobra.Command, rep *routekit.RunReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:      %s\n", rep.RunID)
	fmt.Fprintf(out, "Source:   %s\n", rep.SourceDir)
	fmt.Fprintf(out, "Items:    %d\n", len(rep.Items))
	for _, o := range routekit.Outcomes {
		if n := rep.Counts[o]; n > 0 {
			fmt.Fprintf(out, "  %-18s %d\n", o, n)
		}
	}
	for _, it := range rep.Items {
		if it.Outcome.Failed() {
			fmt.Fprintf(out, "! %s %s: %s %s\n", it.UseCase, it.Source, it.Outcome, it.Detail)
		}
	}
}
