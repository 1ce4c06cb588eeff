package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/gobeaver/routekit"
)

var validateFlags struct {
	date string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the use-case file and show where a sample date would go",
	RunE:  runValidate,
}

func init() {
	f := validateCmd.Flags()
	f.StringVar(&validateFlags.date, "date", "", "Sample date for the preview, YYYY-MM-DD (default today)")
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	sample := time.Now()
	if validateFlags.date != "" {
		sample, err = time.Parse(time.DateOnly, validateFlags.date)
		if err != nil {
			return fmt.Errorf("sample date: %w", err)
		}
	}

	useCases, err := routekit.LoadUseCases(cfg.UseCases)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d use cases\n", cfg.UseCases, len(useCases))
	for _, uc := range useCases {
		printUseCase(out, uc, sample)
	}
	return nil
}

func printUseCase(out io.Writer, uc *routekit.UseCase, sample time.Time) {
	fmt.Fprintf(out, "\n%s\n", uc.Name)

	if in := uc.Inputs; in != nil {
		fmt.Fprintf(out, "  inputs   %s\n", in.Pattern)
		if in.DateFormat != nil {
			fmt.Fprintf(out, "  date     %s\n", in.DateFormat)
		}
		for i, d := range in.Destinations {
			role := "copy"
			if i == 0 {
				role = "move"
			}
			fmt.Fprintf(out, "  %-8s %s -> %s\n", role, d.Template, d.Template.Resolve(sample))
			if d.Transform != nil && d.Transform.OffsetDays != 0 {
				fmt.Fprintf(out, "           renamed %+d days as %s\n", d.Transform.OffsetDays, d.Transform.Format)
			}
		}
	}

	if z := uc.Zip; z != nil {
		fmt.Fprintf(out, "  zip      %s\n", z.Pattern)
		if z.DateFormat != nil {
			fmt.Fprintf(out, "  date     %s\n", z.DateFormat)
		}
		fmt.Fprintf(out, "  extract  %s\n", z.Resolve(sample))
		fmt.Fprintf(out, "  stale    %s\n", z.StaleSource)
		if c := z.Companion; c != nil {
			fmt.Fprintf(out, "  merge    %s [%s]\n", c.Path.Resolve(sample), c.Members)
		}
	}
}
