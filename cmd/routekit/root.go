package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gobeaver/routekit"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	envPrefix string
	source    string
	useCases  string
	logLevel  string
	logFormat string
	logFile   string
}

var rootCmd = &cobra.Command{
	Use:   "routekit",
	Short: "Route dated files and archives out of a drop directory",
	Long: "routekit sweeps a source directory, copies or moves each file matched by a use case\n" +
		"to its dated destinations and unpacks matched zip archives with count checks.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.envPrefix, "env-prefix", "", "Environment variable prefix (default BEAVER_)")
	f.StringVar(&rootFlags.source, "source", "", "Source directory to sweep")
	f.StringVar(&rootFlags.useCases, "use-cases", "", "Use-case file (.json, .yaml, .yml, .toml)")
	f.StringVar(&rootFlags.logLevel, "log-level", "", "debug, info, success, warn, error or critical")
	f.StringVar(&rootFlags.logFormat, "log-format", "", "text or json")
	f.StringVar(&rootFlags.logFile, "log-file", "", "Also append log lines to this file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.Version = version
}

// loadConfig reads the environment and applies any flags the user set.
func loadConfig(cmd *cobra.Command) (*routekit.Config, error) {
	var (
		cfg *routekit.Config
		err error
	)
	if rootFlags.envPrefix != "" {
		cfg, err = routekit.GetConfigWithPrefix(rootFlags.envPrefix)
	} else {
		cfg, err = routekit.GetConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	f := cmd.Flags()
	override := func(name string, dst *string, v string) {
		if f.Changed(name) {
			*dst = v
		}
	}
	override("source", &cfg.SourceDir, rootFlags.source)
	override("use-cases", &cfg.UseCases, rootFlags.useCases)
	override("log-level", &cfg.LogLevel, rootFlags.logLevel)
	override("log-format", &cfg.LogFormat, rootFlags.logFormat)
	override("log-file", &cfg.LogFile, rootFlags.logFile)
	return cfg, nil
}
