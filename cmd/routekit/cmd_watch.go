package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gobeaver/routekit"
)

var watchFlags struct {
	debounce string
	poll     time.Duration
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Sweep at start and again whenever a matching file arrives",
	RunE:  runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.StringVar(&watchFlags.debounce, "debounce", "", "Quiet period after a change before sweeping (e.g. 2s)")
	f.DurationVar(&watchFlags.poll, "poll", 0, "Poll the source directory at this interval instead of using file events (for network shares)")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("debounce") {
		cfg.WatchDebounce = watchFlags.debounce
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	debounce, err := cfg.Debounce()
	if err != nil {
		return err
	}

	closeLog, err := initLogging(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := cmd.Context()
	s, err := newSweeper(ctx, cfg)
	if err != nil {
		return err
	}
	return watchLoop(ctx, s, debounce, watchFlags.poll)
}

// watchLoop sweeps once, then once per debounced burst of changes until
// ctx is done. Sweeps run on this goroutine so they never overlap.
func watchLoop(ctx context.Context, s *sweeper, debounce, poll time.Duration) error {
	log := newLogger("watch")
	s.sweep(ctx)

	changed := make(chan struct{}, 1)
	stopped := routekit.OnChange(ctx,
		func() (routekit.ChangeToken, error) {
			if poll > 0 {
				return pollToken(ctx, s, poll)
			}
			return watchToken(ctx, s)
		},
		func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		},
	)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	log.Info("watching for new files", slog.String("source_dir", s.cfg.SourceDir), slog.Duration("debounce", debounce))
	for {
		select {
		case <-ctx.Done():
			log.Info("watch stopped")
			return nil
		case err, ok := <-stopped:
			if ok && err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			return nil
		case <-changed:
			timer.Reset(debounce)
		case <-timer.C:
			s.sweep(ctx)
		}
	}
}

// watchToken fires when a name matching any use-case pattern appears in
// the source directory. Its watchers are released as soon as it fires.
func watchToken(ctx context.Context, s *sweeper) (routekit.ChangeToken, error) {
	wctx, cancel := context.WithCancel(ctx)

	var tokens []routekit.ChangeToken
	for _, uc := range s.useCases {
		for _, pattern := range useCasePatterns(uc) {
			token, err := s.fs.Watch(wctx, filepath.Join(s.cfg.SourceDir, pattern))
			if err != nil {
				cancel()
				return nil, err
			}
			tokens = append(tokens, token)
		}
	}
	if len(tokens) == 0 {
		cancel()
		return routekit.NeverChangeToken{}, nil
	}

	composite := routekit.NewCompositeChangeToken(tokens...)
	composite.RegisterChangeCallback(cancel)
	return composite, nil
}

// pollToken fires when the set of matching files in the source directory
// differs from the one seen when the token was created.
func pollToken(ctx context.Context, s *sweeper, interval time.Duration) (routekit.ChangeToken, error) {
	baseline, err := snapshot(ctx, s)
	if err != nil {
		return nil, err
	}
	return routekit.NewPollingChangeToken(ctx, routekit.PollingConfig{
		Interval: interval,
		CheckFunc: func() bool {
			current, err := snapshot(ctx, s)
			return err != nil || current != baseline
		},
	}), nil
}

// snapshot fingerprints the source files any use case would pick up.
func snapshot(ctx context.Context, s *sweeper) (string, error) {
	var patterns []*routekit.GlobSelector
	for _, uc := range s.useCases {
		if uc.Zip != nil {
			patterns = append(patterns, uc.Zip.Pattern)
		}
		if uc.Inputs != nil {
			patterns = append(patterns, uc.Inputs.Pattern)
		}
	}
	matchAny := routekit.FuncSelector(func(f *routekit.FileInfo) bool {
		for _, p := range patterns {
			if p.Match(f) {
				return true
			}
		}
		return false
	})

	files, err := routekit.ListWithSelector(ctx, s.fs, s.cfg.SourceDir, matchAny, false)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, f := range files {
		fmt.Fprintf(&b, "%s\x00%d\x00%d\n", f.Name, f.Size, f.ModTime.UnixNano())
	}
	return b.String(), nil
}

func useCasePatterns(uc *routekit.UseCase) []string {
	var patterns []string
	if uc.Zip != nil {
		patterns = append(patterns, uc.Zip.Pattern.String())
	}
	if uc.Inputs != nil {
		patterns = append(patterns, uc.Inputs.Pattern.String())
	}
	return patterns
}
