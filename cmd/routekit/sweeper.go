package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gobeaver/routekit"
	"github.com/gobeaver/routekit/driver/local"
	"github.com/gobeaver/routekit/driver/zip"
	"github.com/gobeaver/routekit/metrics"
	"github.com/gobeaver/routekit/report"
)

// maxCompressionRatio is not configurable; anything past it is a zip bomb.
const maxCompressionRatio = 1000

// sweeper wires the router to the local filesystem and writes the optional
// run outputs after each sweep.
type sweeper struct {
	cfg      *routekit.Config
	useCases []*routekit.UseCase
	fs       *local.Adapter
	router   *routekit.Router
	recorder *metrics.Recorder
	log      *slog.Logger
}

func newSweeper(ctx context.Context, cfg *routekit.Config) (*sweeper, error) {
	useCases, err := routekit.LoadUseCases(cfg.UseCases)
	if err != nil {
		return nil, err
	}

	fs, err := local.New("")
	if err != nil {
		return nil, err
	}
	ok, err := fs.DirExists(ctx, cfg.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("source directory: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("source directory %s is not reachable", cfg.SourceDir)
	}

	opener := zip.NewOpener(fs, zip.Limits{
		MaxFiles:            cfg.MaxArchiveFiles,
		MaxUncompressedSize: cfg.MaxArchiveBytes,
		MaxCompressionRatio: maxCompressionRatio,
	})

	router := routekit.NewRouter(fs,
		routekit.WithEventSink(routekit.NewSlogSink(newLogger("router"))),
		routekit.WithArchiveOpener(opener),
		routekit.WithArchiveDir(cfg.ArchiveDir),
		routekit.WithVerifyCopies(cfg.VerifyCopies),
	)

	return &sweeper{
		cfg:      cfg,
		useCases: useCases,
		fs:       fs,
		router:   router,
		recorder: metrics.NewRecorder(),
		log:      newLogger("sweeper"),
	}, nil
}

// sweep runs once and writes the report and metrics files. Output failures
// are logged; they never change the sweep's result.
func (s *sweeper) sweep(ctx context.Context) *routekit.RunReport {
	rep := s.router.Run(ctx, s.useCases, s.cfg.SourceDir)
	s.recorder.Observe(rep)

	if s.cfg.ReportFile != "" {
		if err := report.Write(s.cfg.ReportFile, rep); err != nil {
			s.log.Error("run report not written", slog.String("path", s.cfg.ReportFile), slog.Any("error", err))
		}
	}
	if s.cfg.MetricsFile != "" {
		if err := s.recorder.WriteTextfile(s.cfg.MetricsFile); err != nil {
			s.log.Error("metrics not written", slog.String("path", s.cfg.MetricsFile), slog.Any("error", err))
		}
	}

	s.log.Info("sweep complete",
		slog.String("run_id", rep.RunID),
		slog.Int("items", len(rep.Items)),
		slog.Int("failures", rep.Failures()),
	)
	return rep
}
