package routekit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
)

// Severity ranks routing events.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Event kinds emitted by the router.
const (
	EventSweepStarted     = "sweep_started"
	EventSweepFinished    = "sweep_finished"
	EventUseCaseStarted   = "use_case_started"
	EventFilesFound       = "files_found"
	EventDiscoveryFailed  = "discovery_failed"
	EventDateUnparseable  = "date_unparseable"
	EventDirCreateFailed  = "dir_create_failed"
	EventTransformSkipped = "transform_skipped"
	EventCopied           = "copied"
	EventMoved            = "moved"
	EventRouteFailed      = "route_failed"
	EventArchiveSkipped   = "archive_skipped"
	EventStaleSource      = "stale_source"
	EventArchiveRejected  = "archive_rejected"
	EventExtractFailed    = "extract_failed"
	EventRollbackFailed   = "rollback_failed"
	EventCompanionMissing = "companion_missing"
	EventCompanionFailed  = "companion_failed"
	EventCompanion        = "companion_extracted"
	EventVerified         = "verified"
	EventCountMismatch    = "count_mismatch"
	EventSourceArchived   = "source_archived"
	EventArchivalConflict = "archival_conflict"
	EventArchivalFailed   = "archival_failed"
	EventItemPanicked     = "item_panicked"
)

// Event is one structured log record.
type Event struct {
	Kind     string
	Severity Severity
	Message  string
	Fields   map[string]any
}

// EventSink receives routing events. Components get one injected instead of
// reaching for a global logger.
type EventSink interface {
	Emit(ctx context.Context, e Event)
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Emit(context.Context, Event) {}

// Custom slog levels for the two severities slog has no name for.
const (
	LevelSuccess  = slog.LevelInfo + 2
	LevelCritical = slog.LevelError + 4
)

// SlogSink writes events to a *slog.Logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink wraps logger. A nil logger uses slog.Default().
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// Emit implements EventSink. Fields are written in key order so log lines are
// stable across runs.
func (s *SlogSink) Emit(ctx context.Context, e Event) {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys)+1)
	attrs = append(attrs, slog.String("kind", e.Kind))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, e.Fields[k]))
	}
	s.logger.LogAttrs(ctx, severityLevel(e.Severity), e.Message, attrs...)
}

func severityLevel(s Severity) slog.Level {
	switch s {
	case SeveritySuccess:
		return LevelSuccess
	case SeverityWarning:
		return slog.LevelWarn
	case SeverityCritical:
		return LevelCritical
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps a level name to a slog level. It accepts the slog names
// plus "success" and "critical".
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "success":
		return LevelSuccess, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "critical":
		return LevelCritical, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// NewLogHandler returns a text or JSON slog handler that names the SUCCESS
// and CRITICAL levels.
func NewLogHandler(w io.Writer, level slog.Leveler, format string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key != slog.LevelKey || len(groups) > 0 {
				return a
			}
			lvl, ok := a.Value.Any().(slog.Level)
			if !ok {
				return a
			}
			switch lvl {
			case LevelSuccess:
				a.Value = slog.StringValue("SUCCESS")
			case LevelCritical:
				a.Value = slog.StringValue("CRITICAL")
			}
			return a
		},
	}

	switch format {
	case "json":
		return slog.NewJSONHandler(w, opts)
	default:
		return slog.NewTextHandler(w, opts)
	}
}
