package routekit_test

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobeaver/routekit"
	"github.com/gobeaver/routekit/driver/memory"
	zipdriver "github.com/gobeaver/routekit/driver/zip"
)

const routerUseCases = `{
	"BundlingImport": {
		"inputs": {
			"name": "BundlingImport*.txt",
			"destination": ["/share/YYYY/MM/DD/", "/backup/YYYY/"],
			"date_formatting": "YYYYMMDD",
			"date_formatting_dt": "%Y%m%d"
		}
	},
	"Results": {
		"zip": {
			"name": "Results_*.zip",
			"destination": "/share/results/YYYY/MM_DD_YYYY",
			"date_formatting": "MM_DD_YYYY",
			"date_formatting_dt": "%m_%d_%Y",
			"stale_source": "delete"
		}
	}
}`

var sweepTime = time.Date(2025, time.February, 3, 9, 30, 0, 0, time.UTC)

// eventLog records router events for assertions.
type eventLog struct {
	mu     sync.Mutex
	events []routekit.Event
}

func (l *eventLog) Emit(_ context.Context, e routekit.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) has(kind string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// lossyFS loses writes of one member name. With err unset the write is
// silently dropped, like a share that acknowledges a write it never stored;
// otherwise it fails with err.
type lossyFS struct {
	*memory.Adapter
	drop string
	err  error
}

func (l *lossyFS) Write(ctx context.Context, p string, r io.Reader, opts ...routekit.Option) error {
	if strings.HasSuffix(p, "/"+l.drop) {
		if l.err != nil {
			return &routekit.PathError{Op: "write", Path: p, Err: l.err}
		}
		_, err := io.Copy(io.Discard, r)
		return err
	}
	return l.Adapter.Write(ctx, p, r, opts...)
}

// zipMember is one archive member; names ending in "/" are directories.
type zipMember struct {
	name    string
	content string
}

func buildZip(t *testing.T, members ...zipMember) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		w, err := zw.Create(m.name)
		require.NoError(t, err)
		if !strings.HasSuffix(m.name, "/") {
			_, err = io.WriteString(w, m.content)
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func loadUseCases(t *testing.T) []*routekit.UseCase {
	t.Helper()
	cases, err := routekit.ParseUseCases([]byte(routerUseCases), "json")
	require.NoError(t, err)
	return cases
}

func newRouter(fs routekit.FileSystem, sink routekit.EventSink) *routekit.Router {
	return routekit.NewRouter(fs,
		routekit.WithEventSink(sink),
		routekit.WithArchiveOpener(zipdriver.NewOpener(fs, zipdriver.DefaultLimits())),
		routekit.WithClock(func() time.Time { return sweepTime }),
		routekit.WithRunID(func() string { return "run-1" }),
	)
}

func put(t *testing.T, fs routekit.FileWriter, p string, data []byte) {
	t.Helper()
	require.NoError(t, fs.Write(context.Background(), p, bytes.NewReader(data)))
}

func exists(t *testing.T, fs routekit.FileReader, p string) bool {
	t.Helper()
	ok, err := fs.FileExists(context.Background(), p)
	require.NoError(t, err)
	return ok
}

func dirExists(t *testing.T, fs routekit.FileReader, p string) bool {
	t.Helper()
	ok, err := fs.DirExists(context.Background(), p)
	require.NoError(t, err)
	return ok
}

func parseUseCases(t *testing.T, data string) []*routekit.UseCase {
	t.Helper()
	cases, err := routekit.ParseUseCases([]byte(data), "json")
	require.NoError(t, err)
	return cases
}

func outcomes(report *routekit.RunReport) map[string]routekit.Outcome {
	out := make(map[string]routekit.Outcome, len(report.Items))
	for _, it := range report.Items {
		out[it.Source] = it.Outcome
	}
	return out
}

func TestRunRoutesInputs(t *testing.T) {
	ctx := context.Background()
	fs := memory.New()
	put(t, fs, "/in/BundlingImport20250105.txt", []byte("payload"))
	require.NoError(t, fs.CreateDir(ctx, "/share"))

	log := &eventLog{}
	report := newRouter(fs, log).Run(ctx, loadUseCases(t), "/in")

	require.Len(t, report.Items, 1)
	item := report.Items[0]
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, sweepTime, report.Started)
	assert.Equal(t, routekit.OutcomeSuccess, item.Outcome)
	assert.Equal(t, []string{"/share/2025/01/05/BundlingImport20250105.txt", "/backup/2025/BundlingImport20250105.txt"}, item.Destinations)

	assert.False(t, exists(t, fs, "/in/BundlingImport20250105.txt"), "source should be moved away")
	data, err := fs.ReadAll(ctx, "/share/2025/01/05/BundlingImport20250105.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.True(t, exists(t, fs, "/backup/2025/BundlingImport20250105.txt"))

	assert.True(t, log.has(routekit.EventMoved))
	assert.True(t, log.has(routekit.EventCopied))
	assert.Zero(t, report.Failures())
}

func TestRunFanoutIsolation(t *testing.T) {
	ctx := context.Background()
	fs := memory.New()
	put(t, fs, "/in/BundlingImport20250105.txt", []byte("payload"))
	fs.FailWrites("/backup", routekit.ErrPermission)

	log := &eventLog{}
	report := newRouter(fs, log).Run(ctx, loadUseCases(t), "/in")

	require.Len(t, report.Items, 1)
	assert.Equal(t, routekit.OutcomeSuccess, report.Items[0].Outcome, "item outcome follows the primary")
	assert.True(t, exists(t, fs, "/share/2025/01/05/BundlingImport20250105.txt"))
	assert.False(t, exists(t, fs, "/backup/2025/BundlingImport20250105.txt"))
	assert.True(t, log.has(routekit.EventRouteFailed))
}

func TestRunPrimaryConflictKeepsSource(t *testing.T) {
	ctx := context.Background()
	fs := memory.New()
	put(t, fs, "/in/BundlingImport20250105.txt", []byte("new"))
	put(t, fs, "/share/2025/01/05/BundlingImport20250105.txt", []byte("old"))

	report := newRouter(fs, &eventLog{}).Run(ctx, loadUseCases(t), "/in")

	require.Len(t, report.Items, 1)
	assert.Equal(t, routekit.OutcomeConflictExists, report.Items[0].Outcome)
	assert.True(t, exists(t, fs, "/in/BundlingImport20250105.txt"))
	data, err := fs.ReadAll(ctx, "/share/2025/01/05/BundlingImport20250105.txt")
	require.NoError(t, err)
	assert.Equal(t, "old", string(data), "existing destination must not be overwritten")
}

func TestRunDateUnparseable(t *testing.T) {
	ctx := context.Background()
	fs := memory.New()
	put(t, fs, "/in/BundlingImport_latest.txt", []byte("x"))
	put(t, fs, "/in/Results_latest.zip", buildZip(t, zipMember{"a.csv", "1"}))

	log := &eventLog{}
	report := newRouter(fs, log).Run(ctx, loadUseCases(t), "/in")

	got := outcomes(report)
	assert.Equal(t, routekit.OutcomeDateUnparseable, got["/in/BundlingImport_latest.txt"])
	assert.Equal(t, routekit.OutcomeDateUnparseable, got["/in/Results_latest.zip"])
	assert.True(t, exists(t, fs, "/in/BundlingImport_latest.txt"))
	assert.True(t, exists(t, fs, "/in/Results_latest.zip"))
	assert.True(t, log.has(routekit.EventDateUnparseable))
	assert.Zero(t, report.Failures())
}

func TestRunExtractsArchives(t *testing.T) {
	tests := []struct {
		name    string
		members []zipMember
		want    routekit.Outcome
		tally   routekit.Tally
	}{
		{
			name: "every member present",
			members: []zipMember{
				{"a.csv", "1"}, {"sub/", ""}, {"sub/b.csv", "2"}, {"c.csv", "3"},
			},
			want:  routekit.OutcomeSuccess,
			tally: routekit.Tally{ActualFiles: 3, ActualFolders: 1},
		},
		{
			name: "empty folder not recreated",
			members: []zipMember{
				{"a.csv", "1"}, {"sub/", ""}, {"sub/b.csv", "2"}, {"empty/", ""},
			},
			want:  routekit.OutcomeSuccess,
			tally: routekit.Tally{ActualFiles: 2, ActualFolders: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			fs := memory.New()
			put(t, fs, "/in/Results_01_05_2025.zip", buildZip(t, tt.members...))

			log := &eventLog{}
			report := newRouter(fs, log).Run(ctx, loadUseCases(t), "/in")

			require.Len(t, report.Items, 1)
			item := report.Items[0]
			assert.Equal(t, tt.want, item.Outcome)
			require.NotNil(t, item.Tally)
			assert.Equal(t, tt.tally, *item.Tally)
			assert.Equal(t, []string{"/share/results/2025/01_05_2025"}, item.Destinations)

			assert.True(t, exists(t, fs, "/share/results/2025/01_05_2025/a.csv"))
			assert.True(t, exists(t, fs, "/share/results/2025/01_05_2025/sub/b.csv"))

			assert.Equal(t, "/in/moved/2025 02/Results_01_05_2025.zip", item.Archived)
			assert.False(t, exists(t, fs, "/in/Results_01_05_2025.zip"))
			assert.True(t, exists(t, fs, item.Archived))
			assert.True(t, log.has(routekit.EventSourceArchived))
		})
	}
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	fs := memory.New()
	archive := buildZip(t, zipMember{"a.csv", "1"}, zipMember{"b.csv", "2"})
	put(t, fs, "/in/Results_01_05_2025.zip", archive)
	put(t, fs, "/in/BundlingImport20250105.txt", []byte("payload"))

	router := newRouter(fs, &eventLog{})
	useCases := loadUseCases(t)

	first := router.Run(ctx, useCases, "/in")
	require.Zero(t, first.Failures())
	filesAfterFirst := fs.FileCount()

	second := router.Run(ctx, useCases, "/in")
	assert.Empty(t, second.Items, "nothing is left to route")
	assert.Equal(t, filesAfterFirst, fs.FileCount())

	// The same bundle delivered again finds its destination in place.
	put(t, fs, "/in/Results_01_05_2025.zip", archive)
	log := &eventLog{}
	third := newRouter(fs, log).Run(ctx, useCases, "/in")

	require.Len(t, third.Items, 1)
	assert.Equal(t, routekit.OutcomeSkippedExists, third.Items[0].Outcome)
	assert.False(t, exists(t, fs, "/in/Results_01_05_2025.zip"), "stale source should be deleted")
	assert.True(t, log.has(routekit.EventStaleSource))
}

func TestRunCountMismatchBlocksArchival(t *testing.T) {
	ctx := context.Background()
	fs := &lossyFS{Adapter: memory.New(), drop: "b.csv"}
	put(t, fs, "/in/Results_01_05_2025.zip", buildZip(t, zipMember{"a.csv", "1"}, zipMember{"b.csv", "2"}))

	log := &eventLog{}
	report := newRouter(fs, log).Run(ctx, loadUseCases(t), "/in")

	require.Len(t, report.Items, 1)
	item := report.Items[0]
	assert.Equal(t, routekit.OutcomeCountMismatch, item.Outcome)
	assert.Empty(t, item.Archived)
	assert.True(t, exists(t, fs, "/in/Results_01_05_2025.zip"), "source must stay for a retry")
	assert.True(t, log.has(routekit.EventCountMismatch))
	assert.False(t, log.has(routekit.EventSourceArchived))
	assert.Equal(t, 1, report.Failures())
}

func TestRunRejectsTraversal(t *testing.T) {
	ctx := context.Background()
	fs := memory.New()
	put(t, fs, "/in/Results_01_05_2025.zip", buildZip(t, zipMember{"../../etc/passwd", "x"}))

	report := newRouter(fs, &eventLog{}).Run(ctx, loadUseCases(t), "/in")

	require.Len(t, report.Items, 1)
	assert.Equal(t, routekit.OutcomeArchiveRejected, report.Items[0].Outcome)
	assert.False(t, exists(t, fs, "/etc/passwd"))
	assert.True(t, exists(t, fs, "/in/Results_01_05_2025.zip"))
}

// panicOpener stands in for a broken archive library.
type panicOpener struct{}

func (panicOpener) OpenArchive(context.Context, string) (routekit.Archive, error) {
	panic("corrupt central directory")
}

func TestRunSurvivesPanics(t *testing.T) {
	ctx := context.Background()
	fs := memory.New()
	put(t, fs, "/in/Results_01_05_2025.zip", []byte("not a zip"))
	put(t, fs, "/in/BundlingImport20250105.txt", []byte("payload"))

	log := &eventLog{}
	router := routekit.NewRouter(fs, routekit.WithEventSink(log), routekit.WithArchiveOpener(panicOpener{}))
	report := router.Run(ctx, loadUseCases(t), "/in")

	got := outcomes(report)
	assert.Equal(t, routekit.OutcomeIOFailure, got["/in/Results_01_05_2025.zip"])
	assert.Equal(t, routekit.OutcomeSuccess, got["/in/BundlingImport20250105.txt"], "later items still run")
	assert.True(t, log.has(routekit.EventItemPanicked))
}

func TestRunStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fs := memory.New()
	put(t, fs, "/in/BundlingImport20250105.txt", []byte("payload"))

	report := newRouter(fs, &eventLog{}).Run(ctx, loadUseCases(t), "/in")

	assert.Empty(t, report.Items)
	assert.True(t, exists(t, fs, "/in/BundlingImport20250105.txt"))
}

func TestRunMergesCompanion(t *testing.T) {
	cases, err := routekit.ParseUseCases([]byte(`{
		"Results": {
			"zip": {
				"name": "Results_*.zip",
				"destination": "/share/results/MM_DD_YYYY",
				"date_formatting": "MM_DD_YYYY",
				"date_formatting_dt": "%m_%d_%Y",
				"companion": {"path": "/share/merged/Merged_MM_DD_YYYY.zip", "members": "*.csv"}
			}
		}
	}`), "json")
	require.NoError(t, err)

	t.Run("matching members are added", func(t *testing.T) {
		ctx := context.Background()
		fs := memory.New()
		put(t, fs, "/in/Results_01_05_2025.zip", buildZip(t, zipMember{"a.csv", "1"}))
		put(t, fs, "/share/merged/Merged_01_05_2025.zip", buildZip(t,
			zipMember{"a.csv", "stale"}, zipMember{"merged.csv", "m"}, zipMember{"notes.txt", "n"}))

		log := &eventLog{}
		report := newRouter(fs, log).Run(ctx, cases, "/in")

		require.Len(t, report.Items, 1)
		item := report.Items[0]
		assert.Equal(t, routekit.OutcomeSuccess, item.Outcome)
		assert.Equal(t, routekit.Manifest{ExpectedFiles: 2}, *item.Manifest)

		data, err := fs.ReadAll(ctx, "/share/results/01_05_2025/a.csv")
		require.NoError(t, err)
		assert.Equal(t, "1", string(data), "primary member must win")
		assert.True(t, exists(t, fs, "/share/results/01_05_2025/merged.csv"))
		assert.False(t, exists(t, fs, "/share/results/01_05_2025/notes.txt"))
		assert.True(t, log.has(routekit.EventCompanion))
	})

	t.Run("missing companion does not fail the item", func(t *testing.T) {
		ctx := context.Background()
		fs := memory.New()
		put(t, fs, "/in/Results_01_05_2025.zip", buildZip(t, zipMember{"a.csv", "1"}))

		log := &eventLog{}
		report := newRouter(fs, log).Run(ctx, cases, "/in")

		require.Len(t, report.Items, 1)
		assert.Equal(t, routekit.OutcomeSuccess, report.Items[0].Outcome)
		assert.True(t, log.has(routekit.EventCompanionMissing))
		assert.NotEmpty(t, report.Items[0].Archived)
	})
}

func TestRunFanoutSecondaries(t *testing.T) {
	tests := []struct {
		name      string
		transform string
		want      []string
		skipped   bool
	}{
		{
			name:      "renamed with the day before",
			transform: `{"offset_days": -1, "date_format": "YYYYMMDD", "date_format_parse": "%Y%m%d"}`,
			want: []string{
				"/share/2025/01/05/BundlingImport20250105.txt",
				"/backup/2025/BundlingImport20250105.txt",
				"/archive/BundlingImport20250104.txt",
			},
		},
		{
			name:      "transform finds no date",
			transform: `{"offset_days": -1, "date_format": "MM_DD_YYYY", "date_format_parse": "%m_%d_%Y"}`,
			want: []string{
				"/share/2025/01/05/BundlingImport20250105.txt",
				"/backup/2025/BundlingImport20250105.txt",
				"/archive/BundlingImport20250105.txt",
			},
			skipped: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			cases := parseUseCases(t, fmt.Sprintf(`{
				"BundlingImport": {
					"inputs": {
						"name": "BundlingImport*.txt",
						"destination": ["/share/YYYY/MM/DD/", "/backup/YYYY/", "/archive/"],
						"date_formatting": "YYYYMMDD",
						"date_formatting_dt": "%%Y%%m%%d",
						"destination_transforms": [null, null, %s]
					}
				}
			}`, tt.transform))

			fs := memory.New()
			put(t, fs, "/in/BundlingImport20250105.txt", []byte("payload"))
			fs.FailWrites("/backup", routekit.ErrPermission)

			log := &eventLog{}
			report := newRouter(fs, log).Run(ctx, cases, "/in")

			require.Len(t, report.Items, 1)
			item := report.Items[0]
			assert.Equal(t, routekit.OutcomeSuccess, item.Outcome)
			assert.Equal(t, tt.want, item.Destinations)

			assert.True(t, exists(t, fs, tt.want[0]))
			assert.False(t, exists(t, fs, tt.want[1]), "unwritable secondary")
			assert.True(t, exists(t, fs, tt.want[2]), "writable secondary still receives its copy")
			assert.True(t, log.has(routekit.EventRouteFailed))
			assert.Equal(t, tt.skipped, log.has(routekit.EventTransformSkipped))
		})
	}
}

func TestRunCreateDirs(t *testing.T) {
	useCases := func(createDirs bool) string {
		return fmt.Sprintf(`{
			"BundlingImport": {
				"inputs": {
					"name": "BundlingImport*.txt",
					"destination": "/share/YYYY/MM/DD/",
					"date_formatting": "YYYYMMDD",
					"date_formatting_dt": "%%Y%%m%%d",
					"create_dirs": %t
				}
			}
		}`, createDirs)
	}

	tests := []struct {
		name       string
		createDirs bool
		existing   bool
		want       routekit.Outcome
	}{
		{"created when enabled", true, false, routekit.OutcomeSuccess},
		{"missing directory when disabled", false, false, routekit.OutcomeIOFailure},
		{"existing directory when disabled", false, true, routekit.OutcomeSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			fs := memory.New()
			put(t, fs, "/in/BundlingImport20250105.txt", []byte("payload"))
			if tt.existing {
				require.NoError(t, fs.CreateDir(ctx, "/share/2025/01/05"))
			}

			report := newRouter(fs, &eventLog{}).Run(ctx, parseUseCases(t, useCases(tt.createDirs)), "/in")

			require.Len(t, report.Items, 1)
			assert.Equal(t, tt.want, report.Items[0].Outcome)
			moved := tt.want.Succeeded()
			assert.Equal(t, moved, exists(t, fs, "/share/2025/01/05/BundlingImport20250105.txt"))
			assert.Equal(t, !moved, exists(t, fs, "/in/BundlingImport20250105.txt"))
			assert.Equal(t, moved, dirExists(t, fs, "/share/2025/01/05"))
		})
	}
}

func TestRunExtractsIntoSubfolder(t *testing.T) {
	ctx := context.Background()
	cases := parseUseCases(t, `{
		"Results": {
			"zip": {
				"name": "Results_*.zip",
				"destination": "/share/results/YYYY",
				"subfolder": "Run YYYY-MM-DD",
				"date_formatting": "MM_DD_YYYY",
				"date_formatting_dt": "%m_%d_%Y"
			}
		}
	}`)
	fs := memory.New()
	put(t, fs, "/in/Results_01_05_2025.zip", buildZip(t, zipMember{"a.csv", "1"}, zipMember{"sub/b.csv", "2"}))

	report := newRouter(fs, &eventLog{}).Run(ctx, cases, "/in")

	require.Len(t, report.Items, 1)
	item := report.Items[0]
	assert.Equal(t, routekit.OutcomeSuccess, item.Outcome)
	assert.Equal(t, []string{"/share/results/2025/Run 2025-01-05"}, item.Destinations)
	assert.True(t, exists(t, fs, "/share/results/2025/Run 2025-01-05/a.csv"))
	assert.True(t, exists(t, fs, "/share/results/2025/Run 2025-01-05/sub/b.csv"))
	assert.NotEmpty(t, item.Archived)
}

func TestRunArchiveWinsOverInputs(t *testing.T) {
	ctx := context.Background()
	cases := parseUseCases(t, `{
		"Results": {
			"inputs": {
				"name": "Results*",
				"destination": "/share/loose/"
			},
			"zip": {
				"name": "Results_*.zip",
				"destination": "/share/results/MM_DD_YYYY",
				"date_formatting": "MM_DD_YYYY",
				"date_formatting_dt": "%m_%d_%Y"
			}
		}
	}`)
	fs := memory.New()
	put(t, fs, "/in/Results_01_05_2025.zip", buildZip(t, zipMember{"a.csv", "1"}))
	put(t, fs, "/in/Results_summary.csv", []byte("s"))

	report := newRouter(fs, &eventLog{}).Run(ctx, cases, "/in")

	require.Len(t, report.Items, 2)
	kinds := make(map[string]routekit.ItemKind)
	for _, it := range report.Items {
		kinds[it.Source] = it.Kind
		assert.Equal(t, routekit.OutcomeSuccess, it.Outcome, it.Source)
	}
	assert.Equal(t, routekit.KindZip, kinds["/in/Results_01_05_2025.zip"])
	assert.Equal(t, routekit.KindInput, kinds["/in/Results_summary.csv"])
	assert.True(t, exists(t, fs, "/share/results/01_05_2025/a.csv"))
	assert.True(t, exists(t, fs, "/share/loose/Results_summary.csv"))
	assert.False(t, exists(t, fs, "/share/loose/Results_01_05_2025.zip"))
}

func TestRunRetriesInterruptedExtraction(t *testing.T) {
	const dest = "/share/results/2025/01_05_2025"

	tests := []struct {
		name string
		err  error
		want routekit.Outcome
	}{
		{"member silently lost", nil, routekit.OutcomeCountMismatch},
		{"member write refused", routekit.ErrPermission, routekit.OutcomePermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			base := memory.New()
			put(t, base, "/in/Results_01_05_2025.zip", buildZip(t, zipMember{"a.csv", "1"}, zipMember{"b.csv", "2"}))
			useCases := loadUseCases(t)

			first := newRouter(&lossyFS{Adapter: base, drop: "b.csv", err: tt.err}, &eventLog{}).Run(ctx, useCases, "/in")
			require.Len(t, first.Items, 1)
			assert.Equal(t, tt.want, first.Items[0].Outcome)
			assert.Equal(t, 1, first.Failures())
			assert.False(t, dirExists(t, base, dest), "incomplete destination must be removed")
			assert.True(t, exists(t, base, "/in/Results_01_05_2025.zip"))

			log := &eventLog{}
			second := newRouter(base, log).Run(ctx, useCases, "/in")
			require.Len(t, second.Items, 1)
			item := second.Items[0]
			assert.Equal(t, routekit.OutcomeSuccess, item.Outcome)
			assert.Zero(t, second.Failures())
			assert.True(t, exists(t, base, dest+"/a.csv"))
			assert.True(t, exists(t, base, dest+"/b.csv"))
			assert.Equal(t, "/in/moved/2025 02/Results_01_05_2025.zip", item.Archived)
			assert.False(t, log.has(routekit.EventArchiveSkipped))
		})
	}
}

func TestRunExistingDestination(t *testing.T) {
	const dest = "/share/results/2025/01_05_2025"

	tests := []struct {
		name       string
		policy     string
		complete   bool
		want       routekit.Outcome
		sourceKept bool
		event      string
	}{
		{"keep, complete", "keep", true, routekit.OutcomeSkippedExists, true, routekit.EventArchiveSkipped},
		{"delete, complete", "delete", true, routekit.OutcomeSkippedExists, false, routekit.EventStaleSource},
		{"keep, incomplete", "keep", false, routekit.OutcomeCountMismatch, true, routekit.EventCountMismatch},
		{"delete, incomplete", "delete", false, routekit.OutcomeCountMismatch, true, routekit.EventCountMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			cases := parseUseCases(t, fmt.Sprintf(`{
				"Results": {
					"zip": {
						"name": "Results_*.zip",
						"destination": "/share/results/YYYY/MM_DD_YYYY",
						"date_formatting": "MM_DD_YYYY",
						"date_formatting_dt": "%%m_%%d_%%Y",
						"stale_source": %q
					}
				}
			}`, tt.policy))

			fs := memory.New()
			put(t, fs, "/in/Results_01_05_2025.zip", buildZip(t, zipMember{"a.csv", "1"}, zipMember{"b.csv", "2"}))
			put(t, fs, dest+"/a.csv", []byte("1"))
			if tt.complete {
				put(t, fs, dest+"/b.csv", []byte("2"))
			}

			log := &eventLog{}
			report := newRouter(fs, log).Run(ctx, cases, "/in")

			require.Len(t, report.Items, 1)
			assert.Equal(t, tt.want, report.Items[0].Outcome)
			assert.Equal(t, tt.sourceKept, exists(t, fs, "/in/Results_01_05_2025.zip"))
			assert.True(t, log.has(tt.event))
			assert.Equal(t, tt.want.Failed(), report.Failures() == 1)
			assert.True(t, exists(t, fs, dest+"/a.csv"), "an existing destination is never touched")
		})
	}
}
