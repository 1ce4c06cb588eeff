// Package routekit routes dated files out of a landing directory onto shares
// and unpacks dated zip bundles, verifying every extraction before the
// bundle is archived.
//
// Each named [UseCase] selects files by glob. Plain inputs are delivered to
// one or more destinations whose paths carry the date placeholders YYYY, YY,
// MM and DD, filled in from a date embedded in the file name. Zip bundles are
// extracted into a dated directory, counted against the archive's own member
// list and, once the counts reconcile, moved into a monthly archive folder
// beside the source.
//
// # Filesystems
//
// The router works through the [FileSystem] interface, split into
// [FileReader] and [FileWriter]. Drivers add optional capabilities that the
// router discovers with a type assertion:
//
//   - Local filesystem and mounted shares (github.com/gobeaver/routekit/driver/local)
//   - In-memory, with fault injection for tests (github.com/gobeaver/routekit/driver/memory)
//   - Zip archives, as an [ArchiveOpener] (github.com/gobeaver/routekit/driver/zip)
//
// Copy and move never overwrite. An existing destination is a conflict and
// the source stays where it is.
//
// # Use cases
//
// Use cases are loaded from JSON, YAML or TOML:
//
//	{
//	  "BundlingImport": {
//	    "inputs": {
//	      "name": "BundlingImport*.txt",
//	      "destination": ["/mnt/share/YYYY/MM/DD/", "/mnt/backup/YYYY/"],
//	      "date_formatting": "YYYYMMDD",
//	      "date_formatting_dt": "%Y%m%d"
//	    }
//	  },
//	  "Results": {
//	    "zip": {
//	      "name": "Results_*.zip",
//	      "destination": "/mnt/share/results/YYYY/MM_DD_YYYY",
//	      "date_formatting": "MM_DD_YYYY",
//	      "date_formatting_dt": "%m_%d_%Y"
//	    }
//	  }
//	}
//
// date_formatting locates the date in a name; date_formatting_dt is the
// strftime pattern it is parsed with. Both must describe the same shape.
//
// # Running a sweep
//
//	fs, _ := local.New("")
//	useCases, err := routekit.LoadUseCases("inputs.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	router := routekit.NewRouter(fs,
//	    routekit.WithEventSink(routekit.NewSlogSink(slog.Default())),
//	    routekit.WithArchiveOpener(zip.NewOpener(fs, zip.DefaultLimits())),
//	)
//	report := router.Run(ctx, useCases, "/mnt/inputs")
//	fmt.Println(report.Failures(), "items need attention")
//
// Every item ends in an [Outcome]; a failing item never stops the sweep.
//
// # Verification
//
// [Reconcile] compares what an archive promised ([Manifest]) with what the
// destination holds ([Tally]). Missing files always fail. Missing folders are
// forgiven when every file arrived, since zip tools skip empty directories.
// A destination holding more than the archive is accepted as degraded.
//
// # Watching
//
// Drivers implementing [CanWatch] hand out single-use [ChangeToken]s.
// [OnChange] re-arms them, which is how the routekit command sweeps on
// arrival instead of on a schedule:
//
//	routekit.OnChange(ctx,
//	    func() (routekit.ChangeToken, error) { return fs.Watch(ctx, "/mnt/inputs/*.zip") },
//	    func() { pending <- struct{}{} },
//	)
//
// # Error Handling
//
// Drivers return *[PathError] wrapping the sentinels [ErrNotExist],
// [ErrExist], [ErrPermission] and friends:
//
//	if routekit.IsExist(err) {
//	    // destination already there
//	}
package routekit
