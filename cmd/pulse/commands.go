package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/pulseboard/internal/api"
	"github.com/vanderheijden86/pulseboard/internal/datasource"
	"github.com/vanderheijden86/pulseboard/internal/tui"
	"github.com/vanderheijden86/pulseboard/pkg/config"
	"github.com/vanderheijden86/pulseboard/pkg/dashboard"
	"github.com/vanderheijden86/pulseboard/pkg/debug"
	"github.com/vanderheijden86/pulseboard/pkg/export"
	"github.com/vanderheijden86/pulseboard/pkg/hooks"
	"github.com/vanderheijden86/pulseboard/pkg/model"
	"github.com/vanderheijden86/pulseboard/pkg/version"
	"github.com/vanderheijden86/pulseboard/pkg/watcher"
)

func runServe(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, cf := newFlagSet("serve", stderr)
	addr := fs.String("addr", "", "Listen address (overrides config and PULSE_ADDR)")
	watch := fs.Bool("watch", false, "Reload the snapshot when the data directory changes")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	stopProfile, err := cf.startProfile()
	if err != nil {
		return err
	}
	defer stopProfile()

	e, err := setup(ctx, cf, true)
	if err != nil {
		return err
	}
	defer e.log.Sync()
	cfg := e.cfg
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *watch {
		cfg.Data.Watch = true
	}

	shutdownTracing, err := api.InitTracing(ctx, cfg.Trace, stderr)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			e.log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	dataDir := cfg.Data.Dir
	srv := api.New(cfg, dashboard.NewStore(e.snap),
		api.WithLogger(e.log),
		api.WithSource(e.source),
		api.WithLoader(func(ctx context.Context) (model.Snapshot, datasource.DataSource, error) {
			return datasource.LoadSnapshot(ctx, dataDir)
		}),
	)

	// Watch errors must surface before the listener is up.
	var w *watcher.Watcher
	if cfg.Data.Watch {
		if w, err = watchData(cfg.Data, e.log); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx) })
	if w != nil {
		g.Go(func() error {
			return followChanges(gctx, w, e.log, func(ctx context.Context) error {
				res, err := srv.Reload(ctx)
				if err == nil {
					e.log.Info("snapshot reloaded", "source", res.Source.Path, "version", res.Version)
				}
				return err
			})
		})
	}
	return g.Wait()
}

func newWatcher(dc config.DataConfig, log *debug.Logger) (*watcher.Watcher, error) {
	opts := []watcher.WatcherOption{
		watcher.WithDebounceDuration(dc.Debounce),
		watcher.WithForcePoll(dc.ForcePoll),
		watcher.WithOnError(func(err error) {
			log.Warn("data directory watch error", "dir", dc.Dir, "error", err)
		}),
	}
	if dc.PollInterval > 0 {
		opts = append(opts, watcher.WithPollInterval(dc.PollInterval))
	}
	w, err := watcher.NewWatcher(dc.Dir, opts...)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", dc.Dir, err)
	}
	return w, nil
}

// watchData creates and starts a watcher for the data directory.
func watchData(dc config.DataConfig, log *debug.Logger) (*watcher.Watcher, error) {
	w, err := newWatcher(dc, log)
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("watch %s: %w", w.Dir(), err)
	}
	log.Info("watching data directory", "dir", w.Dir(), "polling", w.IsPolling())
	return w, nil
}

// followChanges calls reload for every change reported by the started
// watcher w until ctx is done, then stops w. Reload failures are logged and
// the previous snapshot is kept.
func followChanges(ctx context.Context, w *watcher.Watcher, log *debug.Logger, reload func(context.Context) error) error {
	defer w.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.Changed():
			if err := reload(ctx); err != nil {
				log.Warn("snapshot reload failed", "error", err)
			}
		}
	}
}

func runReport(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, cf := newFlagSet("report", stderr)
	out := fs.String("out", "", "Write the report to this file instead of stdout")
	title := fs.String("title", "", "Report title")
	query := fs.String("q", "", "Append insights for this question")
	maxEpics := fs.Int("max-epics", 0, "Cap the epic table (0 = no cap)")
	render := fs.Bool("render", false, "Render the Markdown for the terminal")
	copyOut := fs.Bool("copy", false, "Copy the Markdown to the clipboard")
	interactive := fs.Bool("interactive", false, "Choose filters, timeframe and question in a form")
	noHooks := fs.Bool("no-hooks", false, "Skip .pulse/hooks.yaml when writing --out")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	e, err := setup(ctx, cf, false)
	if err != nil {
		return err
	}
	defer e.log.Sync()

	sel := tui.Selection{Criteria: cf.criteria(), Timeframe: e.cfg.Timeframe(), Query: strings.TrimSpace(*query)}
	if *interactive {
		if sel, err = chooseSelection(e.snap, sel, e.log); err != nil {
			return err
		}
	}

	vm := e.viewModel(sel.Criteria, sel.Timeframe)
	opts := export.ReportOptions{Title: *title, Query: sel.Query, MaxEpics: *maxEpics}
	md := export.GenerateMarkdown(vm, opts)

	if *copyOut {
		if err := tui.CopyToClipboard(md); err != nil {
			return err
		}
		fmt.Fprintln(stderr, "Report copied to clipboard")
	}
	if *out != "" {
		err := e.withHooks(ctx, *noHooks, e.exportContext(vm, *out, "markdown"), stderr, func() error {
			return export.SaveMarkdownToFile(vm, opts, *out)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Report written to %s\n", *out)
		return nil
	}
	if *render {
		rendered, err := tui.RenderMarkdown(md, 100)
		if err != nil {
			return err
		}
		md = rendered
	}
	_, err = io.WriteString(stdout, md)
	return err
}

// chooseSelection runs the criteria form, starting from the remembered
// selection when no filters were given on the command line.
func chooseSelection(snap model.Snapshot, sel tui.Selection, log *debug.Logger) (tui.Selection, error) {
	if sel.Criteria.IsEmpty() && sel.Query == "" {
		if last, err := tui.LoadSelection(); err != nil {
			log.Debug("could not load last selection", "error", err)
		} else if last.Timeframe != "" {
			sel = last
		}
	}
	chosen, err := tui.RunCriteriaForm(sel, tui.ChoicesFrom(snap))
	if err != nil {
		return sel, fmt.Errorf("criteria form: %w", err)
	}
	if err := tui.SaveSelection(chosen); err != nil {
		log.Debug("could not save selection", "error", err)
	}
	return chosen, nil
}

func runJSON(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, cf := newFlagSet("json", stderr)
	section := fs.String("section", "", "Print one section: summary, dora, burndown, risks, trend, capacity, velocity, timeline")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	e, err := setup(ctx, cf, false)
	if err != nil {
		return err
	}
	defer e.log.Sync()

	vm := e.viewModel(cf.criteria(), e.cfg.Timeframe())
	if !vm.Finite() {
		return errors.New("computed view-model contains non-finite numbers")
	}
	v, err := jsonSection(vm, *section)
	if err != nil {
		return err
	}
	return writeJSON(stdout, v)
}

func jsonSection(vm dashboard.ViewModel, section string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(section)) {
	case "":
		return vm, nil
	case "summary":
		return vm.Summary, nil
	case "dora":
		return vm.DORA, nil
	case "burndown":
		return vm.Burndown, nil
	case "risks":
		return map[string]any{"risks": vm.Risks, "summary": vm.RiskSummary}, nil
	case "trend":
		return vm.Trend, nil
	case "capacity":
		return vm.Capacities, nil
	case "velocity":
		return vm.Velocity, nil
	case "timeline":
		return vm.Timeline, nil
	}
	return nil, fmt.Errorf("unknown --section %q", section)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func runInsights(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, cf := newFlagSet("insights", stderr)
	query := fs.String("q", "", "Question to answer (required)")
	asJSON := fs.Bool("json", false, "Print the structured insights as JSON")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if strings.TrimSpace(*query) == "" {
		fmt.Fprintln(stderr, "insights requires --q")
		return errUsage
	}
	e, err := setup(ctx, cf, false)
	if err != nil {
		return err
	}
	defer e.log.Sync()

	ins := e.viewModel(cf.criteria(), e.cfg.Timeframe()).Insights(*query)
	if *asJSON {
		return writeJSON(stdout, ins)
	}
	_, err = io.WriteString(stdout, export.GenerateInsightsBrief(ins))
	return err
}

func runExport(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, cf := newFlagSet("export", stderr)
	out := fs.String("out", "pulse-export.db", "SQLite database to write")
	title := fs.String("title", "", "Title stored in the export metadata")
	meta := fs.Bool("meta-json", true, "Also write meta.json next to the database")
	noHooks := fs.Bool("no-hooks", false, "Skip .pulse/hooks.yaml")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	e, err := setup(ctx, cf, false)
	if err != nil {
		return err
	}
	defer e.log.Sync()

	vm := e.viewModel(cf.criteria(), e.cfg.Timeframe())
	exp := export.NewSQLiteExporter(vm)
	exp.Config.Title = *title
	exp.Config.Source = e.source.Path
	exp.Config.Version = version.Version
	exp.Config.WriteMetaJSON = *meta
	err = e.withHooks(ctx, *noHooks, e.exportContext(vm, *out, "sqlite"), stderr, func() error {
		return exp.Export(ctx, *out)
	})
	if err != nil {
		return err
	}

	sum, err := export.ReadSummary(ctx, *out)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Exported %d epics, %d teams, %d backlog items, %d sprints to %s\n",
		sum.Epics, sum.Teams, sum.Backlog, sum.Sprints, *out)
	return nil
}

func runChart(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, cf := newFlagSet("chart", stderr)
	kind := fs.String("kind", string(export.ChartBurndown), "Chart kind: burndown or trend")
	out := fs.String("out", "", "Output file (.svg or .png)")
	format := fs.String("format", "", "svg or png (default: from --out extension)")
	title := fs.String("title", "", "Chart title")
	width := fs.Int("width", 0, "Width in pixels")
	height := fs.Int("height", 0, "Height in pixels")
	noHooks := fs.Bool("no-hooks", false, "Skip .pulse/hooks.yaml")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	k, ok := export.ParseChartKind(*kind)
	if !ok {
		return fmt.Errorf("invalid --kind %q (want burndown or trend)", *kind)
	}
	if *out == "" {
		*out = string(k) + ".svg"
	}
	e, err := setup(ctx, cf, false)
	if err != nil {
		return err
	}
	defer e.log.Sync()

	vm := e.viewModel(cf.criteria(), e.cfg.Timeframe())
	chartFormat := strings.ToLower(*format)
	if chartFormat == "" {
		chartFormat = strings.TrimPrefix(strings.ToLower(filepath.Ext(*out)), ".")
	}
	err = e.withHooks(ctx, *noHooks, e.exportContext(vm, *out, chartFormat), stderr, func() error {
		return export.SaveChart(vm, export.ChartOptions{
			Path:   *out,
			Format: *format,
			Kind:   k,
			Title:  *title,
			Width:  *width,
			Height: *height,
		})
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Chart written to %s\n", *out)
	return nil
}

func runWatch(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, cf := newFlagSet("watch", stderr)
	query := fs.String("q", "", "Question used by the report view")
	interactive := fs.Bool("interactive", false, "Choose filters and timeframe in a form first")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if !tui.IsTerminal() {
		return errors.New("watch needs an interactive terminal")
	}
	e, err := setup(ctx, cf, true)
	if err != nil {
		return err
	}
	// The terminal belongs to the dashboard; keep log output off it.
	e.log = debug.Nop()
	debug.SetLogger(e.log)

	sel := tui.Selection{Criteria: cf.criteria(), Timeframe: e.cfg.Timeframe(), Query: strings.TrimSpace(*query)}
	if *interactive {
		if sel, err = chooseSelection(e.snap, sel, e.log); err != nil {
			return err
		}
	}

	store := dashboard.NewStore(e.snap)
	dataDir := e.cfg.Data.Dir
	reload := func(ctx context.Context) error {
		snap, _, err := datasource.LoadSnapshot(ctx, dataDir)
		if err != nil {
			return err
		}
		store.Replace(snap)
		return nil
	}

	opts := tui.WatchOptions{
		Store:     store,
		Selection: sel,
		Options:   e.cfg.Options(e.now()),
		Reload:    reload,
		Now:       e.now,
	}
	if info, err := os.Stat(dataDir); err == nil && info.IsDir() {
		w, err := watchData(e.cfg.Data, e.log)
		if err != nil {
			return err
		}
		defer w.Stop()
		opts.Changes = w.Changed()
	}
	return tui.RunWatch(ctx, opts)
}

func runSources(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, cf := newFlagSet("sources", stderr)
	all := fs.Bool("all", false, "Include sources that failed validation")
	asJSON := fs.Bool("json", false, "Print sources as JSON")
	diff := fs.Bool("diff", false, "Compare every valid source against the freshest one")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	cfg, err := cf.loadConfig()
	if err != nil {
		return err
	}

	sources, err := datasource.DiscoverSources(datasource.DiscoveryOptions{
		DataDir:                cfg.Data.Dir,
		ValidateAfterDiscovery: true,
		IncludeInvalid:         *all,
	})
	if err != nil {
		return err
	}

	if *diff {
		report := datasource.GenerateInconsistencyReport(ctx, sources, datasource.DefaultDiffOptions())
		if *asJSON {
			return writeJSON(stdout, report)
		}
		fmt.Fprintf(stdout, "%d sources, %d inconsistencies\n", len(report.Sources), report.TotalInconsistencies)
		for _, d := range report.Diffs {
			if d.HasInconsistencies() {
				fmt.Fprintln(stdout, "  "+d.Summary())
			}
		}
		return nil
	}
	if *asJSON {
		return writeJSON(stdout, sources)
	}
	if len(sources) == 0 {
		fmt.Fprintf(stdout, "No data sources found in %s\n", cfg.Data.Dir)
		return nil
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tPATH\tRECORDS\tMODIFIED\tSTATUS")
	for i, s := range sources {
		status := "ok"
		if !s.Valid {
			status = "invalid: " + s.ValidationError
		} else if i == 0 {
			status = "selected"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", s.Type, relPath(s.Path), s.RecordCount, s.ModTime.Format(time.RFC3339), status)
	}
	return tw.Flush()
}

func relPath(p string) string {
	wd, err := os.Getwd()
	if err != nil {
		return p
	}
	if rel, err := filepath.Rel(wd, p); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return p
}

func runConfig(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, cf := newFlagSet("config", stderr)
	write := fs.String("write", "", "Write the effective configuration to this file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	cfg, err := cf.loadConfig()
	if err != nil {
		return err
	}
	if *write != "" {
		if err := config.SaveTo(cfg, *write); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Configuration written to %s\n", *write)
		return nil
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = stdout.Write(data)
	return err
}

func (e *env) exportContext(vm dashboard.ViewModel, path, format string) hooks.ExportContext {
	return hooks.ExportContext{
		ExportPath:   path,
		ExportFormat: format,
		EpicCount:    len(vm.Epics),
		Timeframe:    string(vm.Timeframe),
		Timestamp:    vm.GeneratedAt,
	}
}

// withHooks runs write between the pre-export and post-export hooks of the
// working directory. A failing pre-export hook cancels the write.
func (e *env) withHooks(ctx context.Context, noHooks bool, hc hooks.ExportContext, stderr io.Writer, write func() error) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	executor, err := hooks.RunHooks(wd, hc, noHooks)
	if err != nil {
		return fmt.Errorf("load hooks: %w", err)
	}
	if executor == nil {
		return write()
	}

	if err := executor.RunPreExport(ctx); err != nil {
		fmt.Fprintln(stderr, executor.Summary())
		return err
	}
	if err := write(); err != nil {
		return err
	}
	if err := executor.RunPostExport(ctx); err != nil {
		e.log.Warn("post-export hook failed", "error", err)
	}
	fmt.Fprintln(stderr, executor.Summary())
	return nil
}
