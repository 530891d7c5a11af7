package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/pprof"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/vanderheijden86/pulseboard/internal/datasource"
	"github.com/vanderheijden86/pulseboard/pkg/config"
	"github.com/vanderheijden86/pulseboard/pkg/dashboard"
	"github.com/vanderheijden86/pulseboard/pkg/debug"
	"github.com/vanderheijden86/pulseboard/pkg/filter"
	"github.com/vanderheijden86/pulseboard/pkg/model"
	"github.com/vanderheijden86/pulseboard/pkg/trend"
	"github.com/vanderheijden86/pulseboard/pkg/version"
)

const usage = `Usage: pulse <command> [options]

Portfolio and delivery analytics over CSV or SQLite snapshots.

Commands:
  serve     Run the HTTP API
  report    Print a Markdown portfolio report
  json      Print the full dashboard view-model as JSON
  insights  Answer a question about the filtered portfolio
  export    Write the view-model to a SQLite database
  chart     Render a burndown or trend chart (SVG or PNG)
  watch     Live terminal dashboard that follows the data directory
  sources   List the data sources found in the data directory
  config    Print the effective configuration
  version   Print version information

Run 'pulse <command> --help' for command options.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run dispatches a command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "serve":
		err = runServe(ctx, rest, stdout, stderr)
	case "report":
		err = runReport(ctx, rest, stdout, stderr)
	case "json":
		err = runJSON(ctx, rest, stdout, stderr)
	case "insights":
		err = runInsights(ctx, rest, stdout, stderr)
	case "export":
		err = runExport(ctx, rest, stdout, stderr)
	case "chart":
		err = runChart(ctx, rest, stdout, stderr)
	case "watch":
		err = runWatch(ctx, rest, stdout, stderr)
	case "sources":
		err = runSources(ctx, rest, stdout, stderr)
	case "config":
		err = runConfig(ctx, rest, stdout, stderr)
	case "version", "--version", "-v":
		fmt.Fprintln(stdout, version.String())
		return 0
	case "help", "--help", "-h":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

// errUsage marks flag errors already reported by the FlagSet.
var errUsage = errors.New("usage")

// commonFlags are shared by every command that computes a view-model.
type commonFlags struct {
	configPath string
	dataDir    string
	status     string
	priority   string
	team       string
	search     string
	timeframe  string
	seed       string
	sprint     string
	cpuProfile string
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet("pulse "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	cf := &commonFlags{}
	fs.StringVar(&cf.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/pulse/config.yaml)")
	fs.StringVar(&cf.dataDir, "data", "", "Data directory (overrides config and PULSE_DATA_DIR)")
	fs.StringVar(&cf.status, "status", "", "Comma separated statuses to include")
	fs.StringVar(&cf.priority, "priority", "", "Comma separated priorities to include")
	fs.StringVar(&cf.team, "team", "", "Comma separated teams to include")
	fs.StringVar(&cf.search, "search", "", "Case-insensitive text matched against epic titles and descriptions")
	fs.StringVar(&cf.timeframe, "timeframe", "", "Trend timeframe: week, month or quarter")
	fs.StringVar(&cf.seed, "seed", "", "Seed for the synthetic trend series")
	fs.StringVar(&cf.sprint, "sprint", "", "Sprint used for the burndown (default: the active sprint)")
	fs.StringVar(&cf.cpuProfile, "cpu-profile", "", "Write CPU profile to file")
	return fs, cf
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(fs.Output(), "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		return errUsage
	}
	return nil
}

// loadConfig reads the config file and applies the command line overrides.
func (cf *commonFlags) loadConfig() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if cf.configPath != "" {
		cfg, err = config.LoadFrom(cf.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}

	if cf.dataDir != "" {
		cfg.Data.Dir = cf.dataDir
	}
	if cf.timeframe != "" {
		if !trend.IsTimeframe(cf.timeframe) {
			return cfg, fmt.Errorf("invalid --timeframe %q (want week, month or quarter)", cf.timeframe)
		}
		cfg.Dashboard.Timeframe = cf.timeframe
	}
	if cf.seed != "" {
		n, err := strconv.ParseUint(cf.seed, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid --seed %q: %w", cf.seed, err)
		}
		cfg.Dashboard.Seed = n
	}
	if cf.sprint != "" {
		cfg.Dashboard.Sprint = cf.sprint
	}
	return cfg, nil
}

func (cf *commonFlags) criteria() filter.Criteria {
	return filter.Criteria{
		Statuses:   filter.ParseList(cf.status),
		Priorities: filter.ParseList(cf.priority),
		Teams:      filter.ParseList(cf.team),
		SearchText: cf.search,
	}.Normalize()
}

// startProfile starts CPU profiling when requested and returns the stop
// function.
func (cf *commonFlags) startProfile() (func(), error) {
	if cf.cpuProfile == "" {
		return func() {}, nil
	}
	f, err := os.Create(cf.cpuProfile)
	if err != nil {
		return nil, fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("could not start CPU profile: %w", err)
	}
	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}, nil
}

// env is the state a command needs after flag parsing.
type env struct {
	cfg    config.Config
	log    *debug.Logger
	flags  *commonFlags
	snap   model.Snapshot
	source datasource.DataSource
	now    func() time.Time
}

// nowFunc is replaced in tests.
var nowFunc = time.Now

// setup loads config and the snapshot. When allowMissing is set a missing
// data source yields an empty snapshot instead of an error.
func setup(ctx context.Context, cf *commonFlags, allowMissing bool) (*env, error) {
	cfg, err := cf.loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := debug.NewLogger(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	debug.SetLogger(log)

	e := &env{cfg: cfg, log: log, flags: cf, now: nowFunc}
	snap, src, err := datasource.LoadSnapshot(ctx, cfg.Data.Dir)
	switch {
	case err == nil:
		e.snap, e.source = snap, src
		log.Debug("snapshot loaded", "source", src.Path, "type", src.Type,
			"epics", len(snap.Epics), "teams", len(snap.Teams), "backlog", len(snap.Backlog), "sprints", len(snap.Sprints))
	case allowMissing && errors.Is(err, datasource.ErrNoSource):
		log.Warn("no data source found, starting empty", "dir", cfg.Data.Dir)
	default:
		return nil, fmt.Errorf("load snapshot from %s: %w", cfg.Data.Dir, err)
	}
	return e, nil
}

func (e *env) viewModel(criteria filter.Criteria, tf trend.Timeframe) dashboard.ViewModel {
	return dashboard.ComputeViewModel(e.snap, criteria, tf, e.cfg.Options(e.now()))
}
