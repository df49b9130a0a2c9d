// Package runner implements the host runner (spec.md §4.H, §5): for each
// selected host, in parallel up to a configured fan-out, open a connector,
// run the operator's task within a fresh context, and close the connector,
// aggregating per-host results without any cross-host ordering guarantee.
package runner

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/oddlama/forge/internal/forgeerr"
	"github.com/oddlama/forge/internal/logger"
	"github.com/oddlama/forge/pkg/connector"
	"github.com/oddlama/forge/pkg/inventory"
	"github.com/oddlama/forge/pkg/report"
	"github.com/oddlama/forge/pkg/runctx"
)

// Task is the operator-supplied unit of logic executed against one host's
// fresh Context (spec.md §3: "Task/Script ... Executed within a context").
type Task struct {
	// ID is the stable identifier reported on every transaction record for
	// this run (spec.md §3: "carries a stable identifier used for
	// tracking").
	ID string
	// Run performs the task's operations against rc. Its error return
	// becomes the host's Result.Err when AbortOn is AbortOnFailure and a
	// transaction failed, or when Run itself returns a non-transactional
	// error (e.g. an operator logic bug).
	Run func(ctx context.Context, rc *runctx.Context) error
}

// Options configures one run across the selected hosts.
type Options struct {
	// Fanout bounds how many hosts run concurrently (spec.md §5: "an outer
	// pool of parallel host workers"). Zero or negative means unbounded.
	Fanout int
	// DryRun seeds every host's base Defaults.Check (spec.md §4.F).
	DryRun bool
	// Verbosity seeds every host's base Defaults.Verbosity.
	Verbosity int
	// AbortOn controls what a host worker does when a transaction fails
	// (spec.md §4.H item 3).
	AbortOn runctx.AbortPolicy
	// Stale is polled before dispatching to each host; if it returns true
	// the host is aborted with a usage error instead of running (the
	// `--watch` inventory-changed-mid-run guard, SPEC_FULL.md
	// Configuration section). Nil means never stale.
	Stale func() bool
	// Debug requests --debug on the remote dispatcher's own argv, in
	// addition to the controller's own debug logging.
	Debug bool
}

// Result is one host's outcome.
type Result struct {
	Host    string
	Aborted bool
	Err     error
}

// Run dispatches task to every host in hosts, honoring opts.Fanout, and
// returns one Result per host in the same order hosts was given (spec.md
// §5: "Reports from different hosts may interleave", but the Result slice
// itself is returned in a stable, deterministic order for the caller's
// convenience — only sink.Records() ordering is unspecified across hosts).
func Run(ctx context.Context, hosts []*inventory.Host, inv *inventory.Inventory, registry *connector.Registry, sink *report.Sink, task Task, opts Options) []Result {
	results := make([]Result, len(hosts))

	group, gctx := errgroup.WithContext(ctx)
	if opts.Fanout > 0 {
		group.SetLimit(opts.Fanout)
	}

	for i, h := range hosts {
		i, h := i, h
		group.Go(func() error {
			results[i] = runOne(gctx, h, inv, registry, sink, task, opts)
			return nil
		})
	}
	// group.Go's worker always returns nil: per-host failures are captured
	// in results, not propagated as a group error, so one host's transport
	// failure never cancels siblings still in flight (spec.md §5: "no
	// ordering is promised or expected" across hosts).
	_ = group.Wait()

	return results
}

func runOne(ctx context.Context, h *inventory.Host, inv *inventory.Inventory, registry *connector.Registry, sink *report.Sink, task Task, opts Options) Result {
	log := logger.With(logger.Host(h.Name))

	if opts.Stale != nil && opts.Stale() {
		err := forgeerr.Usage("inventory changed during run; aborting host %q", h.Name)
		sink.MarkAborted(h.Name)
		log.Error("host aborted", logger.Err(err))
		return Result{Host: h.Name, Aborted: true, Err: err}
	}

	scheme, url, info, err := h.ConnectorInfo()
	if err != nil {
		uerr := forgeerr.Usage("host %q: %v", h.Name, err)
		sink.MarkAborted(h.Name)
		return Result{Host: h.Name, Aborted: true, Err: uerr}
	}
	info.Debug = opts.Debug

	conn, err := registry.Build(scheme, url, info)
	if err != nil {
		terr := forgeerr.Transport(err, "host %q: building connector", h.Name)
		sink.MarkAborted(h.Name)
		log.Error("host aborted", logger.Err(terr))
		return Result{Host: h.Name, Aborted: true, Err: terr}
	}

	if err := conn.Open(ctx); err != nil {
		terr := forgeerr.Transport(err, "host %q: opening connector", h.Name)
		sink.MarkAborted(h.Name)
		log.Error("host aborted", logger.Err(terr))
		return Result{Host: h.Name, Aborted: true, Err: terr}
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Warn("closing connector", logger.Err(cerr))
		}
	}()

	rc := runctx.New(runctx.Host{Name: h.Name, Vars: inv.Vars(h)}, conn, sink, opts.DryRun, opts.Verbosity)
	rc.TaskID = task.ID
	rc.AbortOn = opts.AbortOn

	if err := task.Run(ctx, rc); err != nil {
		oerr := forgeerr.Operation(err, "host %q: task %q", h.Name, task.ID)
		log.Error("host aborted", logger.Err(oerr))
		return Result{Host: h.Name, Aborted: true, Err: oerr}
	}

	return Result{Host: h.Name}
}

// AnyFailed reports whether results contains any aborted host or any
// recorded Failed transaction, the condition spec.md §6 maps to exit 1.
func AnyFailed(results []Result, sink *report.Sink) bool {
	for _, r := range results {
		if r.Aborted {
			return true
		}
	}
	for _, sum := range sink.Summaries() {
		if sum.Failed > 0 {
			return true
		}
	}
	return false
}
