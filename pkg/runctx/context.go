// Package runctx implements the per-host mutable execution environment
// (spec.md §3, §4.E): the current host and connector, a stack of scoped
// defaults, dry-run/verbosity state, and the transaction() entry point
// operations use to drive the idempotent-operation state machine.
package runctx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oddlama/forge/internal/logger"
	"github.com/oddlama/forge/pkg/connector"
	"github.com/oddlama/forge/pkg/report"
	"github.com/oddlama/forge/pkg/transaction"
)

// Host is the subset of inventory data a running context needs: its name
// and effective (host+group-merged) variable map. Defined here rather than
// imported from pkg/inventory to keep pkg/runctx free of a dependency on
// the config-loading stack; pkg/runner constructs this from the loaded
// inventory.
type Host struct {
	Name string
	Vars map[string]any
}

// AbortPolicy controls what a host worker does when an operation's
// transaction terminates Failed.
type AbortPolicy int

const (
	// AbortOnFailure stops running the remaining script on this host as
	// soon as one transaction fails (the default, spec.md §4.H item 3).
	AbortOnFailure AbortPolicy = iota
	// ContinueOnFailure keeps executing subsequent operations even after
	// a failed transaction, recording each independently.
	ContinueOnFailure
)

// Context is created when a connector is opened and destroyed when it is
// closed (spec.md §3). Mutation is confined to the owning host-runner
// goroutine and to scoped defaults frames; a Context is never shared
// across hosts.
type Context struct {
	Host      Host
	Conn      connector.Connector
	Sink      *report.Sink
	TaskID    string
	AbortOn   AbortPolicy

	defaultsStack []Defaults
	current       *transaction.Transaction
	log           *slog.Logger
}

// New creates a context for one host. dryRun and verbosity seed the base
// (bottom-of-stack) defaults frame.
func New(host Host, conn connector.Connector, sink *report.Sink, dryRun bool, verbosity int) *Context {
	base := Defaults{
		Check:          boolPtr(dryRun),
		Verbosity:      intPtr(verbosity),
		Umask:          strPtr("0077"),
		PackageManager: strPtr("pacman"),
	}
	return &Context{
		Host:          host,
		Conn:          conn,
		Sink:          sink,
		defaultsStack: []Defaults{base},
		log:           logger.With(logger.Host(host.Name)),
	}
}

// Defaults returns the effective defaults: the top-of-stack frame with
// nil fields inherited from the frames below it.
func (c *Context) Defaults() Defaults {
	eff := c.defaultsStack[0]
	for _, frame := range c.defaultsStack[1:] {
		eff = merge(eff, frame)
	}
	return eff
}

// DryRun reports whether mutations should be skipped under the current
// defaults frame.
func (c *Context) DryRun() bool {
	d := c.Defaults()
	return d.Check != nil && *d.Check
}

// DefaultsScope is returned by PushDefaults; Release restores the prior
// frame. The scope must be released exactly once, typically via `defer`.
type DefaultsScope struct {
	ctx   *Context
	depth int
}

// Release pops frames back down to the depth this scope was created at.
// Safe to call multiple times; only the first call has an effect.
func (s *DefaultsScope) Release() {
	if s.ctx == nil {
		return
	}
	if len(s.ctx.defaultsStack) > s.depth {
		s.ctx.defaultsStack = s.ctx.defaultsStack[:s.depth]
	}
	s.ctx = nil
}

// PushDefaults pushes a new defaults frame (merged on top of the current
// effective defaults at read time) and returns a scope whose Release
// restores the previous frame. Mirrors the original's `with
// context.defaults(...):` block (SPEC_FULL.md "Scoped defaults as a real
// stack").
func (c *Context) PushDefaults(d Defaults) *DefaultsScope {
	depth := len(c.defaultsStack)
	c.defaultsStack = append(c.defaultsStack, d)
	return &DefaultsScope{ctx: c, depth: depth}
}

// WithDefaults pushes d, runs fn, and always releases the scope afterward —
// the automatic-release counterpart to PushDefaults/DefaultsScope.Release
// for callers who don't need the scope to outlive a single call.
func (c *Context) WithDefaults(d Defaults, fn func(*Context) error) error {
	scope := c.PushDefaults(d)
	defer scope.Release()
	return fn(c)
}

// Transaction installs a new transaction as current for the duration of
// fn, guarantees exactly one terminal outcome is recorded (synthesizing a
// Failed outcome if fn panics or returns without one), and appends the
// resulting report.Record to the sink. When the outcome is Failed and
// AbortOn is AbortOnFailure it returns the recorded error (fn's error, or
// the one synthesized for a panic); otherwise it returns nil. Operation
// functions typically end with
// `return ctx.Transaction(title, name, func(t *transaction.Transaction) error { ... })`.
func (c *Context) Transaction(title, name string, fn func(*transaction.Transaction) error) error {
	t := transaction.New(title, name, c.DryRun())
	prev := c.current
	c.current = t

	var fnErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				fnErr = fmt.Errorf("panic in operation %s/%s: %v", title, name, r)
			}
		}()
		fnErr = fn(t)
	}()

	c.current = prev

	rec := t.Finish(c.Host.Name, c.TaskID, fnErr)
	c.Sink.Record(rec)

	c.log.LogAttrs(context.Background(), slog.LevelInfo, "transaction",
		logger.Task(title), logger.Name(name), logger.Outcome(string(rec.Outcome)),
		logger.DurationMs(float64(rec.Elapsed.Microseconds())/1000.0))
	if rec.Err != nil {
		c.log.LogAttrs(context.Background(), slog.LevelWarn, "transaction failed",
			logger.Task(title), logger.Name(name), logger.Err(rec.Err))
	}

	if rec.Outcome == report.OutcomeFailed && c.AbortOn == AbortOnFailure {
		return rec.Err
	}
	return nil
}

// Now returns the current time; broken out so tests can observe elapsed
// durations deterministically if ever needed.
func Now() time.Time { return time.Now() }
