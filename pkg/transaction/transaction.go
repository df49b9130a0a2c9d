// Package transaction implements the idempotent-operation state machine
// from spec.md §4.F: probe → decide → (no-op | act | pretend) → report
// exactly one terminal outcome per transaction.
package transaction

import (
	"fmt"
	"reflect"
	"time"

	"github.com/oddlama/forge/pkg/report"
)

// Outcome is re-exported from pkg/report so callers only import one package
// for the enum; the transaction engine is the sole producer of outcomes.
type Outcome = report.Outcome

const (
	Unchanged = report.OutcomeUnchanged
	Changed   = report.OutcomeChanged
	Failed    = report.OutcomeFailed
)

// Transaction represents one pending idempotent operation (spec.md §3).
// It is created by Context.Transaction and exclusively owned by the
// operation function that received it; the owning context only references
// it while it is "current".
type Transaction struct {
	Title string
	Name  string

	dryRun    bool
	startedAt time.Time

	initial map[string]any
	final   map[string]any

	outcome Outcome
	err     error
	done    bool
}

// New starts a transaction. dryRun is captured once at creation since the
// spec requires probes to still run but mutations to be skipped for the
// transaction's whole lifetime.
func New(title, name string, dryRun bool) *Transaction {
	return &Transaction{Title: title, Name: name, dryRun: dryRun, startedAt: time.Now()}
}

// InitialState records the probed state. Per spec.md §4.F this must be
// called before any mutation. Calling it twice overwrites the previous
// value — callers should call it exactly once per operation.
func (t *Transaction) InitialState(state map[string]any) {
	t.initial = state
}

// FinalState records the intended post-mutation state. Must be called
// before acting (i.e. before any Upload/ProcessRun-mutating call a
// connector makes on behalf of the operation).
func (t *Transaction) FinalState(state map[string]any) {
	t.final = state
}

// DryRun reports whether mutations must be skipped for this transaction.
func (t *Transaction) DryRun() bool { return t.dryRun }

// Unchanged terminates the transaction as a no-op: initial_state already
// equals the desired state, so nothing needs to act. Returns the zero
// value so operation functions can `return action.Unchanged()` directly.
func (t *Transaction) Unchanged() error {
	t.terminate(Unchanged, nil)
	return nil
}

// Changed terminates the transaction as a completed (or, under dry-run,
// simulated) mutation.
func (t *Transaction) Changed() error {
	t.terminate(Changed, nil)
	return nil
}

// Fail terminates the transaction as failed with the given cause and
// returns it, so operation functions can `return action.Fail(err)`.
func (t *Transaction) Fail(err error) error {
	t.terminate(Failed, err)
	return err
}

// SameState compares initial and final state maps for equality by
// deep-equal, implementing the "initial_state == final_state ⇒ unchanged"
// contract without requiring every operation to hand-write its own diff.
func SameState(initial, final map[string]any) bool {
	return reflect.DeepEqual(initial, final)
}

func (t *Transaction) terminate(outcome Outcome, err error) {
	if t.done {
		// A transaction must set exactly one terminal outcome; a second
		// call is a logic error in the operation, not a new outcome.
		panic(fmt.Sprintf("transaction %q/%q: terminate called twice", t.Title, t.Name))
	}
	t.done = true
	t.outcome = outcome
	t.err = err
}

// Finish synthesizes a Record for the report sink. If the transaction was
// never explicitly terminated (e.g. the operation panicked and recovered
// higher up), it is reported failed with the given fallback error.
func (t *Transaction) Finish(host, task string, fallback error) report.Record {
	if !t.done {
		t.terminate(Failed, fallback)
	}
	return report.Record{
		Host:         host,
		Task:         task,
		Title:        t.Title,
		Name:         t.Name,
		InitialState: t.initial,
		FinalState:   t.final,
		Outcome:      t.outcome,
		Err:          t.err,
		Elapsed:      time.Since(t.startedAt),
		StartedAt:    t.startedAt,
	}
}

// Err returns the terminal error, if the outcome was Failed.
func (t *Transaction) Err() error { return t.err }

// OutcomeValue returns the terminal outcome, valid only after termination.
func (t *Transaction) OutcomeValue() Outcome { return t.outcome }
