// Package op implements the idempotent operation library (spec.md §4.G):
// package, directory, template (pkg/op/file) and git.checkout (pkg/op/git),
// all built on pkg/runctx.Context.Transaction and pkg/connector.
package op

import (
	"context"
	"fmt"

	"github.com/oddlama/forge/pkg/op/pkgmgr"
	"github.com/oddlama/forge/pkg/runctx"
	"github.com/oddlama/forge/pkg/transaction"
)

// PackageState is the desired state for the Package operation.
type PackageState string

const (
	Present PackageState = "present"
	Absent  PackageState = "absent"
)

// Package installs or removes atom via the package manager selected by the
// context's current Defaults.PackageManager (pacman by default), grounded
// on pacman.py's `package()` transaction.
func Package(ctx context.Context, c *runctx.Context, atom string, state PackageState, opts []string) error {
	if state != Present && state != Absent {
		return fmt.Errorf("op: invalid package state %q", state)
	}

	def := c.Defaults()
	mgrName := "pacman"
	if def.PackageManager != nil {
		mgrName = *def.PackageManager
	}
	mgr, err := pkgmgr.Lookup(mgrName)
	if err != nil {
		return err
	}

	return c.Transaction("package", atom, func(t *transaction.Transaction) error {
		installed, err := mgr.Query(ctx, c.Conn, atom)
		if err != nil {
			return t.Fail(fmt.Errorf("querying %s: %w", atom, err))
		}

		initial := map[string]any{"installed": installed}
		t.InitialState(initial)
		shouldInstall := state == Present
		final := map[string]any{"installed": shouldInstall}
		t.FinalState(final)
		if transaction.SameState(initial, final) {
			return t.Unchanged()
		}

		if t.DryRun() {
			return t.Changed()
		}

		if shouldInstall {
			if err := mgr.Install(ctx, c.Conn, atom, opts); err != nil {
				return t.Fail(fmt.Errorf("installing %s: %w", atom, err))
			}
		} else {
			if err := mgr.Remove(ctx, c.Conn, atom, opts); err != nil {
				return t.Fail(fmt.Errorf("removing %s: %w", atom, err))
			}
		}
		return t.Changed()
	})
}
