// Package pkgmgr implements the pluggable package-manager backends for the
// package operation (spec.md §4.G), grounded on
// simple_automation/transactions/package/pacman.py's query/install/remove
// shape. SPEC_FULL.md generalizes the original's single hardcoded pacman
// implementation to a small Manager interface with pacman and portage
// backends, selected via Defaults.PackageManager.
package pkgmgr

import (
	"context"
	"fmt"

	"github.com/oddlama/forge/pkg/connector"
)

// Manager is the contract every package-manager backend implements: probe
// whether an atom is installed, then install or remove it.
type Manager interface {
	// Query reports whether atom is currently installed.
	Query(ctx context.Context, conn connector.Connector, atom string) (installed bool, err error)
	// Install installs atom, passing opts through to the underlying
	// command (already template-rendered by the caller).
	Install(ctx context.Context, conn connector.Connector, atom string, opts []string) error
	// Remove uninstalls atom.
	Remove(ctx context.Context, conn connector.Connector, atom string, opts []string) error
}

// registry is a small, static map — not exported as mutable — since the
// set of supported backends is a closed, compiled-in list, unlike the
// transport scheme registry which genuinely needs runtime registration
// across packages.
var registry = map[string]Manager{
	"pacman":  Pacman{},
	"portage": Portage{},
}

// Lookup returns the Manager registered under name, or an error if name is
// not a known package manager.
func Lookup(name string) (Manager, error) {
	m, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("pkgmgr: unknown package manager %q", name)
	}
	return m, nil
}

// runChecked runs command on conn and returns an error if it exits
// non-zero, mirroring pacman.py's `checked=True` remote_exec calls.
func runChecked(ctx context.Context, conn connector.Connector, command []string) error {
	result, err := conn.Run(ctx, command, connector.RunOptions{CaptureOutput: true})
	if err != nil {
		return err
	}
	if result.ReturnCode != 0 {
		msg := ""
		if result.Stderr != nil {
			msg = string(*result.Stderr)
		}
		return fmt.Errorf("pkgmgr: command %v exited %d: %s", command, result.ReturnCode, msg)
	}
	return nil
}
