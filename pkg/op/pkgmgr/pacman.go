package pkgmgr

import (
	"context"

	"github.com/oddlama/forge/pkg/connector"
)

// Pacman is the Arch Linux package manager backend, a direct generalization
// of pacman.py's is_installed/package functions.
type Pacman struct{}

func (Pacman) Query(ctx context.Context, conn connector.Connector, atom string) (bool, error) {
	result, err := conn.Run(ctx, []string{"pacman", "-Ql", atom}, connector.RunOptions{CaptureOutput: true})
	if err != nil {
		return false, err
	}
	return result.ReturnCode == 0, nil
}

func (Pacman) Install(ctx context.Context, conn connector.Connector, atom string, opts []string) error {
	cmd := append([]string{"pacman", "--color", "always", "-S", "--noconfirm"}, opts...)
	cmd = append(cmd, atom)
	return runChecked(ctx, conn, cmd)
}

func (Pacman) Remove(ctx context.Context, conn connector.Connector, atom string, opts []string) error {
	cmd := append([]string{"pacman", "--color", "always", "-Rs", "--noconfirm"}, opts...)
	cmd = append(cmd, atom)
	return runChecked(ctx, conn, cmd)
}

var _ Manager = Pacman{}
