package pkgmgr

import (
	"context"

	"github.com/oddlama/forge/pkg/connector"
)

// Portage is the Gentoo package manager backend — example/tasks/zsh.py
// imports `simple_automation.transactions.package.portage` for the same
// "install zsh" task this repo's example/tasks/zsh.go mirrors.
type Portage struct{}

func (Portage) Query(ctx context.Context, conn connector.Connector, atom string) (bool, error) {
	result, err := conn.Run(ctx, []string{"qlist", "-I", "-e", atom}, connector.RunOptions{CaptureOutput: true})
	if err != nil {
		return false, err
	}
	return result.ReturnCode == 0, nil
}

func (Portage) Install(ctx context.Context, conn connector.Connector, atom string, opts []string) error {
	cmd := append([]string{"emerge", "--oneshot"}, opts...)
	cmd = append(cmd, atom)
	return runChecked(ctx, conn, cmd)
}

func (Portage) Remove(ctx context.Context, conn connector.Connector, atom string, opts []string) error {
	cmd := append([]string{"emerge", "--depclean"}, opts...)
	cmd = append(cmd, atom)
	return runChecked(ctx, conn, cmd)
}

var _ Manager = Portage{}
